package deepq

import "fmt"

// Predict starts a new episode in which the host pushes observations
// to the agent. The action selected in observation is remembered so
// that the next call to OnTick can store the resulting transition.
func (d *DeepQ) Predict(observation []float64) (int, error) {
	if d.failed != nil {
		return d.fallbackAction, fmt.Errorf("predict: %w", d.failed)
	}
	action, err := d.ChooseAction(observation)
	if err != nil {
		d.prevObs = nil
		return d.fallbackAction, fmt.Errorf("predict: %w", err)
	}

	d.prevObs = append(d.prevObs[:0], observation...)
	d.prevAction = action
	return action, nil
}

// OnTick is called by the host once per frame after the action from the
// previous frame has been applied. The transition from the previous
// observation is stored, a learning step is taken, and the action to
// take in observation is returned.
//
// A nil observation means the episode ended and the host has no next
// state. The transition is then stored as terminal with a zero next
// state, learning still happens, and the fallback action is returned.
// Errors are returned along with the fallback action.
func (d *DeepQ) OnTick(observation []float64, reward float64,
	done bool) (int, error) {
	if d.failed != nil {
		return d.fallbackAction, fmt.Errorf("onTick: %w", d.failed)
	}
	terminal := done || observation == nil

	nextState := observation
	if observation == nil {
		nextState = make([]float64, d.features)
	}

	if d.prevObs != nil {
		err := d.StoreTransition(d.prevObs, d.prevAction, reward, nextState,
			terminal)
		if err != nil {
			return d.fallbackAction, fmt.Errorf("onTick: %w", err)
		}
	}

	if err := d.Learn(); err != nil {
		return d.fallbackAction, fmt.Errorf("onTick: %w", err)
	}

	if observation == nil {
		d.prevObs = nil
		return d.fallbackAction, nil
	}

	// A terminal observation is also the first observation of the next
	// episode
	return d.Predict(observation)
}
