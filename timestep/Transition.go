package timestep

import "fmt"

// Transition is a single (s, a, r, s', done) experience tuple
type Transition struct {
	State     []float64
	Action    int
	Reward    float64
	NextState []float64
	Done      bool
}

// NotTerminal returns 0 if the transition ended its episode and 1
// otherwise
func (t Transition) NotTerminal() float64 {
	if t.Done {
		return 0.0
	}
	return 1.0
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.2f  |  "+
		"Done: %v", t.Action, t.Reward, t.Done)
}
