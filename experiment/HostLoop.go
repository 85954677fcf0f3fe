package experiment

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/hashicorp/go-multierror"
	env "github.com/samuelfneumann/drivedqn/environment"
	"github.com/samuelfneumann/drivedqn/experiment/checkpointer"
	"github.com/samuelfneumann/drivedqn/experiment/tracker"
	ts "github.com/samuelfneumann/drivedqn/timestep"
	"gonum.org/v1/gonum/mat"
)

// PushAgent is an agent that is called by a host once per frame
type PushAgent interface {
	// Predict selects an action for the first observation of an episode
	Predict(observation []float64) (int, error)

	// OnTick stores the outcome of the previous action, learns, and
	// selects the next action. A nil observation ends the episode.
	OnTick(observation []float64, reward float64, done bool) (int, error)

	Save() error
}

// HostLoop is the per frame learning block of a host that owns the
// simulation loop. On each frame the host calls Tick, which reads the
// bot's reward and observation, applies the end of episode rules, and
// tells the bot what to do next.
type HostLoop struct {
	host  env.Host
	agent PushAgent

	scores        *tracker.Scores
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer

	isFirst bool
	score   float64
	games   int
	frame   int
	ticks   int
}

// NewHostLoop returns a new HostLoop. Scores may be nil.
func NewHostLoop(h env.Host, a PushAgent, scores *tracker.Scores,
	t []tracker.Tracker, c []checkpointer.Checkpointer) *HostLoop {
	return &HostLoop{
		host:          h,
		agent:         a,
		scores:        scores,
		trackers:      t,
		checkpointers: c,
		isFirst:       true,
	}
}

// Register registers a tracker.Tracker with the loop
func (l *HostLoop) Register(t tracker.Tracker) {
	l.trackers = append(l.trackers, t)
}

// AddCheckpointer adds a checkpointer which is run after those the
// loop was created with
func (l *HostLoop) AddCheckpointer(c checkpointer.Checkpointer) {
	l.checkpointers = append(l.checkpointers, c)
}

// Games returns the number of finished episodes
func (l *HostLoop) Games() int {
	return l.games
}

// Score returns the score of the current episode so far. The reward of
// the frame that ends an episode is given to the agent but not counted
// in the score.
func (l *HostLoop) Score() float64 {
	return l.score
}

// Ticks returns the number of frames the loop has handled
func (l *HostLoop) Ticks() int {
	return l.ticks
}

// Tick runs the learning block for a single frame. The returned error
// is that of the agent, and the bot has been given the agent's
// fallback action when it is non-nil.
func (l *HostLoop) Tick() error {
	l.ticks++
	if l.isFirst {
		return l.first()
	}

	reward, reason := env.Terminate(l.host, l.host.Reward())
	l.frame++

	// The score of a game counts the rewards of the frames it survived
	if reason != env.NotTerminated {
		return l.last(reward, reason)
	}
	l.score += reward

	obs := l.host.Observation()
	action, err := l.agent.OnTick(obs, reward, false)
	l.host.SetBotAction(action)

	step := ts.New(ts.Mid, reward, 1.0, vec(obs), l.frame)
	track(l.trackers, step)
	if cerr := checkpoint(l.checkpointers, step); cerr != nil {
		err = multierror.Append(err, cerr)
	}

	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

// first starts an episode
func (l *HostLoop) first() error {
	// Rewards from before the episode started are dropped
	l.host.Reward()
	l.isFirst = false
	l.score = 0.0
	l.frame = 0

	obs := l.host.Observation()
	action, err := l.agent.Predict(obs)
	l.host.SetBotAction(action)
	track(l.trackers, ts.New(ts.First, 0.0, 1.0, vec(obs), 0))

	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

// last ends an episode
func (l *HostLoop) last(reward float64, reason env.Termination) error {
	_, err := l.agent.OnTick(nil, reward, true)
	l.host.Reset()

	l.games++
	log.Infof("Game: %d Score: %.2f", l.games, l.score)
	log.Debugf("game %d ended: %v", l.games, reason)

	if l.scores != nil {
		l.scores.Record(l.score)
	}
	track(l.trackers, ts.New(ts.Last, reward, 1.0, nil, l.frame))
	l.isFirst = true

	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

// Save saves the agent and all tracked data
func (l *HostLoop) Save() error {
	if err := l.agent.Save(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if l.scores != nil {
		if err := l.scores.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	if err := save(l.trackers); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// vec wraps an observation for the trackers
func vec(obs []float64) *mat.VecDense {
	if len(obs) == 0 {
		return nil
	}
	return mat.NewVecDense(len(obs), obs)
}
