package environment

// Rewards applied when an episode is terminated by the host
const (
	TimeoutReward  = -1.0
	FailurePenalty = 0.1
)

// Host is the capability set a game engine exposes for its bot. The
// engine owns the simulation loop and calls into the driver once per
// frame.
type Host interface {
	// Observation returns the bot's current observation vector
	Observation() []float64

	// Reward returns the reward accumulated since the last call and
	// clears it
	Reward() float64

	// SetBotAction sets the action the bot takes on the next frames
	SetBotAction(action int)

	// CheckTimeCounter returns whether the bot ran out of time to reach
	// its next checkpoint
	CheckTimeCounter() bool

	// CheckBackTriggerCounter returns whether the bot passed too many
	// checkpoints in the wrong direction
	CheckBackTriggerCounter() bool

	// CheckHasContact returns whether the bot touched an obstacle
	CheckHasContact() bool

	// Reset respawns the bot and clears its counters
	Reset()
}

// Termination is the reason an episode ended
type Termination int

const (
	NotTerminated Termination = iota
	Timeout
	WrongWay
	Crash
)

func (t Termination) String() string {
	switch t {
	case Timeout:
		return "Timeout"
	case WrongWay:
		return "WrongWay"
	case Crash:
		return "Crash"
	default:
		return "NotTerminated"
	}
}

// Terminate applies the host's end of episode rules to the reward of
// the current frame. Running out of time replaces the reward with
// TimeoutReward. Otherwise driving the wrong way, and then touching an
// obstacle, each subtract FailurePenalty. At most one rule applies per
// frame.
func Terminate(h Host, reward float64) (float64, Termination) {
	if h.CheckTimeCounter() {
		return TimeoutReward, Timeout
	} else if h.CheckBackTriggerCounter() {
		return reward - FailurePenalty, WrongWay
	} else if h.CheckHasContact() {
		return reward - FailurePenalty, Crash
	}
	return reward, NotTerminated
}
