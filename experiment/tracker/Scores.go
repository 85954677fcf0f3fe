package tracker

import (
	"fmt"

	"github.com/gammazero/deque"
)

// Scores records the score of every game played and keeps a rolling
// window over the most recent scores
type Scores struct {
	window *deque.Deque[float64]
	size   int
	sum    float64

	scores   []float64
	filename string
}

// NewScores returns a new Scores with a rolling window of the given
// size that saves its data to filename
func NewScores(window int, filename string) (*Scores, error) {
	if window < 1 {
		return nil, fmt.Errorf("newScores: window must be >= 1, got %v",
			window)
	}
	return &Scores{
		window:   deque.New[float64](window),
		size:     window,
		filename: filename,
	}, nil
}

// Record records the score of a finished game
func (s *Scores) Record(score float64) {
	s.scores = append(s.scores, score)

	s.window.PushBack(score)
	s.sum += score
	if s.window.Len() > s.size {
		s.sum -= s.window.PopFront()
	}
}

// Games returns the number of games recorded
func (s *Scores) Games() int {
	return len(s.scores)
}

// Last returns the most recent score, or 0 if no game was recorded
func (s *Scores) Last() float64 {
	if s.window.Len() == 0 {
		return 0.0
	}
	return s.window.Back()
}

// Mean returns the mean score over the rolling window
func (s *Scores) Mean() float64 {
	if s.window.Len() == 0 {
		return 0.0
	}
	return s.sum / float64(s.window.Len())
}

// Scores returns every recorded score
func (s *Scores) Scores() []float64 {
	scores := make([]float64, len(s.scores))
	copy(scores, s.scores)
	return scores
}

// Save saves all recorded scores to disk
func (s *Scores) Save() error {
	if err := save(s.filename, s.scores); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
