// Package bridge exposes a push agent over HTTP so that a game engine
// running in another process can call into it once per frame.
//
// The engine calls POST /predict with the first observation of an
// episode, POST /learn on every following frame, and POST /save when it
// shuts down. GET /status reports the agent's learning progress. All
// requests are served one at a time.
//
// An agent that fails to restore its checkpoint is disabled for good.
// The Server then answers every request with 503 and closes Done so
// that the process can exit.
package bridge

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/aunum/log"
	"github.com/chewxy/math32"
	"github.com/gin-gonic/gin"
	"github.com/samuelfneumann/drivedqn/agent/deepq"
	"github.com/samuelfneumann/drivedqn/expreplay"
)

// Agent is what the bridge needs from the agent it serves
type Agent interface {
	Predict(observation []float64) (int, error)
	OnTick(observation []float64, reward float64, done bool) (int, error)
	Save() error

	Epsilon() float64
	Stage() deepq.Stage
	GradientSteps() int

	// Err returns the error that permanently disabled the agent
	Err() error
}

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	Observation []float32 `json:"observation"`
}

// LearnRequest is the body of POST /learn. A null observation ends the
// episode.
type LearnRequest struct {
	Observation []float32 `json:"observation"`
	Reward      float32   `json:"reward"`
	Done        bool      `json:"done"`
}

// ActionResponse answers /predict and /learn. Error is set when the
// agent failed, in which case Action is the agent's fallback action.
type ActionResponse struct {
	Action int    `json:"action"`
	Error  string `json:"error,omitempty"`
}

// Status answers GET /status
type Status struct {
	Epsilon       float64 `json:"epsilon"`
	Stage         string  `json:"stage"`
	GradientSteps int     `json:"gradient_steps"`
	Memory        int     `json:"memory"`
}

// Server serves a single Agent
type Server struct {
	mu     sync.Mutex
	agent  Agent
	engine *gin.Engine

	failed chan struct{}
	once   sync.Once
	err    error
}

// New returns a new Server for agent a
func New(a Agent) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{agent: a, engine: gin.New(), failed: make(chan struct{})}
	s.engine.Use(gin.Recovery(), s.guard)

	s.engine.POST("/predict", s.predict)
	s.engine.POST("/learn", s.learn)
	s.engine.POST("/save", s.save)
	s.engine.GET("/status", s.status)

	return s
}

// Handler returns the http.Handler serving the bridge's routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Done is closed once the agent has been disabled
func (s *Server) Done() <-chan struct{} {
	return s.failed
}

// Err returns the error that disabled the agent, or nil if it is still
// serving
func (s *Server) Err() error {
	select {
	case <-s.failed:
		return s.err
	default:
		return nil
	}
}

// guard rejects requests once the agent has been disabled
func (s *Server) guard(c *gin.Context) {
	if err := s.Err(); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable,
			gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

// check disables the server if the agent can no longer serve. It must
// be called with s.mu held.
func (s *Server) check() {
	if err := s.agent.Err(); err != nil {
		s.once.Do(func() {
			s.err = err
			log.Errorf("agent disabled: %v", err)
			close(s.failed)
		})
	}
}

func (s *Server) predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(req.Observation) == 0 {
		badRequest(c, fmt.Errorf("predict: missing observation"))
		return
	}
	obs, err := convert(req.Observation)
	if err != nil {
		badRequest(c, err)
		return
	}

	s.mu.Lock()
	action, err := s.agent.Predict(obs)
	s.check()
	s.mu.Unlock()

	respond(c, action, err)
}

func (s *Server) learn(c *gin.Context) {
	var req LearnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if math32.IsNaN(req.Reward) || math32.IsInf(req.Reward, 0) {
		badRequest(c, fmt.Errorf("learn: reward is not finite"))
		return
	}

	var obs []float64
	if req.Observation != nil {
		var err error
		if obs, err = convert(req.Observation); err != nil {
			badRequest(c, err)
			return
		}
	}

	s.mu.Lock()
	action, err := s.agent.OnTick(obs, float64(req.Reward), req.Done)
	s.check()
	s.mu.Unlock()

	respond(c, action, err)
}

func (s *Server) save(c *gin.Context) {
	s.mu.Lock()
	err := s.agent.Save()
	s.check()
	s.mu.Unlock()

	if err != nil {
		log.Errorf("save: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) status(c *gin.Context) {
	s.mu.Lock()
	st := Status{
		Epsilon:       s.agent.Epsilon(),
		Stage:         s.agent.Stage().String(),
		GradientSteps: s.agent.GradientSteps(),
	}
	if m, ok := s.agent.(interface{ Memory() *expreplay.Memory }); ok {
		st.Memory = m.Memory().Len()
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, st)
}

// respond writes the action chosen by the agent. The agent returns its
// fallback action along with any error.
func respond(c *gin.Context, action int, err error) {
	if err != nil {
		log.Errorf("%v: %v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, ActionResponse{
			Action: action,
			Error:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ActionResponse{Action: action})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// convert checks that every value of obs is finite and widens it
func convert(obs []float32) ([]float64, error) {
	out := make([]float64, len(obs))
	for i, v := range obs {
		if math32.IsInf(v, 0) || math32.IsNaN(v) {
			return nil, fmt.Errorf("observation[%d] is not finite: %v", i, v)
		}
		out[i] = float64(v)
	}
	return out, nil
}
