package livehttp

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"tradewatch/internal/inference"
	"tradewatch/internal/logger"
	"tradewatch/internal/state"

	"github.com/gin-gonic/gin"
)

const defaultStreamInterval = 2 * time.Second

// ManualTrigger starts an operator-requested inference.
type ManualTrigger interface {
	TriggerManualInference(ctx context.Context) inference.Outcome
	Cooldown() time.Duration
}

// MetricsHandler serves the Prometheus exposition.
type MetricsHandler interface {
	Handler() http.Handler
}

// Deps are the collaborators the routes act on.
type Deps struct {
	State   *state.State
	Trigger ManualTrigger
	Metrics MetricsHandler
}

// Router exposes the daemon control endpoints.
type Router struct {
	deps           Deps
	streamInterval time.Duration

	closeOnce sync.Once
	closing   chan struct{}
}

func NewRouter(deps Deps, streamInterval time.Duration) *Router {
	if streamInterval <= 0 {
		streamInterval = defaultStreamInterval
	}
	return &Router{deps: deps, streamInterval: streamInterval, closing: make(chan struct{})}
}

// Register mounts the routes under group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/inference", r.handleInferenceStatus)
	group.POST("/inference", r.handleTriggerInference)
	group.GET("/auto-inference", r.handleAutoInference)
	group.POST("/auto-inference", r.handleSetAutoInference)
	group.POST("/control", r.handleControl)
	group.POST("/config", r.handleConfig)
	group.GET("/setups", r.handleSetups)
	group.GET("/setups/:id", r.handleSetupByID)
	group.POST("/setups/:id/cancel", r.handleCancelSetup)
	group.GET("/stream", r.handleStream)
}

// Close ends every open status stream.
func (r *Router) Close() {
	r.closeOnce.Do(func() { close(r.closing) })
}

type intervalRequest struct {
	Interval *int `json:"interval" form:"interval"`
}

type controlRequest struct {
	Action string `json:"action" form:"action"`
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.deps.State.Snapshot())
}

func (r *Router) handleInferenceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.deps.State.InferenceSnapshot())
}

func (r *Router) handleTriggerInference(c *gin.Context) {
	if r.deps.Trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inference engine not configured"})
		return
	}
	outcome := r.deps.Trigger.TriggerManualInference(c.Request.Context())
	if outcome.Started() {
		rec := r.deps.State.InferenceSnapshot()
		c.JSON(http.StatusAccepted, gin.H{"status": "running", "id": rec.ID})
		return
	}
	switch outcome {
	case inference.OutcomeAlreadyRunning:
		c.JSON(http.StatusConflict, gin.H{"status": string(outcome)})
	case inference.OutcomeCoolingDown:
		remaining := r.deps.State.CooldownRemaining(r.deps.Trigger.Cooldown())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"status":      string(outcome),
			"retry_after": int(remaining.Round(time.Second) / time.Second),
		})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": string(outcome)})
	}
}

func (r *Router) handleAutoInference(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"interval": r.deps.State.AutoInferenceInterval()})
}

func (r *Router) handleSetAutoInference(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBind(&req); err != nil || req.Interval == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval is required"})
		return
	}
	if *req.Interval < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be >= 0"})
		return
	}
	r.deps.State.SetAutoInferenceInterval(*req.Interval)
	logger.Infof("http: auto inference interval set to %ds", *req.Interval)
	c.JSON(http.StatusOK, gin.H{"interval": r.deps.State.AutoInferenceInterval()})
}

func (r *Router) handleControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "start":
		r.deps.State.SetRunning(true)
	case "stop":
		r.deps.State.SetRunning(false)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be start or stop"})
		return
	}
	logger.Infof("http: daemon %s requested", req.Action)
	c.JSON(http.StatusOK, gin.H{"running": r.deps.State.IsRunning()})
}

func (r *Router) handleConfig(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBind(&req); err != nil || req.Interval == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval is required"})
		return
	}
	if *req.Interval <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be > 0"})
		return
	}
	r.deps.State.SetInterval(*req.Interval)
	c.JSON(http.StatusOK, gin.H{"interval": r.deps.State.Interval()})
}

func (r *Router) handleSetups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"setups": r.deps.State.Setups().ActiveSetups()})
}

func (r *Router) handleSetupByID(c *gin.Context) {
	s, ok := r.deps.State.Setups().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "setup not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (r *Router) handleCancelSetup(c *gin.Context) {
	id := c.Param("id")
	registry := r.deps.State.Setups()
	if _, ok := registry.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "setup not found"})
		return
	}
	tr, ok := registry.Cancel(id)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "setup can no longer be canceled"})
		return
	}
	c.JSON(http.StatusOK, tr)
}
