package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradewatch/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server serves the control API, the status stream and the dashboard.
type Server struct {
	addr    string
	router  *gin.Engine
	handler *Router
}

// ServerConfig describes what the HTTP server needs.
type ServerConfig struct {
	Addr           string
	Deps           Deps
	StreamInterval time.Duration
}

// NewServer builds the gin engine with every route mounted.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Deps.State == nil {
		return nil, errors.New("live http server requires daemon state")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8001"
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	registerDashboardRoutes(engine)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Deps.Metrics.Handler()))
	}
	h := NewRouter(cfg.Deps, cfg.StreamInterval)
	h.Register(engine.Group("/api"))

	return &Server{addr: cfg.Addr, router: engine, handler: h}, nil
}

// requestLogger records operator calls so control actions can be traced.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Handler exposes the gin engine, mostly for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		// Hijacked websocket connections are not closed by Shutdown.
		s.handler.Close()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		s.handler.Close()
		return err
	}
}
