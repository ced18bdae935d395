package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"rosca_engine/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CycleRunner is the part of app.CycleEngine the handlers call.
type CycleRunner interface {
	Run(ctx context.Context, now time.Time) (*app.CycleRunStats, error)
}

// ObligationRunner is the part of app.ObligationEngine the handlers call.
type ObligationRunner interface {
	Run(ctx context.Context, now time.Time) (*app.ObligationRunStats, error)
}

// Server exposes the engines as request/response job endpoints for external triggers.
type Server struct {
	cycles      CycleRunner
	obligations ObligationRunner
	jobTimeout  time.Duration
	router      *gin.Engine
	mu          sync.Mutex
	httpServer  *http.Server
	logger      *logrus.Entry
	clock       func() time.Time
}

func NewServer(cycles CycleRunner, obligations ObligationRunner, jobTimeout time.Duration, logger *logrus.Entry) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		cycles:      cycles,
		obligations: obligations,
		jobTimeout:  jobTimeout,
		router:      router,
		logger:      logger,
		clock:       time.Now,
	}

	router.GET("/healthz", s.handleHealth)

	jobs := router.Group("/jobs")
	{
		jobs.POST("/cycle-progression", s.handleCycleProgression)
		jobs.POST("/overdue-obligations", s.handleOverdueObligations)
		jobs.OPTIONS("/cycle-progression", handlePreflight)
		jobs.OPTIONS("/overdue-obligations", handlePreflight)
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until Shutdown is called.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.WithField("addr", addr).Info("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP request handled")
	}
}
