package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SuccessResponse is returned when the run completed, even with per-item failures.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stats   any    `json:"stats"`
}

// ErrorResponse is returned when the run could not start or fetch its candidates.
type ErrorResponse struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

func setCORSHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func handlePreflight(c *gin.Context) {
	setCORSHeaders(c)
	c.Status(http.StatusOK)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCycleProgression(c *gin.Context) {
	setCORSHeaders(c)
	now := s.clock()
	ctx, cancel := s.jobContext(c)
	defer cancel()

	stats, err := s.cycles.Run(ctx, now)
	if err != nil {
		s.fail(c, "cycle_progression", now, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: fmt.Sprintf("Cycle progression complete: %d transitions across %d cycles", stats.TransitionsMade, stats.TotalCyclesChecked),
		Stats:   stats,
	})
}

func (s *Server) handleOverdueObligations(c *gin.Context) {
	setCORSHeaders(c)
	now := s.clock()
	ctx, cancel := s.jobContext(c)
	defer cancel()

	stats, err := s.obligations.Run(ctx, now)
	if err != nil {
		s.fail(c, "overdue_obligations", now, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: fmt.Sprintf("Overdue check complete: %d newly overdue, %d late fees applied", stats.NewlyOverdue, stats.LateFeesApplied),
		Stats:   stats,
	})
}

func (s *Server) jobContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.jobTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.jobTimeout)
}

func (s *Server) fail(c *gin.Context, job string, started time.Time, err error) {
	s.logger.WithField("job", job).WithError(err).Error("Job invocation failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success:          false,
		Error:            err.Error(),
		ProcessingTimeMs: s.clock().Sub(started).Milliseconds(),
	})
}
