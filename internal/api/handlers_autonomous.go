package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinquorum/tradeengine/internal/engine"
)

// engineStatusJSON renders an engine.Status snapshot for both the status
// endpoint and the SSE gateway's initial frame (spec §4.L getStatus()).
func engineStatusJSON(status engine.Status) gin.H {
	return gin.H{
		"isRunning":     status.IsRunning,
		"state":         status.State,
		"cycleCount":    status.CycleCount,
		"analysts":      status.Analysts,
		"sharedBalance": status.SharedBalance,
		"stats": gin.H{
			"cycleCount":          status.Stats.CycleCount,
			"consecutiveFailures": status.Stats.ConsecutiveFailures,
			"lastCycleError":      status.Stats.LastCycleError,
		},
		"nextCycleIn": status.NextCycleIn.Seconds(),
	}
}

func (s *Server) handleIssueSSEToken(c *gin.Context) {
	userID := requireUserID(c)
	token, err := s.tokens.Issue(userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue sse token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue sse token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sseToken": token, "expiresIn": 60})
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	c.JSON(http.StatusOK, engineStatusJSON(s.controller.Status()))
}

func (s *Server) handleEngineStart(c *gin.Context) {
	userID := requireUserID(c)
	if err := s.controller.Start(c.Request.Context(), userID); err != nil {
		s.logger.Error().Err(err).Msg("engine start failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, engineStatusJSON(s.controller.Status()))
}

func (s *Server) handleEngineStop(c *gin.Context) {
	s.controller.Stop()
	c.JSON(http.StatusOK, engineStatusJSON(s.controller.Status()))
}

func (s *Server) handleListAnalysts(c *gin.Context) {
	status := s.controller.Status()
	c.JSON(http.StatusOK, gin.H{"analysts": status.Analysts})
}
