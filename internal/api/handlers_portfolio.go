package api

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/coinquorum/tradeengine/internal/db"
)

// agentIDPattern matches spec §6's agentId validation rule.
var agentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

func validAgentID(c *gin.Context) (string, bool) {
	agentID := c.Param("agentId")
	if !agentIDPattern.MatchString(agentID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentId must match ^[a-zA-Z0-9_-]{1,50}$"})
		return "", false
	}
	return agentID, true
}

func (s *Server) handlePortfolioSummary(c *gin.Context) {
	userID := requireUserID(c)
	rows, err := s.db.ListPortfolios(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("list portfolios failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load portfolio summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolios": rows})
}

func (s *Server) handlePortfolioGet(c *gin.Context) {
	agentID, ok := validAgentID(c)
	if !ok {
		return
	}
	userID := requireUserID(c)

	p, err := s.db.GetPortfolio(c.Request.Context(), userID, agentID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "portfolio not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("get portfolio failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load portfolio"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handlePortfolioPositions(c *gin.Context) {
	agentID, ok := validAgentID(c)
	if !ok {
		return
	}
	userID := requireUserID(c)

	p, err := s.db.GetPortfolio(c.Request.Context(), userID, agentID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "portfolio not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("get portfolio failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load portfolio"})
		return
	}

	positions, err := s.db.ListPositions(c.Request.Context(), p.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("list positions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load positions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

type createPortfolioRequest struct {
	AgentID string `json:"agentId" binding:"required"`
}

func (s *Server) handlePortfolioCreate(c *gin.Context) {
	var req createPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !agentIDPattern.MatchString(req.AgentID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentId must match ^[a-zA-Z0-9_-]{1,50}$"})
		return
	}
	userID := requireUserID(c)

	p, err := s.db.GetOrCreatePortfolio(c.Request.Context(), userID, req.AgentID)
	if err != nil {
		s.logger.Error().Err(err).Msg("create portfolio failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portfolio"})
		return
	}
	c.JSON(http.StatusCreated, p)
}
