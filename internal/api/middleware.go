package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const userIDContextKey = "userID"

// bearerAuthMiddleware requires a valid "Authorization: Bearer <token>"
// access token, parses it via internal/auth, and stashes the resolved
// userID in the gin context for handlers to read with requireUserID.
func (s *Server) bearerAuthMiddleware(c *gin.Context) {
	userID, ok := s.authenticateBearer(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
		return
	}
	c.Set(userIDContextKey, userID.String())
	c.Next()
}

// authenticateBearer extracts and validates the Authorization header only.
// Split out from bearerAuthMiddleware so the SSE gateway can reuse it as
// the first of its three auth fallbacks without duplicating the parsing.
func (s *Server) authenticateBearer(c *gin.Context) (uuid.UUID, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return uuid.Nil, false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return uuid.Nil, false
	}

	userID, err := s.auth.ParseAccessToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// requireUserID reads the userID stashed by bearerAuthMiddleware. Handlers
// behind that middleware can assume it is always present and well-formed.
func requireUserID(c *gin.Context) uuid.UUID {
	raw, _ := c.Get(userIDContextKey)
	id, _ := uuid.Parse(raw.(string))
	return id
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		logEvent := log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}
		logEvent.Msg("api request")
	}
}
