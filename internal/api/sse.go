package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coinquorum/tradeengine/internal/events"
)

const sseKeepaliveInterval = 30 * time.Second

// handleSSEStream implements spec §4.J: authenticate via bearer, sseToken,
// or (if enabled) the legacy token query param, then stream Event Bus
// events as text/event-stream frames until the client disconnects.
func (s *Server) handleSSEStream(c *gin.Context) {
	if _, ok := s.authenticateSSE(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // hints reverse proxies (e.g. nginx) not to buffer

	flusher, canFlush := c.Writer.(http.Flusher)

	writeFrame := func(eventType string, fields map[string]interface{}) bool {
		frame := map[string]interface{}{"type": eventType}
		for k, v := range fields {
			frame[k] = v
		}
		body, err := json.Marshal(frame)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", body); err != nil {
			return false
		}
		if canFlush {
			flusher.Flush()
		}
		return true
	}

	statusFields := map[string]interface{}(engineStatusJSON(s.controller.Status()))
	if !writeFrame("status", statusFields) {
		return
	}

	eventCh := make(chan events.Event, 32)
	sub := s.bus.Subscribe(func(ev events.Event) {
		select {
		case eventCh <- ev:
		default:
			// best-effort delivery per spec: a full buffer drops the event
			// rather than blocking the publisher.
		}
	})
	defer s.bus.Unsubscribe(sub)

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eventCh:
			if !writeFrame(string(ev.Name), eventFields(ev)) {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

func eventFields(ev events.Event) map[string]interface{} {
	if m, ok := ev.Payload.(map[string]interface{}); ok {
		return m
	}
	if ev.Payload == nil {
		return nil
	}
	return map[string]interface{}{"payload": ev.Payload}
}

// authenticateSSE tries, in order: Authorization bearer header, the
// sseToken query parameter (single-use; never logged), and -- only when
// explicitly enabled -- the deprecated token query parameter.
func (s *Server) authenticateSSE(c *gin.Context) (uuid.UUID, bool) {
	if id, ok := s.authenticateBearer(c); ok {
		return id, true
	}

	if raw := c.Query("sseToken"); raw != "" {
		return s.tokens.Validate(raw)
	}

	if s.cfg.AllowLegacyTokenParam {
		if raw := c.Query("token"); raw != "" {
			return s.tokens.Validate(raw)
		}
	}

	return uuid.Nil, false
}
