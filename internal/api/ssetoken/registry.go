// Package ssetoken issues and validates the short-lived, single-use tokens
// that authenticate an SSE stream connection without exposing the bearer
// token in a URL.
package ssetoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TTL is how long an issued token remains valid before the periodic sweep
// reclaims it.
const TTL = 60 * time.Second

// sweepInterval is half the TTL, per spec.
const sweepInterval = TTL / 2

// MaxTokens bounds the registry; reaching it evicts the oldest 10% at
// issuance rather than refusing new tokens outright.
const MaxTokens = 10000

// warnCapacityFraction logs a warning once the map is this full.
const warnCapacityFraction = 0.8

type entry struct {
	userID    uuid.UUID
	expiresAt time.Time
	issuedAt  time.Time
}

// Registry is a bounded, time-indexed token -> userID map. Safe for
// concurrent use; reads and writes are serialized behind a single mutex
// per spec's single-writer discipline.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]entry
	order  []string // insertion order, oldest first, for capacity eviction

	stop   chan struct{}
	done   chan struct{}
	logger zerolog.Logger
}

// New constructs an empty Registry and starts its periodic sweep.
func New(logger zerolog.Logger) *Registry {
	r := &Registry{
		tokens: make(map[string]entry),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "ssetoken").Logger(),
	}
	go r.sweepLoop()
	return r
}

// Issue mints a new single-use token for userID, evicting the oldest 10%
// of entries first if the registry is at capacity.
func (r *Registry) Issue(userID uuid.UUID) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate sse token randomness: %w", err)
	}
	now := time.Now()
	token := fmt.Sprintf("sse_%d_%s", now.UnixNano(), hex.EncodeToString(raw))

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tokens) >= MaxTokens {
		r.evictOldestLocked(MaxTokens / 10)
	}

	r.tokens[token] = entry{userID: userID, expiresAt: now.Add(TTL), issuedAt: now}
	r.order = append(r.order, token)

	if float64(len(r.tokens)) >= float64(MaxTokens)*warnCapacityFraction {
		r.logger.Warn().Int("size", len(r.tokens)).Msg("sse token registry above 80% capacity")
	}

	return token, nil
}

// Validate consumes a token: looks it up, deletes it unconditionally
// (single-use), and returns the owning userID unless the token was
// unknown or already expired.
func (r *Registry) Validate(token string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tokens[token]
	if !ok {
		return uuid.Nil, false
	}
	delete(r.tokens, token)

	if time.Now().After(e.expiresAt) {
		return uuid.Nil, false
	}
	return e.userID, true
}

// Size reports the current token count (test/diagnostic hook).
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

func (r *Registry) evictOldestLocked(n int) {
	if n <= 0 {
		n = 1
	}
	if n > len(r.order) {
		n = len(r.order)
	}
	for _, token := range r.order[:n] {
		delete(r.tokens, token)
	}
	r.order = r.order[n:]
}

func (r *Registry) sweepLoop() {
	defer close(r.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweepExpired()
		}
	}
}

func (r *Registry) sweepExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	kept := r.order[:0]
	for _, token := range r.order {
		e, ok := r.tokens[token]
		if !ok {
			continue
		}
		if now.After(e.expiresAt) {
			delete(r.tokens, token)
			continue
		}
		kept = append(kept, token)
	}
	r.order = kept
}

// stopTokenCleanup stops the sweep timer and clears the map. Exported as
// Stop so the process shutdown path (cmd/engine) can call it alongside
// the engine controller's own Cleanup.
func (r *Registry) Stop() {
	close(r.stop)
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = make(map[string]entry)
	r.order = nil
}
