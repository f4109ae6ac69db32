// Package auth issues and validates the bearer/refresh JWT pair that gates
// every autonomous-engine and portfolio endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/db"
)

// ErrEmailTaken is returned by Register when the email already has an account.
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidCredentials covers both "no such user" and "wrong password" --
// deliberately indistinguishable to callers so login can't be used to
// enumerate registered emails.
var ErrInvalidCredentials = errors.New("invalid email or password")

// TokenPair is the bearer access token plus the opaque refresh token a
// client exchanges for the next pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service wires the database's user/refresh-token tables to JWT issuance.
type Service struct {
	db     *db.DB
	cfg    config.AuthConfig
	logger zerolog.Logger
}

// New constructs a Service.
func New(database *db.DB, cfg config.AuthConfig, logger zerolog.Logger) *Service {
	return &Service{db: database, cfg: cfg, logger: logger.With().Str("component", "auth").Logger()}
}

// Register creates a new account and immediately issues a token pair.
func (s *Service) Register(ctx context.Context, email, password string) (*db.User, TokenPair, error) {
	if _, err := s.db.GetUserByEmail(ctx, email); err == nil {
		return nil, TokenPair{}, ErrEmailTaken
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, TokenPair{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.db.CreateUser(ctx, email, hash)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*db.User, TokenPair, error) {
	user, err := s.db.GetUserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh consumes a refresh token (single use) and issues a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.db.ConsumeRefreshToken(ctx, hashToken(refreshToken))
	if errors.Is(err, db.ErrNotFound) {
		return TokenPair{}, ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}
	return s.issuePair(ctx, userID)
}

// Me looks up the account a valid access token resolved to.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*db.User, error) {
	return s.db.GetUserByID(ctx, userID)
}

func (s *Service) issuePair(ctx context.Context, userID uuid.UUID) (TokenPair, error) {
	access, err := s.issueAccessToken(userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}
	expiresAt := time.Now().Add(s.cfg.RefreshTokenTTL)
	if err := s.db.StoreRefreshToken(ctx, userID, hashToken(refresh), expiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}
