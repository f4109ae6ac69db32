package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coinquorum/tradeengine/internal/auth"
	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/db/testhelpers"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret-do-not-use-in-prod",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

func newTestService(t *testing.T) *auth.Service {
	t.Helper()
	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))
	return auth.New(tc.DB, testAuthConfig(), zerolog.Nop())
}

func TestRegisterIssuesUsableTokenPair(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, "newuser@example.com", "correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	userID, err := svc.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "dupe@example.com", "password1")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "dupe@example.com", "password2")
	require.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "login@example.com", "the-real-password")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "login@example.com", "wrong-password")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginSucceedsWithCorrectCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, "good@example.com", "a-strong-password")
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, "good@example.com", "a-strong-password")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, pair.AccessToken)
}

func TestRefreshIsSingleUse(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "refresh@example.com", "password")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, second.AccessToken)
	require.NotEqual(t, pair.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ParseAccessToken("not.a.jwt")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMeReturnsRegisteredAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, "me@example.com", "password")
	require.NoError(t, err)

	user, err := svc.Me(ctx, registered.ID)
	require.NoError(t, err)
	require.Equal(t, "me@example.com", user.Email)
}
