package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/coinquorum/tradeengine/internal/api"
	"github.com/coinquorum/tradeengine/internal/api/ssetoken"
	"github.com/coinquorum/tradeengine/internal/auth"
	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/db/testhelpers"
	"github.com/coinquorum/tradeengine/internal/deliberation"
	"github.com/coinquorum/tradeengine/internal/engine"
	"github.com/coinquorum/tradeengine/internal/events"
	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/executor"
	"github.com/coinquorum/tradeengine/internal/indicators"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
	"github.com/coinquorum/tradeengine/internal/portfolio"
	"github.com/coinquorum/tradeengine/internal/risk"
	"github.com/coinquorum/tradeengine/internal/scheduler"
)

// unusedLLMClient satisfies llm.LLMClient for analysts that the API tests
// below never actually exercise (no test here drives a full deliberation
// cycle through /autonomous/start).
type unusedLLMClient struct{}

func (unusedLLMClient) Complete(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatResponse, error) {
	return nil, errNotImplemented
}
func (unusedLLMClient) CompleteWithRetry(ctx context.Context, messages []llm.ChatMessage, maxRetries int) (*llm.ChatResponse, error) {
	return nil, errNotImplemented
}
func (unusedLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errNotImplemented
}
func (unusedLLMClient) ParseJSONResponse(content string, target interface{}) error {
	return errNotImplemented
}

var errNotImplemented = errors.New("unusedLLMClient: not exercised by these tests")

func buildAnalystRoster() []*llm.Analyst {
	profiles := llm.DefaultAnalysts()
	roster := make([]*llm.Analyst, 0, len(profiles))
	for _, p := range profiles {
		roster = append(roster, llm.NewAnalyst(p, unusedLLMClient{}, ""))
	}
	return roster
}

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	authCfg := config.AuthConfig{
		JWTSecret:       "api-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
	authSvc := auth.New(tc.DB, authCfg, zerolog.Nop())

	engineUser, err := tc.DB.CreateUser(context.Background(), t.Name()+"-engine@example.com", "hash")
	require.NoError(t, err)

	client := exchange.NewMockClient(zerolog.Nop())
	bus := events.New(nil)
	council := risk.NewCouncil(risk.Limits{
		MaxPositionPercent: 20, MaxConcurrentPositions: 5, MaxSameDirection: 3,
		MaxWeeklyDrawdown: 25,
	})
	pf := portfolio.New(engineUser.ID, client, tc.DB, zerolog.Nop())
	assembler := market.NewAssembler(client, nil, indicators.NewService(), zerolog.Nop())
	cfg := config.EngineConfig{
		Symbols: []string{"cmt_btcusdt"}, CycleInterval: time.Second, MaxRetries: 1,
		MinConfidenceToTrade: 50, MaxLeverage: 10,
		PeakWindowStartHourUTC: 0, PeakWindowEndHourUTC: 23,
		JudgeWeights: config.JudgeWeights{DataQuality: 30, Logic: 30, RiskAwareness: 25, CatalystClarity: 15},
	}
	pipeline := deliberation.NewPipeline(buildAnalystRoster(), council, assembler, nil, cfg, zerolog.Nop())
	exec := executor.New(client, tc.DB, bus, nil, executor.Config{MaxPositionPercent: 20, MinBalanceToTrade: 100, DryRun: true}, zerolog.Nop())
	schedule := scheduler.NewSchedule(0, 23, time.Millisecond)

	ctrl := engine.New(engine.Deps{
		Client: client, Database: tc.DB, Bus: bus, Portfolio: pf, Pipeline: pipeline,
		Executor: exec, Breaker: risk.NewMarketCircuitBreaker(risk.MarketThresholds{}), Council: council,
		Schedule: schedule, Config: cfg, AnalystIDs: engine.AnalystIDs(llm.DefaultAnalysts()),
	}, zerolog.Nop())

	tokens := ssetoken.New(zerolog.Nop())
	t.Cleanup(tokens.Stop)

	return api.NewServer(api.Deps{
		DB: tc.DB, Auth: authSvc, Controller: ctrl, Bus: bus, Tokens: tokens,
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
	}, zerolog.Nop())
}

func doRequest(t *testing.T, srv *api.Server, method, path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestRegisterLoginAndMeRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/auth/register", map[string]string{
		"email": "api-user@example.com", "password": "a-strong-password",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var registered struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	require.NotEmpty(t, registered.AccessToken)

	w = doRequest(t, srv, http.MethodGet, "/auth/me", nil, registered.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/auth/login", map[string]string{
		"email": "api-user@example.com", "password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAutonomousEndpointsRequireBearer(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/autonomous/status", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSETokenIssuanceAndPortfolioCreate(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/auth/register", map[string]string{
		"email": "sse-user@example.com", "password": "a-strong-password",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var registered struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))

	w = doRequest(t, srv, http.MethodPost, "/autonomous/sse-token", nil, registered.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	var issued struct {
		SSEToken  string `json:"sseToken"`
		ExpiresIn int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.SSEToken)
	require.Equal(t, 60, issued.ExpiresIn)

	w = doRequest(t, srv, http.MethodPost, "/portfolio/create", map[string]string{
		"agentId": "momentum-trader",
	}, registered.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/portfolio/momentum-trader", nil, registered.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	tooLong := "this-agent-id-is-deliberately-longer-than-fifty-characters-total"
	w = doRequest(t, srv, http.MethodGet, "/portfolio/"+tooLong, nil, registered.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
