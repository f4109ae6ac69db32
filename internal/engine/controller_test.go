package engine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

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

type scriptedLLMClient struct {
	fallback string
	err      error
}

func (f *scriptedLLMClient) Complete(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatResponse, error) {
	panic("not used")
}

func (f *scriptedLLMClient) CompleteWithRetry(ctx context.Context, messages []llm.ChatMessage, maxRetries int) (*llm.ChatResponse, error) {
	panic("not used")
}

func (f *scriptedLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.fallback, nil
}

func (f *scriptedLLMClient) ParseJSONResponse(content string, target interface{}) error {
	return json.Unmarshal([]byte(content), target)
}

var _ llm.LLMClient = (*scriptedLLMClient)(nil)

func buildRoster(coinPick, thesis, review string) []*llm.Analyst {
	analysts := make([]*llm.Analyst, 0, len(llm.DefaultAnalysts()))
	for _, p := range llm.DefaultAnalysts() {
		switch p.PipelineRole {
		case llm.RoleCoinSelector:
			analysts = append(analysts, llm.NewAnalyst(p, &scriptedLLMClient{fallback: coinPick}, "rules"))
		case llm.RoleRiskCouncil:
			analysts = append(analysts, llm.NewAnalyst(p, &scriptedLLMClient{fallback: review}, "rules"))
		default:
			analysts = append(analysts, llm.NewAnalyst(p, &scriptedLLMClient{fallback: thesis}, "rules"))
		}
	}
	return analysts
}

func testLimits() risk.Limits {
	return risk.Limits{
		MaxPositionPercent:     10,
		MaxLeverage:            10,
		MaxStopLossDistance:    0.2,
		MaxConcurrentPositions: 5,
		MaxSameDirection:       3,
		MaxWeeklyDrawdown:      30,
		MaxFundingAgainst:      0.05,
		NetExposureLongLimit:   100,
		NetExposureShortLimit:  100,
	}
}

func testBreakerThresholds() risk.MarketThresholds {
	return risk.MarketThresholds{
		BTCDropYellowPercent:  5,
		BTCDropOrangePercent:  10,
		BTCDropRedPercent:     20,
		DrawdownYellowPercent: 5,
		DrawdownOrangePercent: 10,
		DrawdownRedPercent:    20,
		FundingExtremePercent: 0.5,
	}
}

func buildController(t *testing.T, client *exchange.MockClient, roster []*llm.Analyst) (*engine.Controller, uuid.UUID) {
	t.Helper()
	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	user, err := tc.DB.CreateUser(context.Background(), t.Name()+"@example.com", "hash")
	require.NoError(t, err)

	assembler := market.NewAssembler(client, nil, indicators.NewService(), zerolog.Nop())
	council := risk.NewCouncil(testLimits())
	breaker := risk.NewMarketCircuitBreaker(testBreakerThresholds())
	bus := events.New(nil)

	cfg := config.EngineConfig{
		Symbols:                []string{"cmt_btcusdt", "cmt_ethusdt"},
		CycleInterval:          50 * time.Millisecond,
		MaxRetries:             1,
		MinConfidenceToTrade:   50,
		MaxLeverage:            10,
		PeakWindowStartHourUTC: 0,
		PeakWindowEndHourUTC:   23,
		JudgeWeights:           config.JudgeWeights{DataQuality: 30, Logic: 30, RiskAwareness: 25, CatalystClarity: 15},
	}

	pipeline := deliberation.NewPipeline(roster, council, assembler, nil, cfg, zerolog.Nop())
	exec := executor.New(client, tc.DB, bus, nil, executor.Config{MaxPositionPercent: 20, MinBalanceToTrade: 100, DryRun: true}, zerolog.Nop())
	schedule := scheduler.NewSchedule(0, 23, time.Millisecond)

	ctrl := engine.New(engine.Deps{
		Client:     client,
		Database:   tc.DB,
		Bus:        bus,
		Portfolio:  portfolio.New(user.ID, client, tc.DB, zerolog.Nop()),
		Pipeline:   pipeline,
		Executor:   exec,
		Breaker:    breaker,
		Council:    council,
		Schedule:   schedule,
		Config:     cfg,
		AnalystIDs: engine.AnalystIDs(llm.DefaultAnalysts()),
	}, zerolog.Nop())

	return ctrl, user.ID
}

func TestControllerStartRunsACycleAndStopsCleanly(t *testing.T) {
	client := exchange.NewMockClient(zerolog.Nop())
	coinPick := `{"symbol":"cmt_btcusdt","action":"LONG","conviction":9,"reason":"breakout"}`
	thesis := `{"recommendation":"buy","confidence":80,"thesis":"strong multi-timeframe confirmation with a clear catalyst","bull_case":["a","b"],"bear_case":["c"],"catalyst":"halving","stop_loss":95,"leverage":3,"position_size":5}`
	review := `{"approved":true,"position_size":5,"leverage":3,"stop_loss":95,"reasoning":"within limits"}`
	roster := buildRoster(coinPick, thesis, review)

	ctrl, userID := buildController(t, client, roster)

	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx, userID))

	require.Eventually(t, func() bool {
		return ctrl.Status().Stats.CycleCount >= 1
	}, 2*time.Second, 20*time.Millisecond)

	ctrl.Cleanup(ctx)
	require.False(t, ctrl.Status().IsRunning)
}

func TestControllerStartIsIdempotentWhileRunning(t *testing.T) {
	client := exchange.NewMockClient(zerolog.Nop())
	roster := buildRoster(
		`{"symbol":"cmt_btcusdt","action":"LONG","conviction":5,"reason":"x"}`,
		`{"recommendation":"hold","confidence":10,"thesis":"thin","leverage":2,"position_size":1}`,
		`{"approved":true,"position_size":1,"leverage":2,"stop_loss":95,"reasoning":"ok"}`,
	)

	ctrl, userID := buildController(t, client, roster)
	ctx := context.Background()

	require.NoError(t, ctrl.Start(ctx, userID))
	require.NoError(t, ctrl.Start(ctx, userID))

	ctrl.Cleanup(ctx)
}

func TestControllerEmergencyCloseFlattensAllSymbols(t *testing.T) {
	client := exchange.NewMockClient(zerolog.Nop())
	roster := buildRoster(
		`{"symbol":"cmt_btcusdt","action":"LONG","conviction":5,"reason":"x"}`,
		`{"recommendation":"hold","confidence":10,"thesis":"thin","leverage":2,"position_size":1}`,
		`{"approved":true,"position_size":1,"leverage":2,"stop_loss":95,"reasoning":"ok"}`,
	)
	ctrl, userID := buildController(t, client, roster)
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx, userID))

	ctrl.EmergencyClose(ctx)
	ctrl.Cleanup(ctx)
}
