package deliberation_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/deliberation"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
	"github.com/coinquorum/tradeengine/internal/risk"
)

func riskAnalystWith(response string) *llm.Analyst {
	return llm.NewAnalyst(llm.AnalystProfile{ID: "risk", PipelineRole: llm.RoleRiskCouncil}, &scriptedLLMClient{fallback: response}, "rules")
}

func testLimits() risk.Limits {
	return risk.Limits{
		MaxPositionPercent:     10,
		MaxLeverage:            10,
		MaxStopLossDistance:    0.1,
		MaxConcurrentPositions: 5,
		MaxSameDirection:       3,
		MaxWeeklyDrawdown:      15,
		MaxFundingAgainst:      0.05,
		NetExposureLongLimit:   100,
		NetExposureShortLimit:  100,
	}
}

func TestRunRiskCouncilApprovesAndAdjustsWithinLimits(t *testing.T) {
	analyst := riskAnalystWith(`{"approved":true,"position_size":5,"leverage":3,"stop_loss":58000,"reasoning":"sized conservatively"}`)
	council := risk.NewCouncil(testLimits())
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}
	champion := llm.AnalysisResult{AnalystID: "value", Thesis: "strong setup"}
	portfolio := risk.PortfolioState{ConcurrentPositions: 1, SameDirectionCount: 0, WeeklyDrawdownPercent: 2}

	outcome, result, err := deliberation.RunRiskCouncil(context.Background(), analyst, council, champion, "cmt_btcusdt", "LONG", d, 10000, nil, 0, portfolio, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Decision.Approved {
		t.Fatalf("expected approval, got veto: %s", outcome.Decision.VetoReason)
	}
	if outcome.Trade.PositionSizePercent != 10 || outcome.Trade.Leverage != 3 {
		t.Errorf("unexpected trade params: %+v", outcome.Trade)
	}
	if result.Winner != "cmt_btcusdt" {
		t.Errorf("unexpected debate winner: %s", result.Winner)
	}
}

func TestRunRiskCouncilTreatsReviewerDeclineAsVeto(t *testing.T) {
	analyst := riskAnalystWith(`{"approved":false,"reasoning":"thesis too thin","concerns":["no catalyst"]}`)
	council := risk.NewCouncil(testLimits())
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}

	outcome, result, err := deliberation.RunRiskCouncil(context.Background(), analyst, council, llm.AnalysisResult{}, "cmt_btcusdt", "LONG", d, 10000, nil, 0, risk.PortfolioState{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Decision.Approved {
		t.Fatal("expected veto when reviewer declines")
	}
	if result.Winner != "veto" {
		t.Errorf("expected debate result to record the veto, got %s", result.Winner)
	}
}

func TestRunRiskCouncilDeterministicChecklistVetoesOverDrawdown(t *testing.T) {
	analyst := riskAnalystWith(`{"approved":true,"position_size":5,"leverage":3,"stop_loss":58000,"reasoning":"ok"}`)
	council := risk.NewCouncil(testLimits())
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}
	portfolio := risk.PortfolioState{WeeklyDrawdownPercent: 20}

	outcome, _, err := deliberation.RunRiskCouncil(context.Background(), analyst, council, llm.AnalysisResult{}, "cmt_btcusdt", "LONG", d, 10000, nil, 0, portfolio, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Decision.Approved {
		t.Fatal("expected the deterministic checklist to veto on drawdown breach")
	}
}

func TestRunRiskCouncilFailsWithNoRiskAnalyst(t *testing.T) {
	council := risk.NewCouncil(testLimits())
	d := market.ExtendedMarketData{Symbol: "cmt_btcusdt", CurrentPrice: 60000}

	_, _, err := deliberation.RunRiskCouncil(context.Background(), nil, council, llm.AnalysisResult{}, "cmt_btcusdt", "LONG", d, 10000, nil, 0, risk.PortfolioState{}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error with no risk analyst configured")
	}
}
