package deliberation_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/deliberation"
	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/indicators"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
	"github.com/coinquorum/tradeengine/internal/risk"
)

func buildTestAnalysts(coinPick, thesis, review string) []*llm.Analyst {
	analysts := make([]*llm.Analyst, 0, len(llm.DefaultAnalysts()))
	for _, p := range llm.CoinSelectors(llm.DefaultAnalysts()) {
		analysts = append(analysts, llm.NewAnalyst(p, &scriptedLLMClient{fallback: coinPick}, "rules"))
	}
	for _, p := range llm.DefaultAnalysts() {
		switch p.PipelineRole {
		case llm.RoleSpecialist:
			analysts = append(analysts, llm.NewAnalyst(p, &scriptedLLMClient{fallback: thesis}, "rules"))
		case llm.RoleRiskCouncil:
			analysts = append(analysts, llm.NewAnalyst(p, &scriptedLLMClient{fallback: review}, "rules"))
		}
	}
	return analysts
}

func TestPipelineRunProducesApprovedTradeProposal(t *testing.T) {
	client := exchange.NewMockClient(zerolog.Nop())
	assembler := market.NewAssembler(client, nil, indicators.NewService(), zerolog.Nop())
	council := risk.NewCouncil(testLimits())

	coinPick := `{"symbol":"cmt_btcusdt","action":"LONG","conviction":9,"reason":"breakout"}`
	thesis := `{"recommendation":"buy","confidence":80,"thesis":"strong multi-timeframe confirmation with clear catalyst","bull_case":["a","b"],"bear_case":["c"],"catalyst":"halving","stop_loss":95,"leverage":3,"position_size":5}`
	review := `{"approved":true,"position_size":5,"leverage":3,"stop_loss":95,"reasoning":"within limits"}`
	analysts := buildTestAnalysts(coinPick, thesis, review)

	cfg := config.EngineConfig{
		Symbols:              []string{"cmt_btcusdt", "cmt_ethusdt"},
		MinConfidenceToTrade: 50,
		MaxLeverage:          10,
		JudgeWeights:         defaultWeights(),
	}

	pipeline := deliberation.NewPipeline(analysts, council, assembler, nil, cfg, zerolog.Nop())

	outcome, err := pipeline.Run(context.Background(), nil, 10000, 0, risk.PortfolioState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != deliberation.OutcomeTradeProposed {
		t.Fatalf("expected a trade proposal, got kind=%s reason=%s", outcome.Kind, outcome.Reason)
	}
	if outcome.Proposal == nil || outcome.Proposal.Symbol != "cmt_btcusdt" {
		t.Fatalf("unexpected proposal: %+v", outcome.Proposal)
	}
}

func TestPipelineRunSkipsBelowConfidenceThreshold(t *testing.T) {
	client := exchange.NewMockClient(zerolog.Nop())
	assembler := market.NewAssembler(client, nil, indicators.NewService(), zerolog.Nop())
	council := risk.NewCouncil(testLimits())

	coinPick := `{"symbol":"cmt_btcusdt","action":"LONG","conviction":9,"reason":"breakout"}`
	thesis := `{"recommendation":"hold","confidence":20,"thesis":"mixed signal, low conviction","leverage":2,"position_size":2}`
	review := `{"approved":true,"position_size":2,"leverage":2,"stop_loss":95,"reasoning":"n/a"}`
	analysts := buildTestAnalysts(coinPick, thesis, review)

	cfg := config.EngineConfig{
		Symbols:              []string{"cmt_btcusdt"},
		MinConfidenceToTrade: 60,
		MaxLeverage:          10,
		JudgeWeights:         defaultWeights(),
	}

	pipeline := deliberation.NewPipeline(analysts, council, assembler, nil, cfg, zerolog.Nop())

	outcome, err := pipeline.Run(context.Background(), nil, 10000, 0, risk.PortfolioState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != deliberation.OutcomeSkipped {
		t.Fatalf("expected a skip outcome below confidence threshold, got %s", outcome.Kind)
	}
}
