package llm

import (
	"context"
	"fmt"

	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/market"
)

// Analyst binds a static profile to the opaque LLM capability. Stage code
// calls one of the three capability methods depending on the analyst's
// pipeline role; which methods actually get called is decided by the
// deliberation pipeline, not by the analyst itself (polymorphism over
// analysts: {proposeCoin, proposeThesis, reviewTrade} behind one trait).
type Analyst struct {
	Profile      AnalystProfile
	client       LLMClient
	tradingRules string
}

// NewAnalyst binds a profile to an LLM client and the trading rules text
// shared by every prompt this cycle.
func NewAnalyst(profile AnalystProfile, client LLMClient, tradingRules string) *Analyst {
	return &Analyst{Profile: profile, client: client, tradingRules: tradingRules}
}

// ProposeCoin asks the analyst for a stage-2 ranked pick.
func (a *Analyst) ProposeCoin(ctx context.Context, snapshot map[string]market.ExtendedMarketData, openPositions []exchange.Position) (CoinPick, error) {
	pb := NewPromptBuilder(a.Profile, a.tradingRules)
	raw, err := a.client.CompleteWithSystem(ctx, pb.GetSystemPrompt(), pb.BuildCoinSelectionPrompt(snapshot, openPositions))
	if err != nil {
		return CoinPick{}, fmt.Errorf("analyst %s: coin selection call failed: %w", a.Profile.ID, err)
	}

	var parsed struct {
		Symbol     string  `json:"symbol"`
		Action     string  `json:"action"`
		Conviction float64 `json:"conviction"`
		Reason     string  `json:"reason"`
	}
	if err := a.client.ParseJSONResponse(raw, &parsed); err != nil {
		return CoinPick{}, fmt.Errorf("analyst %s: malformed coin selection response: %w", a.Profile.ID, err)
	}

	return CoinPick{
		AnalystID:  a.Profile.ID,
		Symbol:     parsed.Symbol,
		Action:     Action(parsed.Action),
		Conviction: parsed.Conviction,
		Reason:     parsed.Reason,
	}, nil
}

// ProposeThesis asks the analyst for a stage-3 full thesis.
func (a *Analyst) ProposeThesis(ctx context.Context, symbol, direction string, d market.ExtendedMarketData, priorArgument string) (AnalysisResult, error) {
	pb := NewPromptBuilder(a.Profile, a.tradingRules)
	raw, err := a.client.CompleteWithSystem(ctx, pb.GetSystemPrompt(), pb.BuildThesisPrompt(symbol, direction, d, priorArgument))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyst %s: thesis call failed: %w", a.Profile.ID, err)
	}

	var parsed struct {
		Recommendation string   `json:"recommendation"`
		Confidence     float64  `json:"confidence"`
		Thesis         string   `json:"thesis"`
		BullCase       []string `json:"bull_case"`
		BearCase       []string `json:"bear_case"`
		PriceTarget    struct {
			Bull float64 `json:"bull"`
			Base float64 `json:"base"`
			Bear float64 `json:"bear"`
		} `json:"price_target"`
		StopLoss     float64 `json:"stop_loss"`
		Leverage     float64 `json:"leverage"`
		PositionSize float64 `json:"position_size"`
		Catalyst     string  `json:"catalyst"`
		Timeframe    string  `json:"timeframe"`
	}
	if err := a.client.ParseJSONResponse(raw, &parsed); err != nil {
		return AnalysisResult{}, fmt.Errorf("analyst %s: malformed thesis response: %w", a.Profile.ID, err)
	}

	return AnalysisResult{
		AnalystID:      a.Profile.ID,
		Recommendation: Recommendation(parsed.Recommendation),
		Confidence:     parsed.Confidence,
		Thesis:         parsed.Thesis,
		BullCase:       parsed.BullCase,
		BearCase:       parsed.BearCase,
		PriceTarget:    PriceTarget{Bull: parsed.PriceTarget.Bull, Base: parsed.PriceTarget.Base, Bear: parsed.PriceTarget.Bear},
		StopLoss:       parsed.StopLoss,
		Leverage:       parsed.Leverage,
		PositionSize:   parsed.PositionSize,
		Catalyst:       parsed.Catalyst,
		Timeframe:      parsed.Timeframe,
	}, nil
}

// ReviewTrade asks the risk-role analyst for a stage-4 review.
func (a *Analyst) ReviewTrade(ctx context.Context, champion AnalysisResult, symbol, direction string, accountBalance float64, openPositions []exchange.Position, recentRealizedPnl float64) (RiskReview, error) {
	pb := NewPromptBuilder(a.Profile, a.tradingRules)
	raw, err := a.client.CompleteWithSystem(ctx, pb.GetSystemPrompt(), pb.BuildRiskReviewPrompt(champion, symbol, direction, accountBalance, openPositions, recentRealizedPnl))
	if err != nil {
		return RiskReview{}, fmt.Errorf("analyst %s: risk review call failed: %w", a.Profile.ID, err)
	}

	var parsed struct {
		Approved     bool     `json:"approved"`
		PositionSize float64  `json:"position_size"`
		Leverage     float64  `json:"leverage"`
		StopLoss     float64  `json:"stop_loss"`
		Reasoning    string   `json:"reasoning"`
		Concerns     []string `json:"concerns"`
	}
	if err := a.client.ParseJSONResponse(raw, &parsed); err != nil {
		return RiskReview{}, fmt.Errorf("analyst %s: malformed risk review response: %w", a.Profile.ID, err)
	}

	return RiskReview{
		Approved:     parsed.Approved,
		PositionSize: parsed.PositionSize,
		Leverage:     parsed.Leverage,
		StopLoss:     parsed.StopLoss,
		Reasoning:    parsed.Reasoning,
		Concerns:     parsed.Concerns,
	}, nil
}
