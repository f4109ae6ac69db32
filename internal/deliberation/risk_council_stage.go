package deliberation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
	"github.com/coinquorum/tradeengine/internal/risk"
)

// RiskCouncilOutcome is stage 4's result: a final decision plus the
// (possibly LLM-adjusted) trade it was computed from, for logging and for
// the executor to size against.
type RiskCouncilOutcome struct {
	Trade    risk.ProposedTrade
	Decision risk.Decision
}

// RunRiskCouncil hands the champion's thesis to the risk-role analyst for a
// first pass, then runs whatever it approves through the deterministic
// checklist. An LLM review that itself declines is treated as a veto: the
// deterministic checklist never gets a chance to second-guess a reviewer
// that already said no.
func RunRiskCouncil(ctx context.Context, riskAnalyst *llm.Analyst, council *risk.Council, champion llm.AnalysisResult, symbol, direction string, d market.ExtendedMarketData, accountBalance float64, openPositions []exchange.Position, recentRealizedPnl float64, portfolio risk.PortfolioState, logger zerolog.Logger) (RiskCouncilOutcome, DebateResult, error) {
	if riskAnalyst == nil {
		return RiskCouncilOutcome{}, DebateResult{}, newStageFailure(StageRiskCouncil, "no risk-council analyst configured")
	}

	review, err := riskAnalyst.ReviewTrade(ctx, champion, symbol, direction, accountBalance, openPositions, recentRealizedPnl)
	if err != nil {
		return RiskCouncilOutcome{}, DebateResult{}, newStageFailure(StageRiskCouncil, "risk review call failed: %v", err)
	}
	if err := llm.ValidateRiskReview(review); err != nil {
		return RiskCouncilOutcome{}, DebateResult{}, newStageFailure(StageRiskCouncil, "malformed risk review: %v", err)
	}

	turns := []DebateTurn{{AnalystName: riskAnalyst.Profile.ID, Argument: review.Reasoning, Strength: 0}}

	if !review.Approved {
		logger.Info().Str("symbol", symbol).Strs("concerns", review.Concerns).Msg("risk council: reviewer declined, trade vetoed")
		decision := risk.Decision{Approved: false, VetoReason: "risk reviewer declined: " + review.Reasoning}
		return RiskCouncilOutcome{Decision: decision}, DebateResult{Winner: "veto", Turns: turns, WinningArguments: []string{review.Reasoning}}, nil
	}

	var fundingRate float64
	if d.FundingRate != nil {
		fundingRate = *d.FundingRate
	}

	trade := risk.ProposedTrade{
		Symbol:              symbol,
		Direction:           direction,
		PositionSizePercent: positionSizeToPercent(review.PositionSize),
		Leverage:            review.Leverage,
		EntryPrice:          d.CurrentPrice,
		StopLoss:            review.StopLoss,
		FundingRatePercent:  fundingRate,
	}

	decision := council.Review(trade, portfolio)

	outcome := RiskCouncilOutcome{Trade: trade, Decision: decision}
	result := DebateResult{
		Winner:           symbol,
		Turns:            turns,
		WinningArguments: []string{review.Reasoning},
	}
	if !decision.Approved {
		result.Winner = "veto"
	}

	return outcome, result, nil
}

// positionSizeToPercent maps the analyst's 1-10 conviction score onto the
// 2%-20% range the deterministic checklist's MaxPositionPercent (default
// 20.0) actually bounds, so a maximum-conviction call can reach the cap
// instead of always landing at half of it.
func positionSizeToPercent(score float64) float64 {
	return score * 2.0
}
