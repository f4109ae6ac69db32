package deliberation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/executor"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
	"github.com/coinquorum/tradeengine/internal/risk"
)

// championshipPriceRefreshPercent and riskCouncilPriceRefreshPercent gate
// the two re-fetches between stages: the winning symbol is re-fetched before
// the championship and again before the risk council, and the fresh snapshot
// replaces the current one when its price has moved past the threshold since
// coin selection, so a stale snapshot never prices a trade that's already moved.
const (
	championshipPriceRefreshPercent = 0.5
	riskCouncilPriceRefreshPercent  = 0.3
)

// OutcomeKind classifies what a pipeline run produced, for the engine
// controller and event-bus publishing to branch on.
type OutcomeKind string

const (
	OutcomeTradeProposed OutcomeKind = "trade_proposed"
	OutcomeManage        OutcomeKind = "manage"
	OutcomeSkipped       OutcomeKind = "skipped"
	OutcomeVetoed        OutcomeKind = "vetoed"
)

// Outcome is one cycle's full result, carrying every stage's DebateResult
// for logging/event publishing regardless of where the cycle stopped.
type Outcome struct {
	Kind           OutcomeKind
	Proposal       *executor.Proposal
	ManageSymbol   string
	Reason         string
	CoinSelection  *DebateResult
	Championship   *DebateResult
	RiskCouncil    *DebateResult
	RiskDecision   *risk.Decision
}

// Pipeline wires the four deliberation stages into one per-cycle run.
type Pipeline struct {
	selectors   []*llm.Analyst
	allAnalysts []*llm.Analyst
	riskAnalyst *llm.Analyst
	council     *risk.Council
	assembler   *market.Assembler
	judge       llm.LLMClient
	cfg         config.EngineConfig
	logger      zerolog.Logger
}

// NewPipeline constructs a Pipeline from the process-wide analyst roster
// (already bound to LLM clients), the deterministic risk council, the
// market data assembler, the stage-3 judge client, and engine configuration.
// judge is the dedicated scoring call spec §4.E Stage 3 describes; a nil
// judge makes every cycle fall straight to the deterministic scorer, which
// is the documented fallback path, not the intended default.
func NewPipeline(analysts []*llm.Analyst, council *risk.Council, assembler *market.Assembler, judge llm.LLMClient, cfg config.EngineConfig, logger zerolog.Logger) *Pipeline {
	p := &Pipeline{allAnalysts: analysts, council: council, assembler: assembler, judge: judge, cfg: cfg, logger: logger}
	for _, a := range analysts {
		if a.Profile.PipelineRole == llm.RoleCoinSelector {
			p.selectors = append(p.selectors, a)
		}
		if a.Profile.PipelineRole == llm.RoleRiskCouncil {
			p.riskAnalyst = a
		}
	}
	return p
}

// Run executes one full deliberation cycle: coin selection, then (unless
// diverted into management or the stage fails) championship, then risk
// council, producing an Outcome the engine controller can act on.
func (p *Pipeline) Run(ctx context.Context, openPositions []exchange.Position, accountBalance float64, recentRealizedPnl float64, portfolioState risk.PortfolioState) (Outcome, error) {
	snapshot, err := p.assembler.Snapshot(ctx, p.cfg.Symbols)
	if err != nil {
		return Outcome{}, newStageFailure(StageCoinSelection, "market snapshot failed: %v", err)
	}

	selection, coinResult, err := RunCoinSelection(ctx, p.selectors, snapshot, openPositions, p.cfg.Symbols, p.logger)
	if err != nil {
		return Outcome{Kind: OutcomeSkipped, Reason: err.Error(), CoinSelection: &coinResult}, err
	}

	if selection.IsManage {
		return Outcome{
			Kind:          OutcomeManage,
			ManageSymbol:  selection.ManageSymbol,
			Reason:        selection.WinningArgument,
			CoinSelection: &coinResult,
		}, nil
	}

	d, ok := snapshot[selection.Symbol]
	if !ok {
		return Outcome{Kind: OutcomeSkipped, Reason: "winning symbol missing from snapshot", CoinSelection: &coinResult},
			newStageFailure(StageChampionship, "symbol %s absent from snapshot", selection.Symbol)
	}
	entryPriceAtSelection := d.CurrentPrice

	if refreshed, err := p.assembler.Snapshot(ctx, []string{selection.Symbol}); err == nil {
		if fresh, ok := refreshed[selection.Symbol]; ok && fresh.PriceMovedSince(entryPriceAtSelection, championshipPriceRefreshPercent) {
			d = fresh
		}
	}

	champion, champResult, err := RunChampionship(ctx, p.allAnalysts, selection.Symbol, selection.Direction, d, selection.WinningArgument, float64(p.cfg.MaxLeverage), p.cfg.JudgeWeights, p.judge, p.logger)
	if err != nil {
		return Outcome{Kind: OutcomeSkipped, Reason: err.Error(), CoinSelection: &coinResult, Championship: &champResult}, err
	}

	if champion.Confidence < p.cfg.MinConfidenceToTrade {
		return Outcome{
			Kind:          OutcomeSkipped,
			Reason:        "championship confidence below threshold",
			CoinSelection: &coinResult,
			Championship:  &champResult,
		}, nil
	}

	if refreshed, err := p.assembler.Snapshot(ctx, []string{selection.Symbol}); err == nil {
		if fresh, ok := refreshed[selection.Symbol]; ok && fresh.PriceMovedSince(entryPriceAtSelection, riskCouncilPriceRefreshPercent) {
			d = fresh
		}
	}

	riskOutcome, riskResult, err := RunRiskCouncil(ctx, p.riskAnalyst, p.council, champion, selection.Symbol, selection.Direction, d, accountBalance, openPositions, recentRealizedPnl, portfolioState, p.logger)
	if err != nil {
		return Outcome{Kind: OutcomeSkipped, Reason: err.Error(), CoinSelection: &coinResult, Championship: &champResult, RiskCouncil: &riskResult}, err
	}

	decision := riskOutcome.Decision
	if !decision.Approved {
		return Outcome{
			Kind:          OutcomeVetoed,
			Reason:        decision.VetoReason,
			CoinSelection: &coinResult,
			Championship:  &champResult,
			RiskCouncil:   &riskResult,
			RiskDecision:  &decision,
		}, nil
	}

	proposal := &executor.Proposal{
		Symbol:         selection.Symbol,
		Direction:      selection.Direction,
		PositionSize:   decision.Adjustments.PositionSizePercent,
		Leverage:       decision.Adjustments.Leverage,
		StopLoss:       decision.Adjustments.StopLoss,
		TakeProfitBase: champion.PriceTarget.Base,
		Confidence:     champion.Confidence,
		Thesis:         champion.Thesis,
		Model:          champion.AnalystID,
	}

	return Outcome{
		Kind:          OutcomeTradeProposed,
		Proposal:      proposal,
		CoinSelection: &coinResult,
		Championship:  &champResult,
		RiskCouncil:   &riskResult,
		RiskDecision:  &decision,
	}, nil
}
