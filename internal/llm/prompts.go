package llm

import (
	"fmt"
	"strings"

	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/market"
)

// PromptBuilder composes the per-stage prompts handed to the opaque LLM
// capability: static analyst identity + trading rules + the prior-stage
// winner's argument + the current market snapshot.
type PromptBuilder struct {
	profile      AnalystProfile
	tradingRules string
}

// NewPromptBuilder creates a prompt builder scoped to one analyst.
func NewPromptBuilder(profile AnalystProfile, tradingRules string) *PromptBuilder {
	return &PromptBuilder{profile: profile, tradingRules: tradingRules}
}

// GetSystemPrompt returns the analyst's fixed persona, varied by methodology.
func (pb *PromptBuilder) GetSystemPrompt() string {
	lens := methodologyLens[pb.profile.Methodology]
	if lens == "" {
		lens = "You evaluate trades on their overall merit."
	}
	return fmt.Sprintf(
		"You are %s, a perpetual-futures analyst. %s Respond only with the JSON object requested; no prose outside it.\n\n%s",
		pb.profile.DisplayName, lens, pb.tradingRules,
	)
}

var methodologyLens = map[Methodology]string{
	MethodologyValue:      "You weigh fundamentals and whether the current price embeds a premium or discount versus intrinsic value.",
	MethodologyGrowth:      "You weigh adoption trajectory, volume growth, and momentum sustainability.",
	MethodologyTechnical:   "You weigh chart structure, RSI/EMA/ADX readings, and support/resistance.",
	MethodologyMacro:       "You weigh broader market regime, correlation to BTC, and funding-rate sentiment.",
	MethodologySentiment:   "You weigh crowd positioning, funding extremes, and contrarian-flow signals.",
	MethodologyRisk:        "You weigh drawdown exposure, leverage discipline, and what could go wrong.",
	MethodologyQuant:       "You weigh statistical edge: volatility, historical win rate of similar setups, and position sizing math.",
	MethodologyContrarian:  "You look for crowded trades and take the other side when conviction elsewhere looks overextended.",
}

// BuildCoinSelectionPrompt composes the stage-2 prompt: rank the approved
// universe into a pick list.
func (pb *PromptBuilder) BuildCoinSelectionPrompt(snapshot map[string]market.ExtendedMarketData, openPositions []exchange.Position) string {
	var sb strings.Builder
	sb.WriteString("Market snapshot for the approved trading universe:\n\n")
	for symbol, d := range snapshot {
		sb.WriteString(formatSnapshotLine(symbol, d))
	}

	if len(openPositions) > 0 {
		sb.WriteString("\nCurrently open positions (eligible for a MANAGE pick):\n")
		for _, p := range openPositions {
			sb.WriteString(fmt.Sprintf("- %s %s size=%.4f entry=%.4f leverage=%.1fx\n", p.Symbol, p.Side, p.Size, p.EntryPrice, p.Leverage))
		}
	}

	sb.WriteString(`
Pick your single highest-conviction symbol and direction from this universe,
or MANAGE if an open position needs attention instead. Respond with JSON:
{
  "symbol": "cmt_xxxusdt",
  "action": "LONG" | "SHORT" | "MANAGE",
  "conviction": 0-10,
  "reason": "one paragraph"
}`)
	return sb.String()
}

// BuildThesisPrompt composes the stage-3 prompt: a full thesis for the
// symbol and direction that won stage 2.
func (pb *PromptBuilder) BuildThesisPrompt(symbol, direction string, d market.ExtendedMarketData, priorArgument string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Coin selection picked %s %s. Prior winning argument:\n%q\n\n", symbol, direction, priorArgument))
	sb.WriteString(formatSnapshotLine(symbol, d))
	sb.WriteString(`
Build your full thesis for this trade. Respond with JSON:
{
  "recommendation": "strong_buy"|"buy"|"hold"|"sell"|"strong_sell",
  "confidence": 0-100,
  "thesis": "string",
  "bull_case": ["point", "..."],
  "bear_case": ["point", "..."],
  "price_target": {"bull": number, "base": number, "bear": number},
  "stop_loss": number,
  "leverage": number,
  "position_size": 1-10,
  "catalyst": "string",
  "timeframe": "string"
}`)
	return sb.String()
}

// BuildRiskReviewPrompt composes the stage-4 prompt: review the champion's
// thesis against account state.
func (pb *PromptBuilder) BuildRiskReviewPrompt(champion AnalysisResult, symbol, direction string, accountBalance float64, openPositions []exchange.Position, recentRealizedPnl float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Championship winner proposes %s %s at leverage %.1fx, conviction size %.1f/10, stop-loss %.4f.\n", symbol, direction, champion.Leverage, champion.PositionSize, champion.StopLoss))
	sb.WriteString(fmt.Sprintf("Thesis: %s\n\n", champion.Thesis))
	sb.WriteString(fmt.Sprintf("Account balance: %.2f. Recent realized P&L: %.2f.\n", accountBalance, recentRealizedPnl))
	if len(openPositions) > 0 {
		sb.WriteString(fmt.Sprintf("Open positions: %d\n", len(openPositions)))
	}
	sb.WriteString(`
Review this proposal. Respond with JSON:
{
  "approved": bool,
  "position_size": 1-10,
  "leverage": number,
  "stop_loss": number,
  "reasoning": "string",
  "concerns": ["string", "..."]
}`)
	return sb.String()
}

func formatSnapshotLine(symbol string, d market.ExtendedMarketData) string {
	funding := "unavailable"
	if d.FundingRate != nil {
		funding = fmt.Sprintf("%.4f%%", *d.FundingRate*100)
	}
	indicators := ""
	if d.RSI != nil {
		indicators += fmt.Sprintf(" RSI=%.1f", *d.RSI)
	}
	if d.EMA != nil {
		indicators += fmt.Sprintf(" EMA=%.4f", *d.EMA)
	}
	if d.ADX != nil {
		indicators += fmt.Sprintf(" ADX=%.1f", *d.ADX)
	}
	return fmt.Sprintf("- %s: price=%.4f 24hChange=%.2f%% 24hVol=%.0f funding=%s%s\n",
		symbol, d.CurrentPrice, d.Change24h, d.Volume24h, funding, indicators)
}
