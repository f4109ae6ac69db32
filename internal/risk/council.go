package risk

import "fmt"

// ProposedTrade is the championship winner's parameters, as handed to the
// risk council for review (possibly already adjusted by the stage-4 LLM
// risk-role analyst before the deterministic checklist below runs).
type ProposedTrade struct {
	Symbol              string
	Direction            string // LONG or SHORT
	PositionSizePercent float64
	Leverage            float64
	EntryPrice          float64
	StopLoss            float64
	FundingRatePercent  float64 // signed; positive means longs pay shorts
}

// PortfolioState is the subset of shared portfolio state the checklist needs.
type PortfolioState struct {
	ConcurrentPositions  int
	SameDirectionCount   int
	WeeklyDrawdownPercent float64
	NetExposureLongUsed  float64
	NetExposureShortUsed float64

	// RecentWinRate is the Calculator's trailing win-rate read for this
	// portfolio, populated by the controller before each cycle's review. Nil
	// when the calculator has no database pool or no closed trades yet --
	// the checklist then applies no cold-streak adjustment.
	RecentWinRate *WinRateData
}

// coldStreakWinRate and coldStreakMinSample gate the cold-streak size
// shrink below: a portfolio needs enough closed trades for the win rate to
// be meaningful, and the rate has to be meaningfully below coin-flip before
// the checklist treats it as a real cold streak rather than noise.
const (
	coldStreakWinRate   = 0.35
	coldStreakMinSample = 5
)

// Limits mirrors config.RiskConfig's checklist thresholds.
type Limits struct {
	MaxPositionPercent     float64
	MaxLeverage            float64
	MaxStopLossDistance    float64
	MaxConcurrentPositions int
	MaxSameDirection       int
	MaxWeeklyDrawdown      float64
	MaxFundingAgainst      float64
	NetExposureLongLimit   float64
	NetExposureShortLimit  float64
}

// Decision is the Risk Council's verdict, matching spec's RiskCouncilDecision.
type Decision struct {
	Approved     bool
	Adjustments  *Adjustments
	Warnings     []string
	VetoReason   string
}

// Adjustments override the champion's proposed values when Approved is true.
type Adjustments struct {
	PositionSizePercent float64
	Leverage            float64
	StopLoss            float64
}

// Council applies the deterministic risk checklist from spec §4.F. The
// policy is adjust-over-veto: breaches that can be shrunk into compliance
// are, vetoes are reserved for conditions that can't be fixed by shrinking
// (drawdown breach, or a concurrent/same-direction cap already at limit).
type Council struct {
	limits Limits
}

// NewCouncil constructs a Council from configured limits.
func NewCouncil(limits Limits) *Council {
	return &Council{limits: limits}
}

// Review runs the checklist and returns the final decision.
func (c *Council) Review(trade ProposedTrade, portfolio PortfolioState) Decision {
	var warnings []string

	if portfolio.WeeklyDrawdownPercent >= c.limits.MaxWeeklyDrawdown {
		return Decision{
			Approved:   false,
			VetoReason: fmt.Sprintf("weekly drawdown %.2f%% exceeds the %.2f%% limit", portfolio.WeeklyDrawdownPercent, c.limits.MaxWeeklyDrawdown),
		}
	}

	if portfolio.ConcurrentPositions >= c.limits.MaxConcurrentPositions {
		return Decision{
			Approved:   false,
			VetoReason: fmt.Sprintf("%d concurrent positions already at the %d limit", portfolio.ConcurrentPositions, c.limits.MaxConcurrentPositions),
		}
	}

	if portfolio.SameDirectionCount >= c.limits.MaxSameDirection {
		return Decision{
			Approved:   false,
			VetoReason: fmt.Sprintf("%d same-direction positions already at the %d limit", portfolio.SameDirectionCount, c.limits.MaxSameDirection),
		}
	}

	fundingAgainst := trade.FundingRatePercent
	if trade.Direction == "SHORT" {
		fundingAgainst = -fundingAgainst
	}
	if fundingAgainst > c.limits.MaxFundingAgainst {
		return Decision{
			Approved:   false,
			VetoReason: fmt.Sprintf("funding cost %.4f%% against the proposed %s exceeds the %.4f%% limit", fundingAgainst, trade.Direction, c.limits.MaxFundingAgainst),
		}
	}

	netExposureLimit := c.limits.NetExposureLongLimit
	netExposureUsed := portfolio.NetExposureLongUsed
	if trade.Direction == "SHORT" {
		netExposureLimit = c.limits.NetExposureShortLimit
		netExposureUsed = portfolio.NetExposureShortUsed
	}
	if netExposureUsed+marginRequired(trade) > netExposureLimit {
		return Decision{
			Approved:   false,
			VetoReason: fmt.Sprintf("net %s exposure would exceed the configured limit", trade.Direction),
		}
	}

	positionSize := trade.PositionSizePercent
	if positionSize > c.limits.MaxPositionPercent {
		warnings = append(warnings, fmt.Sprintf("position size shrunk from %.2f%% to the %.2f%% cap", positionSize, c.limits.MaxPositionPercent))
		positionSize = c.limits.MaxPositionPercent
	}

	if wr := portfolio.RecentWinRate; wr != nil && wr.TotalTrades >= coldStreakMinSample && wr.WinRate < coldStreakWinRate {
		halved := positionSize / 2
		warnings = append(warnings, fmt.Sprintf("position size halved from %.2f%% to %.2f%%: trailing win rate %.0f%% over %d trades is a cold streak", positionSize, halved, wr.WinRate*100, wr.TotalTrades))
		positionSize = halved
	}

	leverage := trade.Leverage
	if leverage > c.limits.MaxLeverage {
		warnings = append(warnings, fmt.Sprintf("leverage shrunk from %.1fx to the %.1fx cap", leverage, c.limits.MaxLeverage))
		leverage = c.limits.MaxLeverage
	}

	stopLoss := trade.StopLoss
	if trade.EntryPrice > 0 {
		distance := stopLossDistance(trade.EntryPrice, stopLoss)
		if distance > c.limits.MaxStopLossDistance {
			warnings = append(warnings, fmt.Sprintf("stop-loss tightened: %.2f%% distance exceeded the %.2f%% cap", distance*100, c.limits.MaxStopLossDistance*100))
			stopLoss = tightenStopLoss(trade.EntryPrice, trade.Direction, c.limits.MaxStopLossDistance)
		}
	}

	return Decision{
		Approved: true,
		Adjustments: &Adjustments{
			PositionSizePercent: positionSize,
			Leverage:            leverage,
			StopLoss:            stopLoss,
		},
		Warnings: warnings,
	}
}

func stopLossDistance(entry, stopLoss float64) float64 {
	if entry == 0 {
		return 0
	}
	d := (entry - stopLoss) / entry
	if d < 0 {
		d = -d
	}
	return d
}

func tightenStopLoss(entry float64, direction string, maxDistance float64) float64 {
	if direction == "SHORT" {
		return entry * (1 + maxDistance)
	}
	return entry * (1 - maxDistance)
}

func marginRequired(trade ProposedTrade) float64 {
	if trade.Leverage <= 0 {
		return trade.PositionSizePercent
	}
	return trade.PositionSizePercent / trade.Leverage
}
