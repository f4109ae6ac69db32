package risk

import "fmt"

// Level is the global market risk gate's severity output. Distinct from the
// per-dependency gobreaker.CircuitBreaker in circuit_breaker.go -- this one
// gates trading decisions on market conditions, not on a downstream
// service's error rate.
type Level string

const (
	LevelGreen  Level = "GREEN"
	LevelYellow Level = "YELLOW"
	LevelOrange Level = "ORANGE"
	LevelRed    Level = "RED"
)

// MarketThresholds configures the level boundaries. All percent fields are
// expressed as positive magnitudes (a BTC drop of 4% is 4.0, not -4.0).
type MarketThresholds struct {
	BTCDropYellowPercent  float64
	BTCDropOrangePercent  float64
	BTCDropRedPercent     float64
	DrawdownYellowPercent float64
	DrawdownOrangePercent float64
	DrawdownRedPercent    float64
	FundingExtremePercent float64
}

// MarketCircuitBreaker evaluates BTC short-horizon drop, portfolio drawdown,
// and funding extremes into a single severity level each cycle.
type MarketCircuitBreaker struct {
	thresholds MarketThresholds
}

// NewMarketCircuitBreaker constructs a MarketCircuitBreaker from configured thresholds.
func NewMarketCircuitBreaker(thresholds MarketThresholds) *MarketCircuitBreaker {
	return &MarketCircuitBreaker{thresholds: thresholds}
}

// Assessment is the circuit breaker's verdict for one cycle.
type Assessment struct {
	Level  Level
	Reason string
}

// Evaluate computes the severity level. btcChange4hPercent and
// portfolioDrawdown24hPercent are negative for a drop (e.g. -12.0 for a
// 12% decline); fundingRatePercent is signed.
func (c *MarketCircuitBreaker) Evaluate(btcChange4hPercent, portfolioDrawdown24hPercent, fundingRatePercent float64) Assessment {
	btcDrop := -btcChange4hPercent
	drawdown := -portfolioDrawdown24hPercent
	fundingMagnitude := fundingRatePercent
	if fundingMagnitude < 0 {
		fundingMagnitude = -fundingMagnitude
	}

	if btcDrop >= c.thresholds.BTCDropRedPercent {
		return Assessment{LevelRed, fmt.Sprintf("RED ALERT: BTC dropped %.2f%% in 4h, exceeding the %.2f%% emergency threshold", btcDrop, c.thresholds.BTCDropRedPercent)}
	}
	if drawdown >= c.thresholds.DrawdownRedPercent {
		return Assessment{LevelRed, fmt.Sprintf("RED ALERT: portfolio drawdown of %.2f%% over 24h exceeds the %.2f%% emergency threshold", drawdown, c.thresholds.DrawdownRedPercent)}
	}

	if btcDrop >= c.thresholds.BTCDropOrangePercent {
		return Assessment{LevelOrange, fmt.Sprintf("BTC dropped %.2f%% in 4h", btcDrop)}
	}
	if drawdown >= c.thresholds.DrawdownOrangePercent {
		return Assessment{LevelOrange, fmt.Sprintf("portfolio drawdown of %.2f%% over 24h", drawdown)}
	}

	if btcDrop >= c.thresholds.BTCDropYellowPercent {
		return Assessment{LevelYellow, fmt.Sprintf("BTC dropped %.2f%% in 4h", btcDrop)}
	}
	if drawdown >= c.thresholds.DrawdownYellowPercent {
		return Assessment{LevelYellow, fmt.Sprintf("portfolio drawdown of %.2f%% over 24h", drawdown)}
	}
	if fundingMagnitude >= c.thresholds.FundingExtremePercent {
		return Assessment{LevelYellow, fmt.Sprintf("funding rate %.4f%% is at an extreme", fundingRatePercent)}
	}

	return Assessment{LevelGreen, "normal"}
}

// RequiresEmergencyFlatten reports whether this level requires closing every
// open position and skipping the cycle.
func (a Assessment) RequiresEmergencyFlatten() bool {
	return a.Level == LevelRed
}

// ShrinkGuidance reports how strongly size/leverage should be reduced for
// this level: 1.0 = no change, lower = more conservative.
func (a Assessment) ShrinkGuidance() float64 {
	switch a.Level {
	case LevelYellow:
		return 0.5
	case LevelOrange:
		return 0.25
	case LevelRed:
		return 0
	default:
		return 1.0
	}
}
