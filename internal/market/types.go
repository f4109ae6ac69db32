package market

import "time"

// ExtendedMarketData is the per-symbol snapshot the deliberation pipeline
// reasons over. It is assembled fresh each cycle from the exchange client
// and enriched with a handful of technical indicators.
type ExtendedMarketData struct {
	Symbol       string     `json:"symbol"`
	CurrentPrice float64    `json:"currentPrice"`
	High24h      float64    `json:"high24h"`
	Low24h       float64    `json:"low24h"`
	Volume24h    float64    `json:"volume24h"`
	Change24h    float64    `json:"change24h"`
	MarkPrice    float64    `json:"markPrice"`
	IndexPrice   float64    `json:"indexPrice"`
	BestBid      float64    `json:"bestBid"`
	BestAsk      float64    `json:"bestAsk"`
	FundingRate  *float64   `json:"fundingRate,omitempty"`
	RSI          *float64   `json:"rsi,omitempty"`
	EMA          *float64   `json:"ema,omitempty"`
	ADX          *float64   `json:"adx,omitempty"`
	FetchedAt    time.Time  `json:"fetchedAt"`
}

// Spread returns the best-ask/best-bid spread, or 0 if either side is unset.
func (d ExtendedMarketData) Spread() float64 {
	if d.BestBid <= 0 || d.BestAsk <= 0 {
		return 0
	}
	return d.BestAsk - d.BestBid
}

// Age reports how long ago this snapshot was fetched, or 0 when FetchedAt
// is unset.
func (d ExtendedMarketData) Age() time.Duration {
	if d.FetchedAt.IsZero() {
		return 0
	}
	return time.Since(d.FetchedAt)
}

// PriceMovedSince reports whether CurrentPrice has drifted from a previously
// observed price by more than thresholdPercent (e.g. the 0.5%/0.3% refresh
// checks the championship and risk council stages perform before acting on
// a stale snapshot).
func (d ExtendedMarketData) PriceMovedSince(previous float64, thresholdPercent float64) bool {
	if previous <= 0 {
		return false
	}
	change := ((d.CurrentPrice - previous) / previous) * 100
	if change < 0 {
		change = -change
	}
	return change > thresholdPercent
}
