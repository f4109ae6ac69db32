package market

import (
	"sync"

	"github.com/coinquorum/tradeengine/internal/indicators"
)

// priceHistory keeps a bounded rolling window of recent prices per symbol so
// the indicator service has something to compute RSI/EMA/ADX over. The
// exchange only gives us a point-in-time ticker, so the window is built up
// across cycles in-process.
type priceHistory struct {
	mu         sync.Mutex
	maxSamples int
	highs      map[string][]float64
	lows       map[string][]float64
	closes     map[string][]float64
}

func newPriceHistory(maxSamples int) *priceHistory {
	if maxSamples <= 0 {
		maxSamples = 200
	}
	return &priceHistory{
		maxSamples: maxSamples,
		highs:      make(map[string][]float64),
		lows:       make(map[string][]float64),
		closes:     make(map[string][]float64),
	}
}

func (h *priceHistory) record(symbol string, high, low, close float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.highs[symbol] = appendBounded(h.highs[symbol], high, h.maxSamples)
	h.lows[symbol] = appendBounded(h.lows[symbol], low, h.maxSamples)
	h.closes[symbol] = appendBounded(h.closes[symbol], close, h.maxSamples)
}

func (h *priceHistory) snapshot(symbol string) (highs, lows, closes []float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneSlice(h.highs[symbol]), cloneSlice(h.lows[symbol]), cloneSlice(h.closes[symbol])
}

func appendBounded(series []float64, v float64, max int) []float64 {
	series = append(series, v)
	if len(series) > max {
		series = series[len(series)-max:]
	}
	return series
}

func cloneSlice(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// enrich populates RSI/EMA/ADX on data using the indicator service, based on
// the rolling history recorded so far. Indicators that don't yet have enough
// samples are silently left nil rather than failing the whole snapshot.
func enrich(svc *indicators.Service, data *ExtendedMarketData, highs, lows, closes []float64) {
	if svc == nil || len(closes) == 0 {
		return
	}

	if len(closes) >= 15 {
		if result, err := svc.CalculateRSI(map[string]interface{}{
			"prices": toInterfaceSlice(closes),
			"period": 14,
		}); err == nil {
			if rsi, ok := result.(*indicators.RSIResult); ok {
				v := rsi.Value
				data.RSI = &v
			}
		}
	}

	if len(closes) >= 20 {
		if result, err := svc.CalculateEMA(map[string]interface{}{
			"prices": toInterfaceSlice(closes),
			"period": 20,
		}); err == nil {
			if ema, ok := result.(*indicators.EMAResult); ok {
				v := ema.Value
				data.EMA = &v
			}
		}
	}

	if len(closes) >= 28 && len(highs) == len(closes) && len(lows) == len(closes) {
		if result, err := svc.CalculateADX(map[string]interface{}{
			"high":   toInterfaceSlice(highs),
			"low":    toInterfaceSlice(lows),
			"close":  toInterfaceSlice(closes),
			"period": 14,
		}); err == nil {
			if adx, ok := result.(*indicators.ADXResult); ok {
				v := adx.Value
				data.ADX = &v
			}
		}
	}
}

func toInterfaceSlice(values []float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
