package exchange

import (
	"strings"

	"github.com/rs/zerolog"
)

// AssumedAverageLeverage is used only when a position's leverage is absent
// from the exchange response; it is a fallback, not a rule (spec design note).
const AssumedAverageLeverage = 3

// NormalizePositions converts the exchange's native position shapes into the
// uniform {side ∈ {LONG, SHORT}} contract the rest of the engine consumes.
// Positions without recoverable price data are dropped with a logged warning.
func NormalizePositions(raw []RawPosition, logger zerolog.Logger) []Position {
	out := make([]Position, 0, len(raw))
	for _, p := range raw {
		side, ok := normalizeSide(p.SideRaw)
		if !ok {
			logger.Warn().Str("symbol", p.Symbol).Str("side_raw", p.SideRaw).Msg("dropping position: unrecognized side")
			continue
		}

		entry, ok := resolveEntryPrice(p)
		if !ok {
			logger.Warn().Str("symbol", p.Symbol).Msg("dropping position: no recoverable entry price")
			continue
		}

		leverage := AssumedAverageLeverage
		if p.Leverage != nil && *p.Leverage >= 1 {
			leverage = int(*p.Leverage)
		}

		out = append(out, Position{
			Symbol:        p.Symbol,
			Side:          side,
			Size:          p.Size,
			EntryPrice:    entry,
			Leverage:      float64(leverage),
			MarkPrice:     p.MarkPrice,
			UnrealizedPnl: p.UnrealizedPnl,
		})
	}
	return out
}

func normalizeSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "1", "buy":
		return SideLong, true
	case "short", "2", "sell":
		return SideShort, true
	default:
		return "", false
	}
}

func resolveEntryPrice(p RawPosition) (float64, bool) {
	if p.EntryPrice != nil && *p.EntryPrice > 0 {
		return *p.EntryPrice, true
	}
	if p.OpenValue != nil && p.Size > 0 {
		return *p.OpenValue / p.Size, true
	}
	return 0, false
}

// UnrealizedPnl computes (mark - entry) * size * direction, where direction
// is +1 for LONG and -1 for SHORT.
func UnrealizedPnl(pos Position) float64 {
	direction := 1.0
	if pos.Side == SideShort {
		direction = -1.0
	}
	return (pos.MarkPrice - pos.EntryPrice) * pos.Size * direction
}
