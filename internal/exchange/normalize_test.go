package exchange

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNormalizePositionsDerivesEntryFromOpenValue(t *testing.T) {
	openValue := 5000.0
	raw := []RawPosition{
		{Symbol: "cmt_btcusdt", SideRaw: "long", Size: 0.5, OpenValue: &openValue},
	}
	positions := NormalizePositions(raw, zerolog.Nop())
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].EntryPrice != 10000 {
		t.Errorf("EntryPrice = %v, want 10000", positions[0].EntryPrice)
	}
	if positions[0].Leverage != AssumedAverageLeverage {
		t.Errorf("Leverage fallback = %v, want %v", positions[0].Leverage, AssumedAverageLeverage)
	}
}

func TestNormalizePositionsDropsUnrecoverable(t *testing.T) {
	raw := []RawPosition{
		{Symbol: "cmt_ethusdt", SideRaw: "short", Size: 1.0},
	}
	positions := NormalizePositions(raw, zerolog.Nop())
	if len(positions) != 0 {
		t.Fatalf("expected position without recoverable price to be dropped, got %d", len(positions))
	}
}

func TestNormalizePositionsUnknownSideDropped(t *testing.T) {
	entry := 100.0
	raw := []RawPosition{{Symbol: "cmt_solusdt", SideRaw: "sideways", EntryPrice: &entry, Size: 1}}
	if positions := NormalizePositions(raw, zerolog.Nop()); len(positions) != 0 {
		t.Fatalf("expected unrecognized side to be dropped, got %d", len(positions))
	}
}

func TestUnrealizedPnl(t *testing.T) {
	long := Position{Side: SideLong, EntryPrice: 100, MarkPrice: 110, Size: 2}
	if got := UnrealizedPnl(long); got != 20 {
		t.Errorf("long pnl = %v, want 20", got)
	}
	short := Position{Side: SideShort, EntryPrice: 100, MarkPrice: 110, Size: 2}
	if got := UnrealizedPnl(short); got != -20 {
		t.Errorf("short pnl = %v, want -20", got)
	}
}
