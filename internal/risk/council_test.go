package risk

import "testing"

func defaultLimits() Limits {
	return Limits{
		MaxPositionPercent:     10,
		MaxLeverage:            5,
		MaxStopLossDistance:    0.10,
		MaxConcurrentPositions: 5,
		MaxSameDirection:       3,
		MaxWeeklyDrawdown:      15,
		MaxFundingAgainst:      0.5,
		NetExposureLongLimit:   50,
		NetExposureShortLimit:  50,
	}
}

func TestCouncilApprovesCompliantTrade(t *testing.T) {
	council := NewCouncil(defaultLimits())
	decision := council.Review(ProposedTrade{
		Symbol:              "cmt_btcusdt",
		Direction:           "LONG",
		PositionSizePercent: 5,
		Leverage:            3,
		EntryPrice:          50000,
		StopLoss:            47500,
	}, PortfolioState{})

	if !decision.Approved {
		t.Fatalf("expected approval, got veto: %s", decision.VetoReason)
	}
	if decision.Adjustments.Leverage != 3 {
		t.Errorf("leverage adjustment = %v, want unchanged 3", decision.Adjustments.Leverage)
	}
}

func TestCouncilVetoesOnDrawdownBreach(t *testing.T) {
	council := NewCouncil(defaultLimits())
	decision := council.Review(ProposedTrade{Direction: "LONG", EntryPrice: 100, StopLoss: 95}, PortfolioState{WeeklyDrawdownPercent: 20})
	if decision.Approved {
		t.Fatal("expected veto on drawdown breach")
	}
	if decision.VetoReason == "" {
		t.Error("expected a veto reason")
	}
}

func TestCouncilShrinksOversizedPosition(t *testing.T) {
	council := NewCouncil(defaultLimits())
	decision := council.Review(ProposedTrade{
		Direction:           "LONG",
		PositionSizePercent: 25,
		Leverage:            10,
		EntryPrice:          100,
		StopLoss:            95,
	}, PortfolioState{})

	if !decision.Approved {
		t.Fatalf("expected adjust-over-veto, got veto: %s", decision.VetoReason)
	}
	if decision.Adjustments.PositionSizePercent != 10 {
		t.Errorf("PositionSizePercent = %v, want shrunk to 10", decision.Adjustments.PositionSizePercent)
	}
	if decision.Adjustments.Leverage != 5 {
		t.Errorf("Leverage = %v, want shrunk to 5", decision.Adjustments.Leverage)
	}
	if len(decision.Warnings) == 0 {
		t.Error("expected warnings describing the shrink")
	}
}

func TestCouncilVetoesAtConcurrentPositionCap(t *testing.T) {
	council := NewCouncil(defaultLimits())
	decision := council.Review(ProposedTrade{Direction: "LONG", EntryPrice: 100, StopLoss: 95}, PortfolioState{ConcurrentPositions: 5})
	if decision.Approved {
		t.Fatal("expected veto at concurrent position cap")
	}
}

func TestCouncilHalvesSizeDuringColdStreak(t *testing.T) {
	council := NewCouncil(defaultLimits())
	decision := council.Review(ProposedTrade{
		Direction:           "LONG",
		PositionSizePercent: 8,
		Leverage:            3,
		EntryPrice:          100,
		StopLoss:            95,
	}, PortfolioState{RecentWinRate: &WinRateData{WinRate: 0.2, TotalTrades: 10}})

	if !decision.Approved {
		t.Fatalf("expected adjust-over-veto, got veto: %s", decision.VetoReason)
	}
	if decision.Adjustments.PositionSizePercent != 4 {
		t.Errorf("PositionSizePercent = %v, want halved to 4", decision.Adjustments.PositionSizePercent)
	}
	if len(decision.Warnings) == 0 {
		t.Error("expected a warning describing the cold-streak shrink")
	}
}

func TestCouncilIgnoresColdStreakWithSmallSample(t *testing.T) {
	council := NewCouncil(defaultLimits())
	decision := council.Review(ProposedTrade{
		Direction:           "LONG",
		PositionSizePercent: 8,
		Leverage:            3,
		EntryPrice:          100,
		StopLoss:            95,
	}, PortfolioState{RecentWinRate: &WinRateData{WinRate: 0.0, TotalTrades: 2}})

	if !decision.Approved {
		t.Fatalf("expected adjust-over-veto, got veto: %s", decision.VetoReason)
	}
	if decision.Adjustments.PositionSizePercent != 8 {
		t.Errorf("PositionSizePercent = %v, want unchanged at 8 (sample too small)", decision.Adjustments.PositionSizePercent)
	}
}

func TestCouncilTightensStopLossBeyondCap(t *testing.T) {
	council := NewCouncil(defaultLimits())
	decision := council.Review(ProposedTrade{
		Direction:  "LONG",
		EntryPrice: 100,
		StopLoss:   80, // 20% distance, exceeds the 10% cap
		Leverage:   1,
	}, PortfolioState{})

	if !decision.Approved {
		t.Fatalf("expected adjust, got veto: %s", decision.VetoReason)
	}
	if decision.Adjustments.StopLoss != 90 {
		t.Errorf("StopLoss = %v, want tightened to 90", decision.Adjustments.StopLoss)
	}
}
