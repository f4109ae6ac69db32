package portfolio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/db"
	"github.com/coinquorum/tradeengine/internal/exchange"
)

// AssumedAverageLeverage is substituted when the exchange omits a
// position's leverage field, resolving the leverage-fallback Open Question.
const AssumedAverageLeverage = 3

// AgentEntry is one analyst's view into the shared portfolio. Because the
// trading model is collaborative, every entry shares the same Balance,
// Positions, and TotalTrades -- kept distinct per analyst only so
// per-analyst rendering (status endpoint, SSE) is cheap to produce.
type AgentEntry struct {
	AnalystID     string
	PortfolioID   uuid.UUID
	Balance       float64
	Positions     []exchange.Position
	LastTradeTime time.Time
	TotalTrades   int
	WinRate       float64
}

// State is the process-wide shared portfolio: one entry per analyst, all
// refreshed together from the same exchange read each cycle.
type State struct {
	mu      sync.RWMutex
	userID  uuid.UUID
	agents  map[string]*AgentEntry
	client  exchange.Client
	db      *db.DB
	logger  zerolog.Logger
}

// New constructs an empty State for a user. Call Seed to populate it during
// engine startup.
func New(userID uuid.UUID, client exchange.Client, database *db.DB, logger zerolog.Logger) *State {
	return &State{
		userID: userID,
		agents: make(map[string]*AgentEntry),
		client: client,
		db:     database,
		logger: logger,
	}
}

// Seed initializes one portfolio row and shared-view entry per analyst ID,
// retrying the initial exchange reads up to maxRetries times.
func (s *State) Seed(ctx context.Context, analystIDs []string, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range analystIDs {
		p, err := s.db.GetOrCreatePortfolio(ctx, s.userID, id)
		if err != nil {
			return fmt.Errorf("seed portfolio for analyst %s: %w", id, err)
		}
		s.agents[id] = &AgentEntry{AnalystID: id, PortfolioID: p.ID, Balance: p.CurrentBalance, TotalTrades: p.TotalTrades, WinRate: p.WinRate}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := s.refreshLocked(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("seed positions after %d retries: %w", maxRetries, lastErr)
}

// Refresh re-reads the exchange wallet and positions and updates every
// analyst entry plus the persisted portfolio/position mirror rows. Per
// spec §4.H this is the per-cycle authoritative refresh.
func (s *State) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *State) refreshLocked(ctx context.Context) error {
	assets, err := s.client.GetAccountAssets(ctx)
	if err != nil {
		return fmt.Errorf("get account assets: %w", err)
	}
	if math.IsNaN(assets.Available) || math.IsInf(assets.Available, 0) || assets.Available < 0 {
		return fmt.Errorf("exchange reported non-finite or negative balance: %v", assets.Available)
	}

	raw, err := s.client.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}
	positions := exchange.NormalizePositions(raw, s.logger)
	for i := range positions {
		if positions[i].Leverage <= 0 {
			positions[i].Leverage = AssumedAverageLeverage
		}
	}

	unrealizedTotal := 0.0
	for _, p := range positions {
		pnl := exchange.UnrealizedPnl(p)
		unrealizedTotal += pnl
	}
	totalValue := assets.Available + unrealizedTotal

	for _, entry := range s.agents {
		entry.Balance = assets.Available
		entry.Positions = positions
	}

	if err := s.db.RefreshPortfolioBalance(ctx, s.userID, assets.Available, totalValue); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist refreshed portfolio balance")
	}

	for _, entry := range s.agents {
		rows := make([]db.PositionRow, len(positions))
		for i, p := range positions {
			var pnl *float64
			v := exchange.UnrealizedPnl(p)
			pnl = &v
			rows[i] = db.PositionRow{
				PortfolioID: entry.PortfolioID, Symbol: p.Symbol, Side: string(p.Side),
				Size: p.Size, EntryPrice: p.EntryPrice, MarkPrice: p.MarkPrice,
				Leverage: p.Leverage, UnrealizedPnl: pnl,
			}
		}
		if err := s.db.ReplacePositions(ctx, entry.PortfolioID, rows); err != nil {
			s.logger.Warn().Err(err).Str("analyst", entry.AnalystID).Msg("failed to persist mirrored positions")
		}
	}

	return nil
}

// Snapshot returns a defensive copy of every agent entry, safe to hand to
// the status endpoint or an SSE frame.
func (s *State) Snapshot() map[string]AgentEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]AgentEntry, len(s.agents))
	for id, e := range s.agents {
		out[id] = *e
	}
	return out
}

// Balance returns the current shared balance (any agent entry's view is
// identical; defaults to 0 if state hasn't been seeded yet).
func (s *State) Balance() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.agents {
		return e.Balance
	}
	return 0
}

// Positions returns the current shared open positions.
func (s *State) Positions() []exchange.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.agents {
		return e.Positions
	}
	return nil
}

// RecordTrade bumps every analyst's in-memory and persisted trade counters
// after a fill, and updates that analyst's last-trade timestamp.
func (s *State) RecordTrade(ctx context.Context, analystID string, won bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.agents {
		e.TotalTrades++
	}
	if e, ok := s.agents[analystID]; ok {
		e.LastTradeTime = at
	}

	return s.db.IncrementTradeCounters(ctx, s.userID, won)
}

// ConcurrentPositions reports the number of currently open positions, for
// the risk council checklist.
func (s *State) ConcurrentPositions() int {
	return len(s.Positions())
}

// SameDirectionCount reports how many open positions share the given side.
func (s *State) SameDirectionCount(side exchange.Side) int {
	count := 0
	for _, p := range s.Positions() {
		if p.Side == side {
			count++
		}
	}
	return count
}
