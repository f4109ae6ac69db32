// Package engine owns the autonomous trading loop's lifecycle: a singleton,
// non-reentrant state machine (Stopped -> Starting -> Running -> Stopping ->
// Stopped) wrapping the deliberation pipeline and trade executor.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/alerts"
	"github.com/coinquorum/tradeengine/internal/audit"
	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/db"
	"github.com/coinquorum/tradeengine/internal/deliberation"
	"github.com/coinquorum/tradeengine/internal/events"
	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/executor"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/portfolio"
	"github.com/coinquorum/tradeengine/internal/risk"
	"github.com/coinquorum/tradeengine/internal/scheduler"
)

// btcSymbol is the fixed reference symbol the circuit breaker watches for
// short-horizon drop, per spec: one of the eight approved symbols, always
// present in the trading universe.
const btcSymbol = "cmt_btcusdt"

// State is the engine's lifecycle state.
type State string

const (
	StateStopped  State = "Stopped"
	StateStarting State = "Starting"
	StateRunning  State = "Running"
	StateStopping State = "Stopping"
)

// Stats mirrors the running totals the status endpoint and SSE initial
// frame both need.
type Stats struct {
	CycleCount          int64
	ConsecutiveFailures int
	LastCycleError      string
}

// Status is a point-in-time snapshot of the engine, safe to serialize.
type Status struct {
	IsRunning     bool
	State         State
	CycleCount    int64
	Analysts      map[string]portfolio.AgentEntry
	SharedBalance float64
	Stats         Stats
	NextCycleIn   time.Duration
}

// Controller is the process-wide singleton engine instance. Constructed
// once at startup; Start/Stop/Status/Cleanup are the only public surface.
type Controller struct {
	mu    sync.Mutex
	state State

	userID uuid.UUID

	client   exchange.Client
	database *db.DB
	bus      *events.Bus
	pf       *portfolio.State
	pipeline *deliberation.Pipeline
	exec     *executor.Executor
	breaker    *risk.MarketCircuitBreaker
	council    *risk.Council
	calculator *risk.Calculator
	schedule   *scheduler.Schedule
	cfg        config.EngineConfig
	logger     zerolog.Logger

	// alerts and audit are both optional: a nil value is treated as
	// disabled rather than panicking, since not every deployment wires
	// an alert channel or an audit sink.
	alerts *alerts.Manager
	audit  *audit.Logger

	analystIDs []string

	cancel      context.CancelFunc
	loopDone    chan struct{}
	startingBal float64

	nextCycleAt         time.Time
	cycleCount          int64
	consecutiveFailures int
	lastCycleError      string
}

// Deps bundles every collaborator the controller drives a cycle through.
type Deps struct {
	Client     exchange.Client
	Database   *db.DB
	Bus        *events.Bus
	Portfolio  *portfolio.State
	Pipeline   *deliberation.Pipeline
	Executor   *executor.Executor
	Breaker    *risk.MarketCircuitBreaker
	Council    *risk.Council
	Calculator *risk.Calculator
	Schedule   *scheduler.Schedule
	Config     config.EngineConfig
	AnalystIDs []string
	Alerts     *alerts.Manager
	Audit      *audit.Logger
}

// New constructs a stopped Controller. Deps are wired once at process
// startup by cmd/engine.
func New(deps Deps, logger zerolog.Logger) *Controller {
	return &Controller{
		state:      StateStopped,
		client:     deps.Client,
		database:   deps.Database,
		bus:        deps.Bus,
		pf:         deps.Portfolio,
		pipeline:   deps.Pipeline,
		exec:       deps.Executor,
		breaker:    deps.Breaker,
		council:    deps.Council,
		calculator: deps.Calculator,
		schedule:   deps.Schedule,
		cfg:        deps.Config,
		analystIDs: deps.AnalystIDs,
		alerts:     deps.Alerts,
		audit:      deps.Audit,
		logger:     logger.With().Str("component", "engine").Logger(),
	}
}

// Start is idempotent and non-reentrant. A concurrent Start while one is
// already in flight returns immediately; a Start while the engine is
// already running is a no-op. If the engine is mid-Stopping, Cleanup is
// awaited first so a fresh lifecycle never overlaps the tail of a previous
// one.
func (c *Controller) Start(ctx context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	switch c.state {
	case StateStarting:
		c.mu.Unlock()
		return nil
	case StateRunning:
		c.mu.Unlock()
		return nil
	case StateStopping:
		c.mu.Unlock()
		c.Cleanup(ctx)
		c.mu.Lock()
	}
	c.state = StateStarting
	c.userID = userID
	c.mu.Unlock()

	if _, err := c.client.GetAccountAssets(ctx); err != nil {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		return fmt.Errorf("engine start: exchange unreachable: %w", err)
	}

	if err := c.pf.Seed(ctx, c.analystIDs, c.cfg.MaxRetries); err != nil {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		return fmt.Errorf("engine start: seed portfolio: %w", err)
	}

	c.mu.Lock()
	c.startingBal = c.pf.Balance()
	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loopDone = make(chan struct{})
	c.state = StateRunning
	done := c.loopDone
	c.mu.Unlock()

	c.bus.Publish(events.Started, map[string]interface{}{"userId": userID.String()})
	c.logger.Info().Str("user_id", userID.String()).Msg("engine started")
	if c.audit != nil {
		if err := c.audit.LogTradingAction(ctx, audit.EventTypeTradingStart, userID.String(), "", "", true, ""); err != nil {
			c.logger.Warn().Err(err).Msg("audit log write failed")
		}
	}

	go c.runLoop(loopCtx, done)

	return nil
}

// Stop is idempotent and safe to call from any state. It cancels the
// pending inter-cycle sleep (if any) and lets the current cycle finish.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.bus.Publish(events.Stopped, nil)
	c.logger.Info().Msg("engine stop requested")
	if c.audit != nil {
		if err := c.audit.LogTradingAction(context.Background(), audit.EventTypeTradingStop, c.userID.String(), "", "", true, ""); err != nil {
			c.logger.Warn().Err(err).Msg("audit log write failed")
		}
	}
}

// Cleanup calls Stop, waits up to 5s for the loop goroutine to exit, then
// resets the lifecycle state and the cycle counters (cycle count,
// consecutive failures, last cycle error, next-cycle time) and removes the
// Event Bus's listeners.
func (c *Controller) Cleanup(ctx context.Context) {
	c.Stop()

	c.mu.Lock()
	done := c.loopDone
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			c.logger.Warn().Msg("cleanup: main loop did not exit within 5s, clearing state regardless")
		}
	}

	c.mu.Lock()
	c.state = StateStopped
	c.cancel = nil
	c.loopDone = nil
	c.cycleCount = 0
	c.consecutiveFailures = 0
	c.lastCycleError = ""
	c.nextCycleAt = time.Time{}
	c.mu.Unlock()

	c.bus.UnsubscribeAll()
}

// Status returns a point-in-time snapshot suitable for the status endpoint
// and the initial SSE frame.
func (c *Controller) Status() Status {
	c.mu.Lock()
	state := c.state
	var nextIn time.Duration
	if !c.nextCycleAt.IsZero() && c.nextCycleAt.After(time.Now()) {
		nextIn = time.Until(c.nextCycleAt)
	}
	stats := Stats{
		CycleCount:          c.cycleCount,
		ConsecutiveFailures: c.consecutiveFailures,
		LastCycleError:      c.lastCycleError,
	}
	c.mu.Unlock()

	return Status{
		IsRunning:     state == StateRunning,
		State:         state,
		CycleCount:    stats.CycleCount,
		Analysts:      c.pf.Snapshot(),
		SharedBalance: c.pf.Balance(),
		Stats:         stats,
		NextCycleIn:   nextIn,
	}
}

// EmergencyClose flattens every open position across every distinct symbol,
// logging individual close failures without aborting the sweep.
func (c *Controller) EmergencyClose(ctx context.Context) {
	symbols := map[string]struct{}{}
	for _, p := range c.pf.Positions() {
		symbols[p.Symbol] = struct{}{}
	}
	for symbol := range symbols {
		if err := c.client.CloseAllPositions(ctx, symbol); err != nil {
			c.logger.Error().Err(err).Str("symbol", symbol).Msg("emergency close failed for symbol")
		}
	}
	c.bus.Publish(events.EmergencyClose, map[string]interface{}{"symbols": len(symbols)})
}

func (c *Controller) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		c.mu.Lock()
		running := c.state == StateRunning
		c.mu.Unlock()
		if !running {
			return
		}

		cycleErr := c.runCycle(ctx)

		c.mu.Lock()
		c.cycleCount++
		if cycleErr != nil {
			c.consecutiveFailures++
			c.lastCycleError = cycleErr.Error()
			c.logger.Warn().Err(cycleErr).Int("consecutive_failures", c.consecutiveFailures).Msg("cycle failed")
		} else {
			c.consecutiveFailures = 0
			c.lastCycleError = ""
		}
		failures := c.consecutiveFailures
		c.mu.Unlock()

		interval := c.schedule.DynamicCycleInterval(time.Now(), c.cfg.CycleInterval)
		if cycleErr != nil {
			interval = scheduler.BackoffInterval(c.cfg.CycleInterval, failures)
		}

		c.mu.Lock()
		c.nextCycleAt = time.Now().Add(interval)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (c *Controller) runCycle(ctx context.Context) error {
	c.bus.Publish(events.CycleStart, nil)

	if err := c.pf.Refresh(ctx); err != nil {
		c.bus.Publish(events.CycleComplete, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("refresh portfolio: %w", err)
	}

	assessment, err := c.evaluateCircuitBreaker(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("circuit breaker evaluation degraded, proceeding as GREEN")
	}
	if assessment.Level == risk.LevelRed {
		c.logger.Error().Str("reason", assessment.Reason).Msg("RED circuit breaker: emergency close and skip cycle")
		if c.alerts != nil {
			if err := c.alerts.Send(ctx, alerts.Alert{
				Title: "market circuit breaker RED", Message: assessment.Reason, Severity: alerts.SeverityCritical,
			}); err != nil {
				c.logger.Warn().Err(err).Msg("alert send failed")
			}
		}
		c.EmergencyClose(ctx)
		c.bus.Publish(events.CycleComplete, map[string]interface{}{"circuitBreaker": string(assessment.Level), "reason": assessment.Reason})
		return nil
	}

	balance := c.pf.Balance()
	positions := c.pf.Positions()
	recentPnl := c.recentRealizedPnl(ctx)
	// The proposed trade's direction isn't known until Stage 3 picks a
	// champion, so the same-direction count fed into Stage 4 uses whichever
	// side is currently more exposed as a conservative upper bound.
	sameDirection := c.pf.SameDirectionCount(exchange.SideLong)
	if short := c.pf.SameDirectionCount(exchange.SideShort); short > sameDirection {
		sameDirection = short
	}
	portfolioState := risk.PortfolioState{
		ConcurrentPositions:   c.pf.ConcurrentPositions(),
		SameDirectionCount:    sameDirection,
		WeeklyDrawdownPercent: drawdownPercent(c.startingBal, balance),
		RecentWinRate:         c.recentWinRate(ctx),
	}

	outcome, err := c.pipeline.Run(ctx, positions, balance, recentPnl, portfolioState)
	if err != nil {
		c.bus.Publish(events.CycleComplete, map[string]interface{}{"error": err.Error()})
		return err
	}

	c.publishOutcome(outcome)

	switch outcome.Kind {
	case deliberation.OutcomeTradeProposed:
		c.executeProposal(ctx, outcome)
	case deliberation.OutcomeManage:
		c.logger.Info().Str("symbol", outcome.ManageSymbol).Msg("cycle diverted to position management")
	case deliberation.OutcomeVetoed:
		c.logger.Info().Str("reason", outcome.Reason).Msg("risk council vetoed the cycle")
	case deliberation.OutcomeSkipped:
		c.logger.Info().Str("reason", outcome.Reason).Msg("cycle skipped")
	}

	c.bus.Publish(events.CycleComplete, map[string]interface{}{"kind": string(outcome.Kind)})
	c.logPerformanceSnapshot(ctx)
	return nil
}

// logPerformanceSnapshot reports the trailing-30-day Sharpe ratio and
// drawdown alongside the cycle log line; calculator is optional, and any
// failure here is swallowed since it never blocks a cycle.
func (c *Controller) logPerformanceSnapshot(ctx context.Context) {
	if c.calculator == nil {
		return
	}
	portfolioID := c.primaryPortfolioID()
	if portfolioID == uuid.Nil {
		return
	}
	sharpe, err := c.calculator.CalculateSharpeFromEquity(ctx, portfolioID, c.startingBal, 30, 0.0)
	if err != nil {
		c.logger.Debug().Err(err).Msg("performance snapshot: sharpe unavailable")
		return
	}
	currentDD, maxDD, peak, err := c.calculator.CalculateDrawdownFromDB(ctx, portfolioID, c.startingBal, 30)
	if err != nil {
		c.logger.Debug().Err(err).Msg("performance snapshot: drawdown unavailable")
		return
	}
	c.logger.Info().
		Float64("sharpe_30d", sharpe).
		Float64("drawdown_current", currentDD).
		Float64("drawdown_max_30d", maxDD).
		Float64("equity_peak_30d", peak).
		Msg("performance snapshot")
}

func (c *Controller) executeProposal(ctx context.Context, outcome deliberation.Outcome) {
	contracts, err := c.client.GetContracts(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch contracts before execution")
		return
	}
	contract, ok := contracts[outcome.Proposal.Symbol]
	if !ok {
		c.logger.Error().Str("symbol", outcome.Proposal.Symbol).Msg("no contract metadata for proposed symbol")
		return
	}

	portfolioID := c.primaryPortfolioID()

	ticker, err := c.client.GetTicker(ctx, outcome.Proposal.Symbol)
	if err != nil {
		c.logger.Error().Err(err).Str("symbol", outcome.Proposal.Symbol).Msg("failed to fetch current price before execution")
		return
	}

	balance := c.pf.Balance()
	result, err := c.exec.Execute(ctx, c.userID, portfolioID, *outcome.Proposal, balance, ticker.CurrentPrice, contract)
	if err != nil {
		c.logger.Error().Err(err).Str("symbol", outcome.Proposal.Symbol).Msg("trade execution failed")
		return
	}
	if !result.DryRun {
		// The executor already published TradeExecuted on the fill itself;
		// this only updates the in-memory portfolio snapshot.
		_ = c.pf.RecordTrade(ctx, outcome.Proposal.Model, true, time.Now())
	}
}

// recentWinRate asks the calculator for this portfolio's trailing win rate
// so the risk council's checklist can shrink sizing during a cold streak.
// Returns nil whenever there's nothing for the checklist to act on.
func (c *Controller) recentWinRate(ctx context.Context) *risk.WinRateData {
	if c.calculator == nil {
		return nil
	}
	portfolioID := c.primaryPortfolioID()
	if portfolioID == uuid.Nil {
		return nil
	}
	wr, err := c.calculator.CalculateWinRate(ctx, portfolioID, "")
	if err != nil {
		c.logger.Debug().Err(err).Msg("recent win rate unavailable")
		return nil
	}
	return wr
}

// primaryPortfolioID returns the portfolio shared across all eight seeded
// agents -- whichever entry is first in the snapshot stands in for it.
func (c *Controller) primaryPortfolioID() uuid.UUID {
	var portfolioID uuid.UUID
	for _, e := range c.pf.Snapshot() {
		portfolioID = e.PortfolioID
		break
	}
	return portfolioID
}

func (c *Controller) publishOutcome(outcome deliberation.Outcome) {
	if outcome.CoinSelection != nil {
		c.bus.Publish(events.CoinSelected, outcome.CoinSelection)
	}
	if outcome.Championship != nil {
		c.bus.Publish(events.SpecialistAnalysis, outcome.Championship.Turns)
		c.bus.Publish(events.TournamentComplete, outcome.Championship)
		if outcome.Championship.Winner != "" {
			c.bus.Publish(events.ChampionSelected, outcome.Championship.Winner)
		}
	}
	if outcome.RiskCouncil != nil {
		c.bus.Publish(events.RiskCouncilDecision, outcome.RiskCouncil)
	}
	c.bus.Publish(events.DebatesComplete, nil)
}

func (c *Controller) evaluateCircuitBreaker(ctx context.Context) (risk.Assessment, error) {
	ticker, err := c.client.GetTicker(ctx, btcSymbol)
	if err != nil {
		return risk.Assessment{Level: risk.LevelGreen}, err
	}
	funding, _ := c.client.GetFundingRate(ctx, btcSymbol)
	var fundingPercent float64
	if funding != nil && funding.Rate != nil {
		fundingPercent = *funding.Rate
	}
	drawdown := drawdownPercent(c.startingBal, c.pf.Balance())
	return c.breaker.Evaluate(ticker.Change24h, -drawdown, fundingPercent), nil
}

func (c *Controller) recentRealizedPnl(ctx context.Context) float64 {
	portfolioID := c.primaryPortfolioID()
	if portfolioID == uuid.Nil {
		return 0
	}
	trades, err := c.database.ListTrades(ctx, portfolioID, 20)
	if err != nil {
		return 0
	}
	var total float64
	for _, t := range trades {
		if t.RealizedPnl != nil {
			total += *t.RealizedPnl
		}
	}
	return total
}

func drawdownPercent(starting, current float64) float64 {
	if starting <= 0 {
		return 0
	}
	return ((starting - current) / starting) * 100
}

// AnalystIDs extracts the process-wide analyst roster's IDs from their
// profiles, in the order DefaultAnalysts returns them.
func AnalystIDs(profiles []llm.AnalystProfile) []string {
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids
}
