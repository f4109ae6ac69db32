package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coinquorum/tradeengine/internal/db"
	"github.com/coinquorum/tradeengine/internal/events"
	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/llm"
)

// Proposal is the fully-adjusted trade the deliberation pipeline hands to
// the executor: the champion's thesis overridden by the risk council's
// stage-4 adjustments (explicit Stage-4 override doctrine).
type Proposal struct {
	Symbol       string
	Direction    string // LONG or SHORT
	PositionSize float64 // percent of equity, already risk-council-adjusted and capped
	Leverage     float64
	StopLoss     float64
	TakeProfitBase float64 // champion.priceTarget.base
	Confidence   float64
	Thesis       string
	Model        string
}

// Result reports what the executor did with a Proposal.
type Result struct {
	DryRun      bool
	OrderResult *exchange.OrderResult
	Size        float64
	MarginUsed  float64
}

// Executor turns an approved Proposal into an exchange order, per §4.G.
type Executor struct {
	client          exchange.Client
	db              *db.DB
	bus             *events.Bus
	aiLog           *llm.AILogRecorder
	maxPositionPct  float64
	minBalance      float64
	dryRun          bool
	logger          zerolog.Logger
}

// Config configures an Executor.
type Config struct {
	MaxPositionPercent float64 // MAX_POSITION_PERCENT
	MinBalanceToTrade  float64
	DryRun             bool
}

// New constructs an Executor. aiLog may be nil, in which case the executor
// skips the exchange AI-disclosure upload entirely (e.g. in dry-run-only
// test harnesses).
func New(client exchange.Client, database *db.DB, bus *events.Bus, aiLog *llm.AILogRecorder, cfg Config, logger zerolog.Logger) *Executor {
	return &Executor{
		client:         client,
		db:             database,
		bus:            bus,
		aiLog:          aiLog,
		maxPositionPct: cfg.MaxPositionPercent,
		minBalance:     cfg.MinBalanceToTrade,
		dryRun:         cfg.DryRun,
		logger:         logger,
	}
}

// Execute computes order parameters, applies pre-submission guards, and
// either simulates (dry-run) or submits the order live.
func (e *Executor) Execute(ctx context.Context, userID, portfolioID uuid.UUID, proposal Proposal, balance, currentPrice float64, contract exchange.Contract) (*Result, error) {
	if balance < e.minBalance {
		return nil, fmt.Errorf("balance %.2f below minimum %.2f to trade", balance, e.minBalance)
	}
	if currentPrice <= 0 {
		return nil, fmt.Errorf("current price %.8f is not positive", currentPrice)
	}

	// The risk council already capped this against MaxPositionPercent; clamp
	// again here as the last guard before an order actually goes out.
	positionPercent := proposal.PositionSize
	if positionPercent > e.maxPositionPct {
		positionPercent = e.maxPositionPct
	}
	positionValue := balance * positionPercent / 100
	size := positionValue / currentPrice
	if proposal.Leverage <= 0 {
		return nil, fmt.Errorf("leverage %.2f is not positive", proposal.Leverage)
	}
	marginRequired := positionValue / proposal.Leverage

	for name, v := range map[string]float64{"size": size, "marginRequired": marginRequired, "takeProfit": proposal.TakeProfitBase, "stopLoss": proposal.StopLoss} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return nil, fmt.Errorf("computed %s is not finite and positive: %v", name, v)
		}
	}

	direction := exchange.OrderOpenLong
	if proposal.Direction == "SHORT" {
		direction = exchange.OrderOpenShort
	}

	order := exchange.Order{
		Symbol:                proposal.Symbol,
		Type:                  direction,
		OrderType:             exchange.ExecFOK,
		MatchPrice:            exchange.MatchMarket,
		Size:                  exchange.FormatSize(size, contract.StepSize),
		Price:                 exchange.FormatPrice(currentPrice, contract.TickSize),
		ClientOID:             clientOrderID(),
		PresetTakeProfitPrice: exchange.FormatPrice(proposal.TakeProfitBase, contract.TickSize),
		PresetStopLossPrice:   exchange.FormatPrice(proposal.StopLoss, contract.TickSize),
	}
	if err := exchange.ValidateOrder(order, contract); err != nil {
		return nil, fmt.Errorf("order failed precondition validation: %w", err)
	}

	if e.dryRun {
		e.logger.Info().Str("symbol", proposal.Symbol).Str("direction", proposal.Direction).
			Float64("size", size).Float64("margin", marginRequired).Msg("dry-run: would place order")
		e.bus.Publish(events.TradeExecuted, map[string]interface{}{"symbol": proposal.Symbol, "dryRun": true})
		return &Result{DryRun: true, Size: size, MarginUsed: marginRequired}, nil
	}

	orderResult, err := e.client.PlaceOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	tradeID, tradeOK := e.recordTrade(ctx, userID, portfolioID, proposal, orderResult, size, currentPrice)
	e.recordAILog(ctx, userID, tradeID, tradeOK, proposal)
	e.bus.Publish(events.TradeExecuted, map[string]interface{}{"symbol": proposal.Symbol, "dryRun": false, "orderId": orderResult.OrderID})

	return &Result{OrderResult: orderResult, Size: size, MarginUsed: marginRequired}, nil
}

// recordAILog uploads the disclosure record for a filled order: the stage
// (always "execution" here -- earlier pipeline stages record their own),
// the model that produced the winning thesis, and the thesis text itself
// as both input and explanation since the executor has no separate prompt.
// tradeID links the log to its trades row when the persistence above
// succeeded; a failed persist still gets a disclosure row, just unlinked.
func (e *Executor) recordAILog(ctx context.Context, userID uuid.UUID, tradeID uuid.UUID, tradeOK bool, proposal Proposal) {
	if e.aiLog == nil {
		return
	}
	var orderIDPtr *uuid.UUID
	if tradeOK {
		orderIDPtr = &tradeID
	}
	if _, err := e.aiLog.Record(ctx, userID, orderIDPtr, "execution", proposal.Model, proposal.Symbol+" "+proposal.Direction, proposal.Thesis, proposal.Thesis); err != nil {
		e.logger.Warn().Err(err).Str("symbol", proposal.Symbol).Msg("failed to record AI disclosure log")
	}
}

// recordTrade persists the fill best-effort: a database failure is logged,
// never reverts the exchange-side fill. The returned bool reports whether
// the row was actually created.
func (e *Executor) recordTrade(ctx context.Context, userID, portfolioID uuid.UUID, proposal Proposal, result *exchange.OrderResult, size, price float64) (uuid.UUID, bool) {
	// db.RecordTrade already logs its own failure; the exchange fill must
	// stand regardless of whether this row lands.
	id, err := e.db.RecordTrade(ctx, db.Trade{
		UserID:          userID,
		PortfolioID:     portfolioID,
		Symbol:          proposal.Symbol,
		Side:            proposal.Direction,
		Type:            "MARKET",
		Size:            size,
		Price:           price,
		Status:          "FILLED",
		Reason:          proposal.Thesis,
		Confidence:      proposal.Confidence,
		ClientOrderID:   result.ClientOID,
		ExchangeOrderID: result.OrderID,
		ExecutedAt:      time.Now(),
	})
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func clientOrderID() string {
	id := "ce_" + uuid.NewString()
	if len(id) > 40 {
		id = id[:40]
	}
	return id
}
