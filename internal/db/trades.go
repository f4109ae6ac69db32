package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Trade mirrors a row in the trades table.
type Trade struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PortfolioID     uuid.UUID
	Symbol          string
	Side            string
	Type            string
	Size            float64
	Price           float64
	Status          string
	Reason          string
	Confidence      float64
	ClientOrderID   string
	ExchangeOrderID string
	RealizedPnl     *float64
	ExecutedAt      time.Time
}

// RecordTrade persists an executed trade. Writes are routed through the
// database circuit breaker and a failure here is logged and swallowed by
// the caller (the exchange fill already happened; this row is a record of
// it, not a precondition for it) -- see internal/executor.
func (db *DB) RecordTrade(ctx context.Context, t Trade) (uuid.UUID, error) {
	result, err := db.ExecuteWithCircuitBreaker(func() (interface{}, error) {
		var id uuid.UUID
		err := db.pool.QueryRow(ctx, `
			INSERT INTO trades (user_id, portfolio_id, symbol, side, type, size, price, status,
				reason, confidence, client_order_id, exchange_order_id, realized_pnl)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`, t.UserID, t.PortfolioID, t.Symbol, t.Side, t.Type, t.Size, t.Price, t.Status,
			t.Reason, t.Confidence, t.ClientOrderID, t.ExchangeOrderID, t.RealizedPnl).Scan(&id)
		return id, err
	})
	if err != nil {
		log.Warn().Err(err).Str("client_order_id", t.ClientOrderID).Msg("failed to persist trade record; exchange fill stands regardless")
		return uuid.Nil, err
	}
	return result.(uuid.UUID), nil
}

// ListTrades returns recent trades for a portfolio, most recent first.
func (db *DB) ListTrades(ctx context.Context, portfolioID uuid.UUID, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, user_id, portfolio_id, symbol, side, type, size, price, status,
			COALESCE(reason, ''), COALESCE(confidence, 0), client_order_id, COALESCE(exchange_order_id, ''),
			realized_pnl, executed_at
		FROM trades WHERE portfolio_id = $1 ORDER BY executed_at DESC LIMIT $2
	`, portfolioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.PortfolioID, &t.Symbol, &t.Side, &t.Type, &t.Size,
			&t.Price, &t.Status, &t.Reason, &t.Confidence, &t.ClientOrderID, &t.ExchangeOrderID,
			&t.RealizedPnl, &t.ExecutedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
