package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PositionRow mirrors a row in the positions table.
type PositionRow struct {
	ID            uuid.UUID
	PortfolioID   uuid.UUID
	Symbol        string
	Side          string
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	Leverage      float64
	UnrealizedPnl *float64
	UpdatedAt     time.Time
}

// ReplacePositions overwrites the stored position snapshot for a portfolio
// with the current exchange-reported set. The positions table is a mirror,
// not a ledger, so each cycle's refresh replaces it wholesale rather than
// reconciling row by row.
func (db *DB) ReplacePositions(ctx context.Context, portfolioID uuid.UUID, positions []PositionRow) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM positions WHERE portfolio_id = $1`, portfolioID); err != nil {
		return err
	}

	for _, p := range positions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO positions (portfolio_id, symbol, side, size, entry_price, mark_price, leverage, unrealized_pnl)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, portfolioID, p.Symbol, p.Side, p.Size, p.EntryPrice, p.MarkPrice, p.Leverage, p.UnrealizedPnl); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListPositions returns the mirrored open positions for a portfolio.
func (db *DB) ListPositions(ctx context.Context, portfolioID uuid.UUID) ([]PositionRow, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, portfolio_id, symbol, side, size, entry_price, mark_price, leverage, unrealized_pnl, updated_at
		FROM positions WHERE portfolio_id = $1 ORDER BY symbol
	`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var p PositionRow
		if err := rows.Scan(&p.ID, &p.PortfolioID, &p.Symbol, &p.Side, &p.Size, &p.EntryPrice,
			&p.MarkPrice, &p.Leverage, &p.UnrealizedPnl, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
