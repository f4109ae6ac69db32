package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Portfolio mirrors a row in the portfolios table. current_balance and
// total_value are refreshed from the exchange wallet every cycle; this
// table is a read cache for the API, never the source of truth.
type Portfolio struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	AgentID        string
	CurrentBalance float64
	TotalValue     float64
	TotalTrades    int
	WinRate        float64
	UpdatedAt      time.Time
}

// GetOrCreatePortfolio returns the (userID, agentID) portfolio row, creating
// it with zeroed balances if it doesn't exist yet. Called once per analyst
// during engine startup.
func (db *DB) GetOrCreatePortfolio(ctx context.Context, userID uuid.UUID, agentID string) (*Portfolio, error) {
	p, err := db.GetPortfolio(ctx, userID, agentID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var created Portfolio
	err = db.pool.QueryRow(ctx, `
		INSERT INTO portfolios (user_id, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, agent_id) DO UPDATE SET agent_id = EXCLUDED.agent_id
		RETURNING id, user_id, agent_id, current_balance, total_value, total_trades, win_rate, updated_at
	`, userID, agentID).Scan(&created.ID, &created.UserID, &created.AgentID, &created.CurrentBalance,
		&created.TotalValue, &created.TotalTrades, &created.WinRate, &created.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPortfolio looks up a single analyst's portfolio view.
func (db *DB) GetPortfolio(ctx context.Context, userID uuid.UUID, agentID string) (*Portfolio, error) {
	var p Portfolio
	err := db.pool.QueryRow(ctx, `
		SELECT id, user_id, agent_id, current_balance, total_value, total_trades, win_rate, updated_at
		FROM portfolios WHERE user_id = $1 AND agent_id = $2
	`, userID, agentID).Scan(&p.ID, &p.UserID, &p.AgentID, &p.CurrentBalance, &p.TotalValue,
		&p.TotalTrades, &p.WinRate, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPortfolios returns every analyst portfolio row for a user (the
// portfolio summary endpoint).
func (db *DB) ListPortfolios(ctx context.Context, userID uuid.UUID) ([]Portfolio, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, user_id, agent_id, current_balance, total_value, total_trades, win_rate, updated_at
		FROM portfolios WHERE user_id = $1 ORDER BY agent_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Portfolio
	for rows.Next() {
		var p Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.AgentID, &p.CurrentBalance, &p.TotalValue,
			&p.TotalTrades, &p.WinRate, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RefreshPortfolioBalance updates the mirrored balance/value for every
// analyst row sharing a user's collaborative portfolio in one statement.
func (db *DB) RefreshPortfolioBalance(ctx context.Context, userID uuid.UUID, balance, totalValue float64) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE portfolios SET current_balance = $2, total_value = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, balance, totalValue)
	return err
}

// IncrementTradeCounters bumps total_trades (and recomputes win_rate) across
// every analyst row for a user after a trade executes.
func (db *DB) IncrementTradeCounters(ctx context.Context, userID uuid.UUID, won bool) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE portfolios
		SET total_trades = total_trades + 1,
		    win_rate = CASE
		        WHEN total_trades + 1 = 0 THEN 0
		        ELSE (win_rate * total_trades + CASE WHEN $2 THEN 1 ELSE 0 END) / (total_trades + 1)
		    END,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, won)
	return err
}
