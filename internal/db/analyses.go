package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Analysis mirrors a row in the analyses table: the structured output of
// one analyst invocation at one pipeline stage.
type Analysis struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	CycleNumber      int64
	AnalystID        string
	Symbol           string
	Stage            string
	Recommendation   string
	Confidence       float64
	Thesis           string
	PriceTargetBull  *float64
	PriceTargetBase  *float64
	PriceTargetBear  *float64
	StopLoss         *float64
	Leverage         *float64
	PositionSize     *float64
	CreatedAt        time.Time
}

// RecordAnalysis inserts one analyst's structured result for a cycle/stage.
func (db *DB) RecordAnalysis(ctx context.Context, a Analysis) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx, `
		INSERT INTO analyses (user_id, cycle_number, analyst_id, symbol, stage, recommendation,
			confidence, thesis, price_target_bull, price_target_base, price_target_bear,
			stop_loss, leverage, position_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, a.UserID, a.CycleNumber, a.AnalystID, a.Symbol, a.Stage, a.Recommendation, a.Confidence,
		a.Thesis, a.PriceTargetBull, a.PriceTargetBase, a.PriceTargetBear, a.StopLoss, a.Leverage,
		a.PositionSize).Scan(&id)
	return id, err
}

// ListAnalysesByCycle returns every analyst result recorded for a cycle.
func (db *DB) ListAnalysesByCycle(ctx context.Context, userID uuid.UUID, cycleNumber int64) ([]Analysis, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, user_id, cycle_number, analyst_id, symbol, stage, recommendation, confidence,
			COALESCE(thesis, ''), price_target_bull, price_target_base, price_target_bear,
			stop_loss, leverage, position_size, created_at
		FROM analyses WHERE user_id = $1 AND cycle_number = $2 ORDER BY created_at
	`, userID, cycleNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.CycleNumber, &a.AnalystID, &a.Symbol, &a.Stage,
			&a.Recommendation, &a.Confidence, &a.Thesis, &a.PriceTargetBull, &a.PriceTargetBase,
			&a.PriceTargetBear, &a.StopLoss, &a.Leverage, &a.PositionSize, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
