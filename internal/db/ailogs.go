package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AILog mirrors a row in the ai_logs table. Each analyst invocation across
// the deliberation pipeline gets one row, independent of whether it ever
// results in a trade.
type AILog struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	OrderID            *uuid.UUID
	Stage              string
	Model              string
	Input              string
	Output             string
	Explanation        string
	UploadedToExchange bool
	ExchangeLogID      string
	CreatedAt          time.Time
}

// RecordAILog inserts an AI invocation log row.
func (db *DB) RecordAILog(ctx context.Context, entry AILog) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx, `
		INSERT INTO ai_logs (user_id, order_id, stage, model, input, output, explanation,
			uploaded_to_exchange, exchange_log_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, entry.UserID, entry.OrderID, entry.Stage, entry.Model, entry.Input, entry.Output,
		entry.Explanation, entry.UploadedToExchange, entry.ExchangeLogID).Scan(&id)
	return id, err
}

// MarkAILogUploaded records that the mirrored exchange AI-log upload
// succeeded after the fact (upload happens after the local insert so a
// failed upload never blocks the local audit trail).
func (db *DB) MarkAILogUploaded(ctx context.Context, id uuid.UUID, exchangeLogID string) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE ai_logs SET uploaded_to_exchange = true, exchange_log_id = $2 WHERE id = $1
	`, id, exchangeLogID)
	return err
}

// ListAILogs returns recent AI log entries for a user, most recent first.
func (db *DB) ListAILogs(ctx context.Context, userID uuid.UUID, limit int) ([]AILog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, user_id, order_id, stage, model, input, output, COALESCE(explanation, ''),
			uploaded_to_exchange, COALESCE(exchange_log_id, ''), created_at
		FROM ai_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AILog
	for rows.Next() {
		var a AILog
		if err := rows.Scan(&a.ID, &a.UserID, &a.OrderID, &a.Stage, &a.Model, &a.Input, &a.Output,
			&a.Explanation, &a.UploadedToExchange, &a.ExchangeLogID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
