package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinquorum/tradeengine/internal/db"
	"github.com/coinquorum/tradeengine/internal/exchange"
)

// AILogRecorder writes one ai_logs row per Record call and mirrors it
// to the exchange's AI-decision disclosure endpoint. The local insert is the
// audit trail of record; the exchange upload is best-effort and never blocks
// trading on failure.
type AILogRecorder struct {
	database *db.DB
	exchange exchange.Client
}

// NewAILogRecorder constructs an AILogRecorder.
func NewAILogRecorder(database *db.DB, client exchange.Client) *AILogRecorder {
	return &AILogRecorder{database: database, exchange: client}
}

// Record inserts the local audit row, then attempts the exchange mirror
// upload. Upload failure is logged, not returned: the spec requires the
// local log to survive even when the exchange's disclosure endpoint is down.
func (r *AILogRecorder) Record(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID, stage, model, input, output, explanation string) (uuid.UUID, error) {
	id, err := r.database.RecordAILog(ctx, db.AILog{
		UserID:      userID,
		OrderID:     orderID,
		Stage:       stage,
		Model:       model,
		Input:       input,
		Output:      output,
		Explanation: explanation,
	})
	if err != nil {
		return uuid.Nil, err
	}

	if r.exchange == nil {
		return id, nil
	}

	result, err := r.exchange.UploadAILog(ctx, exchange.AILogEntry{
		Stage:       stage,
		Model:       model,
		Input:       input,
		Output:      output,
		Explanation: explanation,
		Timestamp:   time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("stage", stage).Msg("AI log exchange upload failed, local audit row kept")
		return id, nil
	}

	if markErr := r.database.MarkAILogUploaded(ctx, id, result.ExchangeLogID); markErr != nil {
		log.Warn().Err(markErr).Str("stage", stage).Msg("failed to mark AI log as uploaded")
	}

	return id, nil
}
