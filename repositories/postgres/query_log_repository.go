package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/billbuddy/models"
	"github.com/upb/billbuddy/repositories"
	"go.uber.org/zap"
)

// QueryLogRepository implements the repositories.QueryLogRepository interface
type QueryLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewQueryLogRepository creates a new query log repository
func NewQueryLogRepository(db *DB, logger *zap.Logger) repositories.QueryLogRepository {
	return &QueryLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a query log entry
func (r *QueryLogRepository) Insert(ctx context.Context, entry *models.QueryLogEntry) error {
	query := `
		INSERT INTO query_logs (
			id, kind, session_id, query, response, latency_ms, error_message, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	var response sql.NullString
	if len(entry.Response) > 0 {
		response = sql.NullString{String: string(entry.Response), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Kind),
		entry.SessionID,
		entry.Query,
		response,
		nullInt64(entry.LatencyMs),
		entry.Error,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert query log entry: %w", err)
	}

	r.logger.Debug("query log entry inserted",
		zap.String("id", entry.ID.String()),
		zap.String("kind", string(entry.Kind)))
	return nil
}
