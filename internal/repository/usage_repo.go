package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// SQLiteUsageRepository implements UsageRepository for SQLite/libsql.
type SQLiteUsageRepository struct {
	db *sql.DB
}

// NewSQLiteUsageRepository creates a new SQLite usage repository.
func NewSQLiteUsageRepository(db *sql.DB) *SQLiteUsageRepository {
	return &SQLiteUsageRepository{db: db}
}

func (r *SQLiteUsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, user_id, job_id, date, status, tokens_input, tokens_output, estimated_cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.UserID,
		record.JobID,
		record.Date,
		record.Status,
		record.TokensInput,
		record.TokensOutput,
		record.EstimatedCost,
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

func (r *SQLiteUsageRepository) SummarizeByUser(ctx context.Context, userID string, since time.Time) (*UsageSummary, error) {
	var summary UsageSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(tokens_input), 0),
			COALESCE(SUM(tokens_output), 0),
			COALESCE(SUM(estimated_cost_usd), 0)
		FROM usage_records
		WHERE user_id = ? AND created_at >= ?
	`, userID, since.Format(time.RFC3339)).Scan(
		&summary.Jobs,
		&summary.TokensInput,
		&summary.TokensOutput,
		&summary.EstimatedCost,
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return &summary, nil
}
