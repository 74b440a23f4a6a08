package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// SQLiteReportRepository implements ReportRepository for SQLite/libsql.
type SQLiteReportRepository struct {
	db *sql.DB
}

// NewSQLiteReportRepository creates a new SQLite report repository.
func NewSQLiteReportRepository(db *sql.DB) *SQLiteReportRepository {
	return &SQLiteReportRepository{db: db}
}

func (r *SQLiteReportRepository) Create(ctx context.Context, report *models.Report) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, job_id, user_id, document, scoring_model_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.JobID,
		report.UserID,
		report.Document,
		report.ModelVersion,
		report.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *SQLiteReportRepository) GetByJobID(ctx context.Context, jobID string) (*models.Report, error) {
	var report models.Report
	var createdAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, user_id, document, scoring_model_version, created_at
		FROM reports WHERE job_id = ?
	`, jobID).Scan(&report.ID, &report.JobID, &report.UserID, &report.Document, &report.ModelVersion, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	report.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &report, nil
}
