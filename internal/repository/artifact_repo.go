package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// SQLiteArtifactRepository implements ArtifactRepository for SQLite/libsql.
type SQLiteArtifactRepository struct {
	db *sql.DB
}

// NewSQLiteArtifactRepository creates a new SQLite artifact repository.
func NewSQLiteArtifactRepository(db *sql.DB) *SQLiteArtifactRepository {
	return &SQLiteArtifactRepository{db: db}
}

// Upsert writes a stage checkpoint. A retried stage overwrites its own
// prior partial output so at most one artifact exists per (job, stage).
func (r *SQLiteArtifactRepository) Upsert(ctx context.Context, artifact *models.StageArtifact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stage_artifacts (id, job_id, stage, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id, stage) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
	`,
		artifact.ID,
		artifact.JobID,
		artifact.Stage,
		artifact.Payload,
		artifact.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stage artifact: %w", err)
	}
	return nil
}

func (r *SQLiteArtifactRepository) GetByJobAndStage(ctx context.Context, jobID string, stage models.ExecutionStage) (*models.StageArtifact, error) {
	var artifact models.StageArtifact
	var createdAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, stage, payload, created_at
		FROM stage_artifacts WHERE job_id = ? AND stage = ?
	`, jobID, stage).Scan(&artifact.ID, &artifact.JobID, &artifact.Stage, &artifact.Payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan stage artifact: %w", err)
	}

	artifact.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &artifact, nil
}

func (r *SQLiteArtifactRepository) ListByJobID(ctx context.Context, jobID string) ([]*models.StageArtifact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, stage, payload, created_at
		FROM stage_artifacts WHERE job_id = ? ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.StageArtifact
	for rows.Next() {
		var artifact models.StageArtifact
		var createdAt string
		if err := rows.Scan(&artifact.ID, &artifact.JobID, &artifact.Stage, &artifact.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage artifact: %w", err)
		}
		artifact.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		artifacts = append(artifacts, &artifact)
	}
	return artifacts, rows.Err()
}
