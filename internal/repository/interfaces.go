// Package repository provides data access interfaces and SQLite
// implementations.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// JobRepository manages report job persistence and worker claims.
type JobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	GetByIdempotencyKey(ctx context.Context, userID, key string, since time.Time) (*models.ReportJob, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.ReportJob, error)
	Update(ctx context.Context, job *models.ReportJob) error

	// ClaimRunnable atomically claims the oldest runnable job: queued or
	// retrying with its backoff elapsed, or running with an expired
	// lease. Returns nil when nothing is claimable.
	ClaimRunnable(ctx context.Context, lease time.Duration) (*models.ReportJob, error)

	// CommitStage advances a claimed job to the given stage and extends
	// its lease. It is the per-stage checkpoint write.
	CommitStage(ctx context.Context, job *models.ReportJob, stage models.ExecutionStage, lease time.Duration) error

	// RenewLease extends the lease of a still-running job. A no-op once
	// the job has left the running state.
	RenewLease(ctx context.Context, jobID string, lease time.Duration) error

	// UpdateIfNotTerminal writes the job row only while its stored
	// status is not completed or failed. Returns whether the write
	// applied, so a worker that lost its lease cannot overwrite the
	// outcome recorded by the worker that reclaimed the job.
	UpdateIfNotTerminal(ctx context.Context, job *models.ReportJob) (bool, error)

	CountActiveByUserID(ctx context.Context, userID string) (int, error)

	// RequeueExpiredLeases flips running jobs whose lease expired before
	// the cutoff back to retrying. Used at startup recovery.
	RequeueExpiredLeases(ctx context.Context, cutoff time.Time) (int64, error)

	CountQueuedStale(ctx context.Context, olderThan time.Time) (int, error)
}

// ReportRepository manages completed canonical reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByJobID(ctx context.Context, jobID string) (*models.Report, error)
}

// ArtifactRepository manages per-stage pipeline checkpoints.
type ArtifactRepository interface {
	Upsert(ctx context.Context, artifact *models.StageArtifact) error
	GetByJobAndStage(ctx context.Context, jobID string, stage models.ExecutionStage) (*models.StageArtifact, error)
	ListByJobID(ctx context.Context, jobID string) ([]*models.StageArtifact, error)
}

// UsageRepository manages per-job usage accounting rows.
type UsageRepository interface {
	Create(ctx context.Context, record *models.UsageRecord) error
	SummarizeByUser(ctx context.Context, userID string, since time.Time) (*UsageSummary, error)
}

// UsageSummary is an aggregate over a user's usage records.
type UsageSummary struct {
	Jobs          int     `json:"jobs"`
	TokensInput   int     `json:"tokens_input"`
	TokensOutput  int     `json:"tokens_output"`
	EstimatedCost float64 `json:"estimated_cost_usd"`
}

// Repositories bundles all repository implementations.
type Repositories struct {
	Jobs      JobRepository
	Reports   ReportRepository
	Artifacts ArtifactRepository
	Usage     UsageRepository
}

// New creates SQLite-backed repositories over the given database.
func New(db *sql.DB) *Repositories {
	return &Repositories{
		Jobs:      NewSQLiteJobRepository(db),
		Reports:   NewSQLiteReportRepository(db),
		Artifacts: NewSQLiteArtifactRepository(db),
		Usage:     NewSQLiteUsageRepository(db),
	}
}
