package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// SQLiteJobRepository implements JobRepository for SQLite/libsql.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new SQLite job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

const jobColumns = `id, user_id, homepage_url, pricing_url, competitor_urls, company, segment,
	monthly_traffic, average_deal_usd, webhook_url, status, execution_stage, execution_progress,
	attempt_count, idempotency_key, error, tokens_input, tokens_output, estimated_cost_usd,
	lease_expires_at, next_attempt_at, started_at, completed_at, created_at, updated_at`

func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	competitors, err := json.Marshal(job.CompetitorURLs)
	if err != nil {
		return fmt.Errorf("failed to encode competitor urls: %w", err)
	}

	query := `
		INSERT INTO report_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.HomepageURL,
		nullString(job.PricingURL),
		string(competitors),
		nullString(job.Company),
		nullString(job.Segment),
		job.MonthlyTraffic,
		job.AverageDealUSD,
		nullString(job.WebhookURL),
		job.Status,
		job.Stage,
		job.Progress,
		job.AttemptCount,
		nullString(job.IdempotencyKey),
		nullString(job.Error),
		job.TokensInput,
		job.TokensOutput,
		job.EstimatedCost,
		nullTime(job.LeaseExpiresAt),
		nullTime(job.NextAttemptAt),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM report_jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (r *SQLiteJobRepository) GetByIdempotencyKey(ctx context.Context, userID, key string, since time.Time) (*models.ReportJob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM report_jobs
		WHERE user_id = ? AND idempotency_key = ? AND created_at >= ?
	`, userID, key, since.Format(time.RFC3339))
	return scanJob(row)
}

func (r *SQLiteJobRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.ReportJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM report_jobs
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ReportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobRepository) Update(ctx context.Context, job *models.ReportJob) error {
	query := `
		UPDATE report_jobs SET status = ?, execution_stage = ?, execution_progress = ?,
			attempt_count = ?, error = ?, tokens_input = ?, tokens_output = ?,
			estimated_cost_usd = ?, lease_expires_at = ?, next_attempt_at = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.Stage,
		job.Progress,
		job.AttemptCount,
		nullString(job.Error),
		job.TokensInput,
		job.TokensOutput,
		job.EstimatedCost,
		nullTime(job.LeaseExpiresAt),
		nullTime(job.NextAttemptAt),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		time.Now().UTC().Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// UpdateIfNotTerminal writes the job row unless the stored status is
// already completed or failed. It reports whether the write applied.
func (r *SQLiteJobRepository) UpdateIfNotTerminal(ctx context.Context, job *models.ReportJob) (bool, error) {
	query := `
		UPDATE report_jobs SET status = ?, execution_stage = ?, execution_progress = ?,
			attempt_count = ?, error = ?, tokens_input = ?, tokens_output = ?,
			estimated_cost_usd = ?, lease_expires_at = ?, next_attempt_at = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('completed', 'failed')
	`
	result, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.Stage,
		job.Progress,
		job.AttemptCount,
		nullString(job.Error),
		job.TokensInput,
		job.TokensOutput,
		job.EstimatedCost,
		nullTime(job.LeaseExpiresAt),
		nullTime(job.NextAttemptAt),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		time.Now().UTC().Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// ClaimRunnable atomically claims the oldest runnable job with a single
// UPDATE ... RETURNING statement. Runnable means queued, retrying with
// its backoff elapsed, or running with an expired lease (a worker died
// mid-stage and the lease was never renewed). Completed and failed jobs
// never match, so claiming against a finished job is a no-op.
func (r *SQLiteJobRepository) ClaimRunnable(ctx context.Context, lease time.Duration) (*models.ReportJob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)
	query := `
		UPDATE report_jobs
		SET status = 'running',
			started_at = COALESCE(started_at, ?),
			lease_expires_at = ?,
			next_attempt_at = NULL,
			updated_at = ?
		WHERE id = (
			SELECT id FROM report_jobs
			WHERE (status IN ('queued', 'retrying') AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
			   OR (status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at < ?)
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING ` + jobColumns + `
	`

	job, err := scanJob(tx.QueryRowContext(ctx, query,
		nowStr,
		now.Add(lease).Format(time.RFC3339),
		nowStr,
		nowStr,
		nowStr,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		// Nothing runnable. Normal, not an error.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return job, nil
}

// CommitStage checkpoints a stage transition: it advances the stage and
// progress and renews the claim lease in one write.
func (r *SQLiteJobRepository) CommitStage(ctx context.Context, job *models.ReportJob, stage models.ExecutionStage, lease time.Duration) error {
	now := time.Now().UTC()
	leaseExpiry := now.Add(lease)

	_, err := r.db.ExecContext(ctx, `
		UPDATE report_jobs
		SET execution_stage = ?, execution_progress = ?, lease_expires_at = ?, updated_at = ?
		WHERE id = ?
	`,
		stage,
		stage.Progress(),
		leaseExpiry.Format(time.RFC3339),
		now.Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to commit stage: %w", err)
	}

	job.Stage = stage
	job.Progress = stage.Progress()
	job.LeaseExpiresAt = &leaseExpiry
	job.UpdatedAt = now
	return nil
}

// RenewLease pushes the lease expiry of a running job forward. Jobs
// that have left the running state are untouched.
func (r *SQLiteJobRepository) RenewLease(ctx context.Context, jobID string, lease time.Duration) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE report_jobs
		SET lease_expires_at = ?, updated_at = ?
		WHERE id = ? AND status = 'running'
	`,
		now.Add(lease).Format(time.RFC3339),
		now.Format(time.RFC3339),
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) CountActiveByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM report_jobs
		WHERE user_id = ? AND status IN ('queued', 'running', 'retrying')
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return count, nil
}

// RequeueExpiredLeases flips running jobs whose lease expired before the
// cutoff back to retrying so the next sweep can reclaim them.
func (r *SQLiteJobRepository) RequeueExpiredLeases(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE report_jobs
		SET status = 'retrying', lease_expires_at = NULL, updated_at = ?
		WHERE status = 'running' AND lease_expires_at IS NOT NULL AND lease_expires_at < ?
	`,
		time.Now().UTC().Format(time.RFC3339),
		cutoff.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue expired leases: %w", err)
	}
	return result.RowsAffected()
}

func (r *SQLiteJobRepository) CountQueuedStale(ctx context.Context, olderThan time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM report_jobs WHERE status = 'queued' AND created_at < ?
	`, olderThan.Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count stale queued jobs: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.ReportJob, error) {
	var job models.ReportJob
	var competitors, createdAt, updatedAt string
	var pricingURL, company, segment, webhookURL, idempotencyKey, jobErr sql.NullString
	var leaseExpiresAt, nextAttemptAt, startedAt, completedAt sql.NullString

	err := row.Scan(
		&job.ID, &job.UserID, &job.HomepageURL, &pricingURL, &competitors, &company, &segment,
		&job.MonthlyTraffic, &job.AverageDealUSD, &webhookURL, &job.Status, &job.Stage, &job.Progress,
		&job.AttemptCount, &idempotencyKey, &jobErr, &job.TokensInput, &job.TokensOutput, &job.EstimatedCost,
		&leaseExpiresAt, &nextAttemptAt, &startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if competitors != "" {
		if err := json.Unmarshal([]byte(competitors), &job.CompetitorURLs); err != nil {
			return nil, fmt.Errorf("failed to decode competitor urls: %w", err)
		}
	}
	job.PricingURL = pricingURL.String
	job.Company = company.String
	job.Segment = segment.String
	job.WebhookURL = webhookURL.String
	job.IdempotencyKey = idempotencyKey.String
	job.Error = jobErr.String
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	job.LeaseExpiresAt = parseNullTime(leaseExpiresAt)
	job.NextAttemptAt = parseNullTime(nextAttemptAt)
	job.StartedAt = parseNullTime(startedAt)
	job.CompletedAt = parseNullTime(completedAt)

	return &job, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
