package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
	"github.com/OptivexIQ/optivexiq-sub002/internal/crypto"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
)

var (
	// ErrJobNotFound means no job exists with the given ID. Distinct from
	// ErrAccessDenied so the HTTP layer can return 404 vs 403.
	ErrJobNotFound = errors.New("report job not found")

	// ErrAccessDenied means the job exists but belongs to another user.
	ErrAccessDenied = errors.New("access denied")

	// ErrTooManyActiveJobs means the user hit the active-job cap.
	ErrTooManyActiveJobs = errors.New("active report job limit reached")
)

// ValidationError describes a rejected submission field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Dispatcher is poked when new work becomes runnable, so a claim cycle
// happens sooner than the next poll tick.
type Dispatcher interface {
	Poke()
}

// JobService handles report job submission and reads.
type JobService struct {
	cfg        *config.Config
	repos      *repository.Repositories
	encryptor  *crypto.Encryptor
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewJobService creates a new job service.
func NewJobService(cfg *config.Config, repos *repository.Repositories, encryptor *crypto.Encryptor, logger *slog.Logger) *JobService {
	return &JobService{
		cfg:       cfg,
		repos:     repos,
		encryptor: encryptor,
		logger:    logger,
	}
}

// SetDispatcher wires the worker's claim loop into submission and stale
// status reads. Safe to leave unset; dispatch then relies on polling.
func (s *JobService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// CreateReportInput is a report submission.
type CreateReportInput struct {
	HomepageURL    string   `json:"homepage_url"`
	PricingURL     string   `json:"pricing_url,omitempty"`
	CompetitorURLs []string `json:"competitor_urls,omitempty"`
	Company        string   `json:"company,omitempty"`
	Segment        string   `json:"segment,omitempty"`
	MonthlyTraffic int      `json:"monthly_traffic,omitempty"`
	AverageDealUSD int      `json:"average_deal_usd,omitempty"`
	WebhookURL     string   `json:"webhook_url,omitempty"`
	IdempotencyKey string   `json:"-"`
}

// CreateReportOutput acknowledges an accepted submission.
type CreateReportOutput struct {
	ReportID     string `json:"report_id"`
	Status       string `json:"status"`
	StatusURL    string `json:"status_url"`
	Deduplicated bool   `json:"-"`
}

// CreateReportJob validates and enqueues a report job. A submission
// repeated with the same Idempotency-Key inside the dedup window
// resolves to the original job instead of creating a duplicate.
func (s *JobService) CreateReportJob(ctx context.Context, userID string, input CreateReportInput) (*CreateReportOutput, error) {
	if err := validateSubmission(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if input.IdempotencyKey != "" {
		since := now.Add(-constants.IdempotencyWindow)
		existing, err := s.repos.Jobs.GetByIdempotencyKey(ctx, userID, input.IdempotencyKey, since)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			return s.acknowledge(existing, true), nil
		}
	}

	active, err := s.repos.Jobs.CountActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active jobs: %w", err)
	}
	if active >= constants.MaxActiveJobsPerUser {
		return nil, ErrTooManyActiveJobs
	}

	webhookURL := input.WebhookURL
	if webhookURL != "" {
		webhookURL, err = s.encryptor.Encrypt(webhookURL)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt webhook url: %w", err)
		}
	}

	traffic := input.MonthlyTraffic
	if traffic <= 0 {
		traffic = constants.DefaultMonthlyTraffic
	}
	dealSize := input.AverageDealUSD
	if dealSize <= 0 {
		dealSize = constants.DefaultAverageDealUSD
	}

	job := &models.ReportJob{
		ID:             ulid.Make().String(),
		UserID:         userID,
		HomepageURL:    input.HomepageURL,
		PricingURL:     input.PricingURL,
		CompetitorURLs: input.CompetitorURLs,
		Company:        input.Company,
		Segment:        input.Segment,
		MonthlyTraffic: traffic,
		AverageDealUSD: dealSize,
		WebhookURL:     webhookURL,
		Status:         models.JobStatusQueued,
		Stage:          models.StageQueued,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repos.Jobs.Create(ctx, job); err != nil {
		// Two submissions raced on the same key; the index kept one row.
		// Resolve to the winner.
		if input.IdempotencyKey != "" && isUniqueViolation(err) {
			since := now.Add(-constants.IdempotencyWindow)
			existing, lookupErr := s.repos.Jobs.GetByIdempotencyKey(ctx, userID, input.IdempotencyKey, since)
			if lookupErr == nil && existing != nil {
				return s.acknowledge(existing, true), nil
			}
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("report job enqueued",
		"job_id", job.ID,
		"user_id", userID,
		"competitors", len(job.CompetitorURLs),
	)
	s.poke()

	return s.acknowledge(job, false), nil
}

// GetReportJob returns a job owned by userID. A queued job that has sat
// past the stale threshold pokes the dispatcher so polling clients do
// not wait out a missed tick.
func (s *JobService) GetReportJob(ctx context.Context, userID, jobID string) (*models.ReportJob, error) {
	job, err := s.repos.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.UserID != userID {
		return nil, ErrAccessDenied
	}

	if job.Status == models.JobStatusQueued && time.Since(job.CreatedAt) > constants.StaleQueuedThreshold {
		s.logger.Debug("stale queued job observed on status read", "job_id", job.ID)
		s.poke()
	}

	s.decryptWebhookURL(job)
	return job, nil
}

// GetReport returns the completed report document for a job, or nil
// while the job is still in flight.
func (s *JobService) GetReport(ctx context.Context, userID, jobID string) (*models.Report, error) {
	if _, err := s.GetReportJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	report, err := s.repos.Reports.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// ListReportJobs returns the user's jobs, newest first.
func (s *JobService) ListReportJobs(ctx context.Context, userID string, limit, offset int) ([]*models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	jobs, err := s.repos.Jobs.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	for _, job := range jobs {
		s.decryptWebhookURL(job)
	}
	return jobs, nil
}

func (s *JobService) acknowledge(job *models.ReportJob, deduplicated bool) *CreateReportOutput {
	return &CreateReportOutput{
		ReportID:     job.ID,
		Status:       string(job.Status),
		StatusURL:    fmt.Sprintf("%s/api/v1/reports/%s", s.cfg.BaseURL, job.ID),
		Deduplicated: deduplicated,
	}
}

func (s *JobService) poke() {
	if s.dispatcher != nil {
		s.dispatcher.Poke()
	}
}

func (s *JobService) decryptWebhookURL(job *models.ReportJob) {
	if job.WebhookURL == "" {
		return
	}
	plain, err := s.encryptor.Decrypt(job.WebhookURL)
	if err != nil {
		s.logger.Warn("failed to decrypt webhook url", "job_id", job.ID, "error", err)
		job.WebhookURL = ""
		return
	}
	job.WebhookURL = plain
}

func validateSubmission(input CreateReportInput) error {
	if input.HomepageURL == "" {
		return &ValidationError{Field: "homepage_url", Message: "is required"}
	}
	if err := validateURL(input.HomepageURL); err != nil {
		return &ValidationError{Field: "homepage_url", Message: err.Error()}
	}
	if input.PricingURL != "" {
		if err := validateURL(input.PricingURL); err != nil {
			return &ValidationError{Field: "pricing_url", Message: err.Error()}
		}
	}
	if input.WebhookURL != "" {
		if err := validateURL(input.WebhookURL); err != nil {
			return &ValidationError{Field: "webhook_url", Message: err.Error()}
		}
	}
	if len(input.CompetitorURLs) > constants.MaxCompetitorURLs {
		return &ValidationError{
			Field:   "competitor_urls",
			Message: fmt.Sprintf("at most %d competitors allowed", constants.MaxCompetitorURLs),
		}
	}
	for _, raw := range input.CompetitorURLs {
		if err := validateURL(raw); err != nil {
			return &ValidationError{Field: "competitor_urls", Message: fmt.Sprintf("%s: %s", raw, err)}
		}
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
