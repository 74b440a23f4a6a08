package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
)

// UsageService handles LLM token and cost accounting.
type UsageService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewUsageService creates a new usage service.
func NewUsageService(repos *repository.Repositories, logger *slog.Logger) *UsageService {
	return &UsageService{
		repos:  repos,
		logger: logger,
	}
}

// RecordJobUsage writes the usage row for a finished job attempt.
func (s *UsageService) RecordJobUsage(ctx context.Context, job *models.ReportJob) error {
	now := time.Now().UTC()
	record := &models.UsageRecord{
		ID:            ulid.Make().String(),
		UserID:        job.UserID,
		JobID:         job.ID,
		Date:          now.Format("2006-01-02"),
		Status:        string(job.Status),
		TokensInput:   job.TokensInput,
		TokensOutput:  job.TokensOutput,
		EstimatedCost: job.EstimatedCost,
		CreatedAt:     now,
	}
	if err := s.repos.Usage.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// GetUsageSummary aggregates a user's usage since the given time. A zero
// since defaults to the start of the current calendar month.
func (s *UsageService) GetUsageSummary(ctx context.Context, userID string, since time.Time) (*repository.UsageSummary, error) {
	if since.IsZero() {
		now := time.Now().UTC()
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	summary, err := s.repos.Usage.SummarizeByUser(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	return summary, nil
}
