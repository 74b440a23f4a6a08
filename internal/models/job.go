// Package models defines the persistence and wire types shared across
// repositories, services, and the HTTP layer.
package models

import "time"

// JobStatus is the coarse lifecycle state of a report job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ExecutionStage is the fine-grained position of a job inside the
// pipeline. Stages only ever advance; a retried attempt resumes at the
// stage that failed.
type ExecutionStage string

const (
	StageQueued              ExecutionStage = "queued"
	StageScrapingHomepage    ExecutionStage = "scraping_homepage"
	StageScrapingPricing     ExecutionStage = "scraping_pricing"
	StageScrapingCompetitors ExecutionStage = "scraping_competitors"
	StageGapAnalysis         ExecutionStage = "gap_analysis"
	StageCompetitorSynthesis ExecutionStage = "competitor_synthesis"
	StageScoring             ExecutionStage = "scoring"
	StageRewriteGeneration   ExecutionStage = "rewrite_generation"
	StageFinalizing          ExecutionStage = "finalizing"
	StageComplete            ExecutionStage = "complete"
	StageFailed              ExecutionStage = "failed"
)

// PipelineStages lists the work stages in execution order. StageQueued,
// StageComplete and StageFailed are lifecycle markers, not work stages.
var PipelineStages = []ExecutionStage{
	StageScrapingHomepage,
	StageScrapingPricing,
	StageScrapingCompetitors,
	StageGapAnalysis,
	StageCompetitorSynthesis,
	StageScoring,
	StageRewriteGeneration,
	StageFinalizing,
}

// Index returns the position of s in PipelineStages, or -1 for
// lifecycle markers.
func (s ExecutionStage) Index() int {
	for i, stage := range PipelineStages {
		if stage == s {
			return i
		}
	}
	return -1
}

// Progress maps a stage to a 0-100 completion percentage. Progress is
// monotonic across the stage order.
func (s ExecutionStage) Progress() int {
	switch s {
	case StageComplete:
		return 100
	case StageQueued, StageFailed:
		return 0
	}
	idx := s.Index()
	if idx < 0 {
		return 0
	}
	return idx * 100 / len(PipelineStages)
}

// ReportJob is a durable unit of report-generation work.
type ReportJob struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	HomepageURL    string         `json:"homepage_url"`
	PricingURL     string         `json:"pricing_url,omitempty"`
	CompetitorURLs []string       `json:"competitor_urls"`
	Company        string         `json:"company,omitempty"`
	Segment        string         `json:"segment,omitempty"`
	MonthlyTraffic int            `json:"monthly_traffic,omitempty"`
	AverageDealUSD int            `json:"average_deal_usd,omitempty"`
	WebhookURL     string         `json:"webhook_url,omitempty"`
	Status         JobStatus      `json:"status"`
	Stage          ExecutionStage `json:"execution_stage"`
	Progress       int            `json:"execution_progress"`
	AttemptCount   int            `json:"attempt_count"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Error          string         `json:"error,omitempty"`
	TokensInput    int            `json:"tokens_input"`
	TokensOutput   int            `json:"tokens_output"`
	EstimatedCost  float64        `json:"estimated_cost_usd"`
	LeaseExpiresAt *time.Time     `json:"lease_expires_at,omitempty"`
	NextAttemptAt  *time.Time     `json:"next_attempt_at,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsTerminal reports whether the job can no longer change state.
func (j *ReportJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// StageArtifact is the persisted output of one pipeline stage. It lets
// a retried attempt resume downstream of already-completed stages.
type StageArtifact struct {
	ID        string         `json:"id"`
	JobID     string         `json:"job_id"`
	Stage     ExecutionStage `json:"stage"`
	Payload   string         `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Report is a completed, immutable conversion-gap report row. The
// canonical document itself lives in Document as JSON.
type Report struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	UserID       string    `json:"user_id"`
	Document     string    `json:"document"`
	ModelVersion string    `json:"scoring_model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsageRecord captures per-job LLM token and cost accounting.
type UsageRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	JobID         string    `json:"job_id"`
	Date          string    `json:"date"`
	Status        string    `json:"status"`
	TokensInput   int       `json:"tokens_input"`
	TokensOutput  int       `json:"tokens_output"`
	EstimatedCost float64   `json:"estimated_cost_usd"`
	CreatedAt     time.Time `json:"created_at"`
}
