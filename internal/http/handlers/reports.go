package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
	"github.com/OptivexIQ/optivexiq-sub002/internal/service"
)

// ReportHandler handles report submission and polling endpoints.
type ReportHandler struct {
	jobSvc *service.JobService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(jobSvc *service.JobService) *ReportHandler {
	return &ReportHandler{jobSvc: jobSvc}
}

// CreateReportInput represents a report submission request.
//
// Submission is always asynchronous: the response carries a report ID
// and a status URL to poll. Repeating a submission with the same
// Idempotency-Key within 24 hours resolves to the original report
// instead of creating a duplicate.
type CreateReportInput struct {
	IdempotencyKey string `header:"Idempotency-Key" doc:"Optional key deduplicating retried submissions for 24 hours"`
	Body           struct {
		HomepageURL    string   `json:"homepage_url" minLength:"1" example:"https://acme.io" doc:"Homepage to analyze"`
		PricingURL     string   `json:"pricing_url,omitempty" example:"https://acme.io/pricing" doc:"Optional pricing page"`
		CompetitorURLs []string `json:"competitor_urls,omitempty" maxItems:"5" example:"[\"https://rival.com\"]" doc:"Up to 5 competitor homepages"`
		Company        string   `json:"company,omitempty" example:"Acme" doc:"Company name; derived from the homepage when omitted"`
		Segment        string   `json:"segment,omitempty" example:"plg-saas" doc:"Market segment hint for the analysis"`
		MonthlyTraffic int      `json:"monthly_traffic,omitempty" minimum:"0" example:"12000" doc:"Monthly homepage visitors for revenue modeling"`
		AverageDealUSD int      `json:"average_deal_usd,omitempty" minimum:"0" example:"8000" doc:"Average deal size in USD for revenue modeling"`
		WebhookURL     string   `json:"webhook_url,omitempty" format:"uri" example:"https://my-app.com/hooks/report-done" doc:"URL to receive a signed POST on completion"`
	}
}

// ReportAcceptedBody acknowledges an accepted submission.
type ReportAcceptedBody struct {
	ReportID  string `json:"report_id" example:"01HXYZ123ABC456DEF789" doc:"Unique report identifier (ULID)"`
	Status    string `json:"status" example:"queued" doc:"Job status at acceptance"`
	StatusURL string `json:"status_url" example:"https://api.optivexiq.com/api/v1/reports/01HXYZ123ABC456DEF789" doc:"URL to poll for progress and the finished report"`
}

// CreateReportOutput represents the submission response. Deduplicated
// submissions return 200 with the original report, fresh ones 202.
type CreateReportOutput struct {
	Status int
	Body   ReportAcceptedBody
}

// CreateReport enqueues a conversion-gap report job.
func (h *ReportHandler) CreateReport(ctx context.Context, input *CreateReportInput) (*CreateReportOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.jobSvc.CreateReportJob(ctx, userID, service.CreateReportInput{
		HomepageURL:    input.Body.HomepageURL,
		PricingURL:     input.Body.PricingURL,
		CompetitorURLs: input.Body.CompetitorURLs,
		Company:        input.Body.Company,
		Segment:        input.Body.Segment,
		MonthlyTraffic: input.Body.MonthlyTraffic,
		AverageDealUSD: input.Body.AverageDealUSD,
		WebhookURL:     input.Body.WebhookURL,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		var ve *service.ValidationError
		switch {
		case errors.As(err, &ve):
			return nil, huma.Error400BadRequest(ve.Error())
		case errors.Is(err, service.ErrTooManyActiveJobs):
			return nil, huma.Error429TooManyRequests(err.Error())
		default:
			return nil, huma.Error500InternalServerError("failed to create report: " + err.Error())
		}
	}

	status := http.StatusAccepted
	if result.Deduplicated {
		status = http.StatusOK
	}

	return &CreateReportOutput{
		Status: status,
		Body: ReportAcceptedBody{
			ReportID:  result.ReportID,
			Status:    result.Status,
			StatusURL: result.StatusURL,
		},
	}, nil
}

// GetReportInput identifies a report to poll.
type GetReportInput struct {
	ID string `path:"id" example:"01HXYZ123ABC456DEF789" doc:"Report identifier"`
}

// ReportStatusBody is the polling payload: execution progress plus the
// finished report document once the job completes.
type ReportStatusBody struct {
	ReportID     string          `json:"report_id" doc:"Report identifier"`
	Status       string          `json:"status" example:"running" doc:"Job status: queued, running, retrying, completed, failed"`
	Stage        string          `json:"stage" example:"gap_analysis" doc:"Current pipeline stage"`
	Progress     int             `json:"progress" minimum:"0" maximum:"100" example:"37" doc:"Completion percentage"`
	AttemptCount int             `json:"attempt_count" doc:"Execution attempts so far"`
	Error        string          `json:"error,omitempty" doc:"Failure reason for failed jobs"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Report       json.RawMessage `json:"report,omitempty" doc:"Conversion-gap report document; absent until the job completes"`
}

// GetReportOutput represents the polling response.
type GetReportOutput struct {
	Body ReportStatusBody
}

// GetReport returns execution status and, once completed, the report
// document.
func (h *ReportHandler) GetReport(ctx context.Context, input *GetReportInput) (*GetReportOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	job, err := h.jobSvc.GetReportJob(ctx, userID, input.ID)
	if err != nil {
		return nil, mapJobError(err)
	}

	body := statusBody(job)

	if job.Status == models.JobStatusCompleted {
		report, err := h.jobSvc.GetReport(ctx, userID, input.ID)
		if err != nil {
			return nil, mapJobError(err)
		}
		if report != nil {
			body.Report = json.RawMessage(report.Document)
		}
	}

	return &GetReportOutput{Body: body}, nil
}

// ListReportsInput represents list query parameters.
type ListReportsInput struct {
	Limit  int `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum reports to return"`
	Offset int `query:"offset" default:"0" minimum:"0" doc:"Reports to skip"`
}

// ListReportsOutput represents the list response.
type ListReportsOutput struct {
	Body struct {
		Reports []ReportStatusBody `json:"reports"`
		Count   int                `json:"count" doc:"Number of reports in this page"`
	}
}

// ListReports returns the caller's reports, newest first.
func (h *ReportHandler) ListReports(ctx context.Context, input *ListReportsInput) (*ListReportsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	jobs, err := h.jobSvc.ListReportJobs(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list reports: " + err.Error())
	}

	out := &ListReportsOutput{}
	out.Body.Reports = make([]ReportStatusBody, 0, len(jobs))
	for _, job := range jobs {
		out.Body.Reports = append(out.Body.Reports, statusBody(job))
	}
	out.Body.Count = len(out.Body.Reports)
	return out, nil
}

func statusBody(job *models.ReportJob) ReportStatusBody {
	return ReportStatusBody{
		ReportID:     job.ID,
		Status:       string(job.Status),
		Stage:        string(job.Stage),
		Progress:     job.Stage.Progress(),
		AttemptCount: job.AttemptCount,
		Error:        job.Error,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// mapJobError translates service errors to HTTP errors. Not found and
// foreign ownership stay distinct so clients can tell a bad ID from a
// wrong account.
func mapJobError(err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return huma.Error404NotFound("report not found")
	case errors.Is(err, service.ErrAccessDenied):
		return huma.Error403Forbidden("report belongs to another user")
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
