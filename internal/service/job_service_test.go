package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

type spyDispatcher struct {
	pokes int
}

func (d *spyDispatcher) Poke() { d.pokes++ }

func TestCreateReportJob(t *testing.T) {
	svc, repos := setupJobService(t)
	dispatcher := &spyDispatcher{}
	svc.SetDispatcher(dispatcher)
	ctx := context.Background()

	out, err := svc.CreateReportJob(ctx, "user-1", validInput())
	if err != nil {
		t.Fatalf("CreateReportJob: %v", err)
	}
	if out.ReportID == "" {
		t.Fatal("expected a report ID")
	}
	if out.Status != string(models.JobStatusQueued) {
		t.Errorf("status = %q, want queued", out.Status)
	}
	if want := "http://localhost:8080/api/v1/reports/" + out.ReportID; out.StatusURL != want {
		t.Errorf("status_url = %q, want %q", out.StatusURL, want)
	}
	if dispatcher.pokes != 1 {
		t.Errorf("dispatcher pokes = %d, want 1", dispatcher.pokes)
	}

	job, err := repos.Jobs.GetByID(ctx, out.ReportID)
	if err != nil || job == nil {
		t.Fatalf("persisted job lookup: job=%v err=%v", job, err)
	}
	if job.Stage != models.StageQueued || job.Status != models.JobStatusQueued {
		t.Errorf("job state = %s/%s, want queued/queued", job.Status, job.Stage)
	}
	if job.MonthlyTraffic != constants.DefaultMonthlyTraffic || job.AverageDealUSD != constants.DefaultAverageDealUSD {
		t.Errorf("defaults not applied: traffic=%d deal=%d", job.MonthlyTraffic, job.AverageDealUSD)
	}
}

func TestCreateReportJobValidation(t *testing.T) {
	svc, _ := setupJobService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateReportInput)
		field  string
	}{
		{"missing homepage", func(in *CreateReportInput) { in.HomepageURL = "" }, "homepage_url"},
		{"bad scheme", func(in *CreateReportInput) { in.HomepageURL = "ftp://acme.io" }, "homepage_url"},
		{"no host", func(in *CreateReportInput) { in.HomepageURL = "https://" }, "homepage_url"},
		{"bad pricing url", func(in *CreateReportInput) { in.PricingURL = "not a url at all\x7f" }, "pricing_url"},
		{"bad competitor url", func(in *CreateReportInput) { in.CompetitorURLs = []string{"javascript:alert(1)"} }, "competitor_urls"},
		{"too many competitors", func(in *CreateReportInput) {
			in.CompetitorURLs = []string{
				"https://a.example", "https://b.example", "https://c.example",
				"https://d.example", "https://e.example", "https://f.example",
			}
		}, "competitor_urls"},
		{"bad webhook url", func(in *CreateReportInput) { in.WebhookURL = "ws://hooks.example" }, "webhook_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			_, err := svc.CreateReportJob(ctx, "user-1", input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestCreateReportJobIdempotency(t *testing.T) {
	svc, _ := setupJobService(t)
	ctx := context.Background()

	input := validInput()
	input.IdempotencyKey = "key-abc"

	first, err := svc.CreateReportJob(ctx, "user-1", input)
	if err != nil {
		t.Fatalf("first submission: %v", err)
	}
	second, err := svc.CreateReportJob(ctx, "user-1", input)
	if err != nil {
		t.Fatalf("second submission: %v", err)
	}
	if second.ReportID != first.ReportID {
		t.Errorf("duplicate submission created a new job: %s vs %s", second.ReportID, first.ReportID)
	}
	if !second.Deduplicated {
		t.Error("second submission must be marked deduplicated")
	}

	// Same key, different user: keys are scoped per user.
	other, err := svc.CreateReportJob(ctx, "user-2", input)
	if err != nil {
		t.Fatalf("other user submission: %v", err)
	}
	if other.ReportID == first.ReportID {
		t.Error("idempotency keys must not dedupe across users")
	}
}

func TestCreateReportJobActiveCap(t *testing.T) {
	svc, _ := setupJobService(t)
	ctx := context.Background()

	for i := 0; i < constants.MaxActiveJobsPerUser; i++ {
		if _, err := svc.CreateReportJob(ctx, "user-1", validInput()); err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
	}

	_, err := svc.CreateReportJob(ctx, "user-1", validInput())
	if !errors.Is(err, ErrTooManyActiveJobs) {
		t.Errorf("err = %v, want ErrTooManyActiveJobs", err)
	}

	// Another user is unaffected by the first user's cap.
	if _, err := svc.CreateReportJob(ctx, "user-2", validInput()); err != nil {
		t.Errorf("other user blocked: %v", err)
	}
}

func TestWebhookURLEncryptedAtRest(t *testing.T) {
	svc, repos := setupJobService(t)
	ctx := context.Background()

	input := validInput()
	input.WebhookURL = "https://hooks.example.com/optivexiq?token=secret"

	out, err := svc.CreateReportJob(ctx, "user-1", input)
	if err != nil {
		t.Fatalf("CreateReportJob: %v", err)
	}

	raw, err := repos.Jobs.GetByID(ctx, out.ReportID)
	if err != nil {
		t.Fatalf("raw lookup: %v", err)
	}
	if raw.WebhookURL == input.WebhookURL {
		t.Error("webhook url stored in plaintext")
	}
	if strings.Contains(raw.WebhookURL, "token=secret") {
		t.Error("webhook token leaked into stored value")
	}

	job, err := svc.GetReportJob(ctx, "user-1", out.ReportID)
	if err != nil {
		t.Fatalf("GetReportJob: %v", err)
	}
	if job.WebhookURL != input.WebhookURL {
		t.Errorf("service read returned %q, want decrypted original", job.WebhookURL)
	}
}

func TestGetReportJobOwnership(t *testing.T) {
	svc, _ := setupJobService(t)
	ctx := context.Background()

	out, err := svc.CreateReportJob(ctx, "user-1", validInput())
	if err != nil {
		t.Fatalf("CreateReportJob: %v", err)
	}

	if _, err := svc.GetReportJob(ctx, "user-1", out.ReportID); err != nil {
		t.Errorf("owner read failed: %v", err)
	}
	if _, err := svc.GetReportJob(ctx, "user-2", out.ReportID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("foreign read err = %v, want ErrAccessDenied", err)
	}
	if _, err := svc.GetReportJob(ctx, "user-1", "01JFNOPE00000000000000000"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("missing read err = %v, want ErrJobNotFound", err)
	}
}

func TestGetReportJobPokesOnStaleQueued(t *testing.T) {
	svc, repos := setupJobService(t)
	dispatcher := &spyDispatcher{}
	svc.SetDispatcher(dispatcher)
	ctx := context.Background()

	out, err := svc.CreateReportJob(ctx, "user-1", validInput())
	if err != nil {
		t.Fatalf("CreateReportJob: %v", err)
	}
	pokesAfterCreate := dispatcher.pokes

	// Fresh queued job: no poke on read.
	if _, err := svc.GetReportJob(ctx, "user-1", out.ReportID); err != nil {
		t.Fatalf("GetReportJob: %v", err)
	}
	if dispatcher.pokes != pokesAfterCreate {
		t.Error("fresh queued job must not poke the dispatcher")
	}

	// Backdate past the stale threshold.
	job, _ := repos.Jobs.GetByID(ctx, out.ReportID)
	stale := time.Now().UTC().Add(-constants.StaleQueuedThreshold - time.Minute)
	job.CreatedAt = stale
	if err := repos.Jobs.Update(ctx, job); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if _, err := svc.GetReportJob(ctx, "user-1", out.ReportID); err != nil {
		t.Fatalf("GetReportJob: %v", err)
	}
	if dispatcher.pokes != pokesAfterCreate+1 {
		t.Errorf("stale queued read pokes = %d, want %d", dispatcher.pokes, pokesAfterCreate+1)
	}
}

func TestGetReportBeforeCompletion(t *testing.T) {
	svc, _ := setupJobService(t)
	ctx := context.Background()

	out, err := svc.CreateReportJob(ctx, "user-1", validInput())
	if err != nil {
		t.Fatalf("CreateReportJob: %v", err)
	}

	report, err := svc.GetReport(ctx, "user-1", out.ReportID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if report != nil {
		t.Error("report must be nil while the job is in flight")
	}
}

func TestListReportJobs(t *testing.T) {
	svc, _ := setupJobService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateReportJob(ctx, "user-1", validInput()); err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
	}

	jobs, err := svc.ListReportJobs(ctx, "user-1", 0, 0)
	if err != nil {
		t.Fatalf("ListReportJobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("got %d jobs, want 3", len(jobs))
	}

	jobs, err = svc.ListReportJobs(ctx, "user-1", 2, 0)
	if err != nil {
		t.Fatalf("ListReportJobs with limit: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("got %d jobs, want limit 2 respected", len(jobs))
	}

	jobs, err = svc.ListReportJobs(ctx, "user-2", 0, 0)
	if err != nil {
		t.Fatalf("ListReportJobs other user: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("got %d jobs for other user, want 0", len(jobs))
	}
}
