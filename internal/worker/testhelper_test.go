package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/database/migrations"
	"github.com/OptivexIQ/optivexiq-sub002/internal/llm"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
	"github.com/OptivexIQ/optivexiq-sub002/internal/scrape"
	"github.com/OptivexIQ/optivexiq-sub002/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM answers every prompt module with schema-valid JSON, routed by
// prompt text.
func fakeLLM(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var user string
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}

		var content string
		switch {
		case strings.Contains(user, "Identify conversion-messaging gaps"):
			content = `{"gaps":["No outcome in headline","CTA buried"],"opportunities":["Lead with value"],` +
				`"risks":[],"messagingOverlap":[{"competitor":"rival","overlap":40}],` +
				`"missingObjections":["pricing"],"differentiationGaps":["No proof points"],"pricingClarityIssues":[]}`
		case strings.Contains(user, "counter-positioning angle"):
			content = `{"counters":[{"competitor":"rival","counter":"Faster time to value"}]}`
		case strings.Contains(user, "Rewrite the hero section"):
			content = `{"headline":"Ship in minutes","subheadline":"No setup","primaryCta":"Start free","secondaryCta":""}`
		case strings.Contains(user, "clearer pricing frame"):
			content = `{"valueMetric":"reports per month","anchor":"one lost deal","packagingNotes":["lead with annual"]}`
		case strings.Contains(user, "unaddressed buyer objection"):
			content = `{"objections":[{"objection":"Too expensive","response":"One recovered deal pays for a year"}]}`
		case strings.Contains(user, "differentiation claims"):
			content = `{"differentiators":[{"claim":"Deterministic scoring","proof":"Same inputs, same report"}]}`
		case strings.Contains(user, "Analyze this competitor website"):
			content = `{"summary":"Enterprise suite","strengths":["Brand"],"weaknesses":["Slow"],"positioning":"All-in-one"}`
		default:
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
			return
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 50},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

// fakeSite serves a minimal real-looking page and counts hits.
func fakeSite(t *testing.T, title string, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	html := fmt.Sprintf(`<html><head><title>%s</title></head><body><main>
<h1>%s does conversion analysis</h1>
<h2>Reports without the consulting engagement</h2>
<p>Find the messaging gaps that cost you pipeline.</p>
</main></body></html>`, title, title)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		fmt.Fprint(w, html)
	}))
}

type pipelineEnv struct {
	db       *sql.DB
	repos    *repository.Repositories
	pipeline *Pipeline
	services *service.Services
}

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, Multiplier: 1, MaxBackoff: time.Millisecond}
}

func setupPipeline(t *testing.T, llmURL string) *pipelineEnv {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repos := repository.New(db)
	cfg := &config.Config{
		BaseURL:           "http://localhost:8080",
		EncryptionKey:     []byte(strings.Repeat("k", 32)),
		WebhookSigningKey: []byte(strings.Repeat("s", 32)),
	}
	svcs, err := service.NewServices(cfg, repos, testLogger())
	if err != nil {
		t.Fatalf("failed to create services: %v", err)
	}

	client := llm.NewClient(llm.Config{BaseURL: llmURL, APIKey: "test-key", Model: "test-model"}, testLogger())
	pipeline := NewPipeline(repos, scrape.NewFetcher(testLogger()), client, svcs, testLogger())
	pipeline.retry = fastRetry()

	return &pipelineEnv{db: db, repos: repos, pipeline: pipeline, services: svcs}
}

// enqueueJob inserts a queued job and returns it freshly claimed.
func (env *pipelineEnv) enqueueJob(t *testing.T, homepage, pricing string, competitors []string) *models.ReportJob {
	t.Helper()

	now := time.Now().UTC()
	job := &models.ReportJob{
		ID:             ulid.Make().String(),
		UserID:         "user-1",
		HomepageURL:    homepage,
		PricingURL:     pricing,
		CompetitorURLs: competitors,
		Company:        "Acme",
		Segment:        "plg-saas",
		MonthlyTraffic: 1000,
		AverageDealUSD: 5000,
		Status:         models.JobStatusQueued,
		Stage:          models.StageQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := env.repos.Jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("failed to insert job: %v", err)
	}
	return job
}

func (env *pipelineEnv) claim(t *testing.T) *models.ReportJob {
	t.Helper()

	job, err := env.repos.Jobs.ClaimRunnable(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimable job")
	}
	return job
}

func (env *pipelineEnv) reload(t *testing.T, id string) *models.ReportJob {
	t.Helper()

	job, err := env.repos.Jobs.GetByID(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("reload job %s: job=%v err=%v", id, job, err)
	}
	return job
}
