package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
	"github.com/OptivexIQ/optivexiq-sub002/internal/insight"
	"github.com/OptivexIQ/optivexiq-sub002/internal/llm"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
	"github.com/OptivexIQ/optivexiq-sub002/internal/prompts"
	"github.com/OptivexIQ/optivexiq-sub002/internal/report"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
	"github.com/OptivexIQ/optivexiq-sub002/internal/scrape"
	"github.com/OptivexIQ/optivexiq-sub002/internal/service"
)

// Pipeline executes a claimed report job stage by stage. Each completed
// stage checkpoints an artifact and renews the job lease, so a retried
// or re-claimed attempt resumes where the last one stopped instead of
// starting over.
type Pipeline struct {
	repos    *repository.Repositories
	fetcher  *scrape.Fetcher
	llm      *llm.Client
	analyzer *insight.Analyzer
	retry    llm.RetryPolicy
	usage    *service.UsageService
	webhooks *service.WebhookService
	archive  *service.ArchiveService
	lease    time.Duration
	logger   *slog.Logger
}

// NewPipeline creates a pipeline over the shared repositories and
// services.
func NewPipeline(repos *repository.Repositories, fetcher *scrape.Fetcher, client *llm.Client, svcs *service.Services, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		repos:    repos,
		fetcher:  fetcher,
		llm:      client,
		analyzer: insight.NewAnalyzer(client, logger),
		retry:    llm.DefaultRetryPolicy(),
		usage:    svcs.Usage,
		webhooks: svcs.Webhook,
		archive:  svcs.Archive,
		lease:    constants.ClaimLeaseDuration,
		logger:   logger.With("component", "pipeline"),
	}
}

// Run executes the job to a terminal or retryable state. It never
// panics the worker: every failure lands in the job row.
func (p *Pipeline) Run(ctx context.Context, job *models.ReportJob) {
	if err := p.execute(ctx, job); err != nil {
		p.handleFailure(ctx, job, err)
	}
}

func (p *Pipeline) execute(ctx context.Context, job *models.ReportJob) error {
	start := 0
	if idx := job.Stage.Index(); idx >= 0 {
		start = idx
	}

	for _, stage := range models.PipelineStages[start:] {
		if err := p.repos.Jobs.CommitStage(ctx, job, stage, p.lease); err != nil {
			return fmt.Errorf("failed to commit stage %s: %w", stage, err)
		}
		p.logger.Info("stage started", "job_id", job.ID, "stage", stage, "attempt", job.AttemptCount+1)

		if err := p.runStage(ctx, job, stage); err != nil {
			return err
		}
	}

	return p.complete(ctx, job)
}

func (p *Pipeline) runStage(ctx context.Context, job *models.ReportJob, stage models.ExecutionStage) error {
	switch stage {
	case models.StageScrapingHomepage:
		return p.scrapeHomepage(ctx, job)
	case models.StageScrapingPricing:
		return p.scrapePricing(ctx, job)
	case models.StageScrapingCompetitors:
		return p.scrapeCompetitors(ctx, job)
	case models.StageGapAnalysis:
		return p.runGapAnalysis(ctx, job)
	case models.StageCompetitorSynthesis:
		return p.runCompetitorSynthesis(ctx, job)
	case models.StageScoring:
		return p.runScoring(ctx, job)
	case models.StageRewriteGeneration:
		return p.runRewrites(ctx, job)
	case models.StageFinalizing:
		return p.finalize(ctx, job)
	default:
		return fmt.Errorf("unknown pipeline stage %q", stage)
	}
}

// competitorPage is one competitor's scrape outcome. An unreachable
// site is recorded, never fatal to the stage.
type competitorPage struct {
	URL     string              `json:"url"`
	Content *scrape.PageContent `json:"content,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// synthesisArtifact is the competitor_synthesis checkpoint.
type synthesisArtifact struct {
	Competitors []models.CompetitorResult `json:"competitors"`
	Counters    *prompts.CountersOutput   `json:"counters,omitempty"`
}

// rewriteArtifact is the rewrite_generation checkpoint.
type rewriteArtifact struct {
	Hero            *prompts.HeroOutput            `json:"hero"`
	Pricing         *prompts.PricingOutput         `json:"pricing"`
	Objections      *prompts.ObjectionsOutput      `json:"objections"`
	Differentiation *prompts.DifferentiationOutput `json:"differentiation"`
}

func (p *Pipeline) scrapeHomepage(ctx context.Context, job *models.ReportJob) error {
	content, err := p.fetchPage(ctx, job.HomepageURL)
	if err != nil {
		return err
	}
	return p.saveArtifact(ctx, job, models.StageScrapingHomepage, content)
}

// scrapePricing is best-effort: the pricing page is optional input, so
// a fetch failure records an empty page rather than failing the job.
func (p *Pipeline) scrapePricing(ctx context.Context, job *models.ReportJob) error {
	content := &scrape.PageContent{}
	if job.PricingURL != "" {
		fetched, err := p.fetchPage(ctx, job.PricingURL)
		if err != nil {
			p.logger.Warn("pricing page scrape failed, continuing without it",
				"job_id", job.ID, "url", job.PricingURL, "error", err)
		} else {
			content = fetched
		}
	}
	return p.saveArtifact(ctx, job, models.StageScrapingPricing, content)
}

func (p *Pipeline) scrapeCompetitors(ctx context.Context, job *models.ReportJob) error {
	pages := make([]competitorPage, len(job.CompetitorURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.CompetitorScrapeConcurrency)
	for i, rawURL := range job.CompetitorURLs {
		i, rawURL := i, rawURL
		g.Go(func() error {
			pages[i] = competitorPage{URL: rawURL}
			content, err := p.fetchPage(gctx, rawURL)
			if err != nil {
				p.logger.Warn("competitor scrape failed", "job_id", job.ID, "url", rawURL, "error", err)
				pages[i].Error = err.Error()
				return nil
			}
			pages[i].Content = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return p.saveArtifact(ctx, job, models.StageScrapingCompetitors, pages)
}

func (p *Pipeline) runGapAnalysis(ctx context.Context, job *models.ReportJob) error {
	homepage, err := loadArtifact[scrape.PageContent](ctx, p, job.ID, models.StageScrapingHomepage)
	if err != nil {
		return err
	}
	pricing, err := loadArtifact[scrape.PageContent](ctx, p, job.ID, models.StageScrapingPricing)
	if err != nil {
		return err
	}
	pages, err := loadArtifact[[]competitorPage](ctx, p, job.ID, models.StageScrapingCompetitors)
	if err != nil {
		return err
	}

	module := prompts.GapAnalysis(p.profile(job), homepage, pricingOrNil(pricing), competitorPreviews(*pages))
	raw, err := p.callModule(ctx, job, module)
	if err != nil {
		return err
	}
	gap, err := prompts.ParseGapAnalysis(raw)
	if err != nil {
		return err
	}

	return p.saveArtifact(ctx, job, models.StageGapAnalysis, gap)
}

func (p *Pipeline) runCompetitorSynthesis(ctx context.Context, job *models.ReportJob) error {
	pages, err := loadArtifact[[]competitorPage](ctx, p, job.ID, models.StageScrapingCompetitors)
	if err != nil {
		return err
	}

	var scraped []*scrape.PageContent
	for _, page := range *pages {
		if page.Error == "" && page.Content != nil {
			scraped = append(scraped, page.Content)
		}
	}

	analyzed := &insight.Result{}
	if len(scraped) > 0 {
		analyzed, err = p.analyzer.Analyze(ctx, scraped)
		if err != nil {
			return err
		}
		job.TokensInput += analyzed.TokensInput
		job.TokensOutput += analyzed.TokensOutput
		job.EstimatedCost += analyzed.CostUSD
	}

	// Merge back in submission order: scrape failures keep their slot so
	// the report reflects every requested competitor.
	merged := make([]models.CompetitorResult, 0, len(*pages))
	next := 0
	for _, page := range *pages {
		if page.Error != "" || page.Content == nil {
			merged = append(merged, models.CompetitorResult{URL: page.URL, Error: page.Error})
			continue
		}
		merged = append(merged, analyzed.Competitors[next])
		next++
	}

	artifact := synthesisArtifact{Competitors: merged}
	if insights := insightsOf(merged); len(insights) > 0 {
		raw, err := p.callModule(ctx, job, prompts.CompetitiveCounters(p.profile(job), insights))
		if err != nil {
			return err
		}
		counters, err := prompts.ParseCounters(raw)
		if err != nil {
			return err
		}
		artifact.Counters = counters
	}

	return p.saveArtifact(ctx, job, models.StageCompetitorSynthesis, artifact)
}

func (p *Pipeline) runScoring(ctx context.Context, job *models.ReportJob) error {
	gap, err := loadArtifact[prompts.GapAnalysisOutput](ctx, p, job.ID, models.StageGapAnalysis)
	if err != nil {
		return err
	}
	snapshot := report.ComputeSnapshot(gap, job.MonthlyTraffic, job.AverageDealUSD)
	return p.saveArtifact(ctx, job, models.StageScoring, snapshot)
}

func (p *Pipeline) runRewrites(ctx context.Context, job *models.ReportJob) error {
	homepage, err := loadArtifact[scrape.PageContent](ctx, p, job.ID, models.StageScrapingHomepage)
	if err != nil {
		return err
	}
	pricing, err := loadArtifact[scrape.PageContent](ctx, p, job.ID, models.StageScrapingPricing)
	if err != nil {
		return err
	}
	gap, err := loadArtifact[prompts.GapAnalysisOutput](ctx, p, job.ID, models.StageGapAnalysis)
	if err != nil {
		return err
	}
	synthesis, err := loadArtifact[synthesisArtifact](ctx, p, job.ID, models.StageCompetitorSynthesis)
	if err != nil {
		return err
	}

	profile := p.profile(job)
	artifact := rewriteArtifact{}

	raw, err := p.callModule(ctx, job, prompts.HeroRewrite(profile, homepage, gap))
	if err != nil {
		return err
	}
	if artifact.Hero, err = prompts.ParseHero(raw); err != nil {
		return err
	}

	raw, err = p.callModule(ctx, job, prompts.PricingRewrite(profile, pricingOrNil(pricing), gap))
	if err != nil {
		return err
	}
	if artifact.Pricing, err = prompts.ParsePricing(raw); err != nil {
		return err
	}

	raw, err = p.callModule(ctx, job, prompts.ObjectionHandling(profile, gap))
	if err != nil {
		return err
	}
	if artifact.Objections, err = prompts.ParseObjections(raw); err != nil {
		return err
	}

	raw, err = p.callModule(ctx, job, prompts.Differentiation(profile, insightsOf(synthesis.Competitors), gap))
	if err != nil {
		return err
	}
	if artifact.Differentiation, err = prompts.ParseDifferentiation(raw); err != nil {
		return err
	}

	return p.saveArtifact(ctx, job, models.StageRewriteGeneration, artifact)
}

func (p *Pipeline) finalize(ctx context.Context, job *models.ReportJob) error {
	// A prior attempt may have persisted the report and died before the
	// job row was marked completed. The report is immutable, so a
	// reclaimed job reuses it instead of inserting a duplicate.
	existing, err := p.repos.Reports.GetByJobID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to check for existing report: %w", err)
	}
	if existing != nil {
		return nil
	}

	gap, err := loadArtifact[prompts.GapAnalysisOutput](ctx, p, job.ID, models.StageGapAnalysis)
	if err != nil {
		return err
	}
	synthesis, err := loadArtifact[synthesisArtifact](ctx, p, job.ID, models.StageCompetitorSynthesis)
	if err != nil {
		return err
	}
	rewrites, err := loadArtifact[rewriteArtifact](ctx, p, job.ID, models.StageRewriteGeneration)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	reportID := ulid.Make().String()

	doc, err := report.BuildReport(report.BuildInput{
		ReportID:        reportID,
		Company:         job.Company,
		HomepageURL:     job.HomepageURL,
		Segment:         job.Segment,
		TrafficBaseline: job.MonthlyTraffic,
		AverageDealSize: job.AverageDealUSD,
		Gap:             gap,
		Hero:            rewrites.Hero,
		Pricing:         rewrites.Pricing,
		Objections:      rewrites.Objections,
		Differentiation: rewrites.Differentiation,
		Counters:        synthesis.Counters,
		Competitors:     synthesis.Competitors,
		CreatedAt:       now,
	})
	if err != nil {
		return err
	}

	document, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode report document: %w", err)
	}

	row := &models.Report{
		ID:           reportID,
		JobID:        job.ID,
		UserID:       job.UserID,
		Document:     string(document),
		ModelVersion: doc.ScoringModelVersion,
		CreatedAt:    now,
	}
	if err := p.repos.Reports.Create(ctx, row); err != nil {
		return fmt.Errorf("failed to persist report: %w", err)
	}

	// Archive is a mirror, never a gate on completion.
	if err := p.archive.ArchiveReport(ctx, row); err != nil {
		p.logger.Error("report archive failed", "job_id", job.ID, "report_id", reportID, "error", err)
	}

	return nil
}

func (p *Pipeline) complete(ctx context.Context, job *models.ReportJob) error {
	now := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.Stage = models.StageComplete
	job.Progress = 100
	job.Error = ""
	job.CompletedAt = &now
	job.LeaseExpiresAt = nil
	job.NextAttemptAt = nil
	job.UpdatedAt = now

	applied, err := p.repos.Jobs.UpdateIfNotTerminal(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	if !applied {
		// Another worker reclaimed the job after our lease expired and
		// already recorded an outcome. Its usage record and webhook
		// stand; duplicating them here would double-count.
		p.logger.Warn("job already finished by another worker", "job_id", job.ID)
		return nil
	}

	if err := p.usage.RecordJobUsage(ctx, job); err != nil {
		p.logger.Error("failed to record usage", "job_id", job.ID, "error", err)
	}
	p.webhooks.NotifyCompletion(ctx, job)

	p.logger.Info("job completed",
		"job_id", job.ID,
		"tokens_input", job.TokensInput,
		"tokens_output", job.TokensOutput,
	)
	return nil
}

// handleFailure routes a stage error to retry or terminal failure. The
// stage pointer is preserved so a retry resumes at the failed stage.
func (p *Pipeline) handleFailure(ctx context.Context, job *models.ReportJob, cause error) {
	now := time.Now().UTC()
	attempt := job.AttemptCount + 1
	job.AttemptCount = attempt
	job.Error = cause.Error()
	job.UpdatedAt = now

	if isTerminalError(cause) || attempt >= constants.MaxJobAttempts {
		job.Status = models.JobStatusFailed
		job.Stage = models.StageFailed
		job.CompletedAt = &now
		job.LeaseExpiresAt = nil
		job.NextAttemptAt = nil

		applied, err := p.repos.Jobs.UpdateIfNotTerminal(ctx, job)
		if err != nil {
			p.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
			return
		}
		if !applied {
			p.logger.Warn("job already finished by another worker", "job_id", job.ID)
			return
		}
		if err := p.usage.RecordJobUsage(ctx, job); err != nil {
			p.logger.Error("failed to record usage", "job_id", job.ID, "error", err)
		}
		p.webhooks.NotifyCompletion(ctx, job)

		p.logger.Error("job failed", "job_id", job.ID, "attempt", attempt, "error", cause)
		return
	}

	nextAttempt := now.Add(constants.RetryBackoff(attempt))
	job.Status = models.JobStatusRetrying
	job.LeaseExpiresAt = nil
	job.NextAttemptAt = &nextAttempt

	applied, err := p.repos.Jobs.UpdateIfNotTerminal(ctx, job)
	if err != nil {
		p.logger.Error("failed to schedule retry", "job_id", job.ID, "error", err)
		return
	}
	if !applied {
		p.logger.Warn("job already finished by another worker", "job_id", job.ID)
		return
	}

	p.logger.Warn("job scheduled for retry",
		"job_id", job.ID,
		"stage", job.Stage,
		"attempt", attempt,
		"next_attempt_at", nextAttempt.Format(time.RFC3339),
		"error", cause,
	)
}

// isTerminalError reports whether retrying cannot help.
func isTerminalError(err error) bool {
	if errors.Is(err, report.ErrCompanyResolution) {
		return true
	}
	var scrapeErr *scrape.Error
	if errors.As(err, &scrapeErr) && scrapeErr.Code == scrape.ErrCodeInvalidURL {
		return true
	}
	return false
}

func (p *Pipeline) fetchPage(ctx context.Context, rawURL string) (*scrape.PageContent, error) {
	html, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return scrape.Extract(html, rawURL, p.logger)
}

// callModule runs one prompt module with bounded retries: an LLM error
// or a schema-invalid response retries, then fails the stage.
func (p *Pipeline) callModule(ctx context.Context, job *models.ReportJob, module prompts.Module) (string, error) {
	// A stage with several modules can outlive the claim lease, so renew
	// it before each call. Best effort: a failed renewal only risks a
	// concurrent reclaim, which the terminal-write guard resolves.
	if err := p.repos.Jobs.RenewLease(ctx, job.ID, p.lease); err != nil {
		p.logger.Warn("failed to renew lease", "job_id", job.ID, "error", err)
	}

	var raw string
	err := p.retry.Do(ctx, p.logger, module.Name, func() error {
		res, err := p.llm.Call(ctx, module.System, module.User, llm.DefaultCallOptions())
		if err != nil {
			return err
		}
		cleaned := llm.CleanJSONBlock(res.Content)
		if err := prompts.Validate(module.Name, module.Schema, cleaned); err != nil {
			return err
		}
		job.TokensInput += res.InputTokens
		job.TokensOutput += res.OutputTokens
		job.EstimatedCost += res.EstimatedCostUSD
		raw = cleaned
		return nil
	})
	return raw, err
}

func (p *Pipeline) profile(job *models.ReportJob) prompts.Profile {
	company := job.Company
	if company == "" {
		company = insight.DisplayName(job.HomepageURL)
	}
	return prompts.Profile{
		Company:    company,
		WebsiteURL: job.HomepageURL,
		Segment:    job.Segment,
	}
}

func (p *Pipeline) saveArtifact(ctx context.Context, job *models.ReportJob, stage models.ExecutionStage, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s artifact: %w", stage, err)
	}
	return p.repos.Artifacts.Upsert(ctx, &models.StageArtifact{
		ID:        ulid.Make().String(),
		JobID:     job.ID,
		Stage:     stage,
		Payload:   string(data),
		CreatedAt: time.Now().UTC(),
	})
}

func loadArtifact[T any](ctx context.Context, p *Pipeline, jobID string, stage models.ExecutionStage) (*T, error) {
	artifact, err := p.repos.Artifacts.GetByJobAndStage(ctx, jobID, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s artifact: %w", stage, err)
	}
	if artifact == nil {
		return nil, fmt.Errorf("missing %s artifact for job %s", stage, jobID)
	}
	var out T
	if err := json.Unmarshal([]byte(artifact.Payload), &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s artifact: %w", stage, err)
	}
	return &out, nil
}

// competitorPreviews gives the gap-analysis module a raw-content view
// of each reachable competitor before the synthesis stage produces full
// structured insights.
func competitorPreviews(pages []competitorPage) []models.CompetitorInsight {
	var previews []models.CompetitorInsight
	for _, page := range pages {
		if page.Error != "" || page.Content == nil {
			continue
		}
		summary := page.Content.Headline
		if page.Content.Subheadline != "" {
			if summary != "" {
				summary += ". "
			}
			summary += page.Content.Subheadline
		}
		previews = append(previews, models.CompetitorInsight{
			Name:    insight.DisplayName(page.URL),
			URL:     page.URL,
			Summary: summary,
		})
	}
	return previews
}

func insightsOf(results []models.CompetitorResult) []models.CompetitorInsight {
	var out []models.CompetitorInsight
	for _, r := range results {
		if r.Insight != nil {
			out = append(out, *r.Insight)
		}
	}
	return out
}

func pricingOrNil(content *scrape.PageContent) *scrape.PageContent {
	if content == nil || content.URL == "" {
		return nil
	}
	return content
}
