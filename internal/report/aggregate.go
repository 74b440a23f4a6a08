// Package report assembles the canonical conversion-gap report. The
// aggregator is the single write path for every derived numeric field:
// no other component sets scores independently.
package report

import (
	"errors"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
	"github.com/OptivexIQ/optivexiq-sub002/internal/prompts"
	"github.com/OptivexIQ/optivexiq-sub002/internal/revenue"
	"github.com/OptivexIQ/optivexiq-sub002/internal/scoring"
)

// ErrCompanyResolution is a terminal pipeline error: a report cannot be
// assembled without a company name from input or homepage hostname.
var ErrCompanyResolution = errors.New("company_resolution_failed")

// BuildInput carries everything the aggregator needs: the submission
// profile plus the validated outputs of every prompt module.
type BuildInput struct {
	ReportID        string
	Company         string
	HomepageURL     string
	Segment         string
	TrafficBaseline int
	AverageDealSize int

	Gap             *prompts.GapAnalysisOutput
	Hero            *prompts.HeroOutput
	Pricing         *prompts.PricingOutput
	Objections      *prompts.ObjectionsOutput
	Differentiation *prompts.DifferentiationOutput
	Counters        *prompts.CountersOutput
	Competitors     []models.CompetitorResult

	CreatedAt time.Time
}

// BuildReport assembles the canonical report document and computes all
// derived numeric fields through the scoring engine and revenue model.
func BuildReport(in BuildInput) (*models.ConversionGapReport, error) {
	company, err := resolveCompany(in.Company, in.HomepageURL)
	if err != nil {
		return nil, err
	}

	snap := ComputeSnapshot(in.Gap, in.TrafficBaseline, in.AverageDealSize)

	doc := &models.ConversionGapReport{
		ID:                   in.ReportID,
		Company:              company,
		WebsiteURL:           in.HomepageURL,
		Segment:              in.Segment,
		ConversionScore:      snap.Score.GapScore,
		FunnelRisk:           snap.FunnelRisk,
		DifferentiationScore: snap.Score.Breakdown.Differentiation,
		PricingScore:         snap.Score.Breakdown.Pricing,
		ClarityScore:         snap.Score.Breakdown.Clarity,
		ConfidenceScore:      confidenceScore(in),
		WinRateDelta:         snap.WinRateDelta,
		ThreatLevel:          snap.Score.OverallThreatLevel,
		PipelineAtRisk:       snap.Revenue.PipelineAtRisk,
		RevenueProjection:    snap.Revenue.RevenueProjection,
		ObjectionCoverage:    snap.Signals.ObjectionCoverage,
		MessagingOverlap:     snap.Signals.MessagingOverlap,
		PriorityIssues:       priorityIssues(in.Gap),
		CompetitiveMatrix:    competitiveMatrix(in.Competitors, in.Gap, in.Counters),
		Rewrites:             rewrites(in),
		ScoringBreakdown:     snap.Score.Breakdown,
		ScoringModelVersion:  snap.Score.ModelVersion,
		Status:               "completed",
		CreatedAt:            in.CreatedAt.UTC().Format(time.RFC3339),
	}
	return doc, nil
}

// resolveCompany prefers the explicit input and falls back to the
// homepage hostname without "www.".
func resolveCompany(explicit, homepageURL string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	parsed, err := url.Parse(homepageURL)
	if err == nil && parsed.Hostname() != "" {
		return strings.TrimPrefix(parsed.Hostname(), "www."), nil
	}
	return "", ErrCompanyResolution
}

// Snapshot is one deterministic scoring pass over the gap-analysis
// output: derived signals, the weighted score, and the revenue model.
type Snapshot struct {
	Signals      Signals        `json:"signals"`
	WinRateDelta int            `json:"winRateDelta"`
	FunnelRisk   int            `json:"funnelRisk"`
	Revenue      revenue.Output `json:"revenue"`
	Score        scoring.Result `json:"score"`
}

// ComputeSnapshot runs signal derivation, the gap score, the revenue
// model, and the full scoring pass. Identical inputs always reproduce
// an identical snapshot.
func ComputeSnapshot(gap *prompts.GapAnalysisOutput, trafficBaseline, averageDealSize int) Snapshot {
	signals := DeriveSignals(gap)
	gapScore := scoring.GapScore(signals.Inputs)
	funnelRisk := 100 - gapScore
	winRateDelta := int(math.Round(float64(gapScore-50) * 0.3))

	rev := revenue.ModelRevenueImpact(revenue.Input{
		WinRateDelta:    winRateDelta,
		FunnelRisk:      funnelRisk,
		TrafficBaseline: trafficBaseline,
		AverageDealSize: averageDealSize,
	})

	return Snapshot{
		Signals:      signals,
		WinRateDelta: winRateDelta,
		FunnelRisk:   funnelRisk,
		Revenue:      rev,
		Score:        scoring.Calculate(signals.Inputs, rev.PipelineAtRisk),
	}
}

// Signals are the scoring inputs derived deterministically from the
// gap-analysis output.
type Signals struct {
	Inputs            scoring.Inputs
	ObjectionCoverage models.ObjectionCoverage
	MessagingOverlap  models.MessagingOverlap
}

// DeriveSignals converts qualitative gap-analysis findings (gap counts,
// overlap percentages, unaddressed objections) into scoring inputs.
func DeriveSignals(gap *prompts.GapAnalysisOutput) Signals {
	if gap == nil {
		gap = &prompts.GapAnalysisOutput{}
	}

	var overlap models.MessagingOverlap
	for _, entry := range gap.MessagingOverlap {
		overlap.Items = append(overlap.Items, models.OverlapItem{
			Competitor: entry.Competitor,
			Overlap:    scoring.Clamp(entry.Overlap),
		})
	}

	missing := make(map[string]bool, len(gap.MissingObjections))
	for _, dim := range gap.MissingObjections {
		missing[strings.ToLower(strings.TrimSpace(dim))] = true
	}

	dimScores := make(map[string]int, len(models.ObjectionDimensions))
	total := 0
	for _, dim := range models.ObjectionDimensions {
		score := 100
		if missing[dim] {
			score = 25
		}
		dimScores[dim] = score
		total += score
	}
	objectionScore := total / len(models.ObjectionDimensions)

	return Signals{
		Inputs: scoring.Inputs{
			Clarity:           scoring.Clamp(100 - 10*len(gap.Gaps) - 5*len(gap.Risks)),
			Differentiation:   scoring.Clamp(100 - 15*len(gap.DifferentiationGaps)),
			ObjectionCoverage: objectionScore,
			OverlapAverage:    overlap.Average(),
			Pricing:           scoring.Clamp(100 - 15*len(gap.PricingClarityIssues)),
		},
		ObjectionCoverage: models.ObjectionCoverage{
			Score:           objectionScore,
			DimensionScores: dimScores,
		},
		MessagingOverlap: overlap,
	}
}

// confidenceScore reflects how complete the module outputs are: 80
// points for module coverage, 20 for competitor analysis success rate.
func confidenceScore(in BuildInput) int {
	present := 0
	for _, ok := range []bool{
		in.Gap != nil,
		in.Hero != nil,
		in.Pricing != nil,
		in.Objections != nil,
		in.Differentiation != nil,
		in.Counters != nil,
	} {
		if ok {
			present++
		}
	}

	competitorRatio := 1.0
	if len(in.Competitors) > 0 {
		succeeded := 0
		for _, c := range in.Competitors {
			if !c.Failed() {
				succeeded++
			}
		}
		competitorRatio = float64(succeeded) / float64(len(in.Competitors))
	}

	return scoring.Clamp(int(math.Round(float64(present)/6*80 + competitorRatio*20)))
}

// Priority-issue tiers.
const (
	tierNow   = "now"
	tierNext  = "next"
	tierLater = "later"
)

// priorityIssues ranks gap findings by modeled impact against effort.
// Earlier findings are treated as higher impact; effort cycles through
// rough small/medium/large buckets.
func priorityIssues(gap *prompts.GapAnalysisOutput) []models.PriorityIssue {
	if gap == nil {
		return nil
	}

	var issues []models.PriorityIssue
	for i, text := range gap.Gaps {
		impact := scoring.Clamp(90 - 12*i)
		effort := 40 + (i%3)*20
		priority := scoring.Clamp(int(math.Round(float64(impact)*0.7 + float64(100-effort)*0.3)))

		tier := tierLater
		switch {
		case priority >= 70:
			tier = tierNow
		case priority >= 45:
			tier = tierNext
		}

		issues = append(issues, models.PriorityIssue{
			Issue:          text,
			ImpactScore:    impact,
			EffortEstimate: effort,
			PriorityScore:  priority,
			Tier:           tier,
		})
	}
	return issues
}

// competitiveMatrix merges per-competitor insights, overlap percentages
// and counter-positioning into matrix rows. Failed analyses still get a
// row, flagged, so the report reflects what was attempted.
func competitiveMatrix(competitors []models.CompetitorResult, gap *prompts.GapAnalysisOutput, counters *prompts.CountersOutput) []models.CompetitorRow {
	overlapByName := make(map[string]int)
	if gap != nil {
		for _, entry := range gap.MessagingOverlap {
			overlapByName[strings.ToLower(entry.Competitor)] = entry.Overlap
		}
	}
	counterByName := make(map[string]string)
	if counters != nil {
		for _, entry := range counters.Counters {
			counterByName[strings.ToLower(entry.Competitor)] = entry.Counter
		}
	}

	var rows []models.CompetitorRow
	for _, c := range competitors {
		if c.Failed() {
			rows = append(rows, models.CompetitorRow{
				URL:            c.URL,
				AnalysisFailed: true,
				AnalysisError:  c.Error,
			})
			continue
		}

		key := strings.ToLower(c.Insight.Name)
		rows = append(rows, models.CompetitorRow{
			Name:           c.Insight.Name,
			URL:            c.Insight.URL,
			Summary:        c.Insight.Summary,
			Strengths:      c.Insight.Strengths,
			Weaknesses:     c.Insight.Weaknesses,
			Positioning:    c.Insight.Positioning,
			Counter:        counterByName[key],
			OverlapPercent: overlapByName[key],
		})
	}
	return rows
}

func rewrites(in BuildInput) models.ReportRewrites {
	var out models.ReportRewrites
	if in.Hero != nil {
		out.Hero = models.HeroRewrite{
			Headline:     in.Hero.Headline,
			Subheadline:  in.Hero.Subheadline,
			PrimaryCTA:   in.Hero.PrimaryCTA,
			SecondaryCTA: in.Hero.SecondaryCTA,
		}
	}
	if in.Pricing != nil {
		out.Pricing = models.PricingRewrite{
			ValueMetric:    in.Pricing.ValueMetric,
			Anchor:         in.Pricing.Anchor,
			PackagingNotes: in.Pricing.PackagingNotes,
		}
	}
	if in.Objections != nil {
		out.Objections = in.Objections.Objections
	}
	if in.Differentiation != nil {
		out.Differentiators = in.Differentiation.Differentiators
	}
	return out
}
