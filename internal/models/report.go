package models

// ThreatLevel is a categorical risk bucket derived from numeric signals.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

// ConversionGapReport is the canonical report document. It is assembled
// exactly once when a job finalizes and is immutable afterwards; re-runs
// produce a new job/report pair.
type ConversionGapReport struct {
	ID                   string             `json:"id"`
	Company              string             `json:"company"`
	WebsiteURL           string             `json:"websiteUrl"`
	Segment              string             `json:"segment,omitempty"`
	ConversionScore      int                `json:"conversionScore"`
	FunnelRisk           int                `json:"funnelRisk"`
	DifferentiationScore int                `json:"differentiationScore"`
	PricingScore         int                `json:"pricingScore"`
	ClarityScore         int                `json:"clarityScore"`
	ConfidenceScore      int                `json:"confidenceScore"`
	WinRateDelta         int                `json:"winRateDelta"`
	ThreatLevel          ThreatLevel        `json:"threatLevel"`
	PipelineAtRisk       int64              `json:"pipelineAtRisk"`
	RevenueProjection    RevenueProjection  `json:"revenueProjection"`
	ObjectionCoverage    ObjectionCoverage  `json:"objectionCoverage"`
	MessagingOverlap     MessagingOverlap   `json:"messagingOverlap"`
	PriorityIssues       []PriorityIssue    `json:"priorityIssues"`
	CompetitiveMatrix    []CompetitorRow    `json:"competitiveMatrix"`
	Rewrites             ReportRewrites     `json:"rewrites"`
	ScoringBreakdown     ScoringBreakdown   `json:"scoringBreakdown"`
	ScoringModelVersion  string             `json:"scoringModelVersion"`
	Status               string             `json:"status"`
	CreatedAt            string             `json:"createdAt"`
}

// RevenueProjection is the modeled revenue impact of closing the gaps.
type RevenueProjection struct {
	EstimatedLiftPercent      int   `json:"estimatedLiftPercent"`
	ModeledWinRateDelta       int   `json:"modeledWinRateDelta"`
	ProjectedPipelineRecovery int64 `json:"projectedPipelineRecovery"`
}

// ObjectionCoverage scores how well the site pre-empts buyer objections
// across a fixed set of dimensions.
type ObjectionCoverage struct {
	Score           int            `json:"score"`
	DimensionScores map[string]int `json:"dimensionScores"`
}

// ObjectionDimensions is the fixed set of scored objection dimensions.
var ObjectionDimensions = []string{"pricing", "trust", "implementation", "switching_cost", "roi"}

// MessagingOverlap holds per-competitor messaging overlap percentages.
type MessagingOverlap struct {
	Items []OverlapItem `json:"items"`
}

// OverlapItem is one competitor's messaging overlap with the subject
// site, as a 0-100 percentage.
type OverlapItem struct {
	Competitor string `json:"competitor"`
	Overlap    int    `json:"overlap"`
}

// Average returns the mean overlap across items, 0 when empty.
func (m MessagingOverlap) Average() float64 {
	if len(m.Items) == 0 {
		return 0
	}
	sum := 0
	for _, item := range m.Items {
		sum += item.Overlap
	}
	return float64(sum) / float64(len(m.Items))
}

// PriorityIssue is a ranked conversion issue with impact/effort scoring.
type PriorityIssue struct {
	Issue          string `json:"issue"`
	ImpactScore    int    `json:"impactScore"`
	EffortEstimate int    `json:"effortEstimate"`
	PriorityScore  int    `json:"priorityScore"`
	Tier           string `json:"tier"`
}

// CompetitorRow is one competitor's entry in the competitive matrix.
type CompetitorRow struct {
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Positioning     string   `json:"positioning"`
	Counter         string   `json:"counter,omitempty"`
	OverlapPercent  int      `json:"overlapPercent"`
	AnalysisFailed  bool     `json:"analysisFailed,omitempty"`
	AnalysisError   string   `json:"analysisError,omitempty"`
}

// ReportRewrites bundles the generated copy suggestions.
type ReportRewrites struct {
	Hero            HeroRewrite           `json:"hero"`
	Pricing         PricingRewrite        `json:"pricing"`
	Objections      []ObjectionResponse   `json:"objections"`
	Differentiators []DifferentiatorClaim `json:"differentiators"`
}

// HeroRewrite is the suggested above-the-fold copy.
type HeroRewrite struct {
	Headline     string `json:"headline"`
	Subheadline  string `json:"subheadline"`
	PrimaryCTA   string `json:"primaryCta"`
	SecondaryCTA string `json:"secondaryCta,omitempty"`
}

// PricingRewrite is the suggested pricing-page framing.
type PricingRewrite struct {
	ValueMetric    string   `json:"valueMetric"`
	Anchor         string   `json:"anchor"`
	PackagingNotes []string `json:"packagingNotes"`
}

// ObjectionResponse pairs a buyer objection with suggested copy.
type ObjectionResponse struct {
	Objection string `json:"objection"`
	Response  string `json:"response"`
}

// DifferentiatorClaim pairs a differentiation claim with its proof.
type DifferentiatorClaim struct {
	Claim string `json:"claim"`
	Proof string `json:"proof"`
}

// ScoringBreakdown records every input and intermediate signal of the
// scoring model, so threat levels and tiers are re-derivable from it.
type ScoringBreakdown struct {
	Clarity                 int         `json:"clarity"`
	Differentiation         int         `json:"differentiation"`
	ObjectionCoverage       int         `json:"objectionCoverage"`
	OverlapAverage          int         `json:"overlapAverage"`
	Pricing                 int         `json:"pricing"`
	GapScore                int         `json:"gapScore"`
	RevenueRiskSignal       int         `json:"revenueRiskSignal"`
	CompetitiveThreatSignal int         `json:"competitiveThreatSignal"`
	RevenueRiskLevel        ThreatLevel `json:"revenueRiskLevel"`
	CompetitiveThreatLevel  ThreatLevel `json:"competitiveThreatLevel"`
	OverallThreatLevel      ThreatLevel `json:"overallThreatLevel"`
}
