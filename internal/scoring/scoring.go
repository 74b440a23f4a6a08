// Package scoring implements the canonical weighted scoring model. It
// is pure arithmetic: no I/O, no hidden state, so identical inputs
// always reproduce identical scores.
package scoring

import (
	"math"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// CanonicalModelVersion tags every report with the scoring model that
// produced it, so reports from different model versions can coexist.
const CanonicalModelVersion = "canonical-v2"

// Canonical gap-score weights.
const (
	weightClarity         = 0.24
	weightDifferentiation = 0.24
	weightObjections      = 0.20
	weightOverlap         = 0.16
	weightPricing         = 0.16
)

// Risk-level thresholds.
const (
	thresholdHigh   = 70
	thresholdMedium = 40
)

// Inputs are the qualitative signals feeding the gap score, each on a
// 0-100 scale (clamped defensively before weighting).
type Inputs struct {
	Clarity           int
	Differentiation   int
	ObjectionCoverage int
	OverlapAverage    float64
	Pricing           int
}

// Result is the full scoring output, including the breakdown from which
// every level and tier is re-derivable.
type Result struct {
	GapScore                int
	RevenueRiskSignal       int
	CompetitiveThreatSignal int
	RevenueRiskLevel        models.ThreatLevel
	CompetitiveThreatLevel  models.ThreatLevel
	OverallThreatLevel      models.ThreatLevel
	ModelVersion            string
	Breakdown               models.ScoringBreakdown
}

// GapScore computes the composite conversion-messaging health score.
func GapScore(in Inputs) int {
	clarity := Clamp(in.Clarity)
	differentiation := Clamp(in.Differentiation)
	objections := Clamp(in.ObjectionCoverage)
	overlap := clampFloat(in.OverlapAverage)
	pricing := Clamp(in.Pricing)

	raw := float64(clarity)*weightClarity +
		float64(differentiation)*weightDifferentiation +
		float64(objections)*weightObjections +
		(100-overlap)*weightOverlap +
		float64(pricing)*weightPricing

	return Clamp(round(raw))
}

// Calculate scores the report. pipelineAtRisk feeds the revenue-risk
// signal; pass 0 when no revenue model is available.
func Calculate(in Inputs, pipelineAtRisk int64) Result {
	gapScore := GapScore(in)
	overlap := clampFloat(in.OverlapAverage)
	differentiation := Clamp(in.Differentiation)

	pipelineRiskSignal := 0.0
	if pipelineAtRisk > 0 {
		pipelineRiskSignal = math.Min(100, float64(pipelineAtRisk)/10000)
	}

	revenueRisk := Clamp(round(float64(100-gapScore)*0.8 + pipelineRiskSignal*0.2))
	competitiveThreat := Clamp(round(overlap*0.6 + float64(100-differentiation)*0.4))

	revenueLevel := Level(revenueRisk)
	competitiveLevel := Level(competitiveThreat)

	result := Result{
		GapScore:                gapScore,
		RevenueRiskSignal:       revenueRisk,
		CompetitiveThreatSignal: competitiveThreat,
		RevenueRiskLevel:        revenueLevel,
		CompetitiveThreatLevel:  competitiveLevel,
		OverallThreatLevel:      maxLevel(revenueLevel, competitiveLevel),
		ModelVersion:            CanonicalModelVersion,
	}
	result.Breakdown = models.ScoringBreakdown{
		Clarity:                 Clamp(in.Clarity),
		Differentiation:         differentiation,
		ObjectionCoverage:       Clamp(in.ObjectionCoverage),
		OverlapAverage:          round(overlap),
		Pricing:                 Clamp(in.Pricing),
		GapScore:                gapScore,
		RevenueRiskSignal:       revenueRisk,
		CompetitiveThreatSignal: competitiveThreat,
		RevenueRiskLevel:        revenueLevel,
		CompetitiveThreatLevel:  competitiveLevel,
		OverallThreatLevel:      result.OverallThreatLevel,
	}
	return result
}

// Level buckets a 0-100 risk signal into a threat level.
func Level(score int) models.ThreatLevel {
	switch {
	case score >= thresholdHigh:
		return models.ThreatHigh
	case score >= thresholdMedium:
		return models.ThreatMedium
	default:
		return models.ThreatLow
	}
}

func maxLevel(a, b models.ThreatLevel) models.ThreatLevel {
	if a == models.ThreatHigh || b == models.ThreatHigh {
		return models.ThreatHigh
	}
	if a == models.ThreatMedium || b == models.ThreatMedium {
		return models.ThreatMedium
	}
	return models.ThreatLow
}

// Clamp bounds a score to [0,100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round(v float64) int {
	return int(math.Round(v))
}
