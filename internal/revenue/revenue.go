// Package revenue models the dollar impact of conversion-messaging
// weaknesses. Pure functions, no I/O; all inputs come from the report
// aggregator.
package revenue

import (
	"math"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// Input holds the modeling assumptions.
type Input struct {
	// WinRateDelta is the modeled win-rate change in percentage points.
	WinRateDelta int

	// FunnelRisk is the 0-100 funnel risk score.
	FunnelRisk int

	// TrafficBaseline is monthly qualified visits.
	TrafficBaseline int

	// AverageDealSize is the average deal value in whole currency units.
	AverageDealSize int
}

// Output is the modeled revenue exposure and recovery.
type Output struct {
	PipelineAtRisk    int64
	RevenueProjection models.RevenueProjection
}

// ModelRevenueImpact converts funnel risk and deal-size assumptions
// into pipeline-at-risk and projected recovery figures.
func ModelRevenueImpact(in Input) Output {
	funnelRisk := clamp(in.FunnelRisk)

	pipelineAtRisk := int64(math.Round(
		float64(in.TrafficBaseline) * float64(in.AverageDealSize) * float64(funnelRisk) / 100,
	))

	liftPercent := int(math.Round(
		math.Max(0, float64(in.WinRateDelta))*0.6 + float64(funnelRisk)*0.1,
	))

	recovery := int64(math.Round(float64(pipelineAtRisk) * float64(liftPercent) / 100))

	return Output{
		PipelineAtRisk: pipelineAtRisk,
		RevenueProjection: models.RevenueProjection{
			EstimatedLiftPercent:      liftPercent,
			ModeledWinRateDelta:       in.WinRateDelta,
			ProjectedPipelineRecovery: recovery,
		},
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
