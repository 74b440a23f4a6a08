package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// GapAnalysisOutput is the validated gap-analysis module response.
type GapAnalysisOutput struct {
	Gaps                 []string       `json:"gaps"`
	Opportunities        []string       `json:"opportunities"`
	Risks                []string       `json:"risks"`
	MessagingOverlap     []OverlapEntry `json:"messagingOverlap"`
	MissingObjections    []string       `json:"missingObjections"`
	DifferentiationGaps  []string       `json:"differentiationGaps"`
	PricingClarityIssues []string       `json:"pricingClarityIssues"`
}

// OverlapEntry is one competitor's messaging overlap percentage.
type OverlapEntry struct {
	Competitor string `json:"competitor"`
	Overlap    int    `json:"overlap"`
}

// HeroOutput is the validated hero-rewrite module response.
type HeroOutput struct {
	Headline     string `json:"headline"`
	Subheadline  string `json:"subheadline"`
	PrimaryCTA   string `json:"primaryCta"`
	SecondaryCTA string `json:"secondaryCta"`
}

// PricingOutput is the validated pricing-rewrite module response.
type PricingOutput struct {
	ValueMetric    string   `json:"valueMetric"`
	Anchor         string   `json:"anchor"`
	PackagingNotes []string `json:"packagingNotes"`
}

// ObjectionsOutput is the validated objection-handling module response.
type ObjectionsOutput struct {
	Objections []models.ObjectionResponse `json:"objections"`
}

// DifferentiationOutput is the validated differentiation module response.
type DifferentiationOutput struct {
	Differentiators []models.DifferentiatorClaim `json:"differentiators"`
}

// CountersOutput is the validated competitive-counters module response.
type CountersOutput struct {
	Counters []CounterEntry `json:"counters"`
}

// CounterEntry is one competitor's counter-positioning angle.
type CounterEntry struct {
	Competitor string `json:"competitor"`
	Counter    string `json:"counter"`
}

// ParseGapAnalysis validates and decodes a gap-analysis response.
func ParseGapAnalysis(raw string) (*GapAnalysisOutput, error) {
	return parseModuleOutput[GapAnalysisOutput](ModuleGapAnalysis, gapAnalysisSchema, raw)
}

// ParseHero validates and decodes a hero-rewrite response.
func ParseHero(raw string) (*HeroOutput, error) {
	return parseModuleOutput[HeroOutput](ModuleHeroRewrite, heroSchema, raw)
}

// ParsePricing validates and decodes a pricing-rewrite response.
func ParsePricing(raw string) (*PricingOutput, error) {
	return parseModuleOutput[PricingOutput](ModulePricingRewrite, pricingSchema, raw)
}

// ParseObjections validates and decodes an objection-handling response.
func ParseObjections(raw string) (*ObjectionsOutput, error) {
	return parseModuleOutput[ObjectionsOutput](ModuleObjections, objectionsSchema, raw)
}

// ParseDifferentiation validates and decodes a differentiation response.
func ParseDifferentiation(raw string) (*DifferentiationOutput, error) {
	return parseModuleOutput[DifferentiationOutput](ModuleDifferentiation, differentiationSchema, raw)
}

// ParseCounters validates and decodes a competitive-counters response.
func ParseCounters(raw string) (*CountersOutput, error) {
	return parseModuleOutput[CountersOutput](ModuleCompetitiveCounter, countersSchema, raw)
}

func parseModuleOutput[T any](module, schema, raw string) (*T, error) {
	if err := Validate(module, schema, raw); err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s output: %w", module, err)
	}
	return &out, nil
}
