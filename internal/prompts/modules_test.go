package prompts

import (
	"strings"
	"testing"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
	"github.com/OptivexIQ/optivexiq-sub002/internal/scrape"
)

var testProfile = Profile{
	Company:    "Acme",
	WebsiteURL: "https://acme.example",
	Segment:    "B2B SaaS",
}

var testHomepage = &scrape.PageContent{
	URL:         "https://acme.example",
	Headline:    "Close more deals",
	Subheadline: "Revenue platform",
	RawText:     "Acme helps teams sell.",
}

var testCompetitors = []models.CompetitorInsight{
	{Name: "rival.example", URL: "https://rival.example", Summary: "Fast mover", Strengths: []string{"brand"}, Weaknesses: []string{"price"}, Positioning: "premium"},
	{Name: "other.example", URL: "https://other.example", Summary: "Budget option"},
}

func TestBuildersAreDeterministic(t *testing.T) {
	gap := &GapAnalysisOutput{Gaps: []string{"no social proof"}, MissingObjections: []string{"pricing"}}

	modules := []struct {
		name  string
		build func() Module
	}{
		{"gap analysis", func() Module { return GapAnalysis(testProfile, testHomepage, nil, testCompetitors) }},
		{"hero", func() Module { return HeroRewrite(testProfile, testHomepage, gap) }},
		{"pricing", func() Module { return PricingRewrite(testProfile, nil, gap) }},
		{"objections", func() Module { return ObjectionHandling(testProfile, gap) }},
		{"differentiation", func() Module { return Differentiation(testProfile, testCompetitors, gap) }},
		{"counters", func() Module { return CompetitiveCounters(testProfile, testCompetitors) }},
	}

	for _, tt := range modules {
		t.Run(tt.name, func(t *testing.T) {
			a, b := tt.build(), tt.build()
			if a.System != b.System || a.User != b.User || a.Schema != b.Schema {
				t.Error("identical inputs must produce identical prompts")
			}
			if a.Name == "" || a.System == "" || a.User == "" || a.Schema == "" {
				t.Error("module has empty fields")
			}
		})
	}
}

func TestGapAnalysisIncludesInputs(t *testing.T) {
	m := GapAnalysis(testProfile, testHomepage, nil, testCompetitors)

	for _, want := range []string{"Acme", "Close more deals", "rival.example", "Budget option", "messagingOverlap"} {
		if !strings.Contains(m.User, want) {
			t.Errorf("gap analysis prompt missing %q", want)
		}
	}
	if m.Name != ModuleGapAnalysis {
		t.Errorf("name = %q", m.Name)
	}
}

func TestHeroRewriteIncludesGapFindings(t *testing.T) {
	gap := &GapAnalysisOutput{Gaps: []string{"vague value proposition"}}
	m := HeroRewrite(testProfile, testHomepage, gap)

	if !strings.Contains(m.User, "vague value proposition") {
		t.Error("hero prompt missing gap findings")
	}
}

func TestPageContentMarkedUntrusted(t *testing.T) {
	m := GapAnalysis(testProfile, testHomepage, nil, nil)
	if !strings.Contains(m.User, "untrusted site content") {
		t.Error("scraped content must be framed as untrusted data")
	}
	if !strings.Contains(m.System, "never instructions") {
		t.Error("system prompt must pin untrusted-data framing")
	}
}
