package models

// CompetitorInsight is the structured analysis of one competitor site.
// It lives inside the pipeline run and the final report, never as an
// independent row.
type CompetitorInsight struct {
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Summary       string   `json:"summary"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Positioning   string   `json:"positioning"`
	RawExtraction string   `json:"rawExtraction,omitempty"`
}

// CompetitorResult tags one competitor's analysis as success or failure.
// A failed item carries its error string so one unreachable site never
// sinks the whole batch.
type CompetitorResult struct {
	URL     string             `json:"url"`
	Insight *CompetitorInsight `json:"insight,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Failed reports whether this competitor's analysis failed.
func (r CompetitorResult) Failed() bool {
	return r.Error != ""
}
