package insight

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/llm"
	"github.com/OptivexIQ/optivexiq-sub002/internal/scrape"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, Multiplier: 2, MaxBackoff: time.Millisecond}
}

// fakeLLM answers with a valid extraction unless the prompt mentions
// bad.example, which always errors.
func fakeLLM() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "bad.example") {
			http.Error(w, `{"error":"provider exploded"}`, http.StatusInternalServerError)
			return
		}
		content := `{"summary":"Fast mover in the space","strengths":["brand"],"weaknesses":["price"],"positioning":"premium"}`
		resp := map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 50},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnalyzeIsolatesFailures(t *testing.T) {
	server := fakeLLM()
	defer server.Close()

	client := llm.NewClient(llm.Config{BaseURL: server.URL, APIKey: "sk-test", Model: "m"}, testLogger())
	analyzer := NewAnalyzer(client, testLogger())
	analyzer.retry = fastRetry()

	contents := []*scrape.PageContent{
		{URL: "https://www.good.example", Headline: "We win", RawText: "copy"},
		{URL: "https://bad.example", Headline: "broken", RawText: "copy"},
		{URL: "https://other.example", Headline: "Also fine", RawText: "copy"},
	}

	result, err := analyzer.Analyze(context.Background(), contents)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result.Competitors) != 3 {
		t.Fatalf("results = %d, want 3", len(result.Competitors))
	}

	good := result.Competitors[0]
	if good.Failed() || good.Insight == nil {
		t.Fatalf("first competitor should succeed: %+v", good)
	}
	if good.Insight.Name != "good.example" {
		t.Errorf("display name = %q, want www. stripped", good.Insight.Name)
	}
	if good.Insight.Summary != "Fast mover in the space" {
		t.Errorf("summary = %q", good.Insight.Summary)
	}

	bad := result.Competitors[1]
	if !bad.Failed() {
		t.Error("second competitor should carry an error flag")
	}
	if bad.Insight != nil {
		t.Error("failed competitor must not carry an insight")
	}

	if result.Competitors[2].Failed() {
		t.Error("third competitor should succeed despite the second failing")
	}

	insights := result.Insights()
	if len(insights) != 2 {
		t.Errorf("insights = %d, want 2 (failures excluded)", len(insights))
	}

	// Usage aggregates across successful calls only.
	if result.TokensInput != 200 || result.TokensOutput != 100 {
		t.Errorf("usage = %d/%d, want 200/100", result.TokensInput, result.TokensOutput)
	}
}

func TestAnalyzeEmptyBatch(t *testing.T) {
	client := llm.NewClient(llm.Config{BaseURL: "http://unused", APIKey: "sk-test", Model: "m"}, testLogger())
	analyzer := NewAnalyzer(client, testLogger())

	result, err := analyzer.Analyze(context.Background(), nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Competitors) != 0 {
		t.Errorf("competitors = %v", result.Competitors)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.rival.example/pricing", "rival.example"},
		{"https://rival.example", "rival.example"},
		{"http://sub.rival.example:8080", "sub.rival.example"},
		{"not a url", "not a url"},
	}

	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
