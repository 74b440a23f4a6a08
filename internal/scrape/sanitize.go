package scrape

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Prompt-injection signature categories. Scraped pages are untrusted
// input that flows into LLM prompts, so any line matching one of these
// is dropped whole rather than redacted in place.
const (
	CategoryInstructionOverride = "instruction_override"
	CategorySystemPromptRef     = "system_prompt_reference"
	CategoryIdentityOverride    = "identity_override"
	CategoryControlTokens       = "control_tokens"
	CategoryCredentialExfil     = "credential_exfiltration"
)

type injectionSignature struct {
	category string
	pattern  *regexp.Regexp
}

var injectionSignatures = []injectionSignature{
	{
		category: CategoryInstructionOverride,
		pattern:  regexp.MustCompile(`(?i)(ignore|disregard|forget|override)\s+(all\s+|any\s+|the\s+|your\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|prompts?|rules?|directives?|context)`),
	},
	{
		category: CategorySystemPromptRef,
		pattern:  regexp.MustCompile(`(?i)(system\s+prompt|system\s+message|initial\s+prompt|base\s+prompt|hidden\s+(prompt|instructions?))`),
	},
	{
		category: CategoryIdentityOverride,
		pattern:  regexp.MustCompile(`(?i)(you\s+are\s+(now|no\s+longer)\s|act\s+as\s+(if\s+you|a\s+different)|pretend\s+(to\s+be|you\s+are)|new\s+persona|jailbreak|developer\s+mode)`),
	},
	{
		category: CategoryControlTokens,
		pattern:  regexp.MustCompile(`(<\|im_start\|>|<\|im_end\|>|<\|endoftext\|>|\[INST\]|\[/INST\]|<<SYS>>|<</SYS>>|###\s*(system|instruction)\b)`),
	},
	{
		category: CategoryCredentialExfil,
		pattern:  regexp.MustCompile(`(?i)(reveal|print|show|output|repeat|leak|exfiltrate)\s+(your\s+|the\s+)?(system\s+prompt|instructions?|api\s+key|secret|password|credentials?|token)`),
	},
}

// SanitizeResult is the outcome of sanitizing one field of scraped text.
type SanitizeResult struct {
	Text string

	// RemovedLines is the number of lines dropped.
	RemovedLines int

	// Categories counts removed lines per signature category. Only
	// counts are ever logged, never the matched content.
	Categories map[string]int

	// Truncated reports whether the surviving text hit maxLen.
	Truncated bool
}

// Anomalous reports whether any line was removed.
func (r SanitizeResult) Anomalous() bool {
	return r.RemovedLines > 0
}

// Sanitize scans text line by line for prompt-injection signatures,
// drops matching lines entirely, normalizes whitespace in the survivors,
// and truncates to maxLen (0 means no cap).
func Sanitize(text string, maxLen int) SanitizeResult {
	result := SanitizeResult{Categories: make(map[string]int)}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if category, matched := matchInjection(line); matched {
			result.RemovedLines++
			result.Categories[category]++
			continue
		}
		line = normalizeWhitespace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	out := strings.Join(kept, "\n")
	if maxLen > 0 && len(out) > maxLen {
		// Back up to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
		result.Truncated = true
	}
	result.Text = out
	return result
}

func matchInjection(line string) (string, bool) {
	for _, sig := range injectionSignatures {
		if sig.pattern.MatchString(line) {
			return sig.category, true
		}
	}
	return "", false
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
