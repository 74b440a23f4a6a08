package scrape

import (
	"regexp"
	"strings"
)

// Block signals reported by the detector.
const (
	signalChallenge    = "challenge"
	signalCaptcha      = "captcha"
	signalAccessDenied = "access_denied"
	signalEmptyContent = "empty_content"
)

// blockDetector classifies responses that look like bot-protection
// challenge pages rather than real content. Feeding a challenge page to
// the prompt modules would produce a garbage report, so these become
// typed scrape errors instead.
type blockDetector struct {
	minContentLength int
}

func newBlockDetector() *blockDetector {
	return &blockDetector{minContentLength: 500}
}

var (
	challengeMarkers = []string{
		"cf-browser-verification",
		"challenge-platform",
		"_cf_chl",
		"checking your browser",
		"just a moment...",
		"attention required! | cloudflare",
	}

	captchaMarkers = []string{
		"g-recaptcha",
		"h-captcha",
		"data-sitekey",
		"cf-turnstile",
	}

	deniedMarkers = []string{
		"access denied",
		"request blocked",
		"bot detected",
		"please verify you are human",
		"are you a robot",
	}

	contentIndicator = regexp.MustCompile(`<(article|main|section)[^>]*>`)
)

// detect returns a block signal, or "" when the response looks like a
// real page. Non-2xx statuses are already typed as HTTP errors by the
// fetcher, so only 2xx bodies reach here.
func (d *blockDetector) detect(body []byte) string {
	if len(body) == 0 {
		return signalEmptyContent
	}

	lower := strings.ToLower(string(body))

	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return signalChallenge
		}
	}
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return signalCaptcha
		}
	}
	for _, marker := range deniedMarkers {
		if strings.Contains(lower, marker) {
			return signalAccessDenied
		}
	}

	if len(body) < d.minContentLength && !contentIndicator.Match(body) {
		return signalEmptyContent
	}

	return ""
}
