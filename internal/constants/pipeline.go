// Package constants defines shared limits and tuning values for the
// report execution pipeline.
package constants

import "time"

// Submission limits.
const (
	// MaxCompetitorURLs caps the competitor set accepted per report job.
	MaxCompetitorURLs = 5

	// MaxActiveJobsPerUser caps concurrently queued/running jobs per user.
	MaxActiveJobsPerUser = 3

	// IdempotencyWindow is how long a submission with the same
	// Idempotency-Key resolves to the original job.
	IdempotencyWindow = 24 * time.Hour
)

// Scraping.
const (
	// ScrapeTimeout bounds a single page fetch.
	ScrapeTimeout = 15 * time.Second

	// CrawlerUserAgent identifies the fetcher to target sites.
	CrawlerUserAgent = "OptivexIQBot/1.0 (+https://optivexiq.com/bot)"

	// MaxScrapeBodyBytes caps how much of a response body is read.
	MaxScrapeBodyBytes = 2 << 20 // 2 MiB

	// CompetitorScrapeConcurrency bounds parallel competitor fetches.
	CompetitorScrapeConcurrency = 5
)

// Extracted-content field caps, applied after sanitization.
const (
	MaxHeadlineLength    = 600
	MaxSubheadlineLength = 600
	MaxPricingLength     = 2000
	MaxFAQLength         = 800
	MaxBodyTextLength    = 4000
)

// Job retry policy. A transient stage failure re-queues the job with
// exponential backoff until MaxJobAttempts is exhausted.
const (
	MaxJobAttempts      = 3
	RetryInitialBackoff = 2 * time.Second
	RetryBackoffFactor  = 2.0
	RetryMaxBackoff     = 30 * time.Second
)

// Worker claim lease. A running job whose lease expires becomes
// claimable again, so a crashed worker never strands it.
const (
	ClaimLeaseDuration = 2 * time.Minute

	// StaleQueuedThreshold is how long a job may sit queued before a
	// status read opportunistically pokes the dispatcher.
	StaleQueuedThreshold = 30 * time.Second
)

// LLM call policy.
const (
	LLMRequestTimeout     = 60 * time.Second
	LLMMaxRetries         = 2
	LLMDefaultTemperature = 0.2
	LLMDefaultMaxTokens   = 4096
)

// Revenue-model defaults used when the submission omits the baseline.
const (
	DefaultMonthlyTraffic = 1000
	DefaultAverageDealUSD = 5000
)

// RetryBackoff returns the delay before the given attempt (1-based)
// is retried, growing exponentially up to RetryMaxBackoff.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := RetryInitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * RetryBackoffFactor)
		if backoff >= RetryMaxBackoff {
			return RetryMaxBackoff
		}
	}
	if backoff > RetryMaxBackoff {
		backoff = RetryMaxBackoff
	}
	return backoff
}
