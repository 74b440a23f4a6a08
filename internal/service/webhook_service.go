package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/crypto"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-OptivexIQ-Signature"

// WebhookService delivers signed completion notifications.
type WebhookService struct {
	client     *http.Client
	encryptor  *crypto.Encryptor
	signingKey []byte
	logger     *slog.Logger

	// backoffBase is scaled quadratically between delivery attempts.
	backoffBase time.Duration
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(encryptor *crypto.Encryptor, signingKey []byte, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		encryptor:   encryptor,
		signingKey:  signingKey,
		logger:      logger,
		backoffBase: time.Second,
	}
}

// CompletionPayload is the webhook body sent when a job reaches a
// terminal state.
type CompletionPayload struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	CompletedAt string `json:"completed_at"`
}

// NotifyCompletion delivers the terminal-state notification for a job
// with a registered webhook URL. Fire-and-forget: delivery never blocks
// or fails the job.
func (s *WebhookService) NotifyCompletion(ctx context.Context, job *models.ReportJob) {
	if job.WebhookURL == "" {
		return
	}

	targetURL, err := s.encryptor.Decrypt(job.WebhookURL)
	if err != nil {
		s.logger.Error("webhook: failed to decrypt url", "job_id", job.ID, "error", err)
		return
	}

	completedAt := time.Now().UTC()
	if job.CompletedAt != nil {
		completedAt = *job.CompletedAt
	}
	payload := CompletionPayload{
		JobID:       job.ID,
		Status:      string(job.Status),
		Error:       job.Error,
		CompletedAt: completedAt.Format(time.RFC3339),
	}

	go s.deliver(targetURL, payload)
}

func (s *WebhookService) deliver(url string, payload CompletionPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("webhook: failed to marshal payload", "error", err)
		return err
	}

	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write(body)
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * s.backoffBase)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			s.logger.Error("webhook: failed to create request", "error", err)
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "OptivexIQ-Webhook/1.0")
		req.Header.Set(SignatureHeader, signature)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("webhook: delivery failed", "job_id", payload.JobID, "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.logger.Info("webhook: delivered", "job_id", payload.JobID, "status", resp.StatusCode)
			return nil
		}

		lastErr = &WebhookError{StatusCode: resp.StatusCode}
		s.logger.Warn("webhook: non-success status", "job_id", payload.JobID, "status", resp.StatusCode, "attempt", attempt+1)
	}

	s.logger.Error("webhook: delivery failed after retries", "job_id", payload.JobID, "error", lastErr)
	return lastErr
}

// WebhookError represents a webhook delivery error.
type WebhookError struct {
	StatusCode int
}

func (e *WebhookError) Error() string {
	return "webhook delivery failed with status: " + http.StatusText(e.StatusCode)
}
