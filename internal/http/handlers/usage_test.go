package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

func TestGetUsage(t *testing.T) {
	env := setupHandlers(t)
	h := NewUsageHandler(env.services.Usage)

	job := &models.ReportJob{
		ID:           "01TESTJOB0000000000000000J",
		UserID:       "user-1",
		Status:       models.JobStatusCompleted,
		TokensInput:  1200,
		TokensOutput: 480,
	}
	if err := env.services.Usage.RecordJobUsage(context.Background(), job); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	output, err := h.GetUsage(authedCtx("user-1"), &GetUsageInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Jobs != 1 || output.Body.TokensInput != 1200 || output.Body.TokensOutput != 480 {
		t.Errorf("body = %+v", output.Body)
	}
}

func TestGetUsageSinceFilter(t *testing.T) {
	env := setupHandlers(t)
	h := NewUsageHandler(env.services.Usage)

	tomorrow := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	output, err := h.GetUsage(authedCtx("user-1"), &GetUsageInput{Since: tomorrow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Jobs != 0 {
		t.Errorf("jobs = %d, want 0", output.Body.Jobs)
	}
}

func TestGetUsageRejectsBadDate(t *testing.T) {
	env := setupHandlers(t)
	h := NewUsageHandler(env.services.Usage)

	_, err := h.GetUsage(authedCtx("user-1"), &GetUsageInput{Since: "last tuesday"})
	wantStatusError(t, err, http.StatusBadRequest)
}
