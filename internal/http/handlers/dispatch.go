package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
	"github.com/OptivexIQ/optivexiq-sub002/internal/service"
)

// DispatchHandler handles the internal dispatch endpoint. An external
// scheduler calls it as a safety net: it requeues jobs whose worker
// died mid-lease and wakes the claim loop for anything runnable.
type DispatchHandler struct {
	jobs       repository.JobRepository
	dispatcher service.Dispatcher
	logger     *slog.Logger
}

// NewDispatchHandler creates a new dispatch handler.
func NewDispatchHandler(jobs repository.JobRepository, dispatcher service.Dispatcher, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{
		jobs:       jobs,
		dispatcher: dispatcher,
		logger:     logger.With("component", "dispatch"),
	}
}

// DispatchOutput represents the dispatch response.
type DispatchOutput struct {
	Body struct {
		Requeued    int64 `json:"requeued" doc:"Jobs returned to the queue after an expired lease"`
		StaleQueued int   `json:"stale_queued" doc:"Queued jobs that had sat past the staleness threshold"`
	}
}

// Dispatch requeues expired leases and pokes the worker.
func (h *DispatchHandler) Dispatch(ctx context.Context, input *struct{}) (*DispatchOutput, error) {
	now := time.Now().UTC()

	requeued, err := h.jobs.RequeueExpiredLeases(ctx, now)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to requeue expired leases: " + err.Error())
	}

	stale, err := h.jobs.CountQueuedStale(ctx, now.Add(-constants.StaleQueuedThreshold))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count stale jobs: " + err.Error())
	}

	if h.dispatcher != nil {
		h.dispatcher.Poke()
	}

	if requeued > 0 || stale > 0 {
		h.logger.Info("dispatch tick", "requeued", requeued, "stale_queued", stale)
	}

	out := &DispatchOutput{}
	out.Body.Requeued = requeued
	out.Body.StaleQueued = stale
	return out, nil
}
