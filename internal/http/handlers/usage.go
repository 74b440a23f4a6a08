package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/OptivexIQ/optivexiq-sub002/internal/service"
)

// UsageHandler handles usage endpoints.
type UsageHandler struct {
	usageSvc *service.UsageService
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(usageSvc *service.UsageService) *UsageHandler {
	return &UsageHandler{usageSvc: usageSvc}
}

// GetUsageInput represents usage query parameters.
type GetUsageInput struct {
	Since string `query:"since" example:"2026-03-01" doc:"Start date (YYYY-MM-DD); defaults to the start of the current month"`
}

// GetUsageOutput represents the usage summary response.
type GetUsageOutput struct {
	Body struct {
		Jobs             int     `json:"jobs" doc:"Report jobs recorded in the window"`
		TokensInput      int     `json:"tokens_input" doc:"LLM input tokens consumed"`
		TokensOutput     int     `json:"tokens_output" doc:"LLM output tokens generated"`
		EstimatedCostUSD float64 `json:"estimated_cost_usd" doc:"Estimated LLM spend"`
	}
}

// GetUsage returns the caller's aggregated token and cost usage.
func (h *UsageHandler) GetUsage(ctx context.Context, input *GetUsageInput) (*GetUsageOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	var since time.Time
	if input.Since != "" {
		parsed, err := time.Parse("2006-01-02", input.Since)
		if err != nil {
			return nil, huma.Error400BadRequest("since must be a YYYY-MM-DD date")
		}
		since = parsed
	}

	summary, err := h.usageSvc.GetUsageSummary(ctx, userID, since)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to summarize usage: " + err.Error())
	}

	out := &GetUsageOutput{}
	out.Body.Jobs = summary.Jobs
	out.Body.TokensInput = summary.TokensInput
	out.Body.TokensOutput = summary.TokensOutput
	out.Body.EstimatedCostUSD = summary.EstimatedCost
	return out, nil
}
