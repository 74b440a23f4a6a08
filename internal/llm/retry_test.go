package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		Multiplier:     2.0,
		MaxBackoff:     30 * time.Second,
	}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.retry); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestRetryPolicyDoSucceedsAfterFailures(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, Multiplier: 2, MaxBackoff: time.Millisecond * 4}

	calls := 0
	err := p.Do(context.Background(), testLogger(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicyDoExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, Multiplier: 2, MaxBackoff: time.Millisecond}

	wantErr := errors.New("always fails")
	calls := 0
	err := p.Do(context.Background(), testLogger(), "doomed", func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want last error", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryPolicyDoHonorsCancellation(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, InitialBackoff: time.Minute, Multiplier: 2, MaxBackoff: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, testLogger(), "cancelled", func() error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
