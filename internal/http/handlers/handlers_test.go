package handlers

import (
	"context"
	"errors"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	output, err := HealthCheck(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "healthy" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "healthy")
	}
	if output.Body.Version == "" {
		t.Error("Version is empty")
	}
}

func TestLivez(t *testing.T) {
	output, err := Livez(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
	}
}

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping() error {
	return m.err
}

func TestReadyz(t *testing.T) {
	handler := NewReadyzHandler(&mockDBPinger{})
	output, err := handler.Readyz(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ready" || output.Body.Database != "ok" {
		t.Errorf("body = %+v", output.Body)
	}
}

func TestReadyzDatabaseDown(t *testing.T) {
	handler := NewReadyzHandler(&mockDBPinger{err: errors.New("connection refused")})
	output, err := handler.Readyz(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "not ready" || output.Body.Database != "unreachable" {
		t.Errorf("body = %+v", output.Body)
	}
}

func TestGetUserIDWithoutClaims(t *testing.T) {
	if id := getUserID(context.Background()); id != "" {
		t.Errorf("userID = %q, want empty", id)
	}
}
