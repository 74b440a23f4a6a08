package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

func TestArchiveDisabledIsNoOp(t *testing.T) {
	svc, err := NewArchiveService(&config.Config{ArchiveEnabled: false}, testLogger())
	if err != nil {
		t.Fatalf("NewArchiveService: %v", err)
	}
	if svc.IsEnabled() {
		t.Error("archive must report disabled")
	}

	err = svc.ArchiveReport(context.Background(), &models.Report{ID: "r1", UserID: "user-1", Document: "{}"})
	if err != nil {
		t.Errorf("disabled archive must no-op, got %v", err)
	}
}

func TestArchiveReportUploadsDocument(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			gotPath = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc, err := NewArchiveService(&config.Config{
		ArchiveEnabled:   true,
		ArchiveBucket:    "optivexiq-reports",
		ArchiveEndpoint:  server.URL,
		ArchiveRegion:    "auto",
		ArchiveAccessKey: "test-access",
		ArchiveSecretKey: "test-secret",
	}, testLogger())
	if err != nil {
		t.Fatalf("NewArchiveService: %v", err)
	}
	if !svc.IsEnabled() {
		t.Fatal("archive must report enabled")
	}

	report := &models.Report{
		ID:        "01JFREPORT000000000000000",
		JobID:     "01JFJOB000000000000000000",
		UserID:    "user-1",
		Document:  `{"company":"Acme"}`,
		CreatedAt: time.Now().UTC(),
	}
	if err := svc.ArchiveReport(context.Background(), report); err != nil {
		t.Fatalf("ArchiveReport: %v", err)
	}

	// Path-style addressing: /bucket/key.
	wantPath := "/optivexiq-reports/reports/user-1/" + report.ID + ".json"
	if gotPath != wantPath {
		t.Errorf("upload path = %q, want %q", gotPath, wantPath)
	}
	if !strings.Contains(gotBody, `"company":"Acme"`) {
		t.Errorf("uploaded body = %q", gotBody)
	}
}
