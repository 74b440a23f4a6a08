package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/OptivexIQ/optivexiq-sub002/internal/database/migrations"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// setupTestDB creates an in-memory database with the full schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// insertTestJob creates a queued job owned by userID and returns it.
func insertTestJob(t *testing.T, repo JobRepository, id, userID string) *models.ReportJob {
	t.Helper()

	now := time.Now().UTC()
	job := &models.ReportJob{
		ID:             id,
		UserID:         userID,
		HomepageURL:    "https://example.com",
		CompetitorURLs: []string{"https://rival.example"},
		MonthlyTraffic: 1000,
		AverageDealUSD: 5000,
		Status:         models.JobStatusQueued,
		Stage:          models.StageQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("failed to insert test job: %v", err)
	}
	return job
}
