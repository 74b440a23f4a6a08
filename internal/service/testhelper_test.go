package service

import (
	"bytes"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/crypto"
	"github.com/OptivexIQ/optivexiq-sub002/internal/database/migrations"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:           "http://localhost:8080",
		EncryptionKey:     bytes.Repeat([]byte("k"), 32),
		WebhookSigningKey: bytes.Repeat([]byte("s"), 32),
	}
}

// setupJobService wires a job service over an in-memory database.
func setupJobService(t *testing.T) (*JobService, *repository.Repositories) {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repos := repository.New(db)
	encryptor, err := crypto.NewEncryptor(testConfig().EncryptionKey)
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return NewJobService(testConfig(), repos, encryptor, testLogger()), repos
}

func validInput() CreateReportInput {
	return CreateReportInput{
		HomepageURL:    "https://acme.io",
		PricingURL:     "https://acme.io/pricing",
		CompetitorURLs: []string{"https://rivalsoft.com"},
		Company:        "Acme",
		Segment:        "plg-saas",
	}
}
