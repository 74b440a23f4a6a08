package handlers

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/database/migrations"
	"github.com/OptivexIQ/optivexiq-sub002/internal/http/mw"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
	"github.com/OptivexIQ/optivexiq-sub002/internal/service"
)

type handlerEnv struct {
	db       *sql.DB
	repos    *repository.Repositories
	services *service.Services
}

func setupHandlers(t *testing.T) *handlerEnv {
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
	cfg := &config.Config{
		BaseURL:           "http://localhost:8080",
		EncryptionKey:     []byte(strings.Repeat("k", 32)),
		WebhookSigningKey: []byte(strings.Repeat("s", 32)),
	}
	svcs, err := service.NewServices(cfg, repos, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create services: %v", err)
	}

	return &handlerEnv{db: db, repos: repos, services: svcs}
}

// authedCtx builds a context as the auth middleware would leave it.
func authedCtx(userID string) context.Context {
	return context.WithValue(context.Background(), mw.UserClaimsKey, &mw.UserClaims{UserID: userID})
}

func wantStatusError(t *testing.T, err error, status int) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected an error with status %d, got nil", status)
	}
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a status error", err)
	}
	if se.GetStatus() != status {
		t.Fatalf("status = %d, want %d (error %v)", se.GetStatus(), status, err)
	}
}

func submission(homepage string) *CreateReportInput {
	input := &CreateReportInput{}
	input.Body.HomepageURL = homepage
	input.Body.CompetitorURLs = []string{"https://rival.com"}
	return input
}
