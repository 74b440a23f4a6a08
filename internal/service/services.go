// Package service contains the business logic layer between the HTTP
// handlers and the repositories.
package service

import (
	"fmt"
	"log/slog"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/crypto"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Job     *JobService
	Usage   *UsageService
	Archive *ArchiveService
	Webhook *WebhookService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	// Webhook URLs may embed tokens, so they are encrypted at rest.
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	archiveSvc, err := NewArchiveService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive service: %w", err)
	}

	return &Services{
		Job:     NewJobService(cfg, repos, encryptor, logger),
		Usage:   NewUsageService(repos, logger),
		Archive: archiveSvc,
		Webhook: NewWebhookService(encryptor, cfg.WebhookSigningKey, logger),
	}, nil
}
