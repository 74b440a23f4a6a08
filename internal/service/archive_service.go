package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/models"
)

// ArchiveService mirrors completed report documents to S3-compatible
// object storage. The database row stays the source of truth; the
// archive copy exists for export and retention.
type ArchiveService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewArchiveService creates a new archive service.
func NewArchiveService(cfg *config.Config, logger *slog.Logger) (*ArchiveService, error) {
	if !cfg.ArchiveEnabled {
		logger.Info("report archive disabled - no bucket configured")
		return &ArchiveService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.ArchiveRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.ArchiveAccessKey,
			cfg.ArchiveSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ArchiveEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ArchiveEndpoint)
		}
		o.UsePathStyle = true // required by some S3-compatible services
	})

	logger.Info("report archive initialized",
		"bucket", cfg.ArchiveBucket,
		"endpoint", cfg.ArchiveEndpoint,
	)

	return &ArchiveService{
		client:  client,
		bucket:  cfg.ArchiveBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether the archive is configured and available.
func (s *ArchiveService) IsEnabled() bool {
	return s.enabled
}

// ArchiveReport uploads the canonical report document. A no-op when the
// archive is disabled; failures are the caller's to log, never to fail
// the job over.
func (s *ArchiveService) ArchiveReport(ctx context.Context, report *models.Report) error {
	if !s.enabled {
		return nil
	}

	key := fmt.Sprintf("reports/%s/%s.json", report.UserID, report.ID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(report.Document),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive report %s: %w", report.ID, err)
	}

	s.logger.Info("report archived", "report_id", report.ID, "key", key)
	return nil
}
