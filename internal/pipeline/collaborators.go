package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/leakage-detector/internal/alert"
	"github.com/dvloznov/leakage-detector/internal/bqexport"
	"github.com/dvloznov/leakage-detector/internal/config"
	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/notionsync"
	"github.com/dvloznov/leakage-detector/internal/report"
)

// GCSUploader adapts the report upload function to the ArtifactUploader
// interface.
type GCSUploader struct {
	Bucket string
	Prefix string
}

// Upload copies the run artifacts to the configured bucket.
func (u GCSUploader) Upload(ctx context.Context, arts report.Artifacts) error {
	return report.Upload(ctx, u.Bucket, u.Prefix, arts)
}

// NotionSyncer adapts the Notion sync to the DashboardSyncer interface.
type NotionSyncer struct {
	Client     notionsync.NotionService
	DatabaseID string
	DryRun     bool
}

// SyncFlags mirrors the scored flags into the dashboard database.
func (n NotionSyncer) SyncFlags(ctx context.Context, scored []domain.ScoredFlag) error {
	return notionsync.SyncFlags(ctx, n.Client, n.DatabaseID, scored, n.DryRun)
}

// BuildCollaborators constructs the config-gated pipeline backends. The
// returned cleanup function releases any clients and must be called when the
// pipeline is done.
func BuildCollaborators(ctx context.Context, cfg *config.Config) (Collaborators, func(), error) {
	var c Collaborators
	cleanup := func() {}

	if cfg.BigQuery.Enabled {
		exp, err := bqexport.NewExporter(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.FlagsTable, cfg.BigQuery.RunsTable)
		if err != nil {
			return Collaborators{}, nil, fmt.Errorf("BuildCollaborators: %w", err)
		}
		c.Exporter = exp
		cleanup = func() { _ = exp.Close() }
	}

	if cfg.GCS.Enabled {
		c.Uploader = GCSUploader{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix}
	}

	if cfg.Notion.Enabled {
		c.Syncer = NotionSyncer{
			Client:     notionsync.NewNotionClient(cfg.Notion.Token),
			DatabaseID: cfg.Notion.DatabaseID,
			DryRun:     cfg.Notion.DryRun,
		}
	}

	if cfg.Slack.Enabled {
		c.Notifier = alert.NewNotifier(cfg.Slack.WebhookURL)
	}

	return c, cleanup, nil
}
