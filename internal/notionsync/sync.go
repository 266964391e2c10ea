package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/logger"
)

// SyncFlags mirrors the scored flag set of a run into the Notion dashboard
// database. Pages are keyed by the "Flag ID" title property for idempotency:
// flags already present are skipped, new flags are created, and pages whose
// flag is no longer in the set are archived. With dryRun set, planned
// changes are logged but nothing is written.
func SyncFlags(ctx context.Context, notionClient NotionService, databaseID string, scored []domain.ScoredFlag, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Int("flags", len(scored)).
		Bool("dry_run", dryRun).
		Msg("Starting flag sync to Notion")

	validKeys := make(map[string]bool, len(scored))
	for _, f := range scored {
		validKeys[FlagKey(f)] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, databaseID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existingKeys := make(map[string]bool)
	var archived int
	for _, page := range pages {
		key := extractFlagKey(page)

		// Archive pages without a Flag ID (from an old sync) or whose flag
		// is gone from the current set.
		if key == "" || !validKeys[key] {
			if dryRun {
				log.Info().
					Str("flag_id", key).
					Str("page_id", string(page.ID)).
					Msg("[DRY RUN] Would archive stale Notion page")
				archived++
				continue
			}
			if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().
					Err(err).
					Str("flag_id", key).
					Str("page_id", string(page.ID)).
					Msg("Failed to archive stale Notion page")
				continue
			}
			archived++
			continue
		}
		existingKeys[key] = true
	}
	if archived > 0 {
		log.Info().Int("archived", archived).Msg("Archived stale flags in Notion")
	}

	var created, skipped int
	for _, f := range scored {
		key := FlagKey(f)
		if existingKeys[key] {
			skipped++
			continue
		}
		if dryRun {
			log.Info().Str("flag_id", key).Msg("[DRY RUN] Would create Notion page")
			created++
			continue
		}
		if _, err := notionClient.CreatePage(ctx, databaseID, FlagToNotionProperties(f)); err != nil {
			return fmt.Errorf("failed to create Notion page for %s: %w", key, err)
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Int("archived", archived).
		Msg("Flag sync to Notion complete")
	return nil
}

func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractFlagKey extracts the Flag ID title from a Notion page's properties.
// Returns empty string if not found.
func extractFlagKey(page notionapi.Page) string {
	if prop, ok := page.Properties["Flag ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
