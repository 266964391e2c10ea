package notionsync

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/leakage-detector/internal/domain"
)

type fakeNotion struct {
	pages    []notionapi.Page
	created  []string
	archived []string
}

func (f *fakeNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	title := properties["Flag ID"].(notionapi.TitleProperty)
	f.created = append(f.created, title.Title[0].Text.Content)
	return &notionapi.Page{}, nil
}

func (f *fakeNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: f.pages, HasMore: false}, nil
}

func (f *fakeNotion) ArchivePage(ctx context.Context, pageID string) error {
	f.archived = append(f.archived, pageID)
	return nil
}

func pageWithFlagID(pageID, flagID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			"Flag ID": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: flagID}},
			},
		},
	}
}

func scoredFlag(txnID string, rule domain.Rule) domain.ScoredFlag {
	return domain.ScoredFlag{
		Flag: domain.Flag{
			Transaction: domain.Transaction{
				TransactionID: txnID,
				Date:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				SupplierName:  "Albion Freight Ltd",
				Category:      "Freight",
				Region:        "London",
				ApprovedBy:    "J.Harrison",
			},
			Rule:       rule,
			Detail:     "some detail",
			LeakageGBP: 120.5,
		},
		CompositeScore: 56.5,
		Severity:       domain.SeverityMedium,
		ActionRequired: "THIS WEEK: Add to weekly ops review. Request supplier clarification.",
	}
}

func TestFlagKey(t *testing.T) {
	f := scoredFlag("TXN-001", domain.RuleDuplicate)
	if got := FlagKey(f); got != "TXN-001|duplicate" {
		t.Errorf("FlagKey = %q, want %q", got, "TXN-001|duplicate")
	}
}

func TestFlagToNotionProperties(t *testing.T) {
	props := FlagToNotionProperties(scoredFlag("TXN-001", domain.RulePriceVariance))

	title, ok := props["Flag ID"].(notionapi.TitleProperty)
	if !ok || title.Title[0].Text.Content != "TXN-001|price_variance" {
		t.Errorf("Unexpected Flag ID property: %+v", props["Flag ID"])
	}
	if sel, ok := props["Severity"].(notionapi.SelectProperty); !ok || sel.Select.Name != "Medium" {
		t.Errorf("Unexpected Severity property: %+v", props["Severity"])
	}
	if num, ok := props["Leakage GBP"].(notionapi.NumberProperty); !ok || num.Number != 120.5 {
		t.Errorf("Unexpected Leakage GBP property: %+v", props["Leakage GBP"])
	}
	if _, ok := props["Date"].(notionapi.DateProperty); !ok {
		t.Errorf("Missing Date property")
	}
	if sel, ok := props["Rule"].(notionapi.SelectProperty); !ok || sel.Select.Name != "price_variance" {
		t.Errorf("Unexpected Rule property: %+v", props["Rule"])
	}
}

func TestSyncFlags_CreatesMissingSkipsExistingArchivesStale(t *testing.T) {
	fake := &fakeNotion{
		pages: []notionapi.Page{
			pageWithFlagID("page-1", "TXN-001|duplicate"),  // still valid: skip
			pageWithFlagID("page-2", "TXN-999|sla_breach"), // stale: archive
			pageWithFlagID("page-3", ""),                   // no key: archive
		},
	}
	scored := []domain.ScoredFlag{
		scoredFlag("TXN-001", domain.RuleDuplicate),
		scoredFlag("TXN-002", domain.RulePriceVariance),
	}

	if err := SyncFlags(context.Background(), fake, "db", scored, false); err != nil {
		t.Fatalf("SyncFlags failed: %v", err)
	}

	if len(fake.created) != 1 || fake.created[0] != "TXN-002|price_variance" {
		t.Errorf("Expected only TXN-002 created, got %v", fake.created)
	}
	if len(fake.archived) != 2 {
		t.Errorf("Expected 2 archived pages, got %v", fake.archived)
	}
}

func TestSyncFlags_DryRunWritesNothing(t *testing.T) {
	fake := &fakeNotion{
		pages: []notionapi.Page{pageWithFlagID("page-1", "TXN-999|duplicate")},
	}
	scored := []domain.ScoredFlag{scoredFlag("TXN-001", domain.RuleDuplicate)}

	if err := SyncFlags(context.Background(), fake, "db", scored, true); err != nil {
		t.Fatalf("SyncFlags dry run failed: %v", err)
	}
	if len(fake.created) != 0 || len(fake.archived) != 0 {
		t.Errorf("Dry run must not write: created=%v archived=%v", fake.created, fake.archived)
	}
}
