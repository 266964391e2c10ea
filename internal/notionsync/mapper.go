package notionsync

import (
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/leakage-detector/internal/domain"
)

// FlagKey builds the "Flag ID" title used to identify a scored flag across
// syncs: one Notion page per (transaction, rule) pair.
func FlagKey(f domain.ScoredFlag) string {
	return fmt.Sprintf("%s|%s", f.Transaction.TransactionID, f.Rule)
}

// FlagToNotionProperties converts a scored flag to the properties of the
// leakage dashboard database.
func FlagToNotionProperties(f domain.ScoredFlag) notionapi.Properties {
	props := notionapi.Properties{
		"Flag ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: FlagKey(f),
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: notionDate(f.Transaction.Date),
			},
		},
		"Leakage GBP": notionapi.NumberProperty{
			Number: f.LeakageGBP,
		},
		"Composite Score": notionapi.NumberProperty{
			Number: f.CompositeScore,
		},
	}

	if f.Transaction.SupplierName != "" {
		props["Supplier"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: f.Transaction.SupplierName,
			},
		}
	}

	if f.Transaction.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: f.Transaction.Category,
			},
		}
	}

	if f.Transaction.Region != "" {
		props["Region"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: f.Transaction.Region,
			},
		}
	}

	props["Rule"] = notionapi.SelectProperty{
		Select: notionapi.Option{
			Name: string(f.Rule),
		},
	}

	props["Severity"] = notionapi.SelectProperty{
		Select: notionapi.Option{
			Name: string(f.Severity),
		},
	}

	if f.Detail != "" {
		props["Detail"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: f.Detail,
					},
				},
			},
		}
	}

	if f.ActionRequired != "" {
		props["Action Required"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: f.ActionRequired,
					},
				},
			},
		}
	}

	if f.Transaction.ApprovedBy != "" {
		props["Approved By"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: f.Transaction.ApprovedBy,
			},
		}
	}

	return props
}

func notionDate(t time.Time) *notionapi.Date {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return &d
}
