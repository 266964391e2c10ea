// Package report writes the run artifacts consumed by operations and
// finance teams: a flagged-items CSV and an executive-summary JSON, with
// optional upload of both to a GCS bucket.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/logger"
)

// Artifacts lists the files written for one run.
type Artifacts struct {
	FlaggedCSV  string
	SummaryJSON string
}

var flaggedHeader = []string{
	"transaction_id", "date", "supplier_name", "category", "region",
	"invoice_amount", "baseline_rate", "leakage_amount_gbp",
	"rule_triggered", "rule_detail", "severity", "severity_rank",
	"composite_score", "action_required", "approved_by",
}

// Write renders both artifacts into outputDir, filenames templated with the
// run date (leakage_flags_YYYY-MM-DD.csv, leakage_summary_YYYY-MM-DD.json).
// The scored set is written in its ranked order.
func Write(ctx context.Context, outputDir string, runDate time.Time, scored []domain.ScoredFlag, summary domain.ExecutiveSummary) (Artifacts, error) {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}

	stamp := runDate.Format("2006-01-02")
	arts := Artifacts{
		FlaggedCSV:  filepath.Join(outputDir, fmt.Sprintf("leakage_flags_%s.csv", stamp)),
		SummaryJSON: filepath.Join(outputDir, fmt.Sprintf("leakage_summary_%s.json", stamp)),
	}

	f, err := os.Create(arts.FlaggedCSV)
	if err != nil {
		return Artifacts{}, fmt.Errorf("create flagged csv: %w", err)
	}
	if err := WriteFlaggedCSV(f, scored); err != nil {
		f.Close()
		return Artifacts{}, err
	}
	if err := f.Close(); err != nil {
		return Artifacts{}, fmt.Errorf("close flagged csv: %w", err)
	}

	j, err := os.Create(arts.SummaryJSON)
	if err != nil {
		return Artifacts{}, fmt.Errorf("create summary json: %w", err)
	}
	if err := WriteSummaryJSON(j, summary); err != nil {
		j.Close()
		return Artifacts{}, err
	}
	if err := j.Close(); err != nil {
		return Artifacts{}, fmt.Errorf("close summary json: %w", err)
	}

	log.Info().
		Str("flags_csv", arts.FlaggedCSV).
		Str("summary_json", arts.SummaryJSON).
		Int("flags", len(scored)).
		Msg("report artifacts written")
	return arts, nil
}

// WriteFlaggedCSV writes one row per scored flag in ranked order.
func WriteFlaggedCSV(w io.Writer, scored []domain.ScoredFlag) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(flaggedHeader); err != nil {
		return fmt.Errorf("write flagged header: %w", err)
	}
	for _, f := range scored {
		r := f.Record()
		row := []string{
			r.TransactionID,
			r.Date,
			r.SupplierName,
			r.Category,
			r.Region,
			strconv.FormatFloat(r.InvoiceAmount, 'f', 2, 64),
			strconv.FormatFloat(r.BaselineRate, 'f', 2, 64),
			strconv.FormatFloat(r.LeakageGBP, 'f', 2, 64),
			r.RuleTriggered,
			r.RuleDetail,
			r.Severity,
			strconv.Itoa(r.SeverityRank),
			strconv.FormatFloat(r.CompositeScore, 'f', 2, 64),
			r.ActionRequired,
			r.ApprovedBy,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write flagged row %s: %w", r.TransactionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryJSON writes the executive summary, indented for human reads.
func WriteSummaryJSON(w io.Writer, summary domain.ExecutiveSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}
