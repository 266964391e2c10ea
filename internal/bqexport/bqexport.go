// Package bqexport streams scored flags and per-run summaries to BigQuery
// for downstream BI dashboards.
package bqexport

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/logger"
)

// ScoredFlagRow is the scored_flags table schema.
type ScoredFlagRow struct {
	RunID          string     `bigquery:"run_id"`
	TransactionID  string     `bigquery:"transaction_id"`
	Date           civil.Date `bigquery:"date"`
	SupplierID     string     `bigquery:"supplier_id"`
	SupplierName   string     `bigquery:"supplier_name"`
	Category       string     `bigquery:"category"`
	Region         string     `bigquery:"region"`
	InvoiceAmount  float64    `bigquery:"invoice_amount"`
	BaselineRate   float64    `bigquery:"baseline_rate"`
	LeakageGBP     float64    `bigquery:"leakage_amount_gbp"`
	RuleTriggered  string     `bigquery:"rule_triggered"`
	RuleDetail     string     `bigquery:"rule_detail"`
	Severity       string     `bigquery:"severity"`
	SeverityRank   int64      `bigquery:"severity_rank"`
	CompositeScore float64    `bigquery:"composite_score"`
	ActionRequired string     `bigquery:"action_required"`
	ApprovedBy     string     `bigquery:"approved_by"`
	ExportedTS     time.Time  `bigquery:"exported_ts"`
}

// DetectionRunRow is the detection_runs table schema, one row per run.
type DetectionRunRow struct {
	RunID                string     `bigquery:"run_id"`
	RunTS                time.Time  `bigquery:"run_ts"`
	TotalTransactions    int64      `bigquery:"total_transactions"`
	TotalFlags           int64      `bigquery:"total_flags"`
	TotalLeakageGBP      float64    `bigquery:"total_leakage_gbp"`
	CriticalCount        int64      `bigquery:"critical_count"`
	HighCount            int64      `bigquery:"high_count"`
	MediumCount          int64      `bigquery:"medium_count"`
	LowCount             int64      `bigquery:"low_count"`
	DateRangeStart       civil.Date `bigquery:"date_range_start"`
	DateRangeEnd         civil.Date `bigquery:"date_range_end"`
}

// Exporter writes run output to a BigQuery dataset.
type Exporter struct {
	client     *bigquery.Client
	projectID  string
	dataset    string
	flagsTable string
	runsTable  string
}

// NewExporter creates an Exporter with a shared BigQuery client. It assumes
// Application Default Credentials are configured.
func NewExporter(ctx context.Context, projectID, dataset, flagsTable, runsTable string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}
	return &Exporter{
		client:     client,
		projectID:  projectID,
		dataset:    dataset,
		flagsTable: flagsTable,
		runsTable:  runsTable,
	}, nil
}

// Close releases the BigQuery client.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// ExportRun streams every scored flag plus one summary row for the run.
func (e *Exporter) ExportRun(ctx context.Context, runID string, runTS time.Time, scored []domain.ScoredFlag, summary domain.ExecutiveSummary) error {
	log := logger.FromContext(ctx)

	flagRows := make([]*ScoredFlagRow, 0, len(scored))
	for _, f := range scored {
		flagRows = append(flagRows, flagRow(runID, runTS, f))
	}

	ds := e.client.DatasetInProject(e.projectID, e.dataset)
	if len(flagRows) > 0 {
		if err := ds.Table(e.flagsTable).Inserter().Put(ctx, flagRows); err != nil {
			return fmt.Errorf("ExportRun: inserting flag rows: %w", err)
		}
	}

	runRow := &DetectionRunRow{
		RunID:             runID,
		RunTS:             runTS,
		TotalTransactions: int64(summary.TotalTransactionsAnalysed),
		TotalFlags:        int64(summary.TotalFlags),
		TotalLeakageGBP:   summary.HeadlineGBP,
		CriticalCount:     int64(summary.SeverityBreakdown[domain.SeverityCritical]),
		HighCount:         int64(summary.SeverityBreakdown[domain.SeverityHigh]),
		MediumCount:       int64(summary.SeverityBreakdown[domain.SeverityMedium]),
		LowCount:          int64(summary.SeverityBreakdown[domain.SeverityLow]),
		DateRangeStart:    civil.DateOf(summary.DateRange.Start),
		DateRangeEnd:      civil.DateOf(summary.DateRange.End),
	}
	if err := ds.Table(e.runsTable).Inserter().Put(ctx, []*DetectionRunRow{runRow}); err != nil {
		return fmt.Errorf("ExportRun: inserting run row: %w", err)
	}

	log.Info().
		Str("run_id", runID).
		Int("flag_rows", len(flagRows)).
		Str("dataset", e.dataset).
		Msg("run exported to BigQuery")
	return nil
}

func flagRow(runID string, runTS time.Time, f domain.ScoredFlag) *ScoredFlagRow {
	return &ScoredFlagRow{
		RunID:          runID,
		TransactionID:  f.Transaction.TransactionID,
		Date:           civil.DateOf(f.Transaction.Date),
		SupplierID:     f.Transaction.SupplierID,
		SupplierName:   f.Transaction.SupplierName,
		Category:       f.Transaction.Category,
		Region:         f.Transaction.Region,
		InvoiceAmount:  f.Transaction.InvoiceAmount,
		BaselineRate:   f.Transaction.BaselineRate,
		LeakageGBP:     f.LeakageGBP,
		RuleTriggered:  string(f.Rule),
		RuleDetail:     f.Detail,
		Severity:       string(f.Severity),
		SeverityRank:   int64(f.SeverityRank),
		CompositeScore: f.CompositeScore,
		ActionRequired: f.ActionRequired,
		ApprovedBy:     f.Transaction.ApprovedBy,
		ExportedTS:     runTS,
	}
}
