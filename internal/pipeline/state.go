package pipeline

import (
	"time"

	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/report"
)

// RunState is threaded through the pipeline steps. Each step reads the
// fields of the steps before it and fills in its own.
type RunState struct {
	RunID     string
	StartedAt time.Time
	CSVPath   string

	Transactions []domain.Transaction
	Span         domain.DateRange

	Flags   []domain.Flag
	Summary domain.DetectionSummary

	Scored    []domain.ScoredFlag
	Executive domain.ExecutiveSummary

	Artifacts report.Artifacts

	// NothingToReport is set when detection produced zero flags and the
	// scoring, reporting and publishing steps were skipped.
	NothingToReport bool
}
