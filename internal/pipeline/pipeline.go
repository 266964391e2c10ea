package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/leakage-detector/internal/config"
	"github.com/dvloznov/leakage-detector/internal/detect"
	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/ingest"
	"github.com/dvloznov/leakage-detector/internal/logger"
	"github.com/dvloznov/leakage-detector/internal/report"
	"github.com/dvloznov/leakage-detector/internal/score"
)

// Step is one stage of a detection run. Steps read the fields earlier steps
// wrote on the RunState and fill in their own; the first error aborts the run.
type Step interface {
	Name() string
	Run(ctx context.Context, state *RunState) error
}

// FlagExporter persists a completed run to the warehouse.
type FlagExporter interface {
	ExportRun(ctx context.Context, runID string, runTS time.Time, scored []domain.ScoredFlag, summary domain.ExecutiveSummary) error
}

// ArtifactUploader copies run artifacts to object storage.
type ArtifactUploader interface {
	Upload(ctx context.Context, arts report.Artifacts) error
}

// DashboardSyncer mirrors the scored flag set into the review dashboard.
type DashboardSyncer interface {
	SyncFlags(ctx context.Context, scored []domain.ScoredFlag) error
}

// CriticalNotifier alerts on Critical findings. Delivery failure is logged,
// never fatal to the run.
type CriticalNotifier interface {
	NotifyCritical(ctx context.Context, summary domain.ExecutiveSummary, scored []domain.ScoredFlag) error
}

// Collaborators are the optional config-gated backends of a pipeline.
// A nil field disables the corresponding step.
type Collaborators struct {
	Exporter FlagExporter
	Uploader ArtifactUploader
	Syncer   DashboardSyncer
	Notifier CriticalNotifier
}

// Pipeline runs the detection stages in order, failing fast.
type Pipeline struct {
	cfg    *config.Config
	collab Collaborators
	store  *Store
}

// New creates a pipeline. store may be nil when no API needs the results.
func New(cfg *config.Config, collab Collaborators, store *Store) *Pipeline {
	return &Pipeline{cfg: cfg, collab: collab, store: store}
}

// Run executes one detection run over the batch at csvPath. When csvPath is
// empty the configured input file is used. A run that produces zero flags is
// not an error: the scoring, reporting and publishing steps are skipped and
// the returned state has NothingToReport set.
func (p *Pipeline) Run(ctx context.Context, csvPath string) (*RunState, error) {
	if csvPath == "" {
		csvPath = p.cfg.Input.CSVPath
	}

	state := &RunState{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		CSVPath:   csvPath,
	}

	log := logger.WithRun(logger.FromContext(ctx), state.RunID)
	ctx = logger.WithContext(ctx, log)

	log.Info().Str("csv_path", csvPath).Msg("Starting detection run")

	for _, step := range p.steps() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.Debug().Str("step", step.Name()).Msg("Running pipeline step")
		if err := step.Run(ctx, state); err != nil {
			return nil, fmt.Errorf("pipeline step %s: %w", step.Name(), err)
		}

		if state.NothingToReport {
			log.Info().Msg("No flags raised, nothing to report")
			break
		}
	}

	if p.store != nil {
		p.store.SetLatest(state)
	}

	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("flags", len(state.Scored)).
		Float64("leakage_gbp", state.Executive.HeadlineGBP).
		Dur("elapsed", time.Since(state.StartedAt)).
		Msg("Detection run complete")
	return state, nil
}

func (p *Pipeline) steps() []Step {
	return []Step{
		loadStep{},
		detectStep{params: detectParams(p.cfg)},
		scoreStep{params: scoreParams(p.cfg)},
		summarizeStep{},
		reportStep{outputDir: p.cfg.Report.OutputDir},
		exportStep{exporter: p.collab.Exporter, uploader: p.collab.Uploader},
		publishStep{syncer: p.collab.Syncer, notifier: p.collab.Notifier},
	}
}

type loadStep struct{}

func (loadStep) Name() string { return "load" }

func (loadStep) Run(ctx context.Context, state *RunState) error {
	txns, span, err := ingest.Load(ctx, state.CSVPath)
	if err != nil {
		return err
	}
	state.Transactions = txns
	state.Span = span
	return nil
}

type detectStep struct {
	params detect.Params
}

func (detectStep) Name() string { return "detect" }

func (s detectStep) Run(ctx context.Context, state *RunState) error {
	flags, summary, err := detect.Run(ctx, state.Transactions, state.Span, s.params)
	if err != nil {
		return err
	}
	state.Flags = flags
	state.Summary = summary
	if len(flags) == 0 {
		state.NothingToReport = true
	}
	return nil
}

type scoreStep struct {
	params score.Params
}

func (scoreStep) Name() string { return "score" }

func (s scoreStep) Run(ctx context.Context, state *RunState) error {
	state.Scored = score.ScoreFlags(state.Flags, s.params)
	return nil
}

type summarizeStep struct{}

func (summarizeStep) Name() string { return "summarize" }

func (summarizeStep) Run(ctx context.Context, state *RunState) error {
	state.Executive = score.BuildExecutiveSummary(state.Scored, state.Summary)
	return nil
}

type reportStep struct {
	outputDir string
}

func (reportStep) Name() string { return "report" }

func (s reportStep) Run(ctx context.Context, state *RunState) error {
	arts, err := report.Write(ctx, s.outputDir, state.StartedAt, state.Scored, state.Executive)
	if err != nil {
		return err
	}
	state.Artifacts = arts
	return nil
}

type exportStep struct {
	exporter FlagExporter
	uploader ArtifactUploader
}

func (exportStep) Name() string { return "export" }

func (s exportStep) Run(ctx context.Context, state *RunState) error {
	if s.exporter != nil {
		if err := s.exporter.ExportRun(ctx, state.RunID, state.StartedAt, state.Scored, state.Executive); err != nil {
			return err
		}
	}
	if s.uploader != nil {
		if err := s.uploader.Upload(ctx, state.Artifacts); err != nil {
			return err
		}
	}
	return nil
}

type publishStep struct {
	syncer   DashboardSyncer
	notifier CriticalNotifier
}

func (publishStep) Name() string { return "publish" }

func (s publishStep) Run(ctx context.Context, state *RunState) error {
	if s.syncer != nil {
		if err := s.syncer.SyncFlags(ctx, state.Scored); err != nil {
			return err
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyCritical(ctx, state.Executive, state.Scored); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Failed to deliver Slack alert")
		}
	}
	return nil
}

func detectParams(cfg *config.Config) detect.Params {
	return detect.Params{
		DuplicateWindowDays:    cfg.Detection.DuplicateWindowDays,
		PriceVarianceThreshold: cfg.Detection.PriceVarianceThreshold,
		SLAGraceDays:           cfg.Detection.SLAGraceDays,
		VolumeSpikeSigma:       cfg.Detection.VolumeSpikeSigma,
		VolumeRollingWindow:    cfg.Detection.VolumeRollingWindow,
	}
}

func scoreParams(cfg *config.Config) score.Params {
	return score.Params{
		RuleBaseScores:       cfg.Scoring.RuleBaseScores,
		UnknownRuleBaseScore: cfg.Scoring.UnknownRuleBaseScore,
		FinancialLow:         cfg.Scoring.FinancialLow,
		FinancialMedium:      cfg.Scoring.FinancialMedium,
		FinancialHigh:        cfg.Scoring.FinancialHigh,
		CriticalThreshold:    cfg.Scoring.CriticalThreshold,
		HighThreshold:        cfg.Scoring.HighThreshold,
		MediumThreshold:      cfg.Scoring.MediumThreshold,
	}
}
