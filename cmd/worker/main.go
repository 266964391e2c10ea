package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/leakage-detector/internal/config"
	"github.com/dvloznov/leakage-detector/internal/jobs"
	"github.com/dvloznov/leakage-detector/internal/jobs/inmemory"
	"github.com/dvloznov/leakage-detector/internal/logger"
	"github.com/dvloznov/leakage-detector/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML (optional)")
	flag.Parse()

	log := logger.New()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log = logger.WithLevel(log, cfg.Logging.Level)

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.Worker.Workers, jobStore)

	log.Info().
		Str("run_at", cfg.Worker.RunAt).
		Str("timezone", cfg.Worker.Timezone).
		Int("workers", cfg.Worker.Workers).
		Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	collab, cleanup, err := pipeline.BuildCollaborators(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise backends")
	}
	defer cleanup()

	p := pipeline.New(&cfg, collab, nil)

	handler := func(ctx context.Context, job jobs.Job) error {
		runJob, ok := job.(*jobs.DetectionRunJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", runJob.JobID).
			Str("triggered_by", runJob.TriggeredBy).
			Msg("Processing detection run")

		state, err := p.Run(ctx, runJob.CSVPath)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", runJob.JobID).
				Msg("Detection run failed")
			return err
		}
		runJob.RunID = state.RunID

		log.Info().
			Str("job_id", runJob.JobID).
			Str("run_id", state.RunID).
			Int("flags", len(state.Scored)).
			Msg("Detection run completed")
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Enqueue a run daily at the configured local time.
	go schedule(ctx, cfg, jobQueue)

	log.Info().Msg("Worker service started, waiting for scheduled runs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}

func schedule(ctx context.Context, cfg config.Config, publisher jobs.Publisher) {
	log := logger.FromContext(ctx)
	loc := cfg.Worker.Location()

	for {
		next := nextRunTime(time.Now(), cfg.Worker.RunAt, loc)
		log.Info().Time("next_run", next).Msg("Next scheduled detection run")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		job := &jobs.DetectionRunJob{
			TriggeredBy: "schedule",
			MaxRetries:  cfg.Worker.MaxRetries,
		}
		if err := publisher.PublishDetectionRun(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue scheduled run")
			continue
		}
		log.Info().Str("job_id", job.JobID).Msg("Scheduled detection run enqueued")
	}
}

// nextRunTime returns the next occurrence of the HH:MM wall time in loc that
// is strictly after now.
func nextRunTime(now time.Time, runAt string, loc *time.Location) time.Time {
	t, err := time.Parse("15:04", runAt)
	if err != nil {
		t, _ = time.Parse("15:04", "06:00")
	}

	now = now.In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
