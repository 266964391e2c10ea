package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/leakage-detector/internal/api/handlers"
	"github.com/dvloznov/leakage-detector/internal/api/middleware"
	"github.com/dvloznov/leakage-detector/internal/config"
	"github.com/dvloznov/leakage-detector/internal/jobs"
	"github.com/dvloznov/leakage-detector/internal/jobs/inmemory"
	"github.com/dvloznov/leakage-detector/internal/logger"
	"github.com/dvloznov/leakage-detector/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML (optional)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	log := logger.New()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log = logger.WithLevel(log, cfg.Logging.Level)

	if *addr == "" {
		*addr = cfg.API.Addr
	}

	ctx := logger.WithContext(context.Background(), log)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.Worker.Workers, jobStore)

	// Results of the latest completed run, served by the results endpoints
	resultStore := pipeline.NewStore()

	collab, cleanup, err := pipeline.BuildCollaborators(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise backends")
	}
	defer cleanup()

	p := pipeline.New(&cfg, collab, resultStore)

	// Start worker in background to process runs enqueued via the API
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		runJob, ok := job.(*jobs.DetectionRunJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", runJob.JobID).
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
			Msg("Detection run completed")
		return nil
	}

	go func() {
		log.Info().Msg("Starting run worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Run worker stopped with error")
		}
	}()

	// Initialize handlers
	runsHandler := handlers.NewRunsHandler(jobQueue, jobStore, log)
	resultsHandler := handlers.NewResultsHandler(resultStore, log)

	// Create router
	mux := http.NewServeMux()

	// Runs endpoints
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			runsHandler.EnqueueRun(w, r)
		case http.MethodGet:
			runsHandler.ListRuns(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
				return
			}
			runsHandler.GetRun(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Results endpoints
	mux.HandleFunc("/api/results/flags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			resultsHandler.Flags(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/results/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			resultsHandler.Summary(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
