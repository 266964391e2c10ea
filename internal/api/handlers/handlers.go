package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/leakage-detector/internal/api/middleware"
	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/jobs"
	"github.com/dvloznov/leakage-detector/internal/pipeline"
)

// RunsHandler handles detection run endpoints.
type RunsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// EnqueueRun handles POST /api/runs
func (h *RunsHandler) EnqueueRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CSVPath string `json:"csv_path"`
	}

	// Empty body means run against the configured input file.
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	ctx := r.Context()

	job := &jobs.DetectionRunJob{
		TriggeredBy: "api",
		CSVPath:     req.CSVPath,
	}

	if err := h.publisher.PublishDetectionRun(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue detection run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue detection run")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Detection run enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		TriggeredBy: query.Get("triggered_by"),
		Status:      jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	runs, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// ResultsHandler serves the latest completed run's flags and summary.
type ResultsHandler struct {
	results *pipeline.Store
	log     zerolog.Logger
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(results *pipeline.Store, log zerolog.Logger) *ResultsHandler {
	return &ResultsHandler{
		results: results,
		log:     log,
	}
}

// Flags handles GET /api/results/flags
func (h *ResultsHandler) Flags(w http.ResponseWriter, r *http.Request) {
	state := h.results.Latest()
	if state == nil {
		middleware.WriteError(w, http.StatusNotFound, "No completed run yet")
		return
	}

	severity := r.URL.Query().Get("severity")
	rule := r.URL.Query().Get("rule")

	records := []domain.FlagRecord{}
	for _, f := range state.Scored {
		if severity != "" && string(f.Severity) != severity {
			continue
		}
		if rule != "" && string(f.Rule) != rule {
			continue
		}
		records = append(records, f.Record())
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": state.RunID,
		"flags":  records,
		"count":  len(records),
	})
}

// Summary handles GET /api/results/summary
func (h *ResultsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	state := h.results.Latest()
	if state == nil {
		middleware.WriteError(w, http.StatusNotFound, "No completed run yet")
		return
	}
	if state.NothingToReport {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"run_id":            state.RunID,
			"nothing_to_report": true,
			"summary":           state.Summary,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  state.RunID,
		"summary": state.Executive,
	})
}
