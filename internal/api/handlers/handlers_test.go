package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/leakage-detector/internal/domain"
	"github.com/dvloznov/leakage-detector/internal/jobs"
	"github.com/dvloznov/leakage-detector/internal/pipeline"
)

type fakePublisher struct {
	published []*jobs.DetectionRunJob
	err       error
}

func (f *fakePublisher) PublishDetectionRun(ctx context.Context, job *jobs.DetectionRunJob) error {
	if f.err != nil {
		return f.err
	}
	job.JobID = "job-123"
	job.Status = jobs.JobStatusPending
	f.published = append(f.published, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeStore struct {
	jobs map[string]*jobs.DetectionRunJob
}

func (f *fakeStore) SaveJob(ctx context.Context, job *jobs.DetectionRunJob) error {
	f.jobs[job.JobID] = job
	return nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string) (*jobs.DetectionRunJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, errors.New("job not found")
	}
	return job, nil
}

func (f *fakeStore) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.DetectionRunJob, error) {
	var out []*jobs.DetectionRunJob
	for _, j := range f.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeStore) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	return nil
}

func scoredFlag(txnID string, rule domain.Rule, severity domain.Severity) domain.ScoredFlag {
	return domain.ScoredFlag{
		Flag: domain.Flag{
			Transaction: domain.Transaction{
				TransactionID: txnID,
				Date:          time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				SupplierName:  "Albion Freight Ltd",
				Category:      "Freight",
			},
			Rule:       rule,
			LeakageGBP: 250,
		},
		CompositeScore: 63.33,
		Severity:       severity,
	}
}

func TestEnqueueRun(t *testing.T) {
	pub := &fakePublisher{}
	h := NewRunsHandler(pub, &fakeStore{jobs: map[string]*jobs.DetectionRunJob{}}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"csv_path":"data/override.csv"}`))
	rec := httptest.NewRecorder()
	h.EnqueueRun(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if len(pub.published) != 1 {
		t.Fatalf("Published %d jobs, want 1", len(pub.published))
	}
	job := pub.published[0]
	if job.TriggeredBy != "api" || job.CSVPath != "data/override.csv" {
		t.Errorf("Unexpected job: %+v", job)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["job_id"] != "job-123" || resp["status"] != "pending" {
		t.Errorf("Unexpected response: %v", resp)
	}
}

func TestEnqueueRun_EmptyBody(t *testing.T) {
	pub := &fakePublisher{}
	h := NewRunsHandler(pub, &fakeStore{jobs: map[string]*jobs.DetectionRunJob{}}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.EnqueueRun(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if len(pub.published) != 1 || pub.published[0].CSVPath != "" {
		t.Errorf("Expected one job with no CSV override, got %+v", pub.published)
	}
}

func TestEnqueueRun_PublisherFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("queue closed")}
	h := NewRunsHandler(pub, &fakeStore{jobs: map[string]*jobs.DetectionRunJob{}}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.EnqueueRun(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestGetRun(t *testing.T) {
	store := &fakeStore{jobs: map[string]*jobs.DetectionRunJob{
		"job-1": {JobID: "job-1", Status: jobs.JobStatusCompleted},
	}}
	h := NewRunsHandler(&fakePublisher{}, store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetRun(rec, httptest.NewRequest(http.MethodGet, "/api/runs/job-1", nil), "job-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	var job jobs.DetectionRunJob
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.JobID != "job-1" || job.Status != jobs.JobStatusCompleted {
		t.Errorf("Unexpected job: %+v", job)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	h := NewRunsHandler(&fakePublisher{}, &fakeStore{jobs: map[string]*jobs.DetectionRunJob{}}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetRun(rec, httptest.NewRequest(http.MethodGet, "/api/runs/absent", nil), "absent")

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListRuns_StatusFilter(t *testing.T) {
	store := &fakeStore{jobs: map[string]*jobs.DetectionRunJob{
		"job-1": {JobID: "job-1", Status: jobs.JobStatusCompleted},
		"job-2": {JobID: "job-2", Status: jobs.JobStatusFailed},
	}}
	h := NewRunsHandler(&fakePublisher{}, store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs?status=failed", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Runs  []jobs.DetectionRunJob `json:"runs"`
		Count int                    `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 || resp.Runs[0].JobID != "job-2" {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func resultsStore(scored ...domain.ScoredFlag) *pipeline.Store {
	store := pipeline.NewStore()
	store.SetLatest(&pipeline.RunState{
		RunID:  "run-1",
		Scored: scored,
		Executive: domain.ExecutiveSummary{
			HeadlineGBP: 250,
			TotalFlags:  len(scored),
			Currency:    "GBP",
		},
	})
	return store
}

func TestFlags_NoRunYet(t *testing.T) {
	h := NewResultsHandler(pipeline.NewStore(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Flags(rec, httptest.NewRequest(http.MethodGet, "/api/results/flags", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestFlags_ReturnsRecords(t *testing.T) {
	h := NewResultsHandler(resultsStore(
		scoredFlag("TXN-001", domain.RuleDuplicate, domain.SeverityHigh),
		scoredFlag("TXN-002", domain.RulePriceVariance, domain.SeverityMedium),
	), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Flags(rec, httptest.NewRequest(http.MethodGet, "/api/results/flags", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		RunID string              `json:"run_id"`
		Flags []domain.FlagRecord `json:"flags"`
		Count int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.RunID != "run-1" || resp.Count != 2 {
		t.Errorf("Unexpected response: run_id=%q count=%d", resp.RunID, resp.Count)
	}
	if resp.Flags[0].TransactionID != "TXN-001" || resp.Flags[0].RuleTriggered != "duplicate" {
		t.Errorf("Unexpected first record: %+v", resp.Flags[0])
	}
}

func TestFlags_SeverityAndRuleFilters(t *testing.T) {
	h := NewResultsHandler(resultsStore(
		scoredFlag("TXN-001", domain.RuleDuplicate, domain.SeverityHigh),
		scoredFlag("TXN-002", domain.RulePriceVariance, domain.SeverityMedium),
	), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Flags(rec, httptest.NewRequest(http.MethodGet, "/api/results/flags?severity=High", nil))

	var resp struct {
		Flags []domain.FlagRecord `json:"flags"`
		Count int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 || resp.Flags[0].TransactionID != "TXN-001" {
		t.Errorf("Unexpected severity filter result: %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.Flags(rec, httptest.NewRequest(http.MethodGet, "/api/results/flags?rule=price_variance", nil))

	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 || resp.Flags[0].TransactionID != "TXN-002" {
		t.Errorf("Unexpected rule filter result: %+v", resp)
	}
}

func TestSummary(t *testing.T) {
	h := NewResultsHandler(resultsStore(scoredFlag("TXN-001", domain.RuleDuplicate, domain.SeverityHigh)), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/results/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		RunID   string                  `json:"run_id"`
		Summary domain.ExecutiveSummary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.RunID != "run-1" || resp.Summary.HeadlineGBP != 250 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestSummary_NothingToReport(t *testing.T) {
	store := pipeline.NewStore()
	store.SetLatest(&pipeline.RunState{
		RunID:           "run-2",
		NothingToReport: true,
		Summary:         domain.DetectionSummary{TotalTransactions: 10},
	})
	h := NewResultsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/api/results/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		NothingToReport bool                    `json:"nothing_to_report"`
		Summary         domain.DetectionSummary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.NothingToReport || resp.Summary.TotalTransactions != 10 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}
