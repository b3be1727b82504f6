package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/purchase-analytics/internal/api/middleware"
	"github.com/dvloznov/purchase-analytics/internal/jobs"
	"github.com/dvloznov/purchase-analytics/internal/pipeline"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/rs/zerolog"
)

// ReportRunner computes reports on demand. *reports.Engine implements it.
type ReportRunner interface {
	Run(ctx context.Context, name string) (*reports.Table, error)
	Summary(ctx context.Context) (reports.Summary, error)
}

// TableResponse is the JSON form of a report table. Decimal cells are
// rendered with two fixed places and nulls as empty strings.
type TableResponse struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Count   int        `json:"count"`
}

// NewTableResponse renders t for the API.
func NewTableResponse(t *reports.Table) TableResponse {
	rows := t.Strings()
	if rows == nil {
		rows = [][]string{}
	}
	return TableResponse{Name: t.Name, Columns: t.Columns, Rows: rows, Count: len(rows)}
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	runner ReportRunner
	log    zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(runner ReportRunner, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		runner: runner,
		log:    log,
	}
}

// ListReports handles GET /api/reports
func (h *ReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	names := reports.Names()
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"reports": names,
		"count":   len(names),
	})
}

// GetReport handles GET /api/reports/{name}
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request, name string) {
	table, err := h.runner.Run(r.Context(), name)
	if err != nil {
		h.writeRunError(w, err, "Failed to compute report")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, NewTableResponse(table))
}

// GetSummary handles GET /api/summary
func (h *ReportsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Summary(r.Context())
	if err != nil {
		h.writeRunError(w, err, "Failed to compute summary")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

func (h *ReportsHandler) writeRunError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, reports.ErrUnknownReport):
		middleware.WriteError(w, http.StatusNotFound, "Report not found")
	case errors.Is(err, pipeline.ErrNoSnapshot):
		middleware.WriteError(w, http.StatusServiceUnavailable, "Dataset has not been built yet")
	default:
		h.log.Error().Err(err).Msg(message)
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// JobsHandler handles rebuild job endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		log:       log,
	}
}

// EnqueueRebuild handles POST /api/rebuild
func (h *JobsHandler) EnqueueRebuild(w http.ResponseWriter, r *http.Request) {
	job := &jobs.RebuildJob{Trigger: "api"}
	if err := h.publisher.PublishRebuild(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue rebuild")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue rebuild")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Rebuild enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(jobs.JobStatusPending),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Trigger: query.Get("trigger"),
		Status:  jobs.JobStatus(query.Get("status")),
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

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
