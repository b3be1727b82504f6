// Package api wires the HTTP routes of the report server.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/api/handlers"
	"github.com/dvloznov/purchase-analytics/internal/api/middleware"
	"github.com/rs/zerolog"
)

// NewRouter registers every endpoint and wraps the mux in the standard middleware.
func NewRouter(reportsHandler *handlers.ReportsHandler, jobsHandler *handlers.JobsHandler, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/reports", method(http.MethodGet, reportsHandler.ListReports))
	mux.HandleFunc("/api/reports/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/reports/")
		if name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Report name is required")
			return
		}
		reportsHandler.GetReport(w, r, name)
	}))
	mux.HandleFunc("/api/summary", method(http.MethodGet, reportsHandler.GetSummary))

	mux.HandleFunc("/api/rebuild", method(http.MethodPost, jobsHandler.EnqueueRebuild))
	mux.HandleFunc("/api/jobs", method(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log, "/health"),
		middleware.CORS,
	)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
