package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/purchase-analytics/internal/logger"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
	}{
		{"keeps caller id", "req-123"},
		{"assigns new id", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Errorf("expected header and context id to match, got %q and %q", got, seen)
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Errorf("expected %q, got %q", tt.incoming, got)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	h := Recovery(logger.NewWithWriter(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "Panic recovered") {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}

func TestLogger_PutsLoggerInContext(t *testing.T) {
	buf := &bytes.Buffer{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		log.Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})
	h := Chain(inner, RequestID, Logger(logger.NewWithWriter(buf)))

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.Header.Set(RequestIDHeader, "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, "inside handler") {
		t.Errorf("expected handler log line, got %s", out)
	}
	if strings.Count(out, `"request_id":"abc"`) != 2 {
		t.Errorf("expected request id on both lines, got %s", out)
	}
	if !strings.Contains(out, `"status":418`) {
		t.Errorf("expected captured status, got %s", out)
	}
}

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		path   string
		status int
		level  string
	}{
		{"/api/summary", http.StatusOK, `"level":"info"`},
		{"/api/reports/nope", http.StatusNotFound, `"level":"warn"`},
		{"/api/summary", http.StatusServiceUnavailable, `"level":"error"`},
		{"/health", http.StatusOK, `"level":"debug"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf := &bytes.Buffer{}
			h := Logger(logger.NewWithWriter(buf), "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("expected %s, got %s", tt.level, out)
			}
			if !strings.Contains(out, `"bytes":2`) {
				t.Errorf("expected body size, got %s", out)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/rebuild", nil))

	if rec.Code != http.StatusNoContent || called {
		t.Errorf("expected 204 without calling next, got %d called=%v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}
