package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/api/handlers"
	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/dvloznov/purchase-analytics/internal/jobs/inmemory"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/dvloznov/purchase-analytics/internal/pipeline"
	"github.com/dvloznov/purchase-analytics/internal/reports"
	"github.com/shopspring/decimal"
)

type testServer struct {
	handler http.Handler
	dataset *pipeline.Dataset
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	dataset := pipeline.NewDataset(pipeline.DefaultSettings())
	engine := reports.NewEngine(pipeline.NewView(dataset, dataset.Settings()), reports.DefaultOptions())

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(10, store)
	t.Cleanup(func() { _ = queue.Close() })

	return &testServer{
		handler: NewRouter(
			handlers.NewReportsHandler(engine, log),
			handlers.NewJobsHandler(store, queue, log),
			log,
		),
		dataset: dataset,
	}
}

func (s *testServer) build(t *testing.T) {
	t.Helper()
	userID := int64(42)
	at := time.Date(2020, 4, 24, 12, 0, 0, 0, time.UTC)
	raw := []domain.RawTransaction{
		{EventTime: at, OrderID: 1, ProductID: 10, CategoryID: 5, Price: decimal.RequireFromString("10.00")},
		{EventTime: at.Add(time.Hour), OrderID: 2, ProductID: 11, CategoryID: 5, Price: decimal.RequireFromString("30.00"), UserID: &userID},
	}
	if _, err := s.dataset.Rebuild(context.Background(), raw); err != nil {
		t.Fatal(err)
	}
}

func (s *testServer) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decoding body: %v", method, path, err)
		}
	}
	return rec.Code
}

func TestRouter_StatusCodes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"list reports", http.MethodGet, "/api/reports", http.StatusOK},
		{"report before build", http.MethodGet, "/api/reports/user_type_summary", http.StatusServiceUnavailable},
		{"summary before build", http.MethodGet, "/api/summary", http.StatusServiceUnavailable},
		{"unknown report", http.MethodGet, "/api/reports/nope", http.StatusNotFound},
		{"missing report name", http.MethodGet, "/api/reports/", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "/api/reports", http.StatusMethodNotAllowed},
		{"rebuild needs post", http.MethodGet, "/api/rebuild", http.StatusMethodNotAllowed},
		{"unknown job", http.MethodGet, "/api/jobs/missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.do(t, tt.method, tt.path, nil); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRouter_ListReports(t *testing.T) {
	s := newTestServer(t)

	var body struct {
		Reports []string `json:"reports"`
		Count   int      `json:"count"`
	}
	s.do(t, http.MethodGet, "/api/reports", &body)
	if body.Count != len(reports.Names()) || body.Reports[0] != reports.UserTypeSummaryName {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestRouter_GetReport(t *testing.T) {
	s := newTestServer(t)
	s.build(t)

	var body handlers.TableResponse
	if code := s.do(t, http.MethodGet, "/api/reports/user_type_summary", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Count != 2 || len(body.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", body)
	}
	if body.Columns[0] != "user_type" {
		t.Errorf("unexpected columns %v", body.Columns)
	}
	anonymous := body.Rows[0]
	if anonymous[0] != "anonymous" || anonymous[4] != "10.00" || anonymous[5] != "25.00" {
		t.Errorf("unexpected anonymous row %v", anonymous)
	}
}

func TestRouter_GetSummary(t *testing.T) {
	s := newTestServer(t)
	s.build(t)

	var body map[string]any
	if code := s.do(t, http.MethodGet, "/api/summary", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["volume"] != float64(2) {
		t.Errorf("expected volume 2, got %v", body["volume"])
	}
	if body["aov"] != "20" {
		t.Errorf("expected aov 20, got %v", body["aov"])
	}
	if body["ambiguous_category_ids"] != float64(0) || body["rejected_rows"] != float64(0) {
		t.Errorf("expected clean quality counters, got %v", body)
	}
}

func TestRouter_GetSummary_QualityCounters(t *testing.T) {
	s := newTestServer(t)

	phones, tablets, acme, zeta := "phones", "tablets", "acme", "zeta"
	at := time.Date(2020, 4, 24, 12, 0, 0, 0, time.UTC)
	raw := []domain.RawTransaction{
		{EventTime: at, OrderID: 1, ProductID: 10, CategoryID: 5, CategoryCode: &phones, Brand: &acme, Price: decimal.RequireFromString("10.00")},
		{EventTime: at, OrderID: 2, ProductID: 10, CategoryID: 5, CategoryCode: &tablets, Brand: &zeta, Price: decimal.RequireFromString("20.00")},
		{EventTime: at, OrderID: 3, ProductID: 11, CategoryID: 6, CategoryCode: &phones, Brand: &acme, Price: decimal.RequireFromString("30.00")},
	}
	ctx := context.Background()
	snap, err := s.dataset.Build(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	snap.RejectedRows = 4
	s.dataset.Publish(ctx, snap)

	var body map[string]any
	if code := s.do(t, http.MethodGet, "/api/summary", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	tests := []struct {
		field string
		want  float64
	}{
		{"ambiguous_category_ids", 1},
		{"ambiguous_product_ids", 1},
		{"rejected_rows", 4},
	}
	for _, tt := range tests {
		if body[tt.field] != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.field, tt.want, body[tt.field])
		}
	}
}

func TestRouter_RebuildJobLifecycle(t *testing.T) {
	s := newTestServer(t)

	var enqueued map[string]string
	if code := s.do(t, http.MethodPost, "/api/rebuild", &enqueued); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	id := enqueued["job_id"]
	if id == "" || enqueued["status"] != "pending" {
		t.Fatalf("unexpected response %v", enqueued)
	}

	var job map[string]any
	if code := s.do(t, http.MethodGet, "/api/jobs/"+id, &job); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if job["trigger"] != "api" {
		t.Errorf("expected trigger api, got %v", job["trigger"])
	}

	var list struct {
		Count int `json:"count"`
	}
	s.do(t, http.MethodGet, "/api/jobs?status=pending", &list)
	if list.Count != 1 {
		t.Errorf("expected 1 pending job, got %d", list.Count)
	}
}
