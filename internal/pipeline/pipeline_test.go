package pipeline_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	infra "github.com/dvloznov/purchase-analytics/internal/infra/bigquery"
	"github.com/dvloznov/purchase-analytics/internal/ingest"
	"github.com/dvloznov/purchase-analytics/internal/jobs"
	"github.com/dvloznov/purchase-analytics/internal/pipeline"
	"github.com/dvloznov/purchase-analytics/internal/reports"
)

const purchasesCSV = `event_time,order_id,product_id,category_id,category_code,brand,price,user_id
2020-04-24 11:50:39 UTC,1,100,5,electronics.smartphone,samsung,10.00,
2020-04-24 14:37:43 UTC,2,200,5,,apple,30.00,42
2020-04-25 19:16:21 UTC,3,300,99,,,20.00,43
not a time,4,400,5,,,1.00,
`

// MockRepository implements the raw, clean and report repositories.
type MockRepository struct {
	mu sync.Mutex

	Raw       []*infra.RawTransactionRow
	Clean     []*infra.CleanTransactionRow
	Runs      []*infra.BuildRunRow
	Saved     []string
	ReplaceID string

	LoadErr    error
	ReplaceErr error
}

func (m *MockRepository) InsertRawTransactions(ctx context.Context, rows []*infra.RawTransactionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Raw = append(m.Raw, rows...)
	return nil
}

func (m *MockRepository) LoadRawTransactions(ctx context.Context) ([]*infra.RawTransactionRow, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Raw, nil
}

func (m *MockRepository) ReplaceCleanTransactions(ctx context.Context, buildID string, rows []*infra.CleanTransactionRow) error {
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.ReplaceID = buildID
	m.Clean = rows
	return nil
}

func (m *MockRepository) RecordBuildRun(ctx context.Context, row *infra.BuildRunRow) error {
	m.Runs = append(m.Runs, row)
	return nil
}

func (m *MockRepository) SaveReport(ctx context.Context, table *reports.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, table.Name)
	return nil
}

// MockStorageService serves objects from memory and records uploads.
type MockStorageService struct {
	Objects  map[string]string
	Uploaded []string
}

func (m *MockStorageService) OpenObject(ctx context.Context, uri string) (io.ReadCloser, error) {
	body, ok := m.Objects[uri]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (m *MockStorageService) UploadFile(ctx context.Context, bucket, object, filePath string) error {
	m.Uploaded = append(m.Uploaded, bucket+"/"+object)
	return nil
}

func newEngine(d *pipeline.Dataset) *reports.Engine {
	return reports.NewEngine(pipeline.NewView(d, d.Settings()), reports.DefaultOptions())
}

func TestIngest(t *testing.T) {
	repo := &MockRepository{}
	storage := &MockStorageService{Objects: map[string]string{
		"gs://in/2020-Apr.csv": purchasesCSV,
		"gs://in/2020-May.csv": purchasesCSV,
	}}

	state, err := pipeline.Ingest(context.Background(), pipeline.Deps{Storage: storage, Raw: repo},
		"gs://in/2020-Apr.csv", "gs://in/2020-May.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.Raw) != 6 {
		t.Fatalf("expected 6 raw rows, got %d", len(repo.Raw))
	}
	if len(state.Batch.Rejected) != 2 {
		t.Errorf("expected 2 rejected rows, got %d", len(state.Batch.Rejected))
	}
	for i, row := range repo.Raw {
		if row.BatchID != state.BatchID {
			t.Errorf("row %d: expected batch id %s, got %s", i, state.BatchID, row.BatchID)
		}
		if row.Seq != int64(i) {
			t.Errorf("row %d: expected seq %d, got %d", i, i, row.Seq)
		}
	}
	if repo.Raw[2].Source != "gs://in/2020-Apr.csv" || repo.Raw[3].Source != "gs://in/2020-May.csv" {
		t.Errorf("unexpected sources %q, %q", repo.Raw[2].Source, repo.Raw[3].Source)
	}
}

func TestIngest_RequiresRepository(t *testing.T) {
	if _, err := pipeline.Ingest(context.Background(), pipeline.Deps{}, "a.csv"); err == nil {
		t.Error("expected error without a raw repository")
	}
}

func TestIngest_NoRows(t *testing.T) {
	storage := &MockStorageService{Objects: map[string]string{
		"gs://in/empty.csv": "event_time,order_id,product_id,category_id,price\n",
	}}
	_, err := pipeline.Ingest(context.Background(), pipeline.Deps{Storage: storage, Raw: &MockRepository{}}, "gs://in/empty.csv")
	if !errors.Is(err, pipeline.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func ingested(t *testing.T) *MockRepository {
	t.Helper()
	repo := &MockRepository{}
	storage := &MockStorageService{Objects: map[string]string{"gs://in/a.csv": purchasesCSV}}
	if _, err := pipeline.Ingest(context.Background(), pipeline.Deps{Storage: storage, Raw: repo}, "gs://in/a.csv"); err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestRebuild(t *testing.T) {
	repo := ingested(t)
	d := pipeline.NewDataset(pipeline.DefaultSettings())

	state, err := pipeline.Rebuild(context.Background(), pipeline.Deps{Raw: repo, Clean: repo}, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.Clean) != 3 {
		t.Fatalf("expected 3 clean rows, got %d", len(repo.Clean))
	}
	if repo.ReplaceID != state.Snapshot.BuildID {
		t.Errorf("expected build id %s, got %s", state.Snapshot.BuildID, repo.ReplaceID)
	}
	if repo.Clean[2].ID != 3 {
		t.Errorf("expected surrogate id 3, got %d", repo.Clean[2].ID)
	}
	if len(repo.Runs) != 1 {
		t.Fatalf("expected 1 build run, got %d", len(repo.Runs))
	}
	run := repo.Runs[0]
	if run.Status != infra.BuildStatusSucceeded || run.CleanRows != 3 || run.RawRows != 3 {
		t.Errorf("unexpected build run %+v", run)
	}
	if run.NormalizationOffsetSeconds != 8*3600 {
		t.Errorf("expected offset 28800, got %d", run.NormalizationOffsetSeconds)
	}

	if _, err := d.Current(); err != nil {
		t.Errorf("expected dataset to hold a snapshot: %v", err)
	}
}

func TestRebuild_ReplaceFailureIsRecorded(t *testing.T) {
	repo := ingested(t)
	repo.ReplaceErr = errors.New("quota exceeded")
	d := pipeline.NewDataset(pipeline.DefaultSettings())

	_, err := pipeline.Rebuild(context.Background(), pipeline.Deps{Raw: repo, Clean: repo}, d)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.Runs) != 1 || repo.Runs[0].Status != infra.BuildStatusFailed {
		t.Fatalf("expected one FAILED build run, got %+v", repo.Runs)
	}
	if !strings.Contains(repo.Runs[0].ErrorMessage, "quota exceeded") {
		t.Errorf("unexpected error message %q", repo.Runs[0].ErrorMessage)
	}
	if _, err := d.Current(); !errors.Is(err, pipeline.ErrNoSnapshot) {
		t.Errorf("expected unmaterialized build to stay unpublished, got %v", err)
	}
}

func TestRebuild_ReplaceFailureKeepsPreviousSnapshot(t *testing.T) {
	repo := ingested(t)
	d := pipeline.NewDataset(pipeline.DefaultSettings())
	deps := pipeline.Deps{Raw: repo, Clean: repo}

	first, err := pipeline.Rebuild(context.Background(), deps, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.ReplaceErr = errors.New("quota exceeded")
	if _, err := pipeline.Rebuild(context.Background(), deps, d); err == nil {
		t.Fatal("expected error")
	}

	current, err := d.Current()
	if err != nil {
		t.Fatalf("expected previous snapshot, got %v", err)
	}
	if current.BuildID != first.Snapshot.BuildID {
		t.Errorf("expected build %s to stay current, got %s", first.Snapshot.BuildID, current.BuildID)
	}
	if repo.ReplaceID != first.Snapshot.BuildID {
		t.Errorf("expected clean table to hold build %s, got %s", first.Snapshot.BuildID, repo.ReplaceID)
	}
}

func TestRebuild_LoadFailure(t *testing.T) {
	repo := &MockRepository{LoadErr: errors.New("not found")}
	d := pipeline.NewDataset(pipeline.DefaultSettings())

	if _, err := pipeline.Rebuild(context.Background(), pipeline.Deps{Raw: repo}, d); err == nil {
		t.Fatal("expected error")
	}
	if _, err := d.Current(); !errors.Is(err, pipeline.ErrNoSnapshot) {
		t.Errorf("expected no snapshot, got %v", err)
	}
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "purchases.csv")
	if err := os.WriteFile(path, []byte(purchasesCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunLocal(t *testing.T) {
	d := pipeline.NewDataset(pipeline.DefaultSettings())
	storage := &MockStorageService{}
	repo := &MockRepository{}
	dir := t.TempDir()
	out := pipeline.Output{
		Dir:      dir,
		Workbook: filepath.Join(dir, "reports.xlsx"),
		Bucket:   "reports-bucket",
		Prefix:   "daily",
	}

	state, err := pipeline.RunLocal(context.Background(), pipeline.Deps{Storage: storage, Reports: repo},
		d, newEngine(d), out, writeSource(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := len(reports.Names())
	if len(state.Tables) != want {
		t.Errorf("expected %d tables, got %d", want, len(state.Tables))
	}
	if len(state.Exported) != want+1 {
		t.Errorf("expected %d exported files, got %d", want+1, len(state.Exported))
	}
	if len(storage.Uploaded) != want+1 {
		t.Errorf("expected %d uploads, got %d", want+1, len(storage.Uploaded))
	}
	if storage.Uploaded[0] != "reports-bucket/daily/user_type_summary.csv" {
		t.Errorf("unexpected object %s", storage.Uploaded[0])
	}
	if len(repo.Saved) != want {
		t.Errorf("expected %d saved reports, got %d", want, len(repo.Saved))
	}

	summary := state.Tables[0]
	if summary.Name != reports.UserTypeSummaryName || len(summary.Rows) != 2 {
		t.Errorf("unexpected user type summary %+v", summary)
	}

	totals, err := newEngine(d).Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if totals.RejectedRows != 1 {
		t.Errorf("expected 1 rejected row carried into the summary, got %d", totals.RejectedRows)
	}
}

func TestReport_SelectedNames(t *testing.T) {
	d := pipeline.NewDataset(pipeline.DefaultSettings())
	batch, err := ingest.ParseCSV(strings.NewReader(purchasesCSV), "inline")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Rebuild(context.Background(), batch.Rows); err != nil {
		t.Fatal(err)
	}

	out := pipeline.Output{Reports: []string{reports.BrandMasterName, reports.HourlyPeaksName}}
	state, err := pipeline.Report(context.Background(), pipeline.Deps{}, newEngine(d), out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Tables) != 2 || state.Tables[0].Name != reports.BrandMasterName {
		t.Errorf("unexpected tables %v", state.Tables)
	}
	if len(state.Exported) != 0 {
		t.Errorf("expected no exports without an output, got %v", state.Exported)
	}
}

func TestReport_UnknownName(t *testing.T) {
	d := pipeline.NewDataset(pipeline.DefaultSettings())
	_, err := pipeline.Report(context.Background(), pipeline.Deps{}, newEngine(d), pipeline.Output{Reports: []string{"nope"}})
	if !errors.Is(err, reports.ErrUnknownReport) {
		t.Errorf("expected ErrUnknownReport, got %v", err)
	}
}

func TestPipeline_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := pipeline.NewDataset(pipeline.DefaultSettings())
	_, err := pipeline.RunLocal(ctx, pipeline.Deps{}, d, newEngine(d), pipeline.Output{}, writeSource(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRebuildJobHandler(t *testing.T) {
	repo := ingested(t)
	d := pipeline.NewDataset(pipeline.DefaultSettings())
	handler := pipeline.RebuildJobHandler(pipeline.Deps{Raw: repo, Clean: repo}, d)

	job := &jobs.RebuildJob{JobID: "job-1", Trigger: "api"}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.BuildID == "" || job.BuildID != repo.ReplaceID {
		t.Errorf("expected build id %s on the job, got %q", repo.ReplaceID, job.BuildID)
	}
	if job.RawRows != 3 || job.CleanRows != 3 {
		t.Errorf("unexpected row counts %d/%d", job.RawRows, job.CleanRows)
	}
}

func TestRebuildJobHandler_Failure(t *testing.T) {
	repo := &MockRepository{LoadErr: errors.New("table not found")}
	handler := pipeline.RebuildJobHandler(pipeline.Deps{Raw: repo}, pipeline.NewDataset(pipeline.DefaultSettings()))

	job := &jobs.RebuildJob{JobID: "job-2"}
	if err := handler(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	if job.BuildID != "" {
		t.Errorf("expected no build id on failure, got %q", job.BuildID)
	}
}
