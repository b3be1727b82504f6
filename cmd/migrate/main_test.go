package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_raw_transactions.sql", true, 1, "raw_transactions"},
		{"0004_analytical_view.sql", true, 4, "analytical_view"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("expected valid=%v, got %v", tt.valid, ok)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("expected %d %q, got %d %q", tt.version, tt.name, version, name)
			}
		})
	}
}

func TestChecksumAndRender(t *testing.T) {
	content := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);")

	if got := checksum(content); len(got) != 64 {
		t.Errorf("expected hex sha256, got %q", got)
	}
	if checksum(content) == checksum([]byte("CREATE TABLE other (id INT64);")) {
		t.Error("different content should give different checksums")
	}

	got := render(string(content), target{projectID: "p", datasetID: "d"})
	if got != "CREATE TABLE `p.d.t` (id INT64);" {
		t.Errorf("unexpected rendered SQL %q", got)
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_clean.sql":   "SELECT 2",
		"0001_raw.sql":     "SELECT 1 FROM `{{DATASET_ID}}.x`",
		"README.md":        "ignored",
		"01_too_short.sql": "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := readMigrations(dir, target{projectID: "p", datasetID: "shop"}, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("expected migrations sorted by version, got %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`shop.x`") {
		t.Errorf("expected placeholders to be rendered, got %q", migrations[0].SQL)
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0001_a.sql", "0001_b.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := readMigrations(dir, target{}, zerolog.New(io.Discard)); err == nil {
		t.Error("expected error for duplicate version")
	}
}

func TestPendingMigrations(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "raw", Checksum: "aaa"},
		{Version: 2, Name: "clean", Checksum: "bbb"},
		{Version: 3, Name: "runs", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "changed"},
	}

	pending := pendingMigrations(migrations, applied, zerolog.New(io.Discard))
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("expected only version 3 pending, got %+v", pending)
	}
}

func TestRepositoryMigrationsParse(t *testing.T) {
	dir, err := findMigrationsDir("migrations/bigquery")
	if err != nil {
		t.Skip("migrations directory not available")
	}
	migrations, err := readMigrations(dir, target{projectID: "p", datasetID: "d"}, zerolog.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("expected contiguous versions, got %d at position %d", m.Version, i)
		}
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s: unrendered placeholder", m.Filename)
		}
	}
}

func TestAnalyticalViewColumns(t *testing.T) {
	dir, err := findMigrationsDir("migrations/bigquery")
	if err != nil {
		t.Skip("migrations directory not available")
	}
	content, err := os.ReadFile(filepath.Join(dir, "0004_analytical_view.sql"))
	if err != nil {
		t.Fatal(err)
	}
	sql := string(content)

	columns := []string{
		"AS user_type", "AS category_code", "AS category_known", "AS brand", "AS brand_known",
		"AS year", "AS month", "AS day", "AS hour", "AS weekday",
	}
	for _, col := range columns {
		if !strings.Contains(sql, col) {
			t.Errorf("analytical view is missing %q", col)
		}
	}
	if !strings.Contains(sql, "'unlabelled (ID: '") || !strings.Contains(sql, "'unknown (Prod: '") {
		t.Error("analytical view should render the same sentinels as the in-memory view")
	}
}
