package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{" WARN ", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewWithLevel(t *testing.T) {
	log, err := NewWithLevel("warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn level, got %s", log.GetLevel())
	}

	if _, err := NewWithLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Str("report", "hourly_peaks").Msg("Report computed")

	out := buf.String()
	if !strings.Contains(out, "Report computed") || !strings.Contains(out, `"report":"hourly_peaks"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected default info level, got %s", log.GetLevel())
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]any{
		"job_id":  "abc",
		"retries": 2,
	})
	log.Info().Msg("Job retried")

	out := buf.String()
	if !strings.Contains(out, `"job_id":"abc"`) || !strings.Contains(out, `"retries":2`) {
		t.Errorf("expected fields in output, got: %s", out)
	}
}
