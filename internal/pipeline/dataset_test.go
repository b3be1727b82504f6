package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/domain"
)

func TestDataset_CurrentBeforeBuild(t *testing.T) {
	d := NewDataset(DefaultSettings())
	if _, err := d.Current(); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestDataset_RebuildPublishesSnapshot(t *testing.T) {
	d := NewDataset(DefaultSettings())
	snap, err := d.Rebuild(context.Background(), []domain.RawTransaction{
		rawRow(7, strPtr("a")),
		rawRow(7, strPtr("b")),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.BuildID == "" {
		t.Error("expected a build id")
	}
	if got := snap.CategoryStats.AmbiguousIDs; len(got) != 1 || got[0] != 7 {
		t.Errorf("expected ambiguous id 7, got %v", got)
	}

	current, err := d.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current != snap {
		t.Error("expected the returned snapshot to be current")
	}
}

func TestDataset_BuildDoesNotPublish(t *testing.T) {
	d := NewDataset(DefaultSettings())
	snap, err := d.Build(context.Background(), []domain.RawTransaction{rawRow(1, nil)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Current(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected nothing published yet, got %v", err)
	}

	d.Publish(context.Background(), snap)
	current, err := d.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current != snap {
		t.Error("expected the published snapshot to be current")
	}
}

func TestDataset_FailedRebuildKeepsPrevious(t *testing.T) {
	d := NewDataset(DefaultSettings())
	first, err := d.Rebuild(context.Background(), []domain.RawTransaction{rawRow(1, nil)})
	if err != nil {
		t.Fatal(err)
	}

	bad := rawRow(2, nil)
	bad.EventTime = time.Time{}
	if _, err := d.Rebuild(context.Background(), []domain.RawTransaction{rawRow(1, nil), bad}); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}

	current, err := d.Current()
	if err != nil {
		t.Fatal(err)
	}
	if current != first {
		t.Error("expected the previous snapshot to stay in place")
	}
}

func TestDataset_ConcurrentReadsDuringRebuild(t *testing.T) {
	d := NewDataset(DefaultSettings())
	if _, err := d.Rebuild(context.Background(), []domain.RawTransaction{rawRow(1, nil)}); err != nil {
		t.Fatal(err)
	}
	v := NewView(d, d.Settings())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				n := len(collect(v))
				if n != 1 && n != 2 {
					t.Errorf("observed partial snapshot with %d records", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		if _, err := d.Rebuild(context.Background(), []domain.RawTransaction{rawRow(1, nil), rawRow(2, nil)}); err != nil {
			t.Error(err)
		}
	}
	wg.Wait()
}
