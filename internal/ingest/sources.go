package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/purchase-analytics/internal/gcs"
	"github.com/dvloznov/purchase-analytics/internal/logger"
)

// Opener opens a gs:// object for reading.
type Opener interface {
	OpenObject(ctx context.Context, uri string) (io.ReadCloser, error)
}

// LoadSources parses every source in order and concatenates the results.
// Sources are local paths or gs:// URIs; the latter need a non-nil opener.
func LoadSources(ctx context.Context, opener Opener, uris ...string) (*Batch, error) {
	log := logger.FromContext(ctx)

	batches := make([]*Batch, 0, len(uris))
	for _, uri := range uris {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b, err := loadSource(ctx, opener, uri)
		if err != nil {
			return nil, fmt.Errorf("LoadSources: %w", err)
		}

		log.Info().
			Str("source", uri).
			Int("rows", len(b.Rows)).
			Int("rejected", len(b.Rejected)).
			Msg("Source parsed")
		for _, rej := range b.Rejected {
			log.Debug().
				Str("source", rej.Source).
				Int("line", rej.Line).
				Str("reason", rej.Reason).
				Msg("Row rejected")
		}
		batches = append(batches, b)
	}
	return Concat(batches...), nil
}

func loadSource(ctx context.Context, opener Opener, uri string) (*Batch, error) {
	var rc io.ReadCloser
	if gcs.IsURI(uri) {
		if opener == nil {
			return nil, fmt.Errorf("%s: no storage configured for gs:// sources", uri)
		}
		r, err := opener.OpenObject(ctx, uri)
		if err != nil {
			return nil, err
		}
		rc = r
	} else {
		f, err := os.Open(uri)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", uri, err)
		}
		rc = f
	}
	defer rc.Close()

	return ParseCSV(rc, uri)
}
