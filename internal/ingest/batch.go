package ingest

import "github.com/dvloznov/purchase-analytics/internal/domain"

// Rejection records one input row that could not be parsed.
type Rejection struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Batch is the parsed content of one or more sources.
// SourceRows[i] is the number of rows contributed by Sources[i].
type Batch struct {
	Sources    []string
	SourceRows []int
	Rows       []domain.RawTransaction
	Rejected   []Rejection
}

// SourceOf returns the source that row i came from.
func (b *Batch) SourceOf(i int) string {
	for s, n := range b.SourceRows {
		if i < n {
			return b.Sources[s]
		}
		i -= n
	}
	return ""
}

// Concat joins batches in order. Rows are not de-duplicated: two sources that
// both contain the same purchase line yield it twice.
func Concat(batches ...*Batch) *Batch {
	out := &Batch{}
	for _, b := range batches {
		if b == nil {
			continue
		}
		out.Sources = append(out.Sources, b.Sources...)
		out.SourceRows = append(out.SourceRows, b.SourceRows...)
		out.Rows = append(out.Rows, b.Rows...)
		out.Rejected = append(out.Rejected, b.Rejected...)
	}
	return out
}
