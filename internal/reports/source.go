package reports

import (
	"iter"
	"sort"

	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// Source is a read-only stream of analytical records.
type Source interface {
	Records() iter.Seq[domain.AnalyticalRecord]
	CorruptYears() map[int]bool
}

// Pinner produces a Source fixed to a single generation of the clean set.
type Pinner interface {
	Pin() (Source, error)
}

// Quality counts data problems found while the clean set was built.
type Quality struct {
	AmbiguousCategoryIDs int
	AmbiguousProductIDs  int
	RejectedRows         int
}

// QualityReporter is implemented by sources that know how their records were built.
type QualityReporter interface {
	Quality() Quality
}

// validRecords yields only the records outside corrupt years.
func validRecords(src Source) iter.Seq[domain.AnalyticalRecord] {
	corrupt := src.CorruptYears()
	return func(yield func(domain.AnalyticalRecord) bool) {
		for r := range src.Records() {
			if corrupt[r.Year] {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// bucket accumulates volume and revenue for one segment.
type bucket struct {
	volume  int64
	revenue decimal.Decimal
}

func (b *bucket) add(price decimal.Decimal) {
	b.volume++
	b.revenue = b.revenue.Add(price)
}

func (b bucket) volumeDec() decimal.Decimal {
	return decimal.NewFromInt(b.volume)
}

// buckets is a keyed set of accumulators.
type buckets[K comparable] map[K]*bucket

func (bs buckets[K]) add(key K, price decimal.Decimal) {
	b, ok := bs[key]
	if !ok {
		b = &bucket{}
		bs[key] = b
	}
	b.add(price)
}

func (bs buckets[K]) get(key K) bucket {
	if b, ok := bs[key]; ok {
		return *b
	}
	return bucket{}
}

// userTypeRank orders anonymous before registered.
func userTypeRank(ut domain.UserType) int {
	for i, t := range domain.UserTypes {
		if t == ut {
			return i
		}
	}
	return len(domain.UserTypes)
}

// mostFrequent returns the key with the highest count, breaking ties by the smallest key.
func mostFrequent(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	var bestN int64
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}
