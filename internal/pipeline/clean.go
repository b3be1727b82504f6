package pipeline

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/purchase-analytics/internal/domain"
)

// ErrInvalidTimestamp is returned when a raw record has no usable event time.
var ErrInvalidTimestamp = errors.New("invalid event timestamp")

// BuildCleanSet emits exactly one CleanTransaction per raw record, in input order.
// Surrogate ids start at 1 and increase by one per record. Missing user ids,
// category codes and brands pass through untouched.
func BuildCleanSet(raw []domain.RawTransaction, offset time.Duration) ([]domain.CleanTransaction, error) {
	out := make([]domain.CleanTransaction, 0, len(raw))

	for i, r := range raw {
		if r.EventTime.IsZero() {
			return nil, fmt.Errorf("BuildCleanSet: record %d (order %d): %w", i, r.OrderID, ErrInvalidTimestamp)
		}

		eventTime := civil.DateTimeOf(r.EventTime)

		out = append(out, domain.CleanTransaction{
			ID:                  int64(i + 1),
			UserID:              r.UserID,
			EventTime:           eventTime,
			NormalizedEventTime: Normalize(eventTime, offset),
			OrderID:             r.OrderID,
			ProductID:           r.ProductID,
			CategoryID:          r.CategoryID,
			CategoryCode:        r.CategoryCode,
			Brand:               r.Brand,
			Price:               r.Price,
		})
	}

	return out, nil
}

// Normalize shifts a naive timestamp back by offset.
func Normalize(dt civil.DateTime, offset time.Duration) civil.DateTime {
	return civil.DateTimeOf(dt.In(time.UTC).Add(-offset))
}
