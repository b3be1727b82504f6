package pipeline

import (
	"time"

	"github.com/dvloznov/purchase-analytics/internal/domain"
)

// Default values for cleaning and normalization.
// These can be overridden via configuration or environment variables.
const (
	// DefaultNormalizationOffset is subtracted from every recorded timestamp.
	// The source clock recorded local time (UTC+8) while labelling it UTC.
	DefaultNormalizationOffset = 8 * time.Hour

	// DefaultUnlabelledTemplate renders missing category codes.
	DefaultUnlabelledTemplate = domain.DefaultUnlabelledTemplate

	// DefaultUnknownTemplate renders missing brands.
	DefaultUnknownTemplate = domain.DefaultUnknownTemplate
)

// Settings controls how raw records become analytical records.
type Settings struct {
	NormalizationOffset time.Duration
	UnlabelledTemplate  string
	UnknownTemplate     string
}

// DefaultSettings returns the settings used by the reference dataset.
func DefaultSettings() Settings {
	return Settings{
		NormalizationOffset: DefaultNormalizationOffset,
		UnlabelledTemplate:  DefaultUnlabelledTemplate,
		UnknownTemplate:     DefaultUnknownTemplate,
	}
}
