package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// Default sentinel templates. Each must contain exactly one %d verb for the source id.
const (
	DefaultUnlabelledTemplate = "unlabelled (ID: %d)"
	DefaultUnknownTemplate    = "unknown (Prod: %d)"
)

// Label is a resolved category or brand. When Known is false the label is a
// sentinel and SourceID holds the category_id or product_id it stands in for.
type Label struct {
	Value    string
	Known    bool
	SourceID int64
}

// KnownLabel wraps a real value.
func KnownLabel(value string, sourceID int64) Label {
	return Label{Value: value, Known: true, SourceID: sourceID}
}

// SentinelLabel renders the template for an id that has no usable label.
func SentinelLabel(template string, sourceID int64) Label {
	return Label{Value: fmt.Sprintf(template, sourceID), Known: false, SourceID: sourceID}
}

func (l Label) String() string {
	return l.Value
}

var sentinelIDPattern = regexp.MustCompile(`\(\w+: (-?\d+)\)$`)

// ParseSentinelID recovers the numeric id embedded in a sentinel string such
// as "unlabelled (ID: 99)". It reports false for anything else.
func ParseSentinelID(s string) (int64, bool) {
	m := sentinelIDPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
