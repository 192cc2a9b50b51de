package ledger

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE NORMALIZER - Arbitrary representations in, canonical calendar date out
// =============================================================================

// DateNormalizer turns an arbitrary textual date into a canonical UTC
// calendar date, or fails with ErrInvalidDate. The ledger never parses dates
// anywhere else.
type DateNormalizer func(raw string) (time.Time, error)

// Layouts accepted from clients, tried in order. Day/month ambiguity is
// resolved in favor of ISO forms; slash dates are read day-first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
}

// NormalizeDate is the default DateNormalizer.
func NormalizeDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidDate)
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < minYear || t.Year() > maxYear {
			return time.Time{}, fmt.Errorf("%w: year %d out of range", ErrInvalidDate, t.Year())
		}
		// Truncate to day granularity in UTC.
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrInvalidDate, raw)
}
