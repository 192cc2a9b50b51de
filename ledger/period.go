package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - One (month, year) billing cycle
// =============================================================================

// Period identifies a calendar month billing cycle. Together with a patient
// ID it forms the serialization key for every ledger mutation.
type Period struct {
	Month time.Month
	Year  int
}

// Years outside this window are treated as data-entry errors rather than
// legitimate billing periods.
const (
	minYear = 2000
	maxYear = 2100
)

// NewPeriod validates and builds a period from raw month/year input.
func NewPeriod(month, year int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	if year < minYear || year > maxYear {
		return Period{}, fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	return Period{Month: time.Month(month), Year: year}, nil
}

// PeriodOf returns the period containing the given date.
func PeriodOf(t time.Time) Period {
	return Period{Month: t.Month(), Year: t.Year()}
}

// CurrentPeriod returns the period containing today.
func CurrentPeriod() Period {
	return PeriodOf(time.Now().UTC())
}

// Next returns the following calendar period, wrapping December into January
// of the next year.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Month: time.January, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// Previous returns the preceding calendar period, wrapping January into
// December of the prior year.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Month: time.December, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) Equal(o Period) bool {
	return p.Year == o.Year && p.Month == o.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
