package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Period is an accounting period, inclusive on both ends.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarYear returns the period covering the whole calendar year in loc.
func CalendarYear(year int, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return Period{
		Start: start,
		End:   start.AddDate(1, 0, 0).Add(-time.Nanosecond),
	}
}

// Validate checks that the period is bounded and not inverted.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return errors.Wrap(ErrInvalidPeriod, "start and end must be set")
	}
	if p.End.Before(p.Start) {
		return errors.Wrapf(ErrInvalidPeriod, "end %s is before start %s",
			p.End.Format(time.DateOnly), p.Start.Format(time.DateOnly))
	}
	return nil
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// String returns the period in date-only form.
func (p Period) String() string {
	return p.Start.Format(time.DateOnly) + ".." + p.End.Format(time.DateOnly)
}
