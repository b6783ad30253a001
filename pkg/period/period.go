// Package period handles the YYYY-MM accounting periods used by the
// commission calculator and salary composer.
package period

import (
	"errors"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// Period is a calendar month in UTC.
type Period struct {
	Year  int
	Month time.Month
}

func Parse(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func FromTime(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return p.Start().Format("2006-01")
}

// Start is the first instant of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month, so a period covers
// [Start, End).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.End())
}

func (p Period) Before(other Period) bool {
	return p.Start().Before(other.Start())
}
