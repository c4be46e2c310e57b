package invoicing

import (
	"fmt"
	"strconv"
	"time"
)

// Period is a calendar month identified by a YYYYMM key
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a YYYYMM key such as 202603
func ParsePeriod(key string) (Period, error) {
	if len(key) != 6 {
		return Period{}, errorf(ErrInvalidPeriod, "period %q must be formatted YYYYMM", key)
	}
	year, err := strconv.Atoi(key[:4])
	if err != nil || year < 2000 {
		return Period{}, errorf(ErrInvalidPeriod, "period %q has an invalid year", key)
	}
	month, err := strconv.Atoi(key[4:])
	if err != nil || month < 1 || month > 12 {
		return Period{}, errorf(ErrInvalidPeriod, "period %q has an invalid month", key)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the period that contains t in loc
func PeriodOf(t time.Time, loc *time.Location) Period {
	t = t.In(loc)
	return Period{Year: t.Year(), Month: t.Month()}
}

// String returns the YYYYMM key
func (p Period) String() string {
	return fmt.Sprintf("%04d%02d", p.Year, int(p.Month))
}

// IsZero reports whether the period is unset
func (p Period) IsZero() bool {
	return p.Year == 0
}

// Start returns the first instant of the period in loc
func (p Period) Start(loc *time.Location) time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// End returns the first instant after the period in loc (exclusive bound)
func (p Period) End(loc *time.Location) time.Time {
	return p.Start(loc).AddDate(0, 1, 0)
}

// Contains reports whether t falls in the period in loc
func (p Period) Contains(t time.Time, loc *time.Location) bool {
	return !t.Before(p.Start(loc)) && t.Before(p.End(loc))
}

// Previous returns the month before p
func (p Period) Previous() Period {
	first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Period{Year: first.Year(), Month: first.Month()}
}
