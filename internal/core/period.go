package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period names one calendar month of the ledger.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses a "MM/YYYY" token into a Period. A single-digit month
// ("7/2025") is accepted.
func ParsePeriod(s string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return Period{}, ErrInvalidPeriod
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return Period{}, ErrInvalidPeriod
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1000 || year > 9999 {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Bounds returns the half-open [start, end) UTC range covering the month.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether the calendar date of t falls inside the month.
func (p Period) Contains(t time.Time) bool {
	start, end := p.Bounds()
	d := DateOnly(t)
	return !d.Before(start) && d.Before(end)
}

func (p Period) String() string {
	return fmt.Sprintf("%02d/%04d", int(p.Month), p.Year)
}

// ParseDueDate parses a "DD/MM/YYYY" token into a calendar date and rejects
// dates earlier than today (today itself is allowed).
func ParseDueDate(s string, today time.Time) (time.Time, error) {
	d, err := time.ParseInLocation("02/01/2006", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if d.Before(DateOnly(today)) {
		return time.Time{}, ErrPastDueDate
	}
	return d, nil
}
