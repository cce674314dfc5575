// Package period identifies calendar billing periods (month + year).
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned for months outside 1-12 or unparseable periods.
var ErrInvalid = errors.New("period: invalid period")

// Period is one calendar month.
type Period struct {
	Month time.Month
	Year  int
}

// New validates month and builds a Period.
func New(month, year int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d must be between 1 and 12", ErrInvalid, month)
	}
	return Period{Month: time.Month(month), Year: year}, nil
}

// Next returns the following month, rolling December into January.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Month: time.January, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// String formats the period as "month/year", the settings file layout.
func (p Period) String() string {
	return fmt.Sprintf("%d/%d", int(p.Month), p.Year)
}

// ID formats the period as "year-month", used in snapshot file names.
func (p Period) ID() string {
	return fmt.Sprintf("%d-%d", p.Year, int(p.Month))
}

// Label returns a human readable form such as "December 2025".
func (p Period) Label() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Parse reads the "month/year" form.
func Parse(s string) (Period, error) {
	month, year, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Period{}, fmt.Errorf("%w: expected month/year, got %q", ErrInvalid, s)
	}
	return parseParts(month, year, s)
}

// ParseID reads the "year-month" form. Anything after a second dash is
// ignored, so snapshot file names parse directly.
func ParseID(s string) (Period, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 3)
	if len(parts) < 2 {
		return Period{}, fmt.Errorf("%w: expected year-month, got %q", ErrInvalid, s)
	}
	return parseParts(parts[1], parts[0], s)
}

func parseParts(month, year, raw string) (Period, error) {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return Period{}, fmt.Errorf("%w: bad month in %q", ErrInvalid, raw)
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return Period{}, fmt.Errorf("%w: bad year in %q", ErrInvalid, raw)
	}
	return New(m, y)
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseMonth accepts a month number, full name or common abbreviation.
func ParseMonth(s string) (time.Month, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if m, ok := monthNames[key]; ok {
		return m, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 12 {
		return time.Month(n), nil
	}
	return 0, fmt.Errorf("%w: unknown month %q", ErrInvalid, s)
}
