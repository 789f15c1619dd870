// Package daterange implements month-granularity date range filtering for
// crawled items. Comparisons ignore the day component: an item dated
// 2024-03-15 is inside a range ending at {2024, 3}.
package daterange

import (
	"fmt"
	"regexp"
	"strconv"
)

// dayDatePattern matches publish dates in YYYY-MM-DD form.
var dayDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-\d{2}$`)

// MonthDate is a calendar month.
type MonthDate struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1..12
}

// String returns the month in YYYY-MM form.
func (m MonthDate) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Before reports whether m is strictly earlier than other.
func (m MonthDate) Before(other MonthDate) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// After reports whether m is strictly later than other.
func (m MonthDate) After(other MonthDate) bool {
	return other.Before(m)
}

// Prev returns the month immediately before m.
func (m MonthDate) Prev() MonthDate {
	if m.Month == 1 {
		return MonthDate{Year: m.Year - 1, Month: 12}
	}
	return MonthDate{Year: m.Year, Month: m.Month - 1}
}

// ParseMonth parses a YYYY-MM string into a MonthDate.
func ParseMonth(s string) (MonthDate, error) {
	m := regexp.MustCompile(`^(\d{4})-(\d{2})$`).FindStringSubmatch(s)
	if m == nil {
		return MonthDate{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return MonthDate{}, fmt.Errorf("invalid month %q: month out of range", s)
	}
	return MonthDate{Year: year, Month: month}, nil
}

// Range is an optional [From, To] month window. A nil bound means unbounded
// on that side.
type Range struct {
	From *MonthDate `json:"from"`
	To   *MonthDate `json:"to"`
}

// IsZero reports whether neither bound is set.
func (r Range) IsZero() bool {
	return r.From == nil && r.To == nil
}

// parseItemMonth extracts the (year, month) of a YYYY-MM-DD date string.
// ok is false when the string does not match the expected format.
func parseItemMonth(date string) (MonthDate, bool) {
	m := dayDatePattern.FindStringSubmatch(date)
	if m == nil {
		return MonthDate{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return MonthDate{Year: year, Month: month}, true
}

// InRange reports whether a YYYY-MM-DD date falls inside the range at month
// granularity. Unparseable dates are treated as in range so that undated
// content is never silently dropped.
func InRange(date string, rng Range) bool {
	if rng.IsZero() {
		return true
	}
	item, ok := parseItemMonth(date)
	if !ok {
		return true
	}
	if rng.From != nil && item.Before(*rng.From) {
		return false
	}
	if rng.To != nil && item.After(*rng.To) {
		return false
	}
	return true
}
