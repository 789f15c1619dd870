package daterange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var monthAbbrev = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

var listingDatePattern = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]{3})\s+(\d{4})`)
var listingTimePattern = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?`)

// ParseListingDate converts the portal's listing date format ("25 Aug 2025")
// to YYYY-MM-DD. Returns "" when the text does not contain such a date; the
// caller's filtering stages fail open on empty dates.
func ParseListingDate(text string) string {
	m := listingDatePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	month, ok := monthAbbrev[strings.ToLower(m[2])]
	if !ok {
		return ""
	}
	day, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%s-%s-%02d", m[3], month, day)
}

// ParseListingDatetime splits a listing datetime ("25 Aug 2025 9:30 AM") into
// a YYYY-MM-DD date and, when a time is present, a "YYYY-MM-DD HH:MM" 24-hour
// datetime. Both are "" when no date is found.
func ParseListingDatetime(text string) (date, datetime string) {
	date = ParseListingDate(text)
	if date == "" {
		return "", ""
	}

	loc := listingDatePattern.FindStringIndex(text)
	rest := text[loc[1]:]
	tm := listingTimePattern.FindStringSubmatch(rest)
	if tm == nil {
		return date, ""
	}

	hour, _ := strconv.Atoi(tm[1])
	if ampm := strings.ToUpper(tm[4]); ampm == "PM" && hour != 12 {
		hour += 12
	} else if ampm == "AM" && hour == 12 {
		hour = 0
	}
	return date, fmt.Sprintf("%s %02d:%s", date, hour, tm[2])
}
