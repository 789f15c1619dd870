package attendance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/types"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
var leadingDatePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
var clockPattern = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2}):(\d{2})\s+(AM|PM)$`)

// parseRows extracts the per-day records from a fetched month page. A login
// widget in place of the table means the session cookie no longer works.
func parseRows(doc *goquery.Document) ([]types.AttendanceDay, error) {
	if doc.Find("div.lo-user").Length() > 0 {
		return nil, crawl.ErrSessionExpired
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil
	}

	var days []types.AttendanceDay
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}

		// Only rows whose trailing button carries a record id are data rows.
		recordID, ok := cells.Last().Find("button").First().Attr("_id")
		if !ok {
			return
		}

		text := func(i int) string {
			return strings.TrimSpace(cells.Eq(i).Text())
		}

		dropTs := formatTimestamp(text(1))
		dropComment := strings.TrimSpace(cells.Eq(2).Find("p").First().Text())
		dropPerson := trimSuffix(text(2), dropComment)

		pickTs := formatTimestamp(text(4))
		pickComment := strings.TrimSpace(cells.Eq(5).Find("p").First().Text())
		pickPerson := trimSuffix(text(5), pickComment)

		date := leadingDate(dropTs)
		if date == "" {
			date = leadingDate(pickTs)
		}

		idx, err := strconv.Atoi(text(0))
		if err != nil {
			idx = 1
		}

		days = append(days, types.AttendanceDay{
			Index:         idx - 1,
			Date:          date,
			RecordID:      recordID,
			DropTimestamp: dropTs,
			DropPerson:    dropPerson,
			DropComment:   dropComment,
			PickTimestamp: pickTs,
			PickPerson:    pickPerson,
			PickComment:   pickComment,
		})
	})
	return days, nil
}

// formatTimestamp normalizes the portal's "<date> hh:mm:ss AM/PM" cells to
// "YYYY-MM-DD HH:MM:SS" in 24-hour time. Cells without a time collapse to
// the bare date; anything unrecognizable passes through unchanged.
func formatTimestamp(raw string) string {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return raw
	}
	date := parts[0]
	if !isoDatePattern.MatchString(date) {
		return raw
	}
	if len(parts) == 1 {
		return date
	}

	m := clockPattern.FindStringSubmatch(strings.Join(parts[1:], " "))
	if m == nil {
		return date
	}
	hour, _ := strconv.Atoi(m[1])
	if ampm := strings.ToUpper(m[4]); ampm == "PM" && hour != 12 {
		hour += 12
	} else if ampm == "AM" && hour == 12 {
		hour = 0
	}
	return fmt.Sprintf("%s %02d:%s:%s", date, hour, m[2], m[3])
}

func leadingDate(ts string) string {
	if m := leadingDatePattern.FindStringSubmatch(ts); m != nil {
		return m[1]
	}
	return ""
}

// trimSuffix strips the comment text that the portal appends to the person
// cell, leaving just the name.
func trimSuffix(s, suffix string) string {
	if suffix != "" && strings.HasSuffix(s, suffix) {
		return strings.TrimSpace(s[:len(s)-len(suffix)])
	}
	return s
}

// dayPhotos reads the sign-in/out photo URLs from a fetched view_checkin
// page: one fieldset per direction, each with a labeled photo form group.
func dayPhotos(doc *goquery.Document, origin string) (in, out string) {
	doc.Find("fieldset").Each(func(_ int, fs *goquery.Selection) {
		var direction string
		switch strings.TrimSpace(fs.Find("legend").First().Text()) {
		case "Sign in":
			direction = "in"
		case "Sign out":
			direction = "out"
		default:
			return
		}

		fs.Find("div.form-group").EachWithBreak(func(_ int, fg *goquery.Selection) bool {
			label := strings.TrimSpace(fg.Find("label").First().Text())
			src := fg.Find("img").First().AttrOr("src", "")
			if label != "Photo" || src == "" {
				return true
			}
			abs := src
			if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
				abs = origin + "/" + strings.TrimPrefix(src, "/")
			}
			if direction == "in" {
				in = abs
			} else {
				out = abs
			}
			return false
		})
	})
	return in, out
}
