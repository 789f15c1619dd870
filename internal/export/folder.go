package export

import (
	"regexp"
	"strings"

	"github.com/jwtham/folioharvest/internal/types"
)

const maxFolderNameLen = 200

var oddWhitespace = regexp.MustCompile("[  -​  　]")

// ItemFolderName names an item's folder inside a batch archive:
// "yyyy_mm_dd Title [TeacherFirstWord]", sanitized and capped. Overlong
// names keep the date and teacher parts and truncate the title.
func ItemFolderName(item types.Item) string {
	date := item.PublishDate
	if item.Details != nil && item.Details.PublishDate != "" {
		date = item.Details.PublishDate
	}
	dateStr := strings.ReplaceAll(date, "-", "_")

	title := item.Title
	if title == "" {
		title = "Untitled"
	}

	teacherWord := ""
	if item.Details != nil && item.Details.Teacher != "" {
		teacherWord = strings.Fields(item.Details.Teacher)[0]
	}

	parts := []string{}
	if dateStr != "" {
		parts = append(parts, dateStr)
	}
	parts = append(parts, title)
	if teacherWord != "" {
		parts = append(parts, "["+teacherWord+"]")
	}

	name := strings.Join(parts, " ")
	name = oddWhitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")

	if len(name) > maxFolderNameLen {
		suffix := ""
		if teacherWord != "" {
			suffix = " [" + teacherWord + "]"
		}
		fixed := len(dateStr) + len(suffix) + 1
		if fixed+3 >= maxFolderNameLen {
			name = name[:maxFolderNameLen-3] + "..."
		} else {
			avail := maxFolderNameLen - fixed - 3
			if avail > len(title) {
				avail = len(title)
			}
			name = dateStr + " " + title[:avail] + "..." + suffix
		}
	}
	return name
}

// DateRangeSuffix names a batch archive after the months its items span, as
// "yyyy_mm-yyyy_mm". Items without a parseable publish date are ignored;
// an empty result means no item carried a date.
func DateRangeSuffix(items []types.Item) string {
	var months []string
	for _, item := range items {
		date := item.PublishDate
		if item.Details != nil && item.Details.PublishDate != "" {
			date = item.Details.PublishDate
		}
		if len(date) >= 7 && date[4] == '-' {
			months = append(months, date[:4]+"_"+date[5:7])
		}
	}
	if len(months) == 0 {
		return ""
	}
	earliest, latest := months[0], months[0]
	for _, m := range months[1:] {
		if m < earliest {
			earliest = m
		}
		if m > latest {
			latest = m
		}
	}
	return earliest + "-" + latest
}
