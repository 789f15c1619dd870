// Package export packages crawled items into markdown, CSV and zip archives.
package export

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jwtham/folioharvest/internal/daterange"
)

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeFilename makes a name safe for the file system.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = whitespaceRun.ReplaceAllString(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// OriginalFilenameFromURL returns the last path segment of a URL, without
// query or fragment. Falls back to "image" when nothing usable remains.
func OriginalFilenameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(u.Path, "/")
		if last := segments[len(segments)-1]; last != "" {
			return last
		}
	}
	return "image"
}

// ImageExportFilename builds the export name for the index-th image of an
// item: a two-digit 1-based prefix plus the sanitized original filename, e.g.
// "01_photo.jpg".
func ImageExportFilename(index int, rawURL string) string {
	return fmt.Sprintf("%02d_%s", index+1, SanitizeFilename(OriginalFilenameFromURL(rawURL)))
}

// RangeFolderSuffix names a batch export folder segment after the months it
// covers, e.g. "2024_01-2024_03". Unbounded sides are rendered as "all".
func RangeFolderSuffix(rng *daterange.Range) string {
	if rng == nil || rng.IsZero() {
		return "all"
	}
	format := func(m *daterange.MonthDate) string {
		if m == nil {
			return "all"
		}
		return fmt.Sprintf("%04d_%02d", m.Year, m.Month)
	}
	return format(rng.From) + "-" + format(rng.To)
}
