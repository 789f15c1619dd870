// Package attendance implements the check-in/out content family. Unlike the
// other families it does not interact with the visible page: each item is a
// month whose records are fetched as separate HTML pages through the portal
// session.
package attendance

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

// MaxMonthsPerCrawl bounds how many months back one crawl run reaches.
const MaxMonthsPerCrawl = 12

// StorageKey is the store key for the attendance result snapshot.
const StorageKey = "attendance_items"

var monthYearPattern = regexp.MustCompile(`^(\d{2})-(\d{4})$`)

// timeNow is swapped out in tests.
var timeNow = time.Now

// Collect lists the months available on the attendance page, newest first.
// It prefers the page's own month selector and falls back to generating the
// last MaxMonthsPerCrawl months when the selector is absent.
func Collect(ctx context.Context, acc page.Accessor, opts crawl.CollectOptions) ([]types.Item, error) {
	base, err := baseURL(ctx, acc)
	if err != nil {
		return nil, err
	}

	months, err := selectorMonths(ctx, acc)
	if err != nil {
		return nil, err
	}
	if len(months) == 0 {
		months = recentMonths(timeNow(), MaxMonthsPerCrawl)
	}

	seen := make(map[string]struct{})
	var items []types.Item
	for _, m := range months {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		items = append(items, monthItem(base, m))
	}

	if opts.MaxCount > 0 && len(items) > opts.MaxCount {
		items = items[:opts.MaxCount]
	}
	return items, nil
}

// selectorMonths reads YYYY-MM month keys from the page's month dropdown,
// whose option values use the portal's MM-YYYY form.
func selectorMonths(ctx context.Context, acc page.Accessor) ([]string, error) {
	html, err := acc.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var months []string
	doc.Find(`select[name="selectDate"] option`).Each(func(_ int, opt *goquery.Selection) {
		m := monthYearPattern.FindStringSubmatch(strings.TrimSpace(opt.AttrOr("value", "")))
		if m == nil {
			return
		}
		months = append(months, m[2]+"-"+m[1])
	})

	// Newest first, regardless of how the dropdown is ordered.
	for i := 1; i < len(months); i++ {
		for j := i; j > 0 && months[j] > months[j-1]; j-- {
			months[j], months[j-1] = months[j-1], months[j]
		}
	}
	return months, nil
}

// recentMonths generates n months ending at now, newest first, as YYYY-MM.
func recentMonths(now time.Time, n int) []string {
	months := make([]string, 0, n)
	year, month := now.Year(), int(now.Month())
	for i := 0; i < n; i++ {
		months = append(months, fmt.Sprintf("%04d-%02d", year, month))
		month--
		if month < 1 {
			month = 12
			year--
		}
	}
	return months
}

// monthItem builds the crawl item for one YYYY-MM month key. Its link is the
// month page URL; its publish date anchors range filtering at month
// granularity.
func monthItem(base, yearMonth string) types.Item {
	monthYear := yearMonth[5:] + "-" + yearMonth[:4] // portal wants MM-YYYY
	link := base
	if u, err := url.Parse(base); err == nil {
		q := u.Query()
		q.Set("func", "recent")
		q.Set("selectDate", monthYear)
		u.RawQuery = q.Encode()
		link = u.String()
	}
	return types.Item{
		Link:        link,
		Title:       yearMonth,
		PublishDate: yearMonth + "-01",
		Month:       yearMonth,
	}
}

// baseURL rebuilds the attendance page URL keeping only the portal's c
// parameter, the way month pages are addressed.
func baseURL(ctx context.Context, acc page.Accessor) (string, error) {
	loc, err := acc.Location(ctx)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", &page.Error{Op: "location", Message: "invalid page URL", Cause: err}
	}
	return fmt.Sprintf("%s://%s%s?c=%s", u.Scheme, u.Host, u.Path, u.Query().Get("c")), nil
}
