// Package portfolio implements the photo-gallery content family: items are
// listed as foliette cards and their details live behind a bootbox modal.
package portfolio

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

// MaxItemsPerCrawl bounds one crawl run over the portfolio listing.
const MaxItemsPerCrawl = 30

// StorageKey is the store key for the portfolio result snapshot.
const StorageKey = "portfolio_items"

// Collect scans the current listing for foliette cards, deduplicated by link
// in first-seen order.
func Collect(ctx context.Context, acc page.Accessor, opts crawl.CollectOptions) ([]types.Item, error) {
	html, err := acc.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	origin, err := pageOrigin(ctx, acc)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var items []types.Item

	doc.Find("div.media-body a.foliette-view").Each(func(_ int, a *goquery.Selection) {
		raw := a.AttrOr("data-href", "")
		if raw == "" {
			raw = a.AttrOr("href", "")
		}
		link := resolveLink(origin, raw)
		if link == "" {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}

		title := a.AttrOr("data-label", "")
		if title == "" {
			title = strings.TrimSpace(a.Text())
		}

		// The wrapper card carries the item code and the listing date.
		wrapper := a.Closest("div.foliette-item")
		items = append(items, types.Item{
			Link:        link,
			Title:       title,
			PublishDate: daterange.ParseListingDate(wrapper.Find("span.text-muted").First().Text()),
			ItemCode:    wrapper.AttrOr("id", ""),
		})
	})

	if opts.MaxCount > 0 && len(items) > opts.MaxCount {
		items = items[:opts.MaxCount]
	}
	return items, nil
}

// pageOrigin returns the scheme://host of the current page for resolving
// relative links.
func pageOrigin(ctx context.Context, acc page.Accessor) (string, error) {
	loc, err := acc.Location(ctx)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", nil
	}
	return u.Scheme + "://" + u.Host, nil
}

// resolveLink turns a possibly relative href into an absolute URL.
func resolveLink(origin, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if origin == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return origin + raw
}
