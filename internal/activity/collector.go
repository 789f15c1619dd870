// Package activity implements the class-activity content family: posts sit
// in an infinite-scroll panel and reveal their details in place, with no
// modal or navigation.
package activity

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

// MaxItemsPerCrawl bounds one crawl run over the posts panel.
const MaxItemsPerCrawl = 50

// StorageKey is the store key for the activity result snapshot.
const StorageKey = "activity_items"

// Collect scans the posts panel for infinite-items, deduplicated by link in
// first-seen order. Posts missing a record id or a recognized kind are
// dropped.
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

	doc.Find("div.infinite-panel.posts-container div.infinite-item.post").Each(func(_ int, panel *goquery.Selection) {
		rid := panel.AttrOr("data-rid", "")
		kind := panel.AttrOr("data-type", "")
		if rid == "" || (kind != "album" && kind != "activity") {
			return
		}
		anchor := panel.Find("a.view-album.post-title").First()
		if anchor.Length() == 0 {
			return
		}
		link := resolveLink(origin, anchor.AttrOr("href", ""))
		if link == "" {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}

		date, _ := daterange.ParseListingDatetime(panel.Find("div.media-right p.text-muted").First().Text())
		items = append(items, types.Item{
			Link:        link,
			Title:       strings.TrimSpace(anchor.Text()),
			PublishDate: date,
			PostID:      rid,
			Kind:        kind,
		})
	})

	if opts.MaxCount > 0 && len(items) > opts.MaxCount {
		items = items[:opts.MaxCount]
	}
	return items, nil
}

// HasMore reports whether the panel still advertises a load-more link.
func HasMore(ctx context.Context, acc page.Accessor) (bool, error) {
	html, err := acc.HTML(ctx)
	if err != nil {
		return false, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, err
	}
	href := doc.Find("a.infinite-more-link").First().AttrOr("href", "")
	return strings.TrimSpace(href) != "", nil
}

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
