package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/export"
	"github.com/jwtham/folioharvest/internal/logger"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

// headerOffsetPx clears the portal's fixed header when scrolling a post into
// view.
const headerOffsetPx = 100

// Processor extracts an activity post's details from its panel in place,
// after scrolling it into view so lazily loaded media lands.
type Processor struct {
	acc    page.Accessor
	rng    *daterange.Range
	delays crawl.Delays
	log    zerolog.Logger
}

// NewProcessor builds an in-place panel processor. rng may be nil.
func NewProcessor(acc page.Accessor, rng *daterange.Range, delays crawl.Delays) *Processor {
	return &Processor{acc: acc, rng: rng, delays: delays, log: logger.For("activity")}
}

// Process scrolls the item's panel into view and extracts its fields.
func (p *Processor) Process(ctx context.Context, item types.Item, stop func() bool) (crawl.ProcessResult, error) {
	if stop() {
		return crawl.ProcessResult{Skipped: true}, nil
	}

	if p.rng != nil && item.PublishDate != "" && !daterange.InRange(item.PublishDate, *p.rng) {
		p.log.Debug().Str("link", item.Link).Str("date", item.PublishDate).Msg("out of range, skipping")
		return crawl.ProcessResult{Skipped: true}, nil
	}

	panelSel := fmt.Sprintf(`div.infinite-item.post[data-rid=%q]`, item.PostID)
	if err := p.acc.ScrollIntoView(ctx, panelSel, headerOffsetPx); err != nil {
		return crawl.ProcessResult{}, err
	}
	crawl.Wait(ctx, p.delays.ScrollSettle/3)

	html, err := p.acc.HTML(ctx)
	if err != nil {
		return crawl.ProcessResult{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawl.ProcessResult{}, err
	}
	origin, err := pageOrigin(ctx, p.acc)
	if err != nil {
		return crawl.ProcessResult{}, err
	}

	panel := doc.Find(panelSel).First()
	if panel.Length() == 0 {
		p.log.Warn().Str("rid", item.PostID).Msg("post panel not found")
		return crawl.ProcessResult{Skipped: true}, nil
	}

	details := extractDetails(panel, origin)
	if details.PublishDate == "" {
		details.PublishDate = item.PublishDate
	}
	item.Details = details
	if details.PublishDate != "" {
		item.PublishDate = details.PublishDate
	}
	return crawl.ProcessResult{Item: item}, nil
}

// extractDetails reads a post's fields straight out of its panel.
func extractDetails(panel *goquery.Selection, origin string) *types.ItemDetails {
	details := &types.ItemDetails{}

	details.Teacher = strings.TrimSpace(panel.Find("div.media-right a strong").First().Text())

	datetimeText := strings.TrimSpace(panel.Find("div.media-right p.text-muted").First().Text())
	details.PublishDate, details.PublishDatetime = daterange.ParseListingDatetime(datetimeText)

	// The content paragraph follows the title paragraph:
	// <p><a class="view-album post-title">…</a></p><p>content</p>
	if title := panel.Find("a.view-album.post-title").First(); title.Length() > 0 {
		content := title.Closest("p").NextAllFiltered("p").First()
		details.Content = strings.TrimSpace(content.Text())
	}

	panel.Find("div.whole-album a.bi-gallery-item").Each(func(i int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		u := resolveLink(origin, href)
		details.Images = append(details.Images, types.ItemImage{
			URL:            u,
			Caption:        strings.TrimSpace(a.Find("span.bi-gallery-item-description").First().Text()),
			ExportFilename: export.ImageExportFilename(i, u),
		})
	})

	return details
}

// NewFamily wires the activity collector and panel processor into the
// generic orchestrator's capability record.
func NewFamily(acc page.Accessor, rng *daterange.Range, delays crawl.Delays) crawl.Family {
	proc := NewProcessor(acc, rng, delays)
	return crawl.Family{
		Name:       "activity",
		StorageKey: StorageKey,
		MaxCount:   MaxItemsPerCrawl,
		Collect: func(ctx context.Context, opts crawl.CollectOptions) ([]types.Item, error) {
			return Collect(ctx, acc, opts)
		},
		Process: proc.Process,
		HasMore: func(ctx context.Context) (bool, error) {
			return HasMore(ctx, acc)
		},
	}
}
