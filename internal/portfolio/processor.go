package portfolio

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/logger"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

// closeButtonSelector matches the bootbox modal's close button variants.
const closeButtonSelector = `button[data-bb-handler="cancel"], button.bootbox-close-button`

// Processor reveals a portfolio item's details by clicking its listing
// anchor, reading the foliette modal, and closing it again.
type Processor struct {
	acc    page.Accessor
	rng    *daterange.Range
	delays crawl.Delays
	log    zerolog.Logger
}

// NewProcessor builds a modal processor. rng may be nil for an unfiltered
// crawl.
func NewProcessor(acc page.Accessor, rng *daterange.Range, delays crawl.Delays) *Processor {
	return &Processor{acc: acc, rng: rng, delays: delays, log: logger.For("portfolio")}
}

// Process implements the modal reveal flow for one item.
func (p *Processor) Process(ctx context.Context, item types.Item, stop func() bool) (crawl.ProcessResult, error) {
	if stop() {
		return crawl.ProcessResult{Skipped: true}, nil
	}

	// Cheap pre-click filter on the listing date.
	if p.rng != nil && item.PublishDate != "" && !daterange.InRange(item.PublishDate, *p.rng) {
		p.log.Debug().Str("link", item.Link).Str("date", item.PublishDate).Msg("out of range, skipping")
		return crawl.ProcessResult{Skipped: true}, nil
	}

	doc, origin, err := p.snapshot(ctx)
	if err != nil {
		return crawl.ProcessResult{}, err
	}

	anchorSel, ok := p.findAnchor(doc, origin, item.Link)
	if !ok {
		p.log.Warn().Str("link", item.Link).Msg("listing anchor not found")
		return crawl.ProcessResult{Skipped: true}, nil
	}

	// Defense against stacked modals from a previous item.
	if doc.Find("div.view-foliette-modal").Length() > 0 {
		p.closeModal(ctx, doc)
	}

	if err := p.acc.Click(ctx, anchorSel); err != nil {
		return crawl.ProcessResult{}, err
	}
	crawl.Wait(ctx, p.delays.ModalSettle)

	doc, _, err = p.snapshot(ctx)
	if err != nil {
		return crawl.ProcessResult{}, err
	}
	modal := doc.Find("div.view-foliette-modal").First()
	if modal.Length() == 0 {
		p.log.Warn().Str("link", item.Link).Msg("modal did not appear")
		return crawl.ProcessResult{Skipped: true}, nil
	}

	if sessionLikelyExpired(modal) {
		p.closeModal(ctx, doc)
		return crawl.ProcessResult{StopCrawl: true}, nil
	}

	details := extractDetails(modal, origin)
	p.closeModal(ctx, doc)

	// The modal's own date is authoritative; the listing date is the
	// fallback.
	if details.PublishDate == "" {
		details.PublishDate = item.PublishDate
	} else if details.PublishDate != item.PublishDate && item.PublishDate != "" {
		p.log.Warn().
			Str("link", item.Link).
			Str("listing", item.PublishDate).
			Str("modal", details.PublishDate).
			Msg("publish date mismatch between listing and modal")
	}

	item.Details = details
	if details.PublishDate != "" {
		item.PublishDate = details.PublishDate
	}
	return crawl.ProcessResult{Item: item}, nil
}

func (p *Processor) snapshot(ctx context.Context) (*goquery.Document, string, error) {
	html, err := p.acc.HTML(ctx)
	if err != nil {
		return nil, "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", err
	}
	origin, err := pageOrigin(ctx, p.acc)
	if err != nil {
		return nil, "", err
	}
	return doc, origin, nil
}

// findAnchor locates the listing anchor for the item link and returns a
// selector that clicks it. Anchors store the link relative to the origin.
func (p *Processor) findAnchor(doc *goquery.Document, origin, link string) (string, bool) {
	relative := strings.TrimPrefix(link, origin)
	for _, candidate := range []string{
		fmt.Sprintf(`a.foliette-view[data-href=%q]`, relative),
		fmt.Sprintf(`a.foliette-view[data-href=%q]`, link),
		fmt.Sprintf(`a.foliette-view[href=%q]`, relative),
		fmt.Sprintf(`a.foliette-view[href=%q]`, link),
	} {
		if doc.Find(candidate).Length() > 0 {
			return candidate, true
		}
	}
	return "", false
}

// closeModal clicks the modal's close button when one is present and waits
// for the close animation.
func (p *Processor) closeModal(ctx context.Context, doc *goquery.Document) {
	if doc.Find(closeButtonSelector).Length() == 0 {
		return
	}
	if err := p.acc.Click(ctx, closeButtonSelector); err != nil {
		p.log.Warn().Err(err).Msg("failed to close modal")
		return
	}
	crawl.Wait(ctx, p.delays.ModalSettle/2)
}
