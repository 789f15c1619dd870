package attendance

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/fetch"
	"github.com/jwtham/folioharvest/internal/logger"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

// Processor fetches one month's attendance page plus the per-day sign-in/out
// views, all through the page's live session.
type Processor struct {
	acc    page.Accessor
	rng    *daterange.Range
	delays crawl.Delays
	log    zerolog.Logger
}

// NewProcessor builds a cross-page fetch processor. rng may be nil.
func NewProcessor(acc page.Accessor, rng *daterange.Range, delays crawl.Delays) *Processor {
	return &Processor{acc: acc, rng: rng, delays: delays, log: logger.For("attendance")}
}

// Process fetches and parses one month. A month without data rows is a Skip;
// a login widget in the response unwinds the whole crawl.
func (p *Processor) Process(ctx context.Context, item types.Item, stop func() bool) (crawl.ProcessResult, error) {
	if stop() {
		return crawl.ProcessResult{Skipped: true}, nil
	}

	if p.rng != nil && item.PublishDate != "" && !daterange.InRange(item.PublishDate, *p.rng) {
		p.log.Debug().Str("month", item.Month).Msg("out of range, skipping")
		return crawl.ProcessResult{Skipped: true}, nil
	}

	p.log.Debug().Str("month", item.Month).Msg("fetching month page")
	html, err := p.acc.Fetch(ctx, item.Link)
	if err != nil {
		return crawl.ProcessResult{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return crawl.ProcessResult{}, err
	}

	days, err := parseRows(doc)
	if err != nil {
		if errors.Is(err, crawl.ErrSessionExpired) {
			return crawl.ProcessResult{}, err
		}
		p.log.Warn().Err(err).Str("month", item.Month).Msg("failed to parse month table")
		return crawl.ProcessResult{Skipped: true}, nil
	}
	if len(days) == 0 {
		p.log.Debug().Str("month", item.Month).Msg("no records for month")
		return crawl.ProcessResult{Skipped: true}, nil
	}

	origin := linkOrigin(item.Link)
	details := &types.ItemDetails{}

	// The whole month is finished even if a stop lands mid-way, so a month
	// is never left partially populated.
	for i := range days {
		day := &days[i]
		if day.Date == "" || day.RecordID == "" {
			continue
		}

		viewURL, err := fetch.AddQueryParams(item.Link, map[string]string{
			"func":       "view_checkin",
			"type":       "students",
			"output":     "ajax",
			"rid":        day.RecordID,
			"selectDate": day.Date,
		})
		if err != nil {
			continue
		}

		viewHTML, err := p.acc.Fetch(ctx, viewURL)
		if err != nil {
			p.log.Warn().Err(err).Str("date", day.Date).Msg("failed to fetch day view")
			continue
		}
		viewDoc, err := goquery.NewDocumentFromReader(strings.NewReader(viewHTML))
		if err != nil {
			continue
		}

		in, out := dayPhotos(viewDoc, origin)
		day.CheckInPhotoURL = in
		day.CheckOutPhotoURL = out
		if in != "" {
			details.Images = append(details.Images, types.ItemImage{
				URL:            in,
				ExportFilename: day.Date + "-in" + photoExt(in),
			})
		}
		if out != "" {
			details.Images = append(details.Images, types.ItemImage{
				URL:            out,
				ExportFilename: day.Date + "-out" + photoExt(out),
			})
		}

		crawl.Wait(ctx, p.delays.ItemProcess/5)
	}

	details.Days = days
	item.Details = details
	return crawl.ProcessResult{Item: item}, nil
}

func linkOrigin(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// photoExt keeps the source extension on renamed attendance photos.
func photoExt(u string) string {
	name := u
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}

// NewFamily wires the month collector and fetch processor into the generic
// orchestrator's capability record.
func NewFamily(acc page.Accessor, rng *daterange.Range, delays crawl.Delays) crawl.Family {
	proc := NewProcessor(acc, rng, delays)
	return crawl.Family{
		Name:       "attendance",
		StorageKey: StorageKey,
		MaxCount:   MaxMonthsPerCrawl,
		Collect: func(ctx context.Context, opts crawl.CollectOptions) ([]types.Item, error) {
			return Collect(ctx, acc, opts)
		},
		Process: proc.Process,
	}
}
