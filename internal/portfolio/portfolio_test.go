package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

const listingHTML = `
<html><body>
<div class="foliette-item" id="folio-101">
  <div class="media-body">
    <a class="foliette-view" data-href="/cos/o.x?c=/abc/folio&amp;id=101" data-label="Beach Day">Beach Day</a>
    <span class="text-muted">12 Mar 2024</span>
  </div>
</div>
<div class="foliette-item" id="folio-102">
  <div class="media-body">
    <a class="foliette-view" data-href="/cos/o.x?c=/abc/folio&amp;id=102" data-label="Art Class">Art Class</a>
    <span class="text-muted">05 Feb 2024</span>
  </div>
</div>
<div class="foliette-item" id="folio-101-dup">
  <div class="media-body">
    <a class="foliette-view" data-href="/cos/o.x?c=/abc/folio&amp;id=101" data-label="Beach Day">Beach Day</a>
    <span class="text-muted">12 Mar 2024</span>
  </div>
</div>
</body></html>`

const modalHTML = listingHTML + `
<div class="view-foliette-modal">
  <div class="view-foliette-modal-body">
    <p>We went to the beach.<br>Everyone had fun.</p>
    <p class="top-lg"><a href="#">Ms Tan</a> <span class="text-muted">12 Mar 2024</span></p>
    <hr>
    <h5>Learning Area</h5>
    <ul><li>Motor Skills</li><li>Social Awareness</li></ul>
    <h5>Stickers</h5>
    <ul><li><img class="foliette-sticker" title="Great Job" src="/rs/sticker/great_job.png"></li>
        <li><img class="foliette-sticker" src="/rs/sticker/star.png"></li></ul>
  </div>
  <div id="carouselLinks">
    <a class="bi-gallery-item" href="/media/photo1.jpg"><span class="description">Sandcastle</span></a>
    <a class="bi-gallery-item" href="/media/photo2.jpg"></a>
  </div>
  <button data-bb-handler="cancel">Close</button>
</div>`

const expiredModalHTML = listingHTML + `
<div class="view-foliette-modal">
  <h4 class="modal-title">Loading...</h4>
  <div class="modal-body"><div class="bootbox-body">&nbsp; </div></div>
  <button data-bb-handler="cancel">Close</button>
</div>`

func TestCollectDeduplicatesAndParsesDates(t *testing.T) {
	fake := page.NewFake(listingHTML)
	fake.SetLocation("https://school.qoqolo.com/cos/o.x?c=/abc/folio")

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://school.qoqolo.com/cos/o.x?c=/abc/folio&id=101", items[0].Link)
	assert.Equal(t, "Beach Day", items[0].Title)
	assert.Equal(t, "2024-03-12", items[0].PublishDate)
	assert.Equal(t, "folio-101", items[0].ItemCode)
	assert.Equal(t, "2024-02-05", items[1].PublishDate)
}

func TestCollectHonorsMaxCount(t *testing.T) {
	fake := page.NewFake(listingHTML)
	fake.SetLocation("https://school.qoqolo.com/cos/o.x?c=/abc/folio")

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{MaxCount: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Beach Day", items[0].Title)
}

func TestProcessExtractsModalDetails(t *testing.T) {
	fake := page.NewFake(listingHTML)
	fake.SetLocation("https://school.qoqolo.com/cos/o.x?c=/abc/folio")
	anchorSel := `a.foliette-view[data-href="/cos/o.x?c=/abc/folio&id=101"]`
	fake.OnClick(anchorSel, modalHTML)

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{})
	require.NoError(t, err)

	proc := NewProcessor(fake, nil, crawl.Delays{})
	result, err := proc.Process(context.Background(), items[0], func() bool { return false })
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.False(t, result.StopCrawl)

	details := result.Item.Details
	require.NotNil(t, details)
	assert.Equal(t, "We went to the beach.\nEveryone had fun.", details.Content)
	assert.Equal(t, "Ms Tan", details.Teacher)
	assert.Equal(t, "2024-03-12", details.PublishDate)
	assert.Equal(t, []string{"Motor Skills", "Social Awareness"}, details.LearningAreas)
	assert.Equal(t, []string{"Great Job", "star"}, details.Stickers)

	require.Len(t, details.Images, 2)
	assert.Equal(t, "https://school.qoqolo.com/media/photo1.jpg", details.Images[0].URL)
	assert.Equal(t, "Sandcastle", details.Images[0].Caption)
	assert.Equal(t, "01_photo1.jpg", details.Images[0].ExportFilename)
	assert.Empty(t, details.Images[1].Caption)
	assert.Equal(t, "02_photo2.jpg", details.Images[1].ExportFilename)

	// The anchor was clicked and the modal closed afterwards.
	require.Len(t, fake.Clicks, 2)
	assert.Equal(t, anchorSel, fake.Clicks[0])
	assert.Equal(t, closeButtonSelector, fake.Clicks[1])
}

func TestProcessSkipsOutOfRangeWithoutClicking(t *testing.T) {
	fake := page.NewFake(listingHTML)
	fake.SetLocation("https://school.qoqolo.com/cos/o.x?c=/abc/folio")

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{})
	require.NoError(t, err)

	rng := daterange.Range{
		From: &daterange.MonthDate{Year: 2024, Month: 4},
	}
	proc := NewProcessor(fake, &rng, crawl.Delays{})
	result, err := proc.Process(context.Background(), items[0], func() bool { return false })
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, fake.Clicks)
}

func TestProcessMissingAnchorSkips(t *testing.T) {
	fake := page.NewFake(listingHTML)
	fake.SetLocation("https://school.qoqolo.com/cos/o.x?c=/abc/folio")

	proc := NewProcessor(fake, nil, crawl.Delays{})
	result, err := proc.Process(context.Background(),
		items1("https://school.qoqolo.com/cos/o.x?c=/abc/folio&id=999"),
		func() bool { return false })
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, fake.Clicks)
}

func TestProcessMissingModalSkips(t *testing.T) {
	fake := page.NewFake(listingHTML)
	fake.SetLocation("https://school.qoqolo.com/cos/o.x?c=/abc/folio")
	// Clicking the anchor does not change the DOM: no modal mounts.

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{})
	require.NoError(t, err)

	proc := NewProcessor(fake, nil, crawl.Delays{})
	result, err := proc.Process(context.Background(), items[0], func() bool { return false })
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	require.Len(t, fake.Clicks, 1)
}

func TestProcessDetectsExpiredSession(t *testing.T) {
	fake := page.NewFake(listingHTML)
	fake.SetLocation("https://school.qoqolo.com/cos/o.x?c=/abc/folio")
	anchorSel := `a.foliette-view[data-href="/cos/o.x?c=/abc/folio&id=101"]`
	fake.OnClick(anchorSel, expiredModalHTML)

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{})
	require.NoError(t, err)

	proc := NewProcessor(fake, nil, crawl.Delays{})
	result, err := proc.Process(context.Background(), items[0], func() bool { return false })
	require.NoError(t, err)
	assert.True(t, result.StopCrawl)
	// The stuck modal is closed on the way out.
	assert.Contains(t, fake.Clicks, closeButtonSelector)
}

func TestProcessStopFlagShortCircuits(t *testing.T) {
	fake := page.NewFake(listingHTML)
	proc := NewProcessor(fake, nil, crawl.Delays{})

	result, err := proc.Process(context.Background(),
		items1("https://school.qoqolo.com/x"),
		func() bool { return true })
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, fake.Clicks)
}

func items1(link string) types.Item {
	return types.Item{Link: link, Title: "synthetic"}
}
