package attendance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/fetch"
	"github.com/jwtham/folioharvest/internal/page"
)

const attendanceLocation = "https://school.example.com/index.php?c=abc123&mod=checkinout"

const selectorHTML = `
<html><body>
<select name="selectDate">
  <option value="">Pick a month</option>
  <option value="01-2024">Jan 2024</option>
  <option value="03-2024">Mar 2024</option>
  <option value="02-2024">Feb 2024</option>
</select>
</body></html>`

const monthHTML = `
<html><body>
<table class="table">
  <tr><th>#</th><th>Drop off</th><th>By</th><th>Temp</th><th>Pick up</th><th>By</th><th></th></tr>
  <tr>
    <td>1</td>
    <td>2024-03-04 8:15:02 AM</td>
    <td>Mrs Tan<p>Slightly late</p></td>
    <td>36.5</td>
    <td>2024-03-04 5:30:45 PM</td>
    <td>Mr Tan<p></p></td>
    <td><button _id="rec-77" class="btn">View</button></td>
  </tr>
  <tr>
    <td>2</td>
    <td>2024-03-05</td>
    <td>Mrs Tan<p></p></td>
    <td>36.4</td>
    <td></td>
    <td></td>
    <td><button _id="rec-78" class="btn">View</button></td>
  </tr>
  <tr>
    <td colspan="7">No more records</td>
  </tr>
</table>
</body></html>`

const dayViewHTML = `
<html><body>
<fieldset>
  <legend>Sign in</legend>
  <div class="form-group"><label>Time</label><span>8:15 AM</span></div>
  <div class="form-group"><label>Photo</label><img src="/uploads/checkin/77-in.jpg"></div>
</fieldset>
<fieldset>
  <legend>Sign out</legend>
  <div class="form-group"><label>Photo</label><img src="https://cdn.example.com/77-out.jpg"></div>
</fieldset>
</body></html>`

const expiredMonthHTML = `<html><body><div class="lo-user"><form>login</form></div></body></html>`

func newAttendanceFake(html string) *page.Fake {
	fake := page.NewFake(html)
	fake.SetLocation(attendanceLocation)
	return fake
}

func monthRange(t *testing.T, from, to string) daterange.Range {
	t.Helper()
	f, err := daterange.ParseMonth(from)
	require.NoError(t, err)
	to2, err := daterange.ParseMonth(to)
	require.NoError(t, err)
	return daterange.Range{From: &f, To: &to2}
}

func TestCollectReadsMonthSelector(t *testing.T) {
	fake := newAttendanceFake(selectorHTML)

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{})
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "2024-03", items[0].Month)
	assert.Equal(t, "2024-02", items[1].Month)
	assert.Equal(t, "2024-01", items[2].Month)
	assert.Equal(t, "2024-03-01", items[0].PublishDate)
	assert.Equal(t, "2024-03", items[0].Title)
	assert.Equal(t,
		"https://school.example.com/index.php?c=abc123&func=recent&selectDate=03-2024",
		items[0].Link)
}

func TestCollectFallsBackToRecentMonths(t *testing.T) {
	orig := timeNow
	timeNow = func() time.Time { return time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC) }
	defer func() { timeNow = orig }()

	fake := newAttendanceFake("<html><body><p>no selector here</p></body></html>")

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{})
	require.NoError(t, err)
	require.Len(t, items, MaxMonthsPerCrawl)

	assert.Equal(t, "2024-03", items[0].Month)
	assert.Equal(t, "2024-01", items[2].Month)
	assert.Equal(t, "2023-12", items[3].Month)
	assert.Equal(t, "2023-04", items[11].Month)
}

func TestCollectHonorsMaxCount(t *testing.T) {
	fake := newAttendanceFake(selectorHTML)

	items, err := Collect(context.Background(), fake, crawl.CollectOptions{MaxCount: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2024-03", items[0].Month)
	assert.Equal(t, "2024-02", items[1].Month)
}

func TestParseRows(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(monthHTML))
	require.NoError(t, err)

	days, err := parseRows(doc)
	require.NoError(t, err)
	require.Len(t, days, 2)

	first := days[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "2024-03-04", first.Date)
	assert.Equal(t, "rec-77", first.RecordID)
	assert.Equal(t, "2024-03-04 08:15:02", first.DropTimestamp)
	assert.Equal(t, "Mrs Tan", first.DropPerson)
	assert.Equal(t, "Slightly late", first.DropComment)
	assert.Equal(t, "2024-03-04 17:30:45", first.PickTimestamp)
	assert.Equal(t, "Mr Tan", first.PickPerson)
	assert.Equal(t, "", first.PickComment)

	second := days[1]
	assert.Equal(t, "2024-03-05", second.Date)
	assert.Equal(t, "2024-03-05", second.DropTimestamp)
	assert.Equal(t, "", second.PickTimestamp)
}

func TestParseRowsNoTable(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)

	days, err := parseRows(doc)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestParseRowsDetectsLoginWidget(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(expiredMonthHTML))
	require.NoError(t, err)

	_, err = parseRows(doc)
	require.ErrorIs(t, err, crawl.ErrSessionExpired)
}

func TestFormatTimestamp(t *testing.T) {
	cases := map[string]string{
		"2024-03-04 8:15:02 AM":  "2024-03-04 08:15:02",
		"2024-03-04 12:00:01 AM": "2024-03-04 00:00:01",
		"2024-03-04 12:30:00 PM": "2024-03-04 12:30:00",
		"2024-03-04 5:30:45 PM":  "2024-03-04 17:30:45",
		"2024-03-04":             "2024-03-04",
		"2024-03-04 oddball":     "2024-03-04",
		"pending":                "pending",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatTimestamp(in), "input %q", in)
	}
}

func TestProcessFetchesMonthAndDayPhotos(t *testing.T) {
	fake := newAttendanceFake(selectorHTML)
	base := "https://school.example.com/index.php?c=abc123"
	item := monthItem(base, "2024-03")

	fake.OnFetch(item.Link, monthHTML)
	for _, day := range []struct{ date, rid string }{
		{"2024-03-04", "rec-77"},
		{"2024-03-05", "rec-78"},
	} {
		viewURL, err := fetch.AddQueryParams(item.Link, map[string]string{
			"func":       "view_checkin",
			"type":       "students",
			"output":     "ajax",
			"rid":        day.rid,
			"selectDate": day.date,
		})
		require.NoError(t, err)
		if day.rid == "rec-77" {
			fake.OnFetch(viewURL, dayViewHTML)
		} else {
			fake.OnFetch(viewURL, "<html><body><p>no photos</p></body></html>")
		}
	}

	proc := NewProcessor(fake, nil, crawl.Delays{})
	res, err := proc.Process(context.Background(), item, func() bool { return false })
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.NotNil(t, res.Item.Details)

	days := res.Item.Details.Days
	require.Len(t, days, 2)
	assert.Equal(t, "https://school.example.com/uploads/checkin/77-in.jpg", days[0].CheckInPhotoURL)
	assert.Equal(t, "https://cdn.example.com/77-out.jpg", days[0].CheckOutPhotoURL)
	assert.Empty(t, days[1].CheckInPhotoURL)

	images := res.Item.Details.Images
	require.Len(t, images, 2)
	assert.Equal(t, "2024-03-04-in.jpg", images[0].ExportFilename)
	assert.Equal(t, "2024-03-04-out.jpg", images[1].ExportFilename)

	// One month page fetch plus one view fetch per data row.
	assert.Len(t, fake.Fetches, 3)
}

func TestProcessSkipsEmptyMonth(t *testing.T) {
	fake := newAttendanceFake(selectorHTML)
	item := monthItem("https://school.example.com/index.php?c=abc123", "2024-02")
	fake.OnFetch(item.Link, "<html><body><table><tr><th>#</th></tr></table></body></html>")

	proc := NewProcessor(fake, nil, crawl.Delays{})
	res, err := proc.Process(context.Background(), item, func() bool { return false })
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestProcessSkipsOutOfRangeMonth(t *testing.T) {
	fake := newAttendanceFake(selectorHTML)
	item := monthItem("https://school.example.com/index.php?c=abc123", "2023-06")
	rng := monthRange(t, "2024-01", "2024-03")

	proc := NewProcessor(fake, &rng, crawl.Delays{})
	res, err := proc.Process(context.Background(), item, func() bool { return false })
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, fake.Fetches)
}

func TestProcessPropagatesSessionExpiry(t *testing.T) {
	fake := newAttendanceFake(selectorHTML)
	item := monthItem("https://school.example.com/index.php?c=abc123", "2024-03")
	fake.OnFetch(item.Link, expiredMonthHTML)

	proc := NewProcessor(fake, nil, crawl.Delays{})
	_, err := proc.Process(context.Background(), item, func() bool { return false })
	require.ErrorIs(t, err, crawl.ErrSessionExpired)
}

func TestProcessSkipsWhenStopAlreadyRequested(t *testing.T) {
	fake := newAttendanceFake(selectorHTML)
	item := monthItem("https://school.example.com/index.php?c=abc123", "2024-03")

	proc := NewProcessor(fake, nil, crawl.Delays{})
	res, err := proc.Process(context.Background(), item, func() bool { return true })
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, fake.Fetches)
}
