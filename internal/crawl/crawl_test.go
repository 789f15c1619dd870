package crawl

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/events"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/store"
	"github.com/jwtham/folioharvest/internal/types"
)

func item(link, date string) types.Item {
	return types.Item{Link: link, Title: "item " + link, PublishDate: date}
}

func processed(it types.Item) types.Item {
	it.Details = &types.ItemDetails{Content: "details for " + it.Link}
	return it
}

// testFamily builds a family whose collect returns the given list every time
// and whose processor succeeds unconditionally.
func testFamily(items []types.Item) Family {
	return Family{
		Name:       "portfolio",
		StorageKey: "portfolio_items",
		MaxCount:   30,
		Collect: func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
			out := items
			if opts.MaxCount > 0 && len(out) > opts.MaxCount {
				out = out[:opts.MaxCount]
			}
			return out, nil
		},
		Process: func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
			return ProcessResult{Item: processed(it)}, nil
		},
	}
}

func newTestCrawler(f Family, st store.Store, bus events.Bus) *Crawler {
	return New(f, page.NewFake(""), st, bus,
		WithDelays(Delays{}),
		WithLogger(zerolog.Nop()),
	)
}

func TestCrawlProcessesEachLinkOnce(t *testing.T) {
	// The same items resurface on every collect pass, as overlapping
	// lazy-load pages do on the real portal.
	items := []types.Item{item("/p/1", "2024-03-10"), item("/p/2", "2024-03-05"), item("/p/1", "2024-03-10")}

	var processCalls []string
	f := testFamily(items)
	inner := f.Process
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		processCalls = append(processCalls, it.Link)
		return inner(ctx, it, stop)
	}

	st := store.NewMemory()
	c := newTestCrawler(f, st, events.NopBus{})
	require.NoError(t, c.Start(context.Background(), nil))

	assert.Equal(t, []string{"/p/1", "/p/2"}, processCalls)

	var final []types.Item
	found, err := st.Get(context.Background(), "portfolio_items", &final)
	require.NoError(t, err)
	require.True(t, found)

	seen := map[string]bool{}
	for _, it := range final {
		assert.False(t, seen[it.Link], "link %s appears twice", it.Link)
		seen[it.Link] = true
		assert.True(t, it.HasDetails())
	}
	assert.Len(t, final, 2)
}

func TestCrawlEmitsMonotonicItemAdds(t *testing.T) {
	items := []types.Item{item("/p/1", "2024-03-10"), item("/p/2", "2024-03-05"), item("/p/3", "2024-02-28")}

	bus := events.NewMemoryBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	c := newTestCrawler(testFamily(items), store.NewMemory(), bus)
	require.NoError(t, c.Start(context.Background(), nil))

	var added []string
	var completed *events.Event
	var replaced int
	for ev := range ch {
		switch ev.Type {
		case events.ItemAdded:
			added = append(added, ev.Item.Link)
		case events.ItemsReplaced:
			replaced++
			assert.Empty(t, ev.Items)
		case events.CrawlCompleted:
			e := ev
			completed = &e
		}
		if completed != nil {
			break
		}
	}

	require.NotNil(t, completed)
	assert.Equal(t, 1, replaced)
	assert.Equal(t, events.ReasonCompleted, completed.Reason)
	assert.Equal(t, []string{"/p/1", "/p/2", "/p/3"}, added)

	var finalLinks []string
	for _, it := range completed.Items {
		finalLinks = append(finalLinks, it.Link)
	}
	assert.Equal(t, added, finalLinks)
}

func TestCrawlStopHaltsBeforeNextItem(t *testing.T) {
	items := []types.Item{item("/p/1", "2024-03-10"), item("/p/2", "2024-03-05"), item("/p/3", "2024-02-28")}

	st := store.NewMemory()
	var c *Crawler
	f := testFamily(items)
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		if it.Link == "/p/1" {
			// Request a stop while the first item is mid-processing; the
			// loop must honor it before touching the second item.
			require.True(t, c.Stop())
		}
		return ProcessResult{Item: processed(it)}, nil
	}

	bus := events.NewMemoryBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	c = New(f, page.NewFake(""), st, bus, WithDelays(Delays{}), WithLogger(zerolog.Nop()))
	require.NoError(t, c.Start(context.Background(), nil))

	var completed *events.Event
	for ev := range ch {
		if ev.Type == events.CrawlCompleted {
			e := ev
			completed = &e
			break
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, events.ReasonStopped, completed.Reason)

	var final []types.Item
	found, err := st.Get(context.Background(), "portfolio_items", &final)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, final, 1)
	assert.Equal(t, "/p/1", final[0].Link)
}

func TestCrawlSessionExpiryShortCircuits(t *testing.T) {
	items := []types.Item{item("/p/1", "2024-03-10"), item("/p/2", "2024-03-05"), item("/p/3", "2024-02-28")}

	var processCalls []string
	f := testFamily(items)
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		processCalls = append(processCalls, it.Link)
		if it.Link == "/p/2" {
			return ProcessResult{StopCrawl: true}, nil
		}
		return ProcessResult{Item: processed(it)}, nil
	}

	bus := events.NewMemoryBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	c := newTestCrawler(f, store.NewMemory(), bus)
	require.NoError(t, c.Start(context.Background(), nil))

	assert.Equal(t, []string{"/p/1", "/p/2"}, processCalls)

	var notices int
	var completed *events.Event
	for ev := range ch {
		switch ev.Type {
		case events.Notice:
			notices++
		case events.CrawlCompleted:
			e := ev
			completed = &e
		}
		if completed != nil {
			break
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, events.ReasonSessionExpired, completed.Reason)
	assert.Equal(t, 1, notices)
	// The triggering item is excluded from results.
	require.Len(t, completed.Items, 1)
	assert.Equal(t, "/p/1", completed.Items[0].Link)
}

func TestCrawlSessionExpiredErrorTerminatesRun(t *testing.T) {
	items := []types.Item{item("/m/2024-03", "2024-03-01"), item("/m/2024-02", "2024-02-01")}

	f := testFamily(items)
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		return ProcessResult{}, ErrSessionExpired
	}

	bus := events.NewMemoryBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	c := newTestCrawler(f, store.NewMemory(), bus)
	require.NoError(t, c.Start(context.Background(), nil))

	for ev := range ch {
		if ev.Type == events.CrawlCompleted {
			assert.Equal(t, events.ReasonSessionExpired, ev.Reason)
			assert.Empty(t, ev.Items)
			break
		}
	}
}

func TestCrawlConcurrentStartRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	f := testFamily([]types.Item{item("/p/1", "2024-03-10")})
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		close(started)
		<-release
		return ProcessResult{Item: processed(it)}, nil
	}

	c := newTestCrawler(f, store.NewMemory(), events.NopBus{})

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), nil) }()

	<-started
	assert.True(t, c.Running())
	assert.ErrorIs(t, c.Start(context.Background(), nil), ErrCrawlInProgress)

	// The rejected second start must not have reset the first run's state.
	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Running())
}

func TestCrawlEmptySeedCompletesImmediately(t *testing.T) {
	f := testFamily(nil)
	var processCalls int
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		processCalls++
		return ProcessResult{Item: processed(it)}, nil
	}

	bus := events.NewMemoryBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	c := newTestCrawler(f, store.NewMemory(), bus)
	require.NoError(t, c.Start(context.Background(), nil))

	assert.Zero(t, processCalls)
	for ev := range ch {
		if ev.Type == events.CrawlCompleted {
			assert.Equal(t, events.ReasonCompleted, ev.Reason)
			assert.Empty(t, ev.Items)
			break
		}
	}
}

func TestCrawlSkipGetsNoResultAndNoRetry(t *testing.T) {
	items := []types.Item{item("/p/1", "2023-01-10"), item("/p/2", "2024-03-05")}

	var processCalls []string
	f := testFamily(items)
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		processCalls = append(processCalls, it.Link)
		if it.Link == "/p/1" {
			return ProcessResult{Skipped: true}, nil
		}
		return ProcessResult{Item: processed(it)}, nil
	}

	st := store.NewMemory()
	c := newTestCrawler(f, st, events.NopBus{})
	require.NoError(t, c.Start(context.Background(), nil))

	// The skipped item is processed exactly once and never retried even
	// though it keeps resurfacing from collect.
	assert.Equal(t, []string{"/p/1", "/p/2"}, processCalls)

	var final []types.Item
	found, err := st.Get(context.Background(), "portfolio_items", &final)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, final, 1)
	assert.Equal(t, "/p/2", final[0].Link)
}

func TestCrawlRetriesBoundedWhenMoreContentAdvertised(t *testing.T) {
	var collects, probes int
	f := Family{
		Name:       "activity",
		StorageKey: "activity_items",
		MaxCount:   50,
		Collect: func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
			collects++
			return nil, nil
		},
		Process: func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
			t.Fatal("process must not be called")
			return ProcessResult{}, nil
		},
		HasMore: func(ctx context.Context) (bool, error) {
			probes++
			return true, nil
		},
	}

	c := New(f, page.NewFake(""), store.NewMemory(), events.NopBus{},
		WithDelays(Delays{}),
		WithMaxRetries(2),
		WithLogger(zerolog.Nop()),
	)

	start := time.Now()
	require.NoError(t, c.Start(context.Background(), nil))
	assert.Less(t, time.Since(start), time.Second)

	// Seed collect returned nothing, so the run short-circuits before any
	// retry happens.
	assert.Equal(t, 1, collects)
	assert.Zero(t, probes)
}

func TestCrawlRetryThenExhaust(t *testing.T) {
	// Seed yields one item; afterwards collect never grows, but the page
	// claims more content. The loop must retry a bounded number of times
	// and then complete.
	var collects int
	f := Family{
		Name:       "activity",
		StorageKey: "activity_items",
		MaxCount:   50,
		Collect: func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
			collects++
			return []types.Item{item("/a/1", "2024-03-10")}, nil
		},
		Process: func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
			return ProcessResult{Item: processed(it)}, nil
		},
		HasMore: func(ctx context.Context) (bool, error) { return true, nil },
	}

	c := New(f, page.NewFake(""), store.NewMemory(), events.NopBus{},
		WithDelays(Delays{}),
		WithMaxRetries(2),
		WithLogger(zerolog.Nop()),
	)
	require.NoError(t, c.Start(context.Background(), nil))

	// 1 seed + initial drain re-collect + 2 bounded retries each re-collect.
	assert.Equal(t, 4, collects)
}

func TestCrawlRangePreScrollEmptyWindow(t *testing.T) {
	// Everything on the page predates the requested window: the run
	// completes empty without processing anything.
	items := []types.Item{item("/p/1", "2023-01-10"), item("/p/2", "2022-12-05")}
	f := testFamily(items)
	f.Process = func(ctx context.Context, it types.Item, stop func() bool) (ProcessResult, error) {
		t.Fatal("process must not be called")
		return ProcessResult{}, nil
	}

	c := newTestCrawler(f, store.NewMemory(), events.NopBus{})
	rng := daterange.Range{
		From: &daterange.MonthDate{Year: 2024, Month: 1},
		To:   &daterange.MonthDate{Year: 2024, Month: 3},
	}
	require.NoError(t, c.Start(context.Background(), &rng))
}

func TestCrawlMaxCountStopsDrain(t *testing.T) {
	items := []types.Item{
		item("/p/1", "2024-03-10"),
		item("/p/2", "2024-03-09"),
		item("/p/3", "2024-03-08"),
	}
	f := testFamily(items)
	f.MaxCount = 2

	st := store.NewMemory()
	c := newTestCrawler(f, st, events.NopBus{})
	require.NoError(t, c.Start(context.Background(), nil))

	// Collect is capped at MaxCount, so only the first two links are ever
	// considered and the drain stops at the cap.
	var final []types.Item
	found, err := st.Get(context.Background(), "portfolio_items", &final)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, final, 2)
	assert.Equal(t, "/p/1", final[0].Link)
	assert.Equal(t, "/p/2", final[1].Link)
}
