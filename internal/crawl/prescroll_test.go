package crawl

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

func monthRange(fromY, fromM, toY, toM int) daterange.Range {
	return daterange.Range{
		From: &daterange.MonthDate{Year: fromY, Month: fromM},
		To:   &daterange.MonthDate{Year: toY, Month: toM},
	}
}

func never() bool { return false }

func TestPreScrollAllBeforeFromReturnsEmptyWithoutScrolling(t *testing.T) {
	fake := page.NewFake("")
	seed := []types.Item{item("/p/1", "2023-06-10"), item("/p/2", "2023-05-01")}

	collect := func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
		t.Fatal("collect must not be called")
		return nil, nil
	}

	got, found, err := PreScroll(context.Background(), fake, seed, monthRange(2024, 1, 2024, 3),
		never, collect, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.Zero(t, fake.ScrollEnds)
}

func TestPreScrollSeedAlreadyInRange(t *testing.T) {
	fake := page.NewFake("")
	seed := []types.Item{
		item("/p/1", "2024-05-10"), // too recent, trimmed
		item("/p/2", "2024-03-05"),
		item("/p/3", "2024-02-28"),
	}

	collect := func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
		t.Fatal("collect must not be called")
		return nil, nil
	}

	got, found, err := PreScroll(context.Background(), fake, seed, monthRange(2024, 1, 2024, 3),
		never, collect, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, got, 2)
	assert.Equal(t, "/p/2", got[0].Link)
	assert.Zero(t, fake.ScrollEnds)
}

func TestPreScrollScrollsUntilRangeAppears(t *testing.T) {
	fake := page.NewFake("")
	seed := []types.Item{item("/p/1", "2024-06-10"), item("/p/2", "2024-05-20")}

	// The in-range item becomes visible only after the second scroll.
	pages := map[int][]types.Item{
		1: {item("/p/1", "2024-06-10"), item("/p/2", "2024-05-20"), item("/p/3", "2024-04-15")},
		2: {item("/p/1", "2024-06-10"), item("/p/2", "2024-05-20"), item("/p/3", "2024-04-15"), item("/p/4", "2024-03-12")},
	}

	collect := func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
		assert.Zero(t, opts.MaxCount, "re-collect during pre-scroll must be uncapped")
		return pages[fake.ScrollEnds], nil
	}

	got, found, err := PreScroll(context.Background(), fake, seed, monthRange(2024, 1, 2024, 3),
		never, collect, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, fake.ScrollEnds)
	require.Len(t, got, 1)
	assert.Equal(t, "/p/4", got[0].Link)
}

func TestPreScrollStopsWhenContentExhausted(t *testing.T) {
	fake := page.NewFake("")
	seed := []types.Item{item("/p/1", "2024-06-10")}

	// Scrolling never reveals anything new.
	collect := func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
		return []types.Item{item("/p/1", "2024-06-10")}, nil
	}

	got, found, err := PreScroll(context.Background(), fake, seed, monthRange(2024, 1, 2024, 3),
		never, collect, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.Equal(t, 1, fake.ScrollEnds)
}

func TestPreScrollStopsWhenNewItemsPredateRange(t *testing.T) {
	fake := page.NewFake("")
	seed := []types.Item{item("/p/1", "2024-06-10")}

	// The first scroll jumps straight past the window to older content.
	collect := func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
		return []types.Item{item("/p/1", "2024-06-10"), item("/p/2", "2023-11-02")}, nil
	}

	got, found, err := PreScroll(context.Background(), fake, seed, monthRange(2024, 1, 2024, 3),
		never, collect, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.Equal(t, 1, fake.ScrollEnds)
}

func TestPreScrollHonorsStopFlag(t *testing.T) {
	fake := page.NewFake("")
	seed := []types.Item{item("/p/1", "2024-06-10")}

	stopped := false
	stop := func() bool { return stopped }
	collect := func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
		// Keep feeding new out-of-range items so only the stop flag can end
		// the loop.
		stopped = true
		return []types.Item{item("/p/1", "2024-06-10"), item("/p/new", "2024-05-01")}, nil
	}

	got, found, err := PreScroll(context.Background(), fake, seed, monthRange(2024, 1, 2024, 3),
		stop, collect, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.Equal(t, 1, fake.ScrollEnds)
}

func TestPreScrollUndatedSeedFallsThrough(t *testing.T) {
	fake := page.NewFake("")
	// No parseable dates at all: neither boundary predicate can prove
	// anything, so the seed passes through unchanged (fail open).
	seed := []types.Item{item("/p/1", ""), item("/p/2", "")}

	collect := func(ctx context.Context, opts CollectOptions) ([]types.Item, error) {
		t.Fatal("collect must not be called")
		return nil, nil
	}

	got, found, err := PreScroll(context.Background(), fake, seed, monthRange(2024, 1, 2024, 3),
		never, collect, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, seed, got)
}
