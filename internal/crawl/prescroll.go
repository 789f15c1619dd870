package crawl

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

// PreScroll advances the page until an item inside rng is visible, or proves
// no such item will ever load. It returns (nil, false, nil) when the range
// provably yields nothing; the caller treats that as a successful empty
// completion. On success the returned list starts at the first in-range item,
// with the too-recent prefix trimmed.
//
// Collectors return items latest-first, so once every loaded item predates
// From there is nothing left to scroll for.
func PreScroll(
	ctx context.Context,
	acc page.Accessor,
	seed []types.Item,
	rng daterange.Range,
	stop func() bool,
	collect CollectFunc,
	settle time.Duration,
	log zerolog.Logger,
) ([]types.Item, bool, error) {
	if daterange.AllBeforeFrom(seed, rng) {
		return nil, false, nil
	}

	if !daterange.AllAfterTo(seed, rng) {
		// Seed already straddles or contains the range.
		if idx := daterange.FirstInRangeIndex(seed, rng); idx >= 0 {
			return seed[idx:], true, nil
		}
		return seed, true, nil
	}

	// Every loaded item is newer than To; scroll back in time until the
	// window appears or content runs out.
	seen := make(map[string]struct{}, len(seed))
	accumulated := make([]types.Item, len(seed))
	copy(accumulated, seed)
	for _, item := range seed {
		seen[item.Link] = struct{}{}
	}

	for !stop() && ctx.Err() == nil {
		if err := acc.ScrollToEnd(ctx); err != nil {
			return nil, false, err
		}
		Wait(ctx, settle)

		// Uncapped, to see the true incremental delta.
		loaded, err := collect(ctx, CollectOptions{})
		if err != nil {
			return nil, false, err
		}

		var fresh []types.Item
		for _, item := range loaded {
			if _, ok := seen[item.Link]; !ok {
				fresh = append(fresh, item)
			}
		}
		if len(fresh) == 0 {
			log.Debug().Int("loaded", len(loaded)).Msg("scroll produced no new items, content exhausted")
			break
		}
		if daterange.AllBeforeFrom(fresh, rng) {
			break
		}
		if daterange.AnyInRange(fresh, rng) {
			idx := daterange.FirstInRangeIndex(loaded, rng)
			if idx >= 0 {
				return loaded[idx:], true, nil
			}
		}

		for _, item := range fresh {
			seen[item.Link] = struct{}{}
		}
		accumulated = append(accumulated, fresh...)
	}

	if idx := daterange.FirstInRangeIndex(accumulated, rng); idx >= 0 {
		return accumulated[idx:], true, nil
	}
	return nil, false, nil
}

// Wait blocks for d or until ctx is done. Family processors use it for their
// settle delays so tests can zero them out.
func Wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
