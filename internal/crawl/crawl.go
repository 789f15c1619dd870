// Package crawl implements the incremental crawl engine: a generic
// orchestrator that seeds an item set from the page, scrolls back to the
// requested date window, then drains the item queue through a per-family
// detail processor while polling for newly lazy-loaded content.
package crawl

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/events"
	"github.com/jwtham/folioharvest/internal/logger"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/store"
	"github.com/jwtham/folioharvest/internal/types"
)

// DefaultMaxRetries bounds the re-collect attempts made when no new items
// appear but the page still advertises more content. Tunable policy, not an
// invariant.
const DefaultMaxRetries = 2

// Crawler drives one content family through the crawl state machine. A
// crawler runs at most one crawl at a time; concurrent starts are softly
// rejected.
type Crawler struct {
	family     Family
	page       page.Accessor
	store      store.Store
	bus        events.Bus
	delays     Delays
	maxRetries int
	log        zerolog.Logger

	mu         sync.Mutex
	isCrawling bool
	run        *RunState
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithDelays overrides the fixed settle delays. Tests pass zeros.
func WithDelays(d Delays) Option {
	return func(c *Crawler) { c.delays = d }
}

// WithMaxRetries overrides the no-new-items retry bound.
func WithMaxRetries(n int) Option {
	return func(c *Crawler) { c.maxRetries = n }
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Crawler) { c.log = log }
}

// New builds a crawler for one family over the given collaborators.
func New(family Family, acc page.Accessor, st store.Store, bus events.Bus, opts ...Option) *Crawler {
	c := &Crawler{
		family:     family,
		page:       acc,
		store:      st,
		bus:        bus,
		delays:     DefaultDelays(),
		maxRetries: DefaultMaxRetries,
		log:        logger.For("crawl." + family.Name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Running reports whether a crawl is currently active.
func (c *Crawler) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCrawling
}

// Stop requests cooperative cancellation of the active run. Returns false
// when no crawl is running; calling it idle is a no-op.
func (c *Crawler) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isCrawling || c.run == nil {
		return false
	}
	c.run.RequestStop()
	return true
}

// StorageKey returns the store key under which this family's results are
// persisted.
func (c *Crawler) StorageKey() string {
	return c.family.StorageKey
}

// RunID returns the active run's identifier, or "" when idle.
func (c *Crawler) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return ""
	}
	return c.run.RunID.String()
}

// Items returns the active run's accumulated results, or nil when idle.
func (c *Crawler) Items() []types.Item {
	c.mu.Lock()
	run := c.run
	c.mu.Unlock()
	if run == nil {
		return nil
	}
	return run.Items()
}

// Start runs one crawl to completion. rng narrows the crawl to a month
// window; nil crawls everything up to the family's max count. Start blocks
// until the run reaches a terminal state. A second Start while one is active
// returns ErrCrawlInProgress without touching the first run.
func (c *Crawler) Start(ctx context.Context, rng *daterange.Range) error {
	c.mu.Lock()
	if c.isCrawling {
		c.mu.Unlock()
		return ErrCrawlInProgress
	}
	run := NewRunState()
	c.isCrawling = true
	c.run = run
	c.mu.Unlock()

	reason := events.ReasonCompleted
	defer func() {
		// Always persist the final snapshot and emit completion, whatever
		// terminal state was reached.
		c.persist(ctx, run)
		c.bus.Publish(events.Event{
			Type:   events.CrawlCompleted,
			Family: c.family.Name,
			RunID:  run.RunID.String(),
			Items:  run.Items(),
			Reason: reason,
		})
		c.log.Info().
			Str("run_id", run.RunID.String()).
			Str("reason", reason).
			Int("items", run.Count()).
			Msg("crawl finished")

		c.mu.Lock()
		c.isCrawling = false
		c.run = nil
		c.mu.Unlock()
	}()

	c.log.Info().Str("run_id", run.RunID.String()).Msg("crawl started")

	// Seeding: clear previous results and tell listeners the slate is clean.
	if err := c.store.Remove(ctx, c.family.StorageKey); err != nil {
		c.log.Warn().Err(err).Msg("failed to clear stored results")
	}
	c.bus.Publish(events.Event{
		Type:   events.ItemsReplaced,
		Family: c.family.Name,
		RunID:  run.RunID.String(),
		Items:  []types.Item{},
	})

	seed, err := c.family.Collect(ctx, CollectOptions{MaxCount: c.family.MaxCount})
	if err != nil {
		return err
	}
	if len(seed) == 0 {
		return nil
	}

	queue := seed
	if rng != nil && !rng.IsZero() {
		trimmed, found, err := PreScroll(ctx, c.page, seed, *rng, run.ShouldStop, c.family.Collect, c.delays.ScrollSettle, c.log)
		if err != nil {
			return err
		}
		if !found {
			// Nothing will ever fall inside the window: empty completion.
			return nil
		}
		queue = trimmed
	}

	reason = c.drain(ctx, run, queue, rng)
	return nil
}

// drain runs the polling loop until a terminal condition and returns the
// terminal reason.
func (c *Crawler) drain(ctx context.Context, run *RunState, queue []types.Item, rng *daterange.Range) string {
	retries := 0
	for {
		batch := unprocessed(run, queue)

		if len(batch) == 0 {
			fresh, err := c.family.Collect(ctx, CollectOptions{MaxCount: c.family.MaxCount})
			if err != nil {
				c.log.Warn().Err(err).Msg("re-collect failed")
				return events.ReasonCompleted
			}
			batch = unprocessed(run, fresh)
			if len(batch) == 0 {
				if !c.hasMore(ctx) || retries >= c.maxRetries {
					return events.ReasonCompleted
				}
				retries++
				c.log.Debug().Int("attempt", retries).Msg("no new items yet, retrying")
				Wait(ctx, c.delays.Retry)
				queue = nil
				continue
			}
		}
		retries = 0

		for _, item := range batch {
			if run.ShouldStop() || ctx.Err() != nil {
				return events.ReasonStopped
			}

			// Items with a known out-of-window date are skipped without
			// touching the page.
			if rng != nil && !rng.IsZero() && item.PublishDate != "" && !daterange.InRange(item.PublishDate, *rng) {
				run.MarkProcessed(item.Link)
				continue
			}

			result, err := c.family.Process(ctx, item, run.ShouldStop)
			if err != nil {
				if errors.Is(err, ErrSessionExpired) {
					return c.sessionExpired(run)
				}
				// Per-item failures degrade to a logged skip; the item is
				// forfeited for the rest of this run.
				c.log.Warn().Err(err).Str("link", item.Link).Msg("item processing failed")
				run.MarkProcessed(item.Link)
				continue
			}
			if result.StopCrawl {
				return c.sessionExpired(run)
			}
			if result.Skipped {
				run.MarkProcessed(item.Link)
				continue
			}

			run.Append(result.Item)
			c.persist(ctx, run)
			c.bus.Publish(events.Event{
				Type:   events.ItemAdded,
				Family: c.family.Name,
				RunID:  run.RunID.String(),
				Item:   &result.Item,
			})
			c.log.Debug().Str("link", result.Item.Link).Int("total", run.Count()).Msg("item processed")

			// Politeness delay after success only; skips stay fast.
			Wait(ctx, c.delays.ItemProcess)
		}

		if c.family.MaxCount > 0 && run.Count() >= c.family.MaxCount {
			return events.ReasonCompleted
		}
		queue = nil
	}
}

// unprocessed filters the queue down to links not yet in the dedup ledger.
func unprocessed(run *RunState, queue []types.Item) []types.Item {
	var out []types.Item
	for _, item := range queue {
		if !run.IsProcessed(item.Link) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Crawler) hasMore(ctx context.Context) bool {
	if c.family.HasMore == nil {
		return false
	}
	more, err := c.family.HasMore(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("load-more probe failed")
		return false
	}
	return more
}

// sessionExpired records the distinguished login-expiry terminal state and
// fires the single user-facing notice.
func (c *Crawler) sessionExpired(run *RunState) string {
	c.log.Warn().Str("run_id", run.RunID.String()).Msg("portal session expired, stopping crawl")
	c.bus.Publish(events.Event{
		Type:    events.Notice,
		Family:  c.family.Name,
		RunID:   run.RunID.String(),
		Message: "Portal session expired. Please log in again and restart the crawl.",
	})
	return events.ReasonSessionExpired
}

// persist writes the current result snapshot. Failures are best effort: the
// crawl's correctness rests on the final snapshot, not every incremental one.
func (c *Crawler) persist(ctx context.Context, run *RunState) {
	if err := c.store.Set(ctx, c.family.StorageKey, run.Items()); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist snapshot")
	}
}
