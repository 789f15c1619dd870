package crawl

import (
	"context"
	"time"

	"github.com/jwtham/folioharvest/internal/types"
)

// CollectOptions configures a collection pass over the current page snapshot.
type CollectOptions struct {
	// MaxCount truncates the deduplicated result to the first MaxCount items
	// when positive. Zero means uncapped.
	MaxCount int
}

// CollectFunc extracts a deduplicated, latest-first list of item descriptors
// from the current page. It must be read-only against the page.
type CollectFunc func(ctx context.Context, opts CollectOptions) ([]types.Item, error)

// ProcessResult is the outcome of processing one item's details.
type ProcessResult struct {
	// Item carries the fully populated item on success. Ignored when Skipped.
	Item types.Item

	// Skipped marks the item as processed-but-excluded: out of range, anchor
	// missing, or otherwise unextractable. Skipped items are never retried
	// within the same run.
	Skipped bool

	// StopCrawl signals a session-expiry condition detected during
	// processing. The orchestrator halts the whole run.
	StopCrawl bool
}

// ProcessFunc reveals and extracts the details for a single item. stop
// reports the cooperative cancellation flag; long-running processors poll it
// between their own internal steps.
type ProcessFunc func(ctx context.Context, item types.Item, stop func() bool) (ProcessResult, error)

// Family is the capability record that parameterizes the generic orchestrator
// for one content family.
type Family struct {
	// Name identifies the family in logs, events and API routes.
	Name string

	// StorageKey is the store key holding this family's result snapshot.
	StorageKey string

	// MaxCount bounds how many items one crawl run considers per polling
	// cycle and in total.
	MaxCount int

	Collect CollectFunc
	Process ProcessFunc

	// HasMore reports whether the page advertises further lazily loaded
	// content (a pagination or load-more affordance). Families without such
	// an affordance leave it nil, which reads as "no more".
	HasMore func(ctx context.Context) (bool, error)
}

// Delays groups the fixed settle waits used across the crawl. Tests zero
// them out.
type Delays struct {
	// ItemProcess is the politeness delay after each successful extraction.
	ItemProcess time.Duration

	// ScrollSettle is the wait after a scroll trigger before re-reading the
	// page, allowing lazy loading to land.
	ScrollSettle time.Duration

	// ModalSettle is the wait after opening or closing a modal.
	ModalSettle time.Duration

	// Retry is the wait between re-collect attempts when no new items
	// appeared but more content is plausible.
	Retry time.Duration
}

// DefaultDelays mirrors the timing the portal is known to tolerate.
func DefaultDelays() Delays {
	return Delays{
		ItemProcess:  time.Second,
		ScrollSettle: 1500 * time.Millisecond,
		ModalSettle:  time.Second,
		Retry:        time.Second,
	}
}
