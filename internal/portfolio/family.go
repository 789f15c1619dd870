package portfolio

import (
	"context"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/types"
)

// NewFamily wires the portfolio collector and modal processor into the
// generic orchestrator's capability record.
func NewFamily(acc page.Accessor, rng *daterange.Range, delays crawl.Delays) crawl.Family {
	proc := NewProcessor(acc, rng, delays)
	return crawl.Family{
		Name:       "portfolio",
		StorageKey: StorageKey,
		MaxCount:   MaxItemsPerCrawl,
		Collect: func(ctx context.Context, opts crawl.CollectOptions) ([]types.Item, error) {
			return Collect(ctx, acc, opts)
		},
		Process: proc.Process,
	}
}
