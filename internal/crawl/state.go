package crawl

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jwtham/folioharvest/internal/types"
)

// RunState is the mutable state of one crawl run. It is created at start,
// owned by the run, and discarded at completion; nothing in this package
// keeps crawl state at package level.
type RunState struct {
	RunID uuid.UUID

	shouldStop atomic.Bool

	mu             sync.Mutex
	processedLinks map[string]struct{}
	processedItems []types.Item
}

// NewRunState returns an empty run state with a fresh run ID.
func NewRunState() *RunState {
	return &RunState{
		RunID:          uuid.New(),
		processedLinks: make(map[string]struct{}),
	}
}

// RequestStop sets the cooperative cancellation flag.
func (s *RunState) RequestStop() {
	s.shouldStop.Store(true)
}

// ShouldStop reports whether a stop has been requested.
func (s *RunState) ShouldStop() bool {
	return s.shouldStop.Load()
}

// MarkProcessed records a link in the dedup ledger without adding a result.
// Used for skipped and failed items so they are never retried in this run.
func (s *RunState) MarkProcessed(link string) {
	s.mu.Lock()
	s.processedLinks[link] = struct{}{}
	s.mu.Unlock()
}

// IsProcessed reports whether the link is already in the dedup ledger.
func (s *RunState) IsProcessed(link string) bool {
	s.mu.Lock()
	_, ok := s.processedLinks[link]
	s.mu.Unlock()
	return ok
}

// Append records a successfully extracted item and its link. The ledger
// stays a superset of the result links.
func (s *RunState) Append(item types.Item) {
	s.mu.Lock()
	s.processedLinks[item.Link] = struct{}{}
	s.processedItems = append(s.processedItems, item)
	s.mu.Unlock()
}

// Items returns a copy of the accumulated results in completion order.
func (s *RunState) Items() []types.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Item, len(s.processedItems))
	copy(out, s.processedItems)
	return out
}

// Count returns the number of accumulated results.
func (s *RunState) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processedItems)
}
