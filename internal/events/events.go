// Package events defines the fire-and-forget notification channel between
// the crawl engine and its consumers (CLI progress display, HTTP API SSE
// stream). Delivery is best effort: publishing with no subscribers is not an
// error, and the crawl never blocks on a slow consumer.
package events

import (
	"sync"

	"github.com/jwtham/folioharvest/internal/types"
)

// Type identifies an event kind.
type Type string

const (
	// ItemsReplaced carries a wholesale replacement of the result set
	// (emitted at crawl start with an empty set and at every terminal state
	// with the final set).
	ItemsReplaced Type = "items_replaced"
	// ItemAdded carries a single newly processed item.
	ItemAdded Type = "item_added"
	// CrawlCompleted signals a terminal state; Reason is one of "completed",
	// "stopped", "session_expired".
	CrawlCompleted Type = "crawl_completed"
	// Notice carries a user-facing message (currently only session expiry).
	Notice Type = "notice"
)

// Terminal reasons carried by CrawlCompleted events.
const (
	ReasonCompleted      = "completed"
	ReasonStopped        = "stopped"
	ReasonSessionExpired = "session_expired"
)

// Event is one published notification.
type Event struct {
	Type    Type         `json:"type"`
	Family  string       `json:"family"`
	RunID   string       `json:"run_id"`
	Items   []types.Item `json:"items,omitempty"`
	Item    *types.Item  `json:"item,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Bus is the publish side of the notification channel.
type Bus interface {
	Publish(Event)
}

// subscriberBuffer bounds each subscriber channel; events beyond it are
// dropped for that subscriber rather than blocking the publisher.
const subscriberBuffer = 64

// MemoryBus is an in-process Bus with channel-based subscriptions.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]chan Event)}
}

// Publish delivers the event to all current subscribers without blocking.
func (b *MemoryBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus a cancel
// function that must be called to release it.
func (b *MemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// NopBus discards all events.
type NopBus struct{}

// Publish implements Bus.
func (NopBus) Publish(Event) {}
