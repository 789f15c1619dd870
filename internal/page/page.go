// Package page abstracts the live portal page behind a narrow accessor
// interface so the crawl engine can be exercised against a fake in tests and
// against a real headless browser in production.
package page

import (
	"context"
	"fmt"
)

// Accessor is the crawl engine's only view of the portal page. Queries are
// snapshots of the current DOM; interactions are awaitable and honor the
// passed context.
type Accessor interface {
	// HTML returns the current serialized DOM.
	HTML(ctx context.Context) (string, error)
	// Click simulates a click on the first element matching the selector.
	Click(ctx context.Context, selector string) error
	// ScrollToEnd scrolls the window to the bottom of the document,
	// triggering any scroll-based lazy loading.
	ScrollToEnd(ctx context.Context) error
	// ScrollIntoView scrolls the first element matching the selector into
	// view, offset upward by offsetPx to clear fixed headers.
	ScrollIntoView(ctx context.Context, selector string, offsetPx int) error
	// Fetch performs a GET against url inside the page's session (cookies
	// included) and returns the response body.
	Fetch(ctx context.Context, url string) (string, error)
	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)
}

// Error represents a failed page interaction.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("page %s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("page %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
