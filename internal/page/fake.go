package page

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted in-memory Accessor for tests. The current DOM is a
// plain HTML string; scrolling to the end pops the next queued snapshot,
// which models lazy loading, and clicks can swap in a scripted snapshot,
// which models modal open/close.
type Fake struct {
	mu sync.Mutex

	html        string
	scrollQueue []string

	clickHTML      map[string]string
	fetchResponses map[string]string
	fetchErrs      map[string]error

	location string

	// Journals.
	Clicks          []string
	ScrollEnds      int
	ScrollsIntoView []string
	Fetches         []string

	// OnScrollEnd, when set, runs after each ScrollToEnd with the 1-based
	// scroll count. It may call SetHTML to script snapshot changes that
	// depend on how many scrolls happened.
	OnScrollEnd func(n int)
}

// NewFake returns a Fake whose current DOM is html.
func NewFake(html string) *Fake {
	return &Fake{
		html:           html,
		clickHTML:      make(map[string]string),
		fetchResponses: make(map[string]string),
		fetchErrs:      make(map[string]error),
		location:       "https://school.example.com/portal",
	}
}

// SetHTML replaces the current DOM snapshot.
func (f *Fake) SetHTML(html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = html
}

// QueueScrollHTML appends snapshots that successive ScrollToEnd calls will
// reveal, in order. Once the queue is drained, further scrolls leave the DOM
// unchanged (content exhausted).
func (f *Fake) QueueScrollHTML(snapshots ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrollQueue = append(f.scrollQueue, snapshots...)
}

// OnClick scripts the DOM snapshot that clicking selector switches to.
func (f *Fake) OnClick(selector, html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clickHTML[selector] = html
}

// OnFetch scripts the body returned for a fetched URL.
func (f *Fake) OnFetch(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchResponses[url] = body
}

// OnFetchErr scripts an error for a fetched URL.
func (f *Fake) OnFetchErr(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErrs[url] = err
}

// SetLocation sets the URL reported by Location.
func (f *Fake) SetLocation(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.location = url
}

// HTML implements Accessor.
func (f *Fake) HTML(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, nil
}

// Click implements Accessor.
func (f *Fake) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Clicks = append(f.Clicks, selector)
	if html, ok := f.clickHTML[selector]; ok {
		f.html = html
	}
	return nil
}

// ScrollToEnd implements Accessor.
func (f *Fake) ScrollToEnd(context.Context) error {
	f.mu.Lock()
	f.ScrollEnds++
	n := f.ScrollEnds
	if len(f.scrollQueue) > 0 {
		f.html = f.scrollQueue[0]
		f.scrollQueue = f.scrollQueue[1:]
	}
	hook := f.OnScrollEnd
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

// ScrollIntoView implements Accessor.
func (f *Fake) ScrollIntoView(_ context.Context, selector string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScrollsIntoView = append(f.ScrollsIntoView, selector)
	return nil
}

// Fetch implements Accessor.
func (f *Fake) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fetches = append(f.Fetches, url)
	if err, ok := f.fetchErrs[url]; ok {
		return "", err
	}
	if body, ok := f.fetchResponses[url]; ok {
		return body, nil
	}
	return "", fmt.Errorf("fake page: no scripted response for %s", url)
}

// Location implements Accessor.
func (f *Fake) Location(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location, nil
}
