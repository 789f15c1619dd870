package page

import (
	"context"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// DefaultOpTimeout bounds a single browser interaction.
const DefaultOpTimeout = 30 * time.Second

// BrowserOptions configures the headless browser accessor.
type BrowserOptions struct {
	Headless  bool
	OpTimeout time.Duration
	// Cookie is an optional raw Cookie header ("name=value; name2=value2")
	// installed for the target URL's domain before navigation, so the tab
	// starts out with the portal session.
	Cookie string
}

// DefaultBrowserOptions returns sensible defaults.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:  true,
		OpTimeout: DefaultOpTimeout,
	}
}

// Browser is a chromedp-backed Accessor attached to a single tab.
// Requires Chrome/Chromium to be installed on the system.
type Browser struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opTimeout time.Duration
}

// NewBrowser launches a browser, navigates to url, and waits for the page
// body to be ready. The caller must Close the returned Browser.
func NewBrowser(ctx context.Context, url string, opts BrowserOptions) (*Browser, error) {
	if opts.OpTimeout == 0 {
		opts.OpTimeout = DefaultOpTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	b := &Browser{ctx: browserCtx, cancel: cancel, opTimeout: opts.OpTimeout}

	actions := []chromedp.Action{}
	if opts.Cookie != "" {
		if cookieActions, err := setCookieActions(url, opts.Cookie); err == nil {
			actions = append(actions, cookieActions...)
		} else {
			cancel()
			return nil, &Error{Op: "navigate", Message: "invalid cookie target " + url, Cause: err}
		}
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)

	if err := b.run(ctx, actions...); err != nil {
		cancel()
		return nil, &Error{Op: "navigate", Message: url, Cause: err}
	}
	return b, nil
}

// setCookieActions installs each name=value pair from a raw Cookie header
// for the host of targetURL.
func setCookieActions(targetURL, rawCookie string) ([]chromedp.Action, error) {
	u, err := neturl.Parse(targetURL)
	if err != nil {
		return nil, err
	}
	host := u.Hostname()

	var actions []chromedp.Action
	for _, pair := range strings.Split(rawCookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		actions = append(actions, network.SetCookie(name, value).
			WithDomain(host).
			WithPath("/"))
	}
	return actions, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancel()
}

// run executes actions with the per-operation timeout, honoring the caller's
// context for cancellation.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(b.ctx, b.opTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// HTML returns the current serialized DOM.
func (b *Browser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", &Error{Op: "html", Message: "failed to serialize DOM", Cause: err}
	}
	return html, nil
}

// Click simulates a click on the first element matching the selector.
func (b *Browser) Click(ctx context.Context, selector string) error {
	if err := b.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return &Error{Op: "click", Message: selector, Cause: err}
	}
	return nil
}

// ScrollToEnd scrolls the window to the bottom of the document.
func (b *Browser) ScrollToEnd(ctx context.Context) error {
	js := `window.scrollTo(0, document.documentElement.scrollHeight)`
	if err := b.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return &Error{Op: "scroll", Message: "scroll to end", Cause: err}
	}
	return nil
}

// ScrollIntoView scrolls the first element matching selector into view,
// offset upward by offsetPx to clear fixed headers.
func (b *Browser) ScrollIntoView(ctx context.Context, selector string, offsetPx int) error {
	js := fmt.Sprintf(`(() => {
	const el = document.querySelector(%q);
	if (!el) { return false; }
	const rect = el.getBoundingClientRect();
	const top = rect.top + (window.pageYOffset || document.documentElement.scrollTop) - %d;
	window.scrollTo({ top: top, behavior: 'smooth' });
	return true;
})()`, selector, offsetPx)

	var found bool
	if err := b.run(ctx, chromedp.Evaluate(js, &found)); err != nil {
		return &Error{Op: "scroll", Message: selector, Cause: err}
	}
	if !found {
		return &Error{Op: "scroll", Message: "element not found: " + selector}
	}
	return nil
}

// Fetch performs a GET inside the page context so the portal session cookies
// apply, returning the response body as text.
func (b *Browser) Fetch(ctx context.Context, url string) (string, error) {
	js := fmt.Sprintf(`fetch(%q, { credentials: 'include' }).then(r => {
	if (!r.ok) { throw new Error('HTTP status ' + r.status); }
	return r.text();
})`, url)

	var body string
	err := b.run(ctx, chromedp.Evaluate(js, &body, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return "", &Error{Op: "fetch", Message: url, Cause: err}
	}
	return body, nil
}

// Location returns the page's current URL.
func (b *Browser) Location(ctx context.Context) (string, error) {
	var loc string
	if err := b.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", &Error{Op: "location", Message: "failed to read location", Cause: err}
	}
	return loc, nil
}
