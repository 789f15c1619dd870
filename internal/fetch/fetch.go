// Package fetch provides authenticated HTTP access to portal pages and
// media outside the browser tab, reusing the portal session cookie.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Result holds the response from a page fetch.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Session is an HTTP client bound to a portal origin and its session cookie.
// Requests made through it are indistinguishable from same-tab navigation as
// far as the portal's auth layer is concerned.
type Session struct {
	baseURL *url.URL
	cookie  string
	client  *http.Client
	opts    *Options
}

// NewSession builds a session client for the given portal origin. cookie is
// the raw Cookie header value captured from a logged-in browser session and
// may be empty when the caller relies on the browser tab instead.
func NewSession(baseURL, cookie string, opts *Options) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: baseURL, Message: "invalid base URL", Cause: err}
	}
	return &Session{
		baseURL: parsed,
		cookie:  cookie,
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
	}, nil
}

// Resolve turns a possibly relative portal link into an absolute URL against
// the session's origin.
func (s *Session) Resolve(link string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", &Error{URL: link, Message: "invalid link", Cause: err}
	}
	return s.baseURL.ResolveReference(ref).String(), nil
}

// Page retrieves an HTML page through the session.
func (s *Session) Page(ctx context.Context, link string) (*Result, error) {
	absolute, err := s.Resolve(link)
	if err != nil {
		return nil, err
	}

	body, resp, err := s.get(ctx, absolute)
	if err != nil {
		return nil, err
	}

	result := &Result{
		URL:         absolute,
		HTML:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:     absolute,
			Message: fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}
	return result, nil
}

// Download retrieves a binary resource, typically an image referenced by a
// crawled item, and returns its raw bytes.
func (s *Session) Download(ctx context.Context, link string) ([]byte, error) {
	absolute, err := s.Resolve(link)
	if err != nil {
		return nil, err
	}

	body, resp, err := s.get(ctx, absolute)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			URL:     absolute,
			Message: fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}
	return body, nil
}

func (s *Session) get(ctx context.Context, absolute string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", absolute, nil)
	if err != nil {
		return nil, nil, &Error{URL: absolute, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", s.opts.UserAgent)
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}
	for key, value := range s.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, &Error{URL: absolute, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &Error{URL: absolute, Message: "failed to read response body", Cause: err}
	}
	return body, resp, nil
}

// AddQueryParams appends query parameters to a URL, preserving any that are
// already present.
func AddQueryParams(link string, params map[string]string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", &Error{URL: link, Message: "invalid URL", Cause: err}
	}
	q := parsed.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
