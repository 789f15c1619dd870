package crawl

import "errors"

// ErrCrawlInProgress is returned by Start when a crawl is already running for
// the same crawler. Callers treat it as a soft rejection.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// ErrSessionExpired indicates the portal login session has lapsed. It is the
// only per-item error that unwinds the whole crawl; everything else degrades
// to a logged skip.
var ErrSessionExpired = errors.New("portal session expired")
