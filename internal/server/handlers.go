package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/types"
)

// startRequest is the optional body of a crawl start call. From and To are
// YYYY-MM months; both empty means an unbounded crawl.
type startRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (s *Server) crawlerFor(w http.ResponseWriter, r *http.Request) (*crawl.Crawler, string, bool) {
	family := r.PathValue("family")
	c, ok := s.crawlers[family]
	if !ok {
		s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("unknown family: %s", family))
		return nil, family, false
	}
	return c, family, true
}

// handleCrawlStart kicks off a crawl run for the family and returns
// immediately; progress flows through the event stream.
func (s *Server) handleCrawlStart(w http.ResponseWriter, r *http.Request) {
	c, family, ok := s.crawlerFor(w, r)
	if !ok {
		return
	}

	var req startRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	rng, err := parseRange(req)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if c.Running() {
		s.errorResponse(w, http.StatusConflict, crawl.ErrCrawlInProgress.Error())
		return
	}

	go func() {
		// The run outlives the HTTP request; it ends on its own terms or
		// via the stop endpoint.
		if err := c.Start(context.WithoutCancel(r.Context()), rng); err != nil {
			s.log.Error().Err(err).Str("family", family).Msg("crawl failed")
		}
	}()

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"family": family,
		"status": "started",
	})
}

// handleCrawlStop requests cooperative cancellation of the active run.
func (s *Server) handleCrawlStop(w http.ResponseWriter, r *http.Request) {
	c, family, ok := s.crawlerFor(w, r)
	if !ok {
		return
	}

	stopped := c.Stop()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"family":  family,
		"stopped": stopped,
	})
}

// handleCrawlStatus reports whether a run is active and how far it has come.
func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	c, family, ok := s.crawlerFor(w, r)
	if !ok {
		return
	}

	resp := map[string]any{
		"family":  family,
		"running": c.Running(),
	}
	if runID := c.RunID(); runID != "" {
		resp["run_id"] = runID
		resp["items_processed"] = len(c.Items())
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleItems returns the stored result snapshot for the family.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	c, family, ok := s.crawlerFor(w, r)
	if !ok {
		return
	}

	var items []types.Item
	found, err := s.store.Get(r.Context(), c.StorageKey(), &items)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found || items == nil {
		items = []types.Item{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"family": family,
		"items":  items,
	})
}

func parseRange(req startRequest) (*daterange.Range, error) {
	if req.From == "" && req.To == "" {
		return nil, nil
	}
	var rng daterange.Range
	if req.From != "" {
		m, err := daterange.ParseMonth(req.From)
		if err != nil {
			return nil, errors.New("invalid from month, want YYYY-MM")
		}
		rng.From = &m
	}
	if req.To != "" {
		m, err := daterange.ParseMonth(req.To)
		if err != nil {
			return nil, errors.New("invalid to month, want YYYY-MM")
		}
		rng.To = &m
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return nil, errors.New("to month precedes from month")
	}
	return &rng, nil
}
