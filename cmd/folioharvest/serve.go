package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/events"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/server"
)

var (
	serveAddr string
	serveURL  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the crawl control API server",
	Long: `Serve opens the portal page in a browser tab and exposes an HTTP API for
starting and stopping crawls, reading stored results, and streaming crawl
events over SSE.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVarP(&serveURL, "url", "u", "", "Portal page URL (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	baseURL := serveURL
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	if baseURL == "" {
		return fmt.Errorf("portal page URL required: set --url flag or base_url config")
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	ctx := context.Background()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	browser, err := page.NewBrowser(ctx, baseURL, page.BrowserOptions{
		Headless: cfg.Headless,
		Cookie:   cfg.Cookie,
	})
	if err != nil {
		return fmt.Errorf("failed to open portal page: %w", err)
	}
	defer browser.Close()

	bus := events.NewMemoryBus()
	delays := cfg.Delays()

	// All families share the portal tab; the API rejects overlapping runs
	// per family, and one tab serves one crawl at a time in practice.
	crawlers := make(map[string]*crawl.Crawler, len(familyNames))
	for _, name := range familyNames {
		fam, err := buildFamily(name, browser, nil, delays)
		if err != nil {
			return err
		}
		crawlers[name] = crawl.New(fam, browser, st, bus,
			crawl.WithDelays(delays),
			crawl.WithMaxRetries(cfg.MaxRetries),
		)
	}

	srv := server.New(server.Config{Addr: addr}, crawlers, st, bus)
	return srv.Start()
}
