package main

import (
	"context"
	"fmt"

	"github.com/jwtham/folioharvest/internal/activity"
	"github.com/jwtham/folioharvest/internal/attendance"
	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/daterange"
	"github.com/jwtham/folioharvest/internal/page"
	"github.com/jwtham/folioharvest/internal/portfolio"
	"github.com/jwtham/folioharvest/internal/store"
)

// familyNames lists the crawlable content families in CLI order.
var familyNames = []string{"portfolio", "activity", "attendance"}

// buildFamily constructs the named family's capability record.
func buildFamily(name string, acc page.Accessor, rng *daterange.Range, delays crawl.Delays) (crawl.Family, error) {
	switch name {
	case "portfolio":
		return portfolio.NewFamily(acc, rng, delays), nil
	case "activity":
		return activity.NewFamily(acc, rng, delays), nil
	case "attendance":
		return attendance.NewFamily(acc, rng, delays), nil
	default:
		return crawl.Family{}, fmt.Errorf("unknown family %q (want one of %v)", name, familyNames)
	}
}

// storageKeyFor maps a family name to its snapshot key.
func storageKeyFor(name string) (string, error) {
	switch name {
	case "portfolio":
		return portfolio.StorageKey, nil
	case "activity":
		return activity.StorageKey, nil
	case "attendance":
		return attendance.StorageKey, nil
	default:
		return "", fmt.Errorf("unknown family %q (want one of %v)", name, familyNames)
	}
}

// exportPrefix maps a family name to its archive filename prefix.
func exportPrefix(name string) string {
	switch name {
	case "activity":
		return "qoqolo-class-activity"
	case "attendance":
		return "qoqolo-check-in-out"
	default:
		return "qoqolo-portfolio"
	}
}

// openStore opens the configured snapshot store: Postgres when DatabaseURL
// is set, a file store under StorageDir otherwise. The returned func closes
// the store.
func openStore(ctx context.Context) (store.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return pg, pg.Close, nil
	}

	fs, err := store.NewFile(cfg.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage dir %s: %w", cfg.StorageDir, err)
	}
	return fs, func() {}, nil
}

// parseRangeFlags converts --from/--to YYYY-MM values into a range. Both
// empty means no range.
func parseRangeFlags(from, to string) (*daterange.Range, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	var rng daterange.Range
	if from != "" {
		m, err := daterange.ParseMonth(from)
		if err != nil {
			return nil, fmt.Errorf("invalid --from: %w", err)
		}
		rng.From = &m
	}
	if to != "" {
		m, err := daterange.ParseMonth(to)
		if err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
		rng.To = &m
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return nil, fmt.Errorf("--to %s precedes --from %s", to, from)
	}
	return &rng, nil
}
