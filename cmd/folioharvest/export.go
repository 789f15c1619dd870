package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jwtham/folioharvest/internal/export"
	"github.com/jwtham/folioharvest/internal/fetch"
	"github.com/jwtham/folioharvest/internal/types"
)

var (
	exportOutDir string
	exportCookie string
	exportURL    string
)

var exportCmd = &cobra.Command{
	Use:   "export <family>",
	Short: "Export stored crawl results as a zip archive",
	Long: `Export reads the family's stored crawl results, downloads each item's
images through the portal session, and writes a zip archive: one folder per
item with its images, README.md and data.json (portfolio and activity), or
one folder per month with its CSV, JSON and renamed sign-in/out photos
(attendance).`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "o", ".", "Output directory for the archive")
	exportCmd.Flags().StringVar(&exportCookie, "cookie", "", "Session cookie header (overrides config)")
	exportCmd.Flags().StringVarP(&exportURL, "url", "u", "", "Portal base URL for resolving image links (overrides config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(_ *cobra.Command, args []string) error {
	family := args[0]

	key, err := storageKeyFor(family)
	if err != nil {
		return err
	}

	cookie := exportCookie
	if cookie == "" {
		cookie = cfg.Cookie
	}
	baseURL := exportURL
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	if baseURL == "" {
		return fmt.Errorf("portal base URL required: set --url flag or base_url config")
	}

	ctx := context.Background()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var items []types.Item
	found, err := st.Get(ctx, key, &items)
	if err != nil {
		return fmt.Errorf("failed to read stored results: %w", err)
	}
	if !found || len(items) == 0 {
		return fmt.Errorf("no stored results for %s; run a crawl first", family)
	}

	session, err := fetch.NewSession(baseURL, cookie, nil)
	if err != nil {
		return fmt.Errorf("failed to create portal session: %w", err)
	}

	if err := os.MkdirAll(exportOutDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", exportOutDir, err)
	}
	archivePath := filepath.Join(exportOutDir, export.BatchArchiveName(exportPrefix(family), items))

	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", archivePath, err)
	}
	defer f.Close()

	var bar *progressbar.ProgressBar
	exporter := export.NewExporter(session,
		export.WithConcurrency(cfg.DownloadConcurrency),
		export.WithProgress(func(n, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("downloading images"),
					progressbar.OptionSetWriter(os.Stderr),
				)
			}
			_ = bar.Set(n)
		}),
	)

	if family == "attendance" {
		err = exporter.WriteAttendance(ctx, f, items)
	} else {
		err = exporter.WriteBatch(ctx, f, items)
	}
	if err != nil {
		os.Remove(archivePath)
		return fmt.Errorf("export failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	fmt.Fprintf(os.Stdout, "Exported %d items to %s\n", len(items), archivePath)
	return nil
}
