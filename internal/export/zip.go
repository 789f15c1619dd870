package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jwtham/folioharvest/internal/logger"
	"github.com/jwtham/folioharvest/internal/types"
)

// DefaultConcurrency bounds parallel image downloads per archive.
const DefaultConcurrency = 4

// Downloader fetches a media URL and returns its bytes. *fetch.Session
// satisfies it.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Progress is called after each image download attempt with the running and
// total counts.
type Progress func(downloaded, total int)

// Exporter writes crawled items as zip archives: images plus a README.md and
// data.json per item, or CSV plus JSON per attendance month. Image downloads
// that fail are logged and skipped so one dead URL never sinks an archive.
type Exporter struct {
	dl          Downloader
	concurrency int
	onProgress  Progress
	log         zerolog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithConcurrency sets the parallel download limit.
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithProgress sets a download progress callback.
func WithProgress(fn Progress) Option {
	return func(e *Exporter) { e.onProgress = fn }
}

// NewExporter builds an Exporter that downloads media through dl.
func NewExporter(dl Downloader, opts ...Option) *Exporter {
	e := &Exporter{
		dl:          dl,
		concurrency: DefaultConcurrency,
		log:         logger.For("export"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WriteItem writes a single item's archive to w: its images at the root,
// README.md, and data.json.
func (e *Exporter) WriteItem(ctx context.Context, w io.Writer, item types.Item) error {
	zw := zip.NewWriter(w)
	total := countImages([]types.Item{item})
	var done atomic.Int64
	if err := e.writeItemEntries(ctx, zw, "", item, total, &done); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// WriteBatch writes one archive holding a folder per item.
func (e *Exporter) WriteBatch(ctx context.Context, w io.Writer, items []types.Item) error {
	if len(items) == 0 {
		return fmt.Errorf("export: no items to export")
	}
	zw := zip.NewWriter(w)
	total := countImages(items)
	var done atomic.Int64
	for _, item := range items {
		folder := ItemFolderName(item) + "/"
		if err := e.writeItemEntries(ctx, zw, folder, item, total, &done); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

// WriteAttendance writes one archive with a folder per month: the month's
// CSV, its full JSON, and the renamed sign-in/out photos.
func (e *Exporter) WriteAttendance(ctx context.Context, w io.Writer, items []types.Item) error {
	if len(items) == 0 {
		return fmt.Errorf("export: no items to export")
	}
	zw := zip.NewWriter(w)
	total := countImages(items)
	var done atomic.Int64
	for _, item := range items {
		month := item.Month
		if month == "" {
			month = item.Title
		}
		folder := SanitizeFilename(month) + "/"

		var days []types.AttendanceDay
		var images []types.ItemImage
		if item.Details != nil {
			days = item.Details.Days
			images = item.Details.Images
		}

		csvContent, err := AttendanceCSV(days)
		if err != nil {
			zw.Close()
			return err
		}
		if err := writeEntry(zw, folder+month+".csv", []byte(csvContent)); err != nil {
			zw.Close()
			return err
		}
		if err := e.writeJSON(zw, folder+month+".json", item); err != nil {
			zw.Close()
			return err
		}
		if err := e.writeImages(ctx, zw, folder, images, total, &done); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

// writeItemEntries adds one item's images, README.md and data.json under
// folder (empty for archive root).
func (e *Exporter) writeItemEntries(ctx context.Context, zw *zip.Writer, folder string, item types.Item, total int, done *atomic.Int64) error {
	var images []types.ItemImage
	if item.Details != nil {
		images = item.Details.Images
	}
	if err := e.writeImages(ctx, zw, folder, images, total, done); err != nil {
		return err
	}
	if err := writeEntry(zw, folder+"README.md", []byte(ItemMarkdown(item))); err != nil {
		return err
	}
	return e.writeJSON(zw, folder+"data.json", item)
}

// writeImages downloads images with bounded parallelism then writes them to
// the archive sequentially, preserving item order. A failed download is
// logged and its entry skipped.
func (e *Exporter) writeImages(ctx context.Context, zw *zip.Writer, folder string, images []types.ItemImage, total int, done *atomic.Int64) error {
	if len(images) == 0 {
		return nil
	}

	bodies := make([][]byte, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	var mu sync.Mutex

	for i, image := range images {
		g.Go(func() error {
			data, err := e.dl.Download(gctx, image.URL)
			if err != nil {
				e.log.Warn().Err(err).Str("url", image.URL).Msg("image download failed")
			} else {
				bodies[i] = data
			}
			n := int(done.Add(1))
			if e.onProgress != nil {
				mu.Lock()
				e.onProgress(n, total)
				mu.Unlock()
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, image := range images {
		if bodies[i] == nil {
			continue
		}
		if err := writeEntry(zw, folder+image.ExportFilename, bodies[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeJSON(zw *zip.Writer, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeEntry(zw, name, data)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}

func countImages(items []types.Item) int {
	total := 0
	for _, item := range items {
		if item.Details != nil {
			total += len(item.Details.Images)
		}
	}
	return total
}

// ItemArchiveName names a single-item archive after its folder name.
func ItemArchiveName(item types.Item) string {
	return ItemFolderName(item) + ".zip"
}

// BatchArchiveName names a batch archive "<prefix>-<yyyy_mm-yyyy_mm>.zip"
// from the months its items span.
func BatchArchiveName(prefix string, items []types.Item) string {
	if suffix := DateRangeSuffix(items); suffix != "" {
		return prefix + "-" + suffix + ".zip"
	}
	return prefix + ".zip"
}
