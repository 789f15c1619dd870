package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/events"
	"github.com/jwtham/folioharvest/internal/page"
)

var (
	crawlURL      string
	crawlCookie   string
	crawlFrom     string
	crawlTo       string
	crawlHeadless bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <family>",
	Short: "Crawl one content family from the portal",
	Long: `Crawl opens the portal page in a browser tab, collects the family's items,
visits each one for its details, and stores the results. Family is one of:
portfolio, activity, attendance.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlURL, "url", "u", "", "Portal page URL for the family (required)")
	crawlCmd.Flags().StringVar(&crawlCookie, "cookie", "", "Session cookie header (overrides config)")
	crawlCmd.Flags().StringVar(&crawlFrom, "from", "", "Earliest month to include (YYYY-MM)")
	crawlCmd.Flags().StringVar(&crawlTo, "to", "", "Latest month to include (YYYY-MM)")
	crawlCmd.Flags().BoolVar(&crawlHeadless, "headless", true, "Run the browser headless")

	if err := crawlCmd.MarkFlagRequired("url"); err != nil {
		panic(fmt.Sprintf("failed to mark url flag as required: %v", err))
	}
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	family := args[0]

	rng, err := parseRangeFlags(crawlFrom, crawlTo)
	if err != nil {
		return err
	}

	cookie := crawlCookie
	if cookie == "" {
		cookie = cfg.Cookie
	}
	headless := crawlHeadless
	if !cmd.Flags().Changed("headless") {
		headless = cfg.Headless
	}

	ctx := context.Background()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	browser, err := page.NewBrowser(ctx, crawlURL, page.BrowserOptions{
		Headless: headless,
		Cookie:   cookie,
	})
	if err != nil {
		return fmt.Errorf("failed to open portal page: %w", err)
	}
	defer browser.Close()

	fam, err := buildFamily(family, browser, rng, cfg.Delays())
	if err != nil {
		return err
	}

	bus := events.NewMemoryBus()
	crawler := crawl.New(fam, browser, st, bus,
		crawl.WithDelays(cfg.Delays()),
		crawl.WithMaxRetries(cfg.MaxRetries),
	)

	// Progress display driven by crawl events.
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("crawling %s", family)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
	)
	ch, cancelSub := bus.Subscribe()
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for ev := range ch {
			switch ev.Type {
			case events.ItemAdded:
				_ = bar.Add(1)
			case events.Notice:
				fmt.Fprintf(os.Stderr, "\n%s\n", ev.Message)
			case events.CrawlCompleted:
				_ = bar.Finish()
				fmt.Fprintf(os.Stderr, "\ncrawl %s: %d items (%s)\n",
					family, len(ev.Items), ev.Reason)
				return
			}
		}
	}()

	err = crawler.Start(ctx, rng)
	cancelSub()
	<-progressDone
	return err
}
