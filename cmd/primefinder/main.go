package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"primefinder/internal/cache"
	"primefinder/internal/config"
	"primefinder/internal/logging"
	"primefinder/internal/logsink"
	"primefinder/internal/metrics"
	"primefinder/internal/paapi"
	"primefinder/internal/search"
	"primefinder/internal/telemetry"
)

func main() {
	var (
		serve        bool
		addr         string
		keywords     string
		maxPrice     float64
		category     string
		primeOnly    bool
		discountOnly bool
		count        int
		item         string
		help         bool
	)

	flag.BoolVar(&serve, "serve", false, "Run HTTP server mode")
	flag.StringVar(&addr, "addr", "", "Address to bind in server mode (defaults to ADDR or PORT)")
	flag.StringVar(&keywords, "keywords", "", "Keywords to search for")
	flag.StringVar(&keywords, "k", "", "Keywords to search for (short form)")
	flag.Float64Var(&maxPrice, "max-price", 0, "Maximum price, 0 for no ceiling")
	flag.StringVar(&category, "category", search.DefaultCategory, "Search index, e.g. Electronics")
	flag.BoolVar(&primeOnly, "prime", false, "Only Prime eligible offers")
	flag.BoolVar(&discountOnly, "discount", false, "Only discounted offers")
	flag.IntVar(&count, "count", paapi.MaxItemCount, "Number of items to request (1-10)")
	flag.StringVar(&item, "item", "", "Look up a single ASIN instead of searching")
	flag.BoolVar(&help, "help", false, "Show help message")
	flag.BoolVar(&help, "h", false, "Show help message")
	flag.Parse()

	if help {
		showHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	// runs after every other deferred cleanup
	exitCode := 0
	defer func() {
		os.Exit(exitCode)
	}()

	ctx := context.Background()
	provider, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to start telemetry: %v", err)
	}
	var extra []slog.Handler
	if provider.LogHandler != nil {
		extra = append(extra, provider.LogHandler)
	}
	if cfg.Log.BlobContainer != "" {
		sink, err := logsink.New(ctx, logsink.Config{
			AccountName: cfg.Cache.StorageAccount,
			AccountKey:  cfg.Cache.StorageKey,
			Container:   cfg.Log.BlobContainer,
			Level:       logging.ParseLevel(cfg.Log.Level),
		})
		if err != nil {
			log.Fatalf("failed to start log sink: %v", err)
		}
		defer func() {
			_ = sink.Close()
		}()
		extra = append(extra, sink)
	}
	logging.Setup(cfg.Log, extra...)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	if serve {
		if err := runServer(cfg); err != nil {
			slog.Error("server error", "error", err)
			exitCode = 1
		}
		return
	}

	if keywords == "" && item == "" {
		fmt.Println("Error: -keywords or -item is required (or use -serve for web mode)")
		showHelp()
		exitCode = 1
		return
	}

	q := search.Query{
		Keywords:     keywords,
		Category:     category,
		ItemCount:    count,
		PrimeOnly:    primeOnly,
		DiscountOnly: discountOnly,
	}
	if maxPrice > 0 {
		q.MaxPrice = &maxPrice
	}
	if err := run(ctx, cfg, q, item); err != nil {
		slog.Error("search failed", "error", err)
		exitCode = 1
	}
}

var errItemNotFound = errors.New("item not found")

// run performs one search or lookup and prints it as JSON.
func run(ctx context.Context, cfg *config.Config, q search.Query, item string) error {
	searcher, _, err := newSearcher(cfg, nil)
	if err != nil {
		return err
	}

	var out any
	if item != "" {
		p := searcher.GetItem(ctx, item)
		if p == nil {
			return fmt.Errorf("%w: %s", errItemNotFound, item)
		}
		out = p
	} else {
		res := searcher.Search(ctx, q)
		if res.Failed() {
			return errors.New(*res.Error)
		}
		out = res
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// newSearcher picks the live catalog when credentials are present and wraps
// it in the configured cache. The cache is nil when caching is disabled.
func newSearcher(cfg *config.Config, reg *metrics.Registry) (search.Searcher, cache.Cache, error) {
	opts := search.Options{
		Demo:           cfg.DemoMode(),
		AffiliateTag:   cfg.Catalog.AssociateTag,
		Marketplace:    cfg.Catalog.Marketplace,
		CurrencySymbol: cfg.Catalog.CurrencySymbol,
	}
	if reg != nil {
		opts.Recorder = reg
	}

	var svc *search.Service
	if opts.Demo {
		slog.Warn("no catalog credentials configured, serving demo results")
		svc = search.New(opts, nil)
	} else {
		client, err := paapi.NewClient(cfg.Catalog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create catalog client: %w", err)
		}
		svc = search.New(opts, client)
	}

	store, err := cache.Make(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return search.NewCached(svc, store, cfg.Cache.TTL, opts.Recorder), store, nil
}

func showHelp() {
	fmt.Println("Prime Finder - Amazon affiliate product search")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  primefinder -serve [-addr :5000]")
	fmt.Println("  primefinder -keywords <words> [-max-price 100] [-category Electronics] [-prime] [-discount] [-count 10]")
	fmt.Println("  primefinder -item <ASIN>")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}
