// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/store"
	"golang.org/x/sync/errgroup"
)

// crawlFlags holds all the flags for the crawl command
type crawlFlags struct {
	// Core options
	configFile  string
	itemCap     int
	concurrency int
	seedLimit   int
	mode        string
	timeout     time.Duration
	userAgent   string

	// Rendering
	render      bool
	chromePath  string
	settleDelay time.Duration
	headful     bool

	// Cache and de-duplication
	cacheBackend string
	cachePath    string
	cacheTTL     time.Duration
	contentHash  bool

	// Output
	output    string
	format    string
	quiet     bool
	logLevel  string
	logFormat string
}

func runCrawl(args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)

	var flags crawlFlags

	// Core options
	fs.StringVar(&flags.configFile, "config", "", "YAML config file")
	fs.StringVar(&flags.configFile, "c", "", "YAML config file (shorthand)")
	fs.IntVar(&flags.itemCap, "items", 0, "Maximum items to extract per seed (0 = config value, unlimited by default)")
	fs.IntVar(&flags.itemCap, "n", 0, "Maximum items per seed (shorthand)")
	fs.IntVar(&flags.concurrency, "concurrency", 0, "Parallel item fetches per seed (0 = config value)")
	fs.IntVar(&flags.concurrency, "p", 0, "Parallel item fetches (shorthand)")
	fs.IntVar(&flags.seedLimit, "seeds-parallel", 2, "Number of seeds crawled at the same time")
	fs.StringVar(&flags.mode, "mode", "", "Pagination mode: auto, none, numbered, load_more, infinite_scroll")
	fs.StringVar(&flags.mode, "m", "", "Pagination mode (shorthand)")
	fs.DurationVar(&flags.timeout, "timeout", 0, "Overall deadline per seed, partial results are kept (0 = none)")
	fs.StringVar(&flags.userAgent, "user-agent", "", "Custom User-Agent string")
	fs.StringVar(&flags.userAgent, "A", "", "Custom User-Agent string (shorthand)")

	// Rendering
	fs.BoolVar(&flags.render, "render", false, "Enable the headless Chrome tier and scroll/load-more pagination")
	fs.BoolVar(&flags.render, "j", false, "Enable headless Chrome (shorthand)")
	fs.StringVar(&flags.chromePath, "chrome-path", "", "Chrome binary to use")
	fs.DurationVar(&flags.settleDelay, "settle", 0, "Wait after navigation for JavaScript to hydrate (0 = config value)")
	fs.BoolVar(&flags.headful, "headful", false, "Show the browser window")

	// Cache and de-duplication
	fs.StringVar(&flags.cacheBackend, "cache", "", "Cache backend: memory, bounded, sqlite")
	fs.StringVar(&flags.cachePath, "cache-path", "", "sqlite cache file (default ~/.driftnet/cache.db)")
	fs.DurationVar(&flags.cacheTTL, "cache-ttl", 0, "How long fetched pages are reused (0 = config value)")
	fs.BoolVar(&flags.contentHash, "dedupe-content", false, "Drop items whose content duplicates an earlier item")

	// Output
	fs.StringVar(&flags.output, "output", ".", "Output directory for results")
	fs.StringVar(&flags.output, "o", ".", "Output directory (shorthand)")
	fs.StringVar(&flags.format, "format", "json", "Output format: json, jsonl, csv")
	fs.StringVar(&flags.format, "f", "json", "Output format (shorthand)")
	fs.BoolVar(&flags.quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&flags.quiet, "q", false, "Suppress progress output (shorthand)")
	fs.StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	fs.StringVar(&flags.logFormat, "log-format", "text", "Log format: text, json")

	fs.Usage = func() {
		fmt.Println(`Usage: driftnet crawl <url> [url...] [flags]

Crawl listing pages, sitemaps or feeds and export the extracted items.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Basic crawl
  driftnet crawl https://example.com/news

  # 100 items, 10 parallel fetches, CSV output
  driftnet crawl https://example.com/news -n 100 -p 10 -f csv -o ./results

  # Several seeds with a shared sqlite cache
  driftnet crawl https://a.example/blog https://b.example/news --cache sqlite

  # Load-more listing with headless Chrome
  driftnet crawl https://example.com/stories --render --mode load_more`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("URL argument is required")
	}
	seeds := make([]string, fs.NArg())
	for i, s := range fs.Args() {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			s = "https://" + s
		}
		seeds[i] = s
	}

	if flags.format != "json" && flags.format != "jsonl" && flags.format != "csv" {
		return fmt.Errorf("invalid format: %s (must be json, jsonl or csv)", flags.format)
	}
	mode, ok := driftnet.ParseMode(flags.mode)
	if !ok {
		return fmt.Errorf("invalid mode: %s", flags.mode)
	}

	logger, err := buildLogger(flags.logLevel, flags.logFormat)
	if err != nil {
		return err
	}

	cfg, err := loadCrawlConfig(flags)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var resolverOpts []driftnet.ResolverOption
	var st *store.Store
	if cfg.Cache.Backend == driftnet.CacheBackendSQLite {
		if st, err = store.Open(cfg.Cache.Path); err != nil {
			return fmt.Errorf("failed to open cache: %v", err)
		}
		resolverOpts = append(resolverOpts, driftnet.WithCacheStore(st))
	}
	if cfg.Rendering.Enabled {
		session, err := driftnet.OpenChromeSession(ctx, cfg.Rendering, cfg.HTTP.UserAgent)
		if err != nil {
			return err
		}
		defer session.Close()
		resolverOpts = append(resolverOpts, driftnet.WithRenderer(session))
	}

	resolver, err := driftnet.NewResolver(cfg, resolverOpts...)
	if err != nil {
		return err
	}
	defer resolver.Cache().Close()

	scheduler, err := driftnet.NewScheduler(cfg, resolver)
	if err != nil {
		return err
	}

	progress := newProgressPrinter(flags.quiet, len(seeds))
	exporter := &Exporter{outputDir: flags.output, format: flags.format}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(flags.seedLimit, 1))
	failed := make([]error, len(seeds))
	for i, seed := range seeds {
		g.Go(func() error {
			jobCtx := gctx
			if flags.timeout > 0 {
				var cancel context.CancelFunc
				jobCtx, cancel = context.WithTimeout(gctx, flags.timeout)
				defer cancel()
			}

			report, jobErr := scheduler.RunJob(jobCtx, driftnet.JobOptions{
				Seed:       seed,
				ItemCap:    cfg.ItemCap,
				Extractor:  driftnet.DocumentExtractor{},
				Mode:       mode,
				OnProgress: progress.forSeed(seed),
			})
			progress.done(seed, report, jobErr)

			if st != nil {
				if err := st.RecordRun(store.NewJobRun(report, jobErr)); err != nil {
					logger.Warn("failed to record run", "seed", seed, "error", err)
				}
			}
			if len(report.Items) > 0 || jobErr == nil {
				if err := exporter.Export(report); err != nil {
					return fmt.Errorf("export %s: %w", seed, err)
				}
			}
			// a fatal job error fails this seed only
			failed[i] = jobErr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return errors.Join(failed...)
}

// loadCrawlConfig reads the config file, if any, and applies the flags on top
func loadCrawlConfig(flags crawlFlags) (*driftnet.Config, error) {
	cfg := driftnet.NewDefaultConfig()
	if flags.configFile != "" {
		var err error
		if cfg, err = driftnet.LoadConfig(flags.configFile); err != nil {
			return nil, err
		}
	}

	if flags.itemCap > 0 {
		cfg.ItemCap = flags.itemCap
	}
	if flags.concurrency > 0 {
		cfg.Concurrency = flags.concurrency
	}
	if flags.userAgent != "" {
		cfg.HTTP.UserAgent = flags.userAgent
	}
	if flags.render {
		cfg.Rendering.Enabled = true
	}
	if flags.chromePath != "" {
		cfg.Rendering.ExecPath = flags.chromePath
	}
	if flags.settleDelay > 0 {
		cfg.Rendering.SettleDelay = driftnet.DurationFrom(flags.settleDelay)
	}
	if flags.headful {
		cfg.Rendering.Headless = false
	}
	if flags.cacheBackend != "" {
		cfg.Cache.Backend = strings.ToLower(flags.cacheBackend)
	}
	if flags.cachePath != "" {
		cfg.Cache.Path = flags.cachePath
	}
	if cfg.Cache.Backend == driftnet.CacheBackendSQLite && cfg.Cache.Path == "" {
		path, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfg.Cache.Path = path
	}
	if flags.cacheTTL > 0 {
		cfg.Cache.TTL = driftnet.DurationFrom(flags.cacheTTL)
	}
	if flags.contentHash {
		cfg.ContentHash.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
