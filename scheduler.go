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

package driftnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentberlin/driftnet/internal/framework"
)

// ExtractedItem is one successfully extracted content item
type ExtractedItem struct {
	URL    CanonicalURL
	RawURL string
	// Tier is the retrieval tier that produced the body
	Tier Tier
	// Record is whatever the Extractor returned
	Record any
	// ContentHash is set when content-hash de-duplication is on
	ContentHash string
	// Order is the discovery position of the item
	Order int
	// Iteration is the traversal round that discovered the item
	Iteration int
}

// Progress is a snapshot of a running job
type Progress struct {
	Discovered int
	Dispatched int
	Succeeded  int
	Failed     int
	// Duplicates counts items dropped because another URL had the same content
	Duplicates int
	// Iteration is the last finished traversal round
	Iteration int
}

// OnProgressFunc receives progress snapshots. Calls are serialized.
type OnProgressFunc func(Progress)

// OnItemFunc is called for every extracted item as soon as it is available.
// Calls are serialized.
type OnItemFunc func(ExtractedItem)

// JobOptions describe one crawl job
type JobOptions struct {
	// Seed is the listing page, sitemap or feed to start from
	Seed string
	// ItemCap stops dispatching once this many items were extracted. 0 means
	// no cap.
	ItemCap int
	// Concurrency is the worker pool size. 0 uses the config value.
	Concurrency int
	Extractor   Extractor
	// Mode forces a pagination mode. ModeAuto defers to the site profile, the
	// config and finally detection.
	Mode       Mode
	OnProgress OnProgressFunc
	OnItem     OnItemFunc
}

// Report is the outcome of RunJob
type Report struct {
	Seed     string
	SeedTier Tier
	// Platform is the site framework detected on the seed page
	Platform string
	// Feed is the advertised or well-known feed the items came from when the
	// seed page itself yielded none
	Feed string
	// Items are in discovery order
	Items []ExtractedItem
	// Errors are the per-item failures in the order they happened
	Errors     []error
	Pagination PaginationState
	Discovered int
	Dispatched int
	Duplicates int
	Started    time.Time
	Finished   time.Time
}

// Scheduler runs crawl jobs: it traverses a listing, dispatches the items it
// finds to a bounded worker pool and collects the extracted records.
type Scheduler struct {
	cfg        *Config
	resolver   *Resolver
	classifier *Classifier
	traverser  *Traverser
	hasher     *ContentHasher
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler. A nil resolver gets one built from cfg.
func NewScheduler(cfg *Config, resolver *Resolver) (*Scheduler, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if resolver == nil {
		var err error
		if resolver, err = NewResolver(cfg); err != nil {
			return nil, err
		}
	}
	classifier, err := NewClassifier(cfg.Classifier, resolver.Profiles())
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:        cfg,
		resolver:   resolver,
		classifier: classifier,
		traverser:  NewTraverser(classifier, cfg.Pagination, cfg.logger()),
		logger:     cfg.logger().With("component", "scheduler"),
	}
	if cfg.ContentHash.Enabled {
		s.hasher = NewContentHasher(cfg.ContentHash)
	}
	return s, nil
}

// Resolver returns the resolver jobs fetch through
func (s *Scheduler) Resolver() *Resolver {
	return s.resolver
}

// Classifier returns the link classifier
func (s *Scheduler) Classifier() *Classifier {
	return s.classifier
}

// Run crawls seedURL and returns the extracted items in discovery order
// together with every error of the job. A fatal error (unreachable seed, no
// items) is the last element of errs. Run never panics on extractor failures.
func (s *Scheduler) Run(ctx context.Context, seedURL string, itemCap, concurrency int, extractor Extractor) (items []ExtractedItem, errs []error) {
	report, err := s.RunJob(ctx, JobOptions{
		Seed:        seedURL,
		ItemCap:     itemCap,
		Concurrency: concurrency,
		Extractor:   extractor,
	})
	if report != nil {
		items, errs = report.Items, report.Errors
	}
	if err != nil {
		errs = append(errs, err)
	}
	return items, errs
}

// RunJob runs one crawl job. The returned report is never nil, it holds the
// partial results when err is a fatal job error.
func (s *Scheduler) RunJob(ctx context.Context, opts JobOptions) (*Report, error) {
	report := &Report{Seed: opts.Seed, Started: s.cfg.now()}
	finish := func(err error) (*Report, error) {
		report.Finished = s.cfg.now()
		return report, err
	}

	if opts.Seed == "" {
		return finish(ErrMissingURL)
	}
	if opts.Extractor == nil {
		return finish(ErrNilExtractor)
	}
	if opts.ItemCap < 0 {
		return finish(fmt.Errorf("%w: item cap must not be negative", ErrInvalidConfig))
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.cfg.Concurrency
	}

	seed := Canonicalize(opts.Seed)
	if seed.Parsed() == nil {
		return finish(&SeedUnreachableError{URL: opts.Seed, Err: errors.New("not an absolute http(s) URL")})
	}
	logger := s.logger.With("seed", seed.URL)

	res := s.resolver.Resolve(ctx, seed, opts.Seed)
	pageURL := opts.Seed
	if !res.Success {
		feedURL, feedRes, ok := s.blockedSeedFeed(ctx, opts.Seed, res.Err)
		if !ok {
			logger.Error("seed unreachable", "error", res.Err)
			return finish(&SeedUnreachableError{URL: opts.Seed, Err: res.Err})
		}
		logger.Warn("seed page rejected, reading its feed instead", "feed", feedURL, "error", res.Err)
		report.Feed = feedURL
		res, pageURL = feedRes, feedURL
	}
	report.SeedTier = res.Tier
	if res.FinalURL != "" {
		pageURL = res.FinalURL
	}
	platform := framework.Detect(res.Body)
	report.Platform = string(platform)
	if platform != framework.FrameworkOther {
		logger = logger.With("platform", report.Platform)
	}

	job := &crawlJob{
		ctx:        ctx,
		scheduler:  s,
		extractor:  opts.Extractor,
		itemCap:    opts.ItemCap,
		frontier:   NewFrontier(nil),
		settled:    make(chan struct{}),
		onProgress: opts.OnProgress,
		onItem:     opts.OnItem,
		logger:     logger,
	}

	pool := NewWorkerPool(ctx, concurrency, logger)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		job.dispatch(ctx, pool)
	}()

	state := s.traverse(ctx, job, opts, seed, pageURL, res.Body)
	if job.frontier.Discovered() == 0 && ctx.Err() == nil {
		if feedURL, feedState, ok := s.traverseDiscoveredFeed(ctx, job, opts, pageURL, res.Body, platform); ok {
			report.Feed = feedURL
			feedState.Mode = state.Mode
			state = feedState
		}
	}
	job.frontier.Close()
	<-dispatched
	pool.Close()

	job.mu.Lock()
	report.Items = job.items
	report.Errors = job.errs
	report.Dispatched = job.dispatched
	report.Duplicates = job.duplicates
	job.mu.Unlock()
	sort.Slice(report.Items, func(i, j int) bool { return report.Items[i].Order < report.Items[j].Order })
	report.Pagination = state
	report.Discovered = job.frontier.Discovered()

	logger.Info("job finished",
		"mode", state.Mode.String(),
		"stop_reason", state.StopReason,
		"iterations", state.Iterations,
		"discovered", report.Discovered,
		"succeeded", len(report.Items),
		"failed", len(report.Errors),
		"duplicates", report.Duplicates)

	if report.Discovered == 0 {
		return finish(&NoItemsDiscoveredError{Seed: opts.Seed, Mode: state.Mode})
	}
	return finish(nil)
}

// traverse picks the pagination mechanism for the seed and drives it until it
// terminates, feeding the frontier
func (s *Scheduler) traverse(ctx context.Context, job *crawlJob, opts JobOptions, seed CanonicalURL, pageURL string, body []byte) PaginationState {
	logger := job.logger

	if feed, ok := parseFeed(body); ok {
		links := feed.Links
		if feed.Kind == feedSitemapIndex {
			links = expandSitemapIndex(ctx, s.resolver, feed)
		}
		logger.Info("seed is a feed", "kind", feed.Kind, "entries", len(links))
		if links == nil {
			links = []string{}
		}
		return s.run(ctx, job, ModeNone, &staticSource{pageURL: pageURL, feed: links})
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Warn("seed is not parseable HTML", "error", err)
		return s.run(ctx, job, ModeNone, &staticSource{pageURL: pageURL, body: body})
	}
	profile, _ := s.resolver.Profiles().Lookup(seed.Host())
	mode := s.selectMode(opts.Mode, profile, doc)

	if mode.NeedsRenderer() && !s.resolver.HasRenderer(seed.Host()) {
		logger.Warn("pagination needs a renderer, reading the seed page only", "mode", mode.String())
		mode = ModeNone
	}
	logger.Info("traversing", "mode", mode.String())

	switch mode {
	case ModeNumbered:
		return s.run(ctx, job, mode, newNumberedSource(s.resolver, pageURL, body))
	case ModeLoadMore, ModeInfiniteScroll:
		var state PaginationState
		var runErr error
		err := s.resolver.UseRenderer(ctx, func(r Renderer) error {
			job.holdsRenderer.Store(true)
			defer job.holdsRenderer.Store(false)
			live := liveSource{renderer: r, pageURL: pageURL, settle: s.cfg.Rendering.SettleDelay.Duration}
			var src Source = &scrollSource{liveSource: live}
			if mode == ModeLoadMore {
				src = &loadMoreSource{liveSource: live, selector: s.loadMoreSelector(profile, doc)}
			}
			state, runErr = s.traverser.Run(ctx, mode, src, job.admit)
			return runErr
		})
		if err == nil {
			return state
		}
		logger.Warn("live traversal failed, reading the seed page only", "mode", mode.String(), "error", err)
		fallback := s.run(ctx, job, ModeNone, &staticSource{pageURL: pageURL, body: body})
		fallback.Mode = mode
		return fallback
	default:
		return s.run(ctx, job, ModeNone, &staticSource{pageURL: pageURL, body: body})
	}
}

// traverseDiscoveredFeed reads the items of a feed the seed page advertises,
// or of a well-known feed location of its platform. It is used when the page
// itself yields no items.
func (s *Scheduler) traverseDiscoveredFeed(ctx context.Context, job *crawlJob, opts JobOptions, pageURL string, body []byte, platform framework.Framework) (string, PaginationState, bool) {
	if _, isFeed := parseFeed(body); isFeed {
		return "", PaginationState{}, false
	}
	doc, _ := goquery.NewDocumentFromReader(bytes.NewReader(body))
	feedURL, res, ok := firstLiveFeed(ctx, s.resolver, feedLinks(doc, pageURL, platform))
	if !ok {
		return "", PaginationState{}, false
	}
	job.logger.Info("no items on the page, reading its feed", "feed", feedURL)
	return feedURL, s.traverse(ctx, job, opts, Canonicalize(feedURL), feedURL, res.Body), true
}

// blockedSeedFeed looks for a feed on the seed's site when the seed page was
// fetched but rejected as a block or error page. Feeds are often served
// without the bot protection of the HTML pages.
func (s *Scheduler) blockedSeedFeed(ctx context.Context, seedURL string, seedErr error) (string, FetchResult, bool) {
	var invalid *InvalidContentError
	if !errors.As(seedErr, &invalid) || ctx.Err() != nil {
		return "", FetchResult{}, false
	}
	return firstLiveFeed(ctx, s.resolver, feedLinks(nil, seedURL, framework.FrameworkOther))
}

func (s *Scheduler) run(ctx context.Context, job *crawlJob, mode Mode, src Source) PaginationState {
	state, err := s.traverser.Run(ctx, mode, src, job.admit)
	if err != nil {
		job.logger.Warn("traversal failed", "mode", mode.String(), "error", err)
	}
	return state
}

// selectMode resolves the pagination mode: job option, site profile, config,
// then detection on the seed page
func (s *Scheduler) selectMode(forced Mode, profile *SiteProfile, doc *goquery.Document) Mode {
	if forced != ModeAuto {
		return forced
	}
	if profile != nil && profile.Mode != ModeAuto {
		return profile.Mode
	}
	if m, ok := ParseMode(s.cfg.Pagination.Mode); ok && m != ModeAuto {
		return m
	}
	return DetectMode(doc)
}

func (s *Scheduler) loadMoreSelector(profile *SiteProfile, doc *goquery.Document) string {
	if profile != nil && profile.LoadMoreSelector != "" {
		return profile.LoadMoreSelector
	}
	if s.cfg.Pagination.LoadMoreSelector != "" {
		return s.cfg.Pagination.LoadMoreSelector
	}
	if sel, ok := LoadMoreSelector(doc); ok {
		return sel
	}
	return defaultLoadMoreSelector
}

// crawlJob is the mutable state of one RunJob call
type crawlJob struct {
	ctx       context.Context
	scheduler *Scheduler
	extractor Extractor
	itemCap   int
	frontier  *Frontier
	logger    *slog.Logger

	mu         sync.Mutex
	items      []ExtractedItem
	errs       []error
	inFlight   int
	dispatched int
	failed     int
	duplicates int
	iteration  int
	// settled is closed and replaced whenever an item finishes
	settled chan struct{}
	// holdsRenderer is set while a live traversal owns the renderer
	holdsRenderer atomic.Bool

	callbackMu sync.Mutex
	onProgress OnProgressFunc
	onItem     OnItemFunc
}

// admit is the traversal's batch callback. It adds the round's candidates to
// the frontier and reports whether the cap has been reached.
func (j *crawlJob) admit(iteration int, batch []Candidate) (int, bool) {
	admitted := j.frontier.Admit(iteration, batch)

	j.mu.Lock()
	j.iteration = iteration
	capReached := j.capReachedLocked()
	j.mu.Unlock()

	j.progress()
	return len(admitted), capReached
}

// capReachedLocked reports whether itemCap items were extracted. When the
// items still pending could cover the cap on their own it waits for them to
// settle first, since any of them may fail. It does not wait while a live
// traversal holds the renderer: pending items may need it to settle.
func (j *crawlJob) capReachedLocked() bool {
	if j.itemCap == 0 {
		return false
	}
	for {
		if len(j.items) >= j.itemCap {
			return true
		}
		live := j.frontier.Discovered() - j.failed - j.duplicates
		if live < j.itemCap || j.holdsRenderer.Load() {
			return false
		}

		wait := j.settled
		j.mu.Unlock()
		select {
		case <-wait:
			j.mu.Lock()
		case <-j.ctx.Done():
			j.mu.Lock()
			return false
		}
	}
}

// dispatch hands frontier items to the pool until the frontier is closed and
// drained, the cap is reached or ctx is done
func (j *crawlJob) dispatch(ctx context.Context, pool *WorkerPool) {
	for {
		item, ok := j.frontier.Next(ctx)
		if !ok {
			return
		}
		if err := j.reserve(ctx); err != nil {
			j.logger.Debug("dispatch stopped", "reason", err)
			return
		}
		err := pool.Submit(func() {
			j.process(ctx, item)
		})
		if err != nil {
			j.release()
			return
		}
	}
}

// reserve claims a slot for one more item. With a cap, no more than
// itemCap-succeeded items are in flight, so the job never extracts more than
// itemCap items. When all remaining slots are in flight reserve waits for one
// of them to finish.
func (j *crawlJob) reserve(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for {
		if j.itemCap == 0 || len(j.items)+j.inFlight < j.itemCap {
			j.inFlight++
			j.dispatched++
			return nil
		}
		if len(j.items) >= j.itemCap {
			return ErrCapReached
		}

		wait := j.settled
		j.mu.Unlock()
		select {
		case <-wait:
			j.mu.Lock()
		case <-ctx.Done():
			j.mu.Lock()
			return ctx.Err()
		}
	}
}

func (j *crawlJob) release() {
	j.mu.Lock()
	j.inFlight--
	j.dispatched--
	j.mu.Unlock()
}

// process fetches and extracts one item. Failures are recorded, never
// propagated.
func (j *crawlJob) process(ctx context.Context, item DiscoveredItem) {
	s := j.scheduler
	logger := j.logger.With("url", item.URL.URL)

	res := s.resolver.Resolve(ctx, item.URL, item.RawURL)
	if !res.Success {
		logger.Debug("item fetch failed", "error", res.Err)
		j.fail(res.Err)
		return
	}

	var hash string
	if s.hasher != nil {
		h, err := s.hasher.Hash(res.Body)
		if err != nil {
			logger.Debug("content hash failed", "error", err)
		} else if h != "" {
			if owner, claimed := j.frontier.Seen().ClaimContent(h, item.URL.URL); !claimed {
				logger.Debug("duplicate content", "same_as", owner)
				j.duplicate()
				return
			}
			hash = h
		}
	}

	record, err := extract(j.extractor, res.Body, item.URL)
	if err != nil {
		logger.Debug("extraction failed", "error", err)
		j.fail(&ExtractionError{URL: item.URL.URL, Err: err})
		return
	}

	j.succeed(ExtractedItem{
		URL:         item.URL,
		RawURL:      item.RawURL,
		Tier:        res.Tier,
		Record:      record,
		ContentHash: hash,
		Order:       item.Order,
		Iteration:   item.Iteration,
	})
}

// extract calls the extractor, turning a panic into an error
func extract(e Extractor, body []byte, u CanonicalURL) (record any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return e.Extract(body, u)
}

func (j *crawlJob) succeed(item ExtractedItem) {
	j.mu.Lock()
	j.items = append(j.items, item)
	j.inFlight--
	j.notifyLocked()
	j.mu.Unlock()

	j.callbackMu.Lock()
	if j.onItem != nil {
		j.onItem(item)
	}
	j.callbackMu.Unlock()
	j.progress()
}

func (j *crawlJob) fail(err error) {
	j.mu.Lock()
	j.errs = append(j.errs, err)
	j.failed++
	j.inFlight--
	j.notifyLocked()
	j.mu.Unlock()
	j.progress()
}

func (j *crawlJob) duplicate() {
	j.mu.Lock()
	j.duplicates++
	j.inFlight--
	j.notifyLocked()
	j.mu.Unlock()
	j.progress()
}

// notifyLocked wakes everyone waiting for an item to settle
func (j *crawlJob) notifyLocked() {
	close(j.settled)
	j.settled = make(chan struct{})
}

func (j *crawlJob) progress() {
	if j.onProgress == nil {
		return
	}
	j.mu.Lock()
	p := Progress{
		Discovered: j.frontier.Discovered(),
		Dispatched: j.dispatched,
		Succeeded:  len(j.items),
		Failed:     j.failed,
		Duplicates: j.duplicates,
		Iteration:  j.iteration,
	}
	j.mu.Unlock()

	j.callbackMu.Lock()
	defer j.callbackMu.Unlock()
	j.onProgress(p)
}
