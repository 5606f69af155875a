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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentberlin/driftnet/storage"
)

// Tier names a retrieval strategy
type Tier string

const (
	TierCache    Tier = "cache"
	TierHTTP     Tier = "http"
	TierRendered Tier = "rendered"
)

// FetchResult is the outcome of one Resolve call
type FetchResult struct {
	URL  CanonicalURL
	Body []byte
	// Tier is the tier that produced Body. Empty when every tier failed.
	Tier    Tier
	Success bool
	// Err is an *ExhaustedTiersError when Success is false
	Err error
	// StatusCode of the HTTP tier response, 0 for other tiers
	StatusCode int
	// FinalURL is the URL the HTTP tier ended up at after redirects
	FinalURL string
	// Trace holds HTTP timings when tracing is enabled
	Trace *HTTPTrace
	// Attempts counts HTTP requests made, retries included
	Attempts int
}

// Resolver fetches a URL through the cache, HTTP and rendered tiers in that
// order and returns the first acceptable body.
//
// The Renderer is a single session: at most one render call (or one
// UseRenderer callback) runs at a time.
type Resolver struct {
	cache    *FetchCache
	http     *httpBackend
	retry    *RetryPolicy
	validity *ValidityChecker
	profiles *ProfileRegistry
	logger   *slog.Logger

	renderer      Renderer
	renderSlot    chan struct{}
	renderEnabled bool
	renderSettle  time.Duration
	renderTimeout time.Duration
	strictRender  bool
}

type resolverOptions struct {
	transport http.RoundTripper
	renderer  Renderer
	store     storage.CacheStore
	cache     *FetchCache
	profiles  *ProfileRegistry
}

// ResolverOption configures NewResolver
type ResolverOption func(*resolverOptions)

// WithTransport sets the RoundTripper of the HTTP tier
func WithTransport(rt http.RoundTripper) ResolverOption {
	return func(o *resolverOptions) { o.transport = rt }
}

// WithRenderer sets the rendered-tier capability. The caller keeps ownership
// and closes it.
func WithRenderer(r Renderer) ResolverOption {
	return func(o *resolverOptions) { o.renderer = r }
}

// WithCacheStore sets the backend of the fetch cache
func WithCacheStore(s storage.CacheStore) ResolverOption {
	return func(o *resolverOptions) { o.store = s }
}

// WithFetchCache shares an existing cache, for example across jobs
func WithFetchCache(c *FetchCache) ResolverOption {
	return func(o *resolverOptions) { o.cache = c }
}

// WithProfiles sets the site profiles. Without it profiles are compiled from
// the config.
func WithProfiles(r *ProfileRegistry) ResolverOption {
	return func(o *resolverOptions) { o.profiles = r }
}

// NewResolver builds a Resolver from cfg
func NewResolver(cfg *Config, opts ...ResolverOption) (*Resolver, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	var o resolverOptions
	for _, opt := range opts {
		opt(&o)
	}

	backend, err := newHTTPBackend(cfg.HTTP, o.transport)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cache := o.cache
	if cache == nil {
		store := o.store
		if store == nil {
			if store, err = newCacheStore(cfg.Cache); err != nil {
				return nil, err
			}
		} else if err := store.Init(); err != nil {
			return nil, fmt.Errorf("init cache store: %w", err)
		}
		cache = NewFetchCache(store, cfg)
	}

	profiles := o.profiles
	if profiles == nil {
		if profiles, err = NewProfileRegistryFromConfig(cfg.Profiles); err != nil {
			return nil, err
		}
	}

	return &Resolver{
		cache:         cache,
		http:          backend,
		retry:         cfg.RetryPolicy(),
		validity:      NewValidityChecker(cfg.Validity),
		profiles:      profiles,
		logger:        cfg.logger().With("component", "resolver"),
		renderer:      o.renderer,
		renderSlot:    make(chan struct{}, 1),
		renderEnabled: cfg.Rendering.Enabled || o.renderer != nil,
		renderSettle:  cfg.Rendering.SettleDelay.Duration,
		renderTimeout: cfg.Rendering.Timeout.Duration,
		strictRender:  cfg.Validity.StrictRenderValidity,
	}, nil
}

// newCacheStore builds the in-process backends. The sqlite backend lives in
// internal/store and is passed in with WithCacheStore.
func newCacheStore(cfg CacheConfig) (storage.CacheStore, error) {
	switch cfg.Backend {
	case "", CacheBackendMemory:
		return storage.NewInMemoryCacheStore(), nil
	case CacheBackendBounded:
		s, err := storage.NewBoundedCacheStore(cfg.TTL.Duration, cfg.MaxSizeMB)
		if err != nil {
			return nil, err
		}
		return s, nil
	case CacheBackendSQLite:
		return nil, fmt.Errorf("%w: the sqlite cache backend must be passed with WithCacheStore", ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// Cache returns the fetch cache
func (r *Resolver) Cache() *FetchCache {
	return r.cache
}

// Profiles returns the site profile registry
func (r *Resolver) Profiles() *ProfileRegistry {
	return r.profiles
}

// HasRenderer reports whether a rendered tier is available for host
func (r *Resolver) HasRenderer(host string) bool {
	if r.renderer == nil || !r.renderEnabled {
		return false
	}
	if p, ok := r.profiles.Lookup(host); ok && p.DisableRender {
		return false
	}
	return true
}

// UseRenderer runs fn with exclusive use of the Renderer. Traversal mechanisms
// that drive the browser page across several calls hold it for their whole
// run, so item fetches cannot navigate the page away underneath them.
func (r *Resolver) UseRenderer(ctx context.Context, fn func(Renderer) error) error {
	if r.renderer == nil || !r.renderEnabled {
		return ErrRendererUnavailable
	}
	select {
	case r.renderSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.renderSlot }()
	return fn(r.renderer)
}

// Resolve returns the body of u from the first tier that yields acceptable
// content. rawURL is what gets requested when set; u is the cache key.
// Failures come back in the result, never as a panic or a separate error.
func (r *Resolver) Resolve(ctx context.Context, u CanonicalURL, rawURL string) FetchResult {
	res := FetchResult{URL: u}

	if body, ok := r.cache.Get(u); ok {
		res.Body, res.Tier, res.Success = body, TierCache, true
		return res
	}

	target := rawURL
	if target == "" {
		target = u.URL
	}
	profile, _ := r.profiles.Lookup(u.Host())
	logger := r.logger.With("url", u.URL)

	var last error
	if profile == nil || !profile.SkipHTTP {
		body, err := r.fetchHTTP(ctx, target, &res)
		if err == nil {
			logger.Debug("http tier succeeded", "status", res.StatusCode, "attempts", res.Attempts, "trace", res.Trace)
			r.cache.PutTier(u, body, true, TierHTTP)
			res.Body, res.Tier, res.Success = body, TierHTTP, true
			return res
		}
		last = err
		logger.Debug("http tier failed, escalating", "error", err)
	}

	if ctx.Err() != nil {
		return r.fail(u, res, ctx.Err())
	}
	if !r.HasRenderer(u.Host()) {
		if last != nil {
			last = fmt.Errorf("%w after http tier: %w", ErrRendererUnavailable, last)
		} else {
			last = ErrRendererUnavailable
		}
		return r.fail(u, res, last)
	}

	body, err := r.render(ctx, target)
	if err != nil {
		logger.Warn("rendered tier failed", "error", err)
		return r.fail(u, res, err)
	}
	r.cache.PutTier(u, body, true, TierRendered)
	res.Body, res.Tier, res.Success = body, TierRendered, true
	return res
}

// fetchHTTP runs the HTTP tier with retries and the validity check
func (r *Resolver) fetchHTTP(ctx context.Context, target string, res *FetchResult) ([]byte, error) {
	var resp *httpResponse
	attempts, err := r.retry.Do(ctx, r.logger, func(int) error {
		var ferr error
		resp, ferr = r.http.Fetch(ctx, target)
		return ferr
	})
	res.Attempts = attempts
	if err != nil {
		var fetchErr *TransientFetchError
		if errors.As(err, &fetchErr) {
			res.StatusCode = fetchErr.StatusCode
		}
		return nil, err
	}

	res.StatusCode = resp.StatusCode
	res.FinalURL = resp.FinalURL
	res.Trace = resp.Trace
	if reason := r.validity.Check(resp.Body); reason != "" {
		return nil, &InvalidContentError{URL: target, Tier: TierHTTP, Reason: reason}
	}
	return resp.Body, nil
}

// render waits for the renderer as long as ctx allows; the render timeout
// only bounds the render itself
func (r *Resolver) render(ctx context.Context, target string) ([]byte, error) {
	var body []byte
	err := r.UseRenderer(ctx, func(rd Renderer) error {
		renderCtx := ctx
		if r.renderTimeout > 0 {
			var cancel context.CancelFunc
			renderCtx, cancel = context.WithTimeout(ctx, r.renderTimeout)
			defer cancel()
		}
		var rerr error
		body, rerr = rd.Render(renderCtx, target, r.renderSettle)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &InvalidContentError{URL: target, Tier: TierRendered, Reason: "empty body"}
	}
	if r.strictRender {
		if reason := r.validity.Check(body); reason != "" {
			return nil, &InvalidContentError{URL: target, Tier: TierRendered, Reason: reason}
		}
	}
	return body, nil
}

func (r *Resolver) fail(u CanonicalURL, res FetchResult, last error) FetchResult {
	r.cache.Put(u, nil, false)
	res.Success = false
	res.Err = &ExhaustedTiersError{URL: u.URL, Last: last}
	return res
}
