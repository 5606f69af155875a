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
	"log/slog"
	"time"

	"github.com/agentberlin/driftnet/storage"
)

// FetchCache maps canonical URLs to their last fetched body. Entries expire
// lazily: an entry older than the TTL is treated as absent on read and is
// overwritten by the next Put, nothing reaps it in the background.
//
// The cache is best-effort. Backend errors degrade to a miss on Get and to a
// no-op on Put, and are only logged.
type FetchCache struct {
	store  storage.CacheStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewFetchCache wraps store with the TTL, clock and logger of cfg.
// A nil store gets an in-memory backend.
func NewFetchCache(store storage.CacheStore, cfg *Config) *FetchCache {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if store == nil {
		store = storage.NewInMemoryCacheStore()
	}
	return &FetchCache{
		store:  store,
		ttl:    cfg.Cache.TTL.Duration,
		now:    cfg.now,
		logger: cfg.logger().With("component", "cache"),
	}
}

// Get returns the cached body for u. found is true only for a successful
// entry younger than the TTL.
func (c *FetchCache) Get(u CanonicalURL) (body []byte, found bool) {
	entry, ok := c.LastAttempt(u)
	if !ok || !entry.Success {
		return nil, false
	}
	return entry.Body, true
}

// LastAttempt returns the latest unexpired entry for u whether it succeeded or
// not, so callers can avoid hammering a URL that just failed every tier.
func (c *FetchCache) LastAttempt(u CanonicalURL) (storage.CacheEntry, bool) {
	entry, ok, err := c.store.Get(u.Fingerprint)
	if err != nil {
		c.logger.Debug("cache read failed, treating as miss", "url", u.URL, "error", err)
		return storage.CacheEntry{}, false
	}
	if !ok || c.expired(entry) {
		return storage.CacheEntry{}, false
	}
	return entry, true
}

// Put records a fetch attempt for u
func (c *FetchCache) Put(u CanonicalURL, body []byte, success bool) {
	c.PutTier(u, body, success, "")
}

// PutTier records a fetch attempt together with the tier that produced it
func (c *FetchCache) PutTier(u CanonicalURL, body []byte, success bool, tier Tier) {
	entry := storage.CacheEntry{
		Key:       u.Fingerprint,
		URL:       u.URL,
		Body:      body,
		FetchedAt: c.now(),
		Success:   success,
		Tier:      string(tier),
	}
	if !success {
		entry.Body = nil
	}
	if err := c.store.Put(entry); err != nil {
		c.logger.Debug("cache write failed, ignoring", "url", u.URL, "error", err)
	}
}

// TTL returns the configured time to live
func (c *FetchCache) TTL() time.Duration {
	return c.ttl
}

// Close closes the underlying store
func (c *FetchCache) Close() error {
	return c.store.Close()
}

func (c *FetchCache) expired(entry storage.CacheEntry) bool {
	return c.now().Sub(entry.FetchedAt) >= c.ttl
}
