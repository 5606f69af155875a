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
	"errors"
	"testing"
	"time"

	"github.com/agentberlin/driftnet/storage"
)

// fakeClock is a settable clock for cache expiry tests
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(t *testing.T, store storage.CacheStore) (*FetchCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cfg := NewDefaultConfig()
	cfg.Cache.TTL = DurationFrom(72 * time.Hour)
	cfg.Now = clock.Now
	return NewFetchCache(store, cfg), clock
}

func TestFetchCacheHitAndExpiry(t *testing.T) {
	cache, clock := newTestCache(t, nil)
	u := Canonicalize("https://example.com/news/story-one")

	if _, found := cache.Get(u); found {
		t.Fatal("empty cache should miss")
	}

	cache.PutTier(u, []byte("<html>one</html>"), true, TierHTTP)
	body, found := cache.Get(u)
	if !found || string(body) != "<html>one</html>" {
		t.Fatalf("Get() = %q, %v", body, found)
	}

	clock.Advance(72*time.Hour - time.Second)
	if _, found := cache.Get(u); !found {
		t.Error("entry younger than the TTL should hit")
	}

	clock.Advance(time.Second)
	if _, found := cache.Get(u); found {
		t.Error("entry at the TTL should be treated as absent")
	}
}

// TestFetchCacheFailedAttempt tests that failures are recorded but never
// served as bodies
func TestFetchCacheFailedAttempt(t *testing.T) {
	cache, _ := newTestCache(t, nil)
	u := Canonicalize("https://example.com/blocked")

	cache.Put(u, []byte("Access Denied"), false)
	if _, found := cache.Get(u); found {
		t.Error("failed attempt must not be served")
	}
	entry, ok := cache.LastAttempt(u)
	if !ok {
		t.Fatal("failed attempt should be visible via LastAttempt")
	}
	if entry.Success || len(entry.Body) != 0 {
		t.Errorf("unexpected failed entry %+v", entry)
	}
}

func TestFetchCacheOverwrite(t *testing.T) {
	cache, clock := newTestCache(t, nil)
	u := Canonicalize("https://example.com/a")

	cache.Put(u, []byte("old"), true)
	clock.Advance(100 * time.Hour)
	cache.Put(u, []byte("new"), true)

	body, found := cache.Get(u)
	if !found || string(body) != "new" {
		t.Errorf("Get() = %q, %v, want fresh overwrite", body, found)
	}
}

// brokenStore fails every operation
type brokenStore struct{}

var errBroken = errors.New("disk on fire")

func (brokenStore) Init() error { return errBroken }
func (brokenStore) Get(string) (storage.CacheEntry, bool, error) { return storage.CacheEntry{}, false, errBroken }
func (brokenStore) Put(storage.CacheEntry) error { return errBroken }
func (brokenStore) Close() error { return nil }

// TestFetchCacheBackendErrors tests that backend failures degrade to misses
func TestFetchCacheBackendErrors(t *testing.T) {
	cache, _ := newTestCache(t, brokenStore{})
	u := Canonicalize("https://example.com/a")

	cache.Put(u, []byte("x"), true)
	if _, found := cache.Get(u); found {
		t.Error("broken backend should miss")
	}
}

func TestFetchCacheBoundedBackend(t *testing.T) {
	store, err := storage.NewBoundedCacheStore(time.Hour, 8)
	if err != nil {
		t.Fatalf("NewBoundedCacheStore: %v", err)
	}
	cache, _ := newTestCache(t, store)
	defer cache.Close()

	u := Canonicalize("https://example.com/a")
	cache.PutTier(u, []byte("body"), true, TierRendered)
	entry, ok := cache.LastAttempt(u)
	if !ok || entry.Tier != string(TierRendered) {
		t.Errorf("LastAttempt() = %+v, %v", entry, ok)
	}
}
