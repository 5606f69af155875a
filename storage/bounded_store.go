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

package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BoundedCacheStore keeps entries in a sharded, memory-capped bigcache.
// When the cap is reached the oldest entries are evicted, so a long-running
// process cannot grow without bound.
type BoundedCacheStore struct {
	// LifeWindow is how long bigcache keeps an entry before it may evict it.
	// It should be at least the fetch cache TTL.
	LifeWindow time.Duration
	// MaxSizeMB is the hard memory cap
	MaxSizeMB int

	cache *bigcache.BigCache
}

// NewBoundedCacheStore creates and initializes a BoundedCacheStore
func NewBoundedCacheStore(lifeWindow time.Duration, maxSizeMB int) (*BoundedCacheStore, error) {
	s := &BoundedCacheStore{LifeWindow: lifeWindow, MaxSizeMB: maxSizeMB}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Init implements CacheStore.Init()
func (s *BoundedCacheStore) Init() error {
	if s.cache != nil {
		return nil
	}
	if s.LifeWindow <= 0 {
		s.LifeWindow = 72 * time.Hour
	}
	cfg := bigcache.DefaultConfig(s.LifeWindow)
	// fewer, larger shards so a full page body fits in one shard
	cfg.Shards = 64
	cfg.CleanWindow = 10 * time.Minute
	cfg.MaxEntrySize = 64 * 1024
	cfg.HardMaxCacheSize = s.MaxSizeMB
	cfg.Verbose = false

	c, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create bounded cache: %w", err)
	}
	s.cache = c
	return nil
}

// Get implements CacheStore.Get()
func (s *BoundedCacheStore) Get(key string) (CacheEntry, bool, error) {
	raw, err := s.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}
	var entry CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return CacheEntry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

// Put implements CacheStore.Put()
func (s *BoundedCacheStore) Put(entry CacheEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return s.cache.Set(entry.Key, buf.Bytes())
}

// Len returns the number of entries currently held
func (s *BoundedCacheStore) Len() int {
	return s.cache.Len()
}

// Close implements CacheStore.Close()
func (s *BoundedCacheStore) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}
