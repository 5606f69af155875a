// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// This file includes modifications to code originally developed by Adam Tauber,
// licensed under the Apache License, Version 2.0.
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

// Package storage holds the backends behind the fetch cache and the per-job
// seen sets used for de-duplication.
package storage

import (
	"sync"
	"time"
)

// CacheEntry is one recorded fetch attempt for a canonical URL
type CacheEntry struct {
	// Key is the fingerprint of the canonical URL
	Key string
	// URL is the canonical URL string
	URL string
	// Body is the fetched body. Empty for failed attempts.
	Body []byte
	// FetchedAt is when the attempt finished
	FetchedAt time.Time
	// Success is false for attempts that failed every tier
	Success bool
	// Tier names the retrieval tier that produced Body
	Tier string
}

// CacheStore is an interface which handles the Fetch Cache's entries.
// Implementations must be safe for concurrent use. The cache treats every
// error as a miss, so implementations should return errors rather than panic
// when their underlying storage is unavailable.
type CacheStore interface {
	// Init initializes the storage
	Init() error
	// Get returns the entry stored under key. found is false when no entry
	// exists; expiry is decided by the caller.
	Get(key string) (entry CacheEntry, found bool, err error)
	// Put stores entry under entry.Key, replacing any previous entry
	Put(entry CacheEntry) error
	// Close releases the storage
	Close() error
}

// InMemoryCacheStore is the default CacheStore. It keeps entries in a map
// without persisting data on the disk. Growth is bounded by the number of
// distinct URLs seen in the process lifetime.
type InMemoryCacheStore struct {
	entries map[string]CacheEntry
	lock    *sync.RWMutex
}

// NewInMemoryCacheStore returns an initialized InMemoryCacheStore
func NewInMemoryCacheStore() *InMemoryCacheStore {
	s := &InMemoryCacheStore{}
	_ = s.Init()
	return s
}

// Init initializes InMemoryCacheStore
func (s *InMemoryCacheStore) Init() error {
	if s.entries == nil {
		s.entries = make(map[string]CacheEntry)
	}
	if s.lock == nil {
		s.lock = &sync.RWMutex{}
	}
	return nil
}

// Get implements CacheStore.Get()
func (s *InMemoryCacheStore) Get(key string) (CacheEntry, bool, error) {
	s.lock.RLock()
	entry, ok := s.entries[key]
	s.lock.RUnlock()
	return entry, ok, nil
}

// Put implements CacheStore.Put()
func (s *InMemoryCacheStore) Put(entry CacheEntry) error {
	// the caller may reuse its buffer
	body := make([]byte, len(entry.Body))
	copy(body, entry.Body)
	entry.Body = body

	s.lock.Lock()
	s.entries[entry.Key] = entry
	s.lock.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *InMemoryCacheStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.entries)
}

// Close implements CacheStore.Close()
func (s *InMemoryCacheStore) Close() error {
	return nil
}
