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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheStore(t *testing.T) {
	s := NewInMemoryCacheStore()

	_, found, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	body := []byte("<html>hello</html>")
	now := time.Now()
	require.NoError(t, s.Put(CacheEntry{Key: "k1", URL: "https://example.com/a", Body: body, FetchedAt: now, Success: true, Tier: "http"}))

	// mutating the caller's buffer must not change the stored entry
	body[0] = 'X'

	entry, found, err := s.Get("k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "<html>hello</html>", string(entry.Body))
	assert.Equal(t, "https://example.com/a", entry.URL)
	assert.True(t, entry.Success)
	assert.Equal(t, "http", entry.Tier)
	assert.Equal(t, 1, s.Len())
}

func TestInMemoryCacheStoreConcurrentAccess(t *testing.T) {
	s := NewInMemoryCacheStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			_ = s.Put(CacheEntry{Key: key, Body: []byte(key), Success: true})
			_, _, _ = s.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
}

func TestBoundedCacheStoreRoundTrip(t *testing.T) {
	s, err := NewBoundedCacheStore(time.Hour, 16)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, found)

	fetchedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(CacheEntry{
		Key:       "abc",
		URL:       "https://example.com/story",
		Body:      []byte("body"),
		FetchedAt: fetchedAt,
		Success:   false,
		Tier:      "rendered",
	}))

	entry, found, err := s.Get("abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://example.com/story", entry.URL)
	assert.Equal(t, []byte("body"), entry.Body)
	assert.True(t, fetchedAt.Equal(entry.FetchedAt))
	assert.False(t, entry.Success)
	assert.Equal(t, "rendered", entry.Tier)
	assert.Equal(t, 1, s.Len())
}

func TestSeenStoreVisitIfNotVisited(t *testing.T) {
	s := NewSeenStore()

	assert.False(t, s.VisitIfNotVisited("fp1"), "first visit should be new")
	assert.True(t, s.VisitIfNotVisited("fp1"), "second visit should be a duplicate")
	assert.True(t, s.IsVisited("fp1"))
	assert.False(t, s.IsVisited("fp2"))
	assert.Equal(t, 1, s.Count())

	s.Clear()
	assert.Equal(t, 0, s.Count())
}

func TestSeenStoreVisitIsAtomic(t *testing.T) {
	s := NewSeenStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	newCount := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.VisitIfNotVisited("same") {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newCount, "exactly one goroutine should admit the fingerprint")
}

func TestSeenStoreClaimContent(t *testing.T) {
	s := NewSeenStore()

	owner, claimed := s.ClaimContent("h1", "https://example.com/a")
	assert.True(t, claimed)
	assert.Equal(t, "https://example.com/a", owner)

	owner, claimed = s.ClaimContent("h1", "https://example.com/b")
	assert.False(t, claimed)
	assert.Equal(t, "https://example.com/a", owner)
}
