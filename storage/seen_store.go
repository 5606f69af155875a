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

import "sync"

// SeenStore tracks which fingerprints a crawl job has admitted and which
// content hashes it has already extracted. One SeenStore belongs to one job.
type SeenStore struct {
	// urls holds admitted URL fingerprints
	urls map[string]struct{}
	// content maps a content hash to the first URL that produced it
	content map[string]string
	// mu protects all maps
	mu sync.RWMutex
}

// NewSeenStore creates a new SeenStore instance
func NewSeenStore() *SeenStore {
	return &SeenStore{
		urls:    make(map[string]struct{}),
		content: make(map[string]string),
	}
}

// VisitIfNotVisited atomically checks whether a fingerprint was admitted and
// admits it if not. Returns true if it was already present.
// This is the only way a fingerprint enters the set, which is what keeps
// dispatch at-most-once per fingerprint.
func (s *SeenStore) VisitIfNotVisited(fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[fingerprint]; ok {
		return true
	}
	s.urls[fingerprint] = struct{}{}
	return false
}

// IsVisited checks if a fingerprint has been admitted (read-only check)
func (s *SeenStore) IsVisited(fingerprint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.urls[fingerprint]
	return ok
}

// Count returns the number of admitted fingerprints
func (s *SeenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}

// ClaimContent records url as the owner of contentHash unless another URL
// already owns it. It returns the owning URL and whether the hash was new.
func (s *SeenStore) ClaimContent(contentHash, url string) (owner string, claimed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.content[contentHash]; ok {
		return existing, false
	}
	s.content[contentHash] = url
	return url, true
}

// Clear resets all stored data
func (s *SeenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = make(map[string]struct{})
	s.content = make(map[string]string)
}
