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
	"sync"

	"github.com/agentberlin/driftnet/storage"
)

// DiscoveredItem is a candidate admitted to a job's frontier
type DiscoveredItem struct {
	RawURL string
	URL    CanonicalURL
	// Iteration is the traversal round that first showed the item
	Iteration int
	// Order is the position in discovery order, starting at 0
	Order int
}

// Frontier holds the items of one job in discovery order. Admission is an
// atomic check-and-set on the fingerprint, so an item enters at most once no
// matter how many rounds or spellings show it. Traversal pushes, the
// dispatcher pops; the queue is unbounded so traversal never waits on
// workers.
type Frontier struct {
	seen *storage.SeenStore

	mu      sync.Mutex
	items   []DiscoveredItem
	next    int
	closed  bool
	changed chan struct{}
}

// NewFrontier creates a frontier over seen. A nil seen gets a fresh one.
func NewFrontier(seen *storage.SeenStore) *Frontier {
	if seen == nil {
		seen = storage.NewSeenStore()
	}
	return &Frontier{seen: seen, changed: make(chan struct{}, 1)}
}

// Admit adds the candidates not seen before and returns them
func (f *Frontier) Admit(iteration int, batch []Candidate) []DiscoveredItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	var admitted []DiscoveredItem
	for _, c := range batch {
		if f.seen.VisitIfNotVisited(c.URL.Fingerprint) {
			continue
		}
		raw := c.RawURL
		if raw == "" {
			raw = c.URL.URL
		}
		item := DiscoveredItem{RawURL: raw, URL: c.URL, Iteration: iteration, Order: len(f.items)}
		f.items = append(f.items, item)
		admitted = append(admitted, item)
	}
	if len(admitted) > 0 {
		f.signal()
	}
	return admitted
}

// Next blocks until an undispatched item is available and returns it. ok is
// false once the frontier is closed and drained, or ctx is done.
func (f *Frontier) Next(ctx context.Context) (item DiscoveredItem, ok bool) {
	for {
		f.mu.Lock()
		if f.next < len(f.items) {
			item = f.items[f.next]
			f.next++
			f.mu.Unlock()
			return item, true
		}
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return DiscoveredItem{}, false
		}

		select {
		case <-f.changed:
		case <-ctx.Done():
			return DiscoveredItem{}, false
		}
	}
}

// Close marks the end of discovery
func (f *Frontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.signal()
}

func (f *Frontier) signal() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

// Discovered returns the number of admitted items
func (f *Frontier) Discovered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Pending returns the number of admitted items not yet handed out
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) - f.next
}

// Items returns every admitted item in discovery order
func (f *Frontier) Items() []DiscoveredItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DiscoveredItem, len(f.items))
	copy(out, f.items)
	return out
}

// Seen returns the underlying seen set
func (f *Frontier) Seen() *storage.SeenStore {
	return f.seen
}
