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
	"testing"
	"time"
)

func candidates(urls ...string) []Candidate {
	out := make([]Candidate, len(urls))
	for i, u := range urls {
		out[i] = Candidate{RawURL: u, URL: Canonicalize(u)}
	}
	return out
}

func TestFrontierAdmitDeduplicates(t *testing.T) {
	f := NewFrontier(nil)

	got := f.Admit(1, candidates("https://example.com/a", "https://example.com/b"))
	if len(got) != 2 || got[0].Order != 0 || got[1].Order != 1 || got[1].Iteration != 1 {
		t.Fatalf("Admit() = %+v", got)
	}

	got = f.Admit(2, candidates("https://EXAMPLE.com/a/", "https://example.com/c?utm_source=x", "https://example.com/b#top"))
	if len(got) != 1 || got[0].URL.URL != "https://example.com/c" || got[0].Order != 2 || got[0].Iteration != 2 {
		t.Fatalf("second Admit() = %+v", got)
	}
	if got[0].RawURL != "https://example.com/c?utm_source=x" {
		t.Errorf("RawURL = %q, the raw spelling should be kept for fetching", got[0].RawURL)
	}
	if f.Discovered() != 3 || f.Pending() != 3 {
		t.Errorf("Discovered/Pending = %d/%d", f.Discovered(), f.Pending())
	}
}

func TestFrontierNextAndClose(t *testing.T) {
	f := NewFrontier(nil)
	f.Admit(1, candidates("https://example.com/a"))

	item, ok := f.Next(context.Background())
	if !ok || item.URL.URL != "https://example.com/a" {
		t.Fatalf("Next() = %+v, %v", item, ok)
	}

	result := make(chan DiscoveredItem, 1)
	go func() {
		item, _ := f.Next(context.Background())
		result <- item
	}()
	time.Sleep(10 * time.Millisecond)
	f.Admit(2, candidates("https://example.com/b"))
	select {
	case item := <-result:
		if item.URL.URL != "https://example.com/b" {
			t.Errorf("Next() = %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not wake up on Admit")
	}

	f.Close()
	if _, ok := f.Next(context.Background()); ok {
		t.Error("closed and drained frontier should return false")
	}
}

func TestFrontierNextHonorsContext(t *testing.T) {
	f := NewFrontier(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := f.Next(ctx); ok {
		t.Error("Next() should give up when ctx is done")
	}
}

// TestFrontierConcurrentAdmit tests that concurrent rounds never admit the
// same item twice
func TestFrontierConcurrentAdmit(t *testing.T) {
	f := NewFrontier(nil)
	urls := make([]string, 50)
	for i, p := range itemPaths(0, 50) {
		urls[i] = "https://example.com" + p
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Admit(i, candidates(urls...))
		}()
	}
	wg.Wait()

	items := f.Items()
	if len(items) != 50 {
		t.Fatalf("admitted %d items, want 50", len(items))
	}
	for i, item := range items {
		if item.Order != i {
			t.Errorf("item %d has order %d", i, item.Order)
		}
	}
}
