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
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const testFiller = "The council met on Tuesday evening to discuss the new budget. " +
	"Members debated the proposal for several hours before voting on the final text."

func mustCompile(t *testing.T, patterns ...string) []*regexp.Regexp {
	t.Helper()
	out, err := compilePatterns(patterns)
	if err != nil {
		t.Fatalf("compile %v: %v", patterns, err)
	}
	return out
}

func mustDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// testConfig is the default config with retries that do not slow tests down
func testConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Retry.InitialBackoff = DurationFrom(time.Millisecond)
	cfg.Retry.MaxBackoff = DurationFrom(2 * time.Millisecond)
	cfg.Retry.Jitter = 0
	cfg.Rendering.SettleDelay = DurationFrom(0)
	return cfg
}

func newMockResolver(t *testing.T, cfg *Config, mock *MockTransport, opts ...ResolverOption) *Resolver {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	r, err := NewResolver(cfg, append([]ResolverOption{WithTransport(mock)}, opts...)...)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return r
}

func articleHTML(title string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html lang="en"><head><title>%s</title>
<meta property="og:type" content="article"></head>
<body><article><h1>%s</h1><p>%s</p></article></body></html>`, title, title, testFiller)
}

// listingHTML renders a listing page linking hrefs, followed by extra markup
// such as a pager
func listingHTML(title string, hrefs []string, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html><html><head><title>%s</title></head><body>
<nav><a href="/">Home</a><a href="/about">About</a></nav><main><h2>%s</h2><p>%s</p><ul>`, title, title, testFiller)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<li><a href="%s">story</a></li>`, h)
	}
	b.WriteString("</ul>" + extra + "</main></body></html>")
	return b.String()
}

// itemPaths returns n item paths starting at index from
func itemPaths(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/news/story-number-%d-of-the-day", from+i)
	}
	return out
}

// registerArticles serves an article for every path under base
func registerArticles(mock *MockTransport, base string, paths []string) {
	for _, p := range paths {
		mock.RegisterHTML(base+p, articleHTML(strings.TrimPrefix(p, "/news/")))
	}
}

// fakeRenderer serves fixed pages and simulates a live listing that reveals
// one batch of links per scroll or load-more click
type fakeRenderer struct {
	mu      sync.Mutex
	pages   map[string]string
	batches [][]string
	shown   int
	renders []string
	clicks  int
	scrolls int
	err     error
	// scrollDelay is how long each scroll takes
	scrollDelay time.Duration
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{pages: make(map[string]string)}
}

func (f *fakeRenderer) Render(ctx context.Context, url string, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, url)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("render %s: no such page", url)
	}
	f.shown = min(1, len(f.batches))
	return []byte(body), nil
}

func (f *fakeRenderer) Scroll(ctx context.Context, _ Direction) error {
	if f.scrollDelay > 0 {
		time.Sleep(f.scrollDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	f.shown = min(f.shown+1, len(f.batches))
	return nil
}

func (f *fakeRenderer) ClickControl(ctx context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shown >= len(f.batches) {
		return false, nil
	}
	f.clicks++
	f.shown++
	return true, nil
}

func (f *fakeRenderer) EnumerateVisibleItems(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches[:f.shown] {
		out = append(out, b...)
	}
	return out, nil
}

func (f *fakeRenderer) Close() error { return nil }

func (f *fakeRenderer) renderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.renders)
}
