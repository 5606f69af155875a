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
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

const blockedHTML = `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`

func TestResolveHTTPThenCache(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterHTML("https://example.com/news/story-one", articleHTML("Story one"))
	r := newMockResolver(t, nil, mock)

	u := Canonicalize("https://example.com/news/story-one/?utm_source=x")
	res := r.Resolve(context.Background(), u, "")
	if !res.Success || res.Tier != TierHTTP {
		t.Fatalf("Resolve() = %+v", res)
	}
	if res.StatusCode != http.StatusOK || res.Attempts != 1 {
		t.Errorf("StatusCode/Attempts = %d/%d", res.StatusCode, res.Attempts)
	}

	res = r.Resolve(context.Background(), Canonicalize("https://EXAMPLE.com/news/story-one"), "")
	if !res.Success || res.Tier != TierCache {
		t.Fatalf("second Resolve() = %+v, want a cache hit", res)
	}
	if n := mock.Requests("https://example.com/news/story-one"); n != 1 {
		t.Errorf("origin was requested %d times, want 1", n)
	}
}

func TestResolveRetriesTransientStatus(t *testing.T) {
	mock := NewMockTransport()
	url := "https://example.com/news/flaky-story-of-today"
	headers := http.Header{"Content-Type": []string{"text/html"}}
	mock.RegisterSequence(url,
		&MockResponse{StatusCode: http.StatusServiceUnavailable},
		&MockResponse{Body: articleHTML("Flaky"), Headers: headers},
	)
	r := newMockResolver(t, nil, mock)

	res := r.Resolve(context.Background(), Canonicalize(url), url)
	if !res.Success || res.Attempts != 2 {
		t.Fatalf("Resolve() = success %v attempts %d, err %v", res.Success, res.Attempts, res.Err)
	}
}

// TestResolveEscalatesToRenderer tests that a soft block at the HTTP tier is
// retried through the renderer
func TestResolveEscalatesToRenderer(t *testing.T) {
	url := "https://example.com/news/protected-story-of-today"
	mock := NewMockTransport()
	mock.RegisterHTML(url, blockedHTML)
	rd := newFakeRenderer()
	rd.pages[url] = articleHTML("Protected")

	r := newMockResolver(t, nil, mock, WithRenderer(rd))
	res := r.Resolve(context.Background(), Canonicalize(url), url)
	if !res.Success || res.Tier != TierRendered {
		t.Fatalf("Resolve() = %+v", res)
	}

	res = r.Resolve(context.Background(), Canonicalize(url), url)
	if res.Tier != TierCache {
		t.Errorf("rendered body should be cached, got tier %q", res.Tier)
	}
	if rd.renderCount() != 1 || mock.Requests(url) != 1 {
		t.Errorf("renders/requests = %d/%d, want 1/1", rd.renderCount(), mock.Requests(url))
	}
}

func TestResolveWithoutRenderer(t *testing.T) {
	url := "https://example.com/news/protected-story-of-today"
	mock := NewMockTransport()
	mock.RegisterHTML(url, blockedHTML)
	r := newMockResolver(t, nil, mock)

	res := r.Resolve(context.Background(), Canonicalize(url), url)
	if res.Success {
		t.Fatal("expected failure")
	}
	var exhausted *ExhaustedTiersError
	if !errors.As(res.Err, &exhausted) {
		t.Fatalf("Err = %v, want ExhaustedTiersError", res.Err)
	}
	var invalid *InvalidContentError
	if !errors.As(res.Err, &invalid) || invalid.Tier != TierHTTP {
		t.Errorf("Err = %v, want the http tier's InvalidContentError", res.Err)
	}
	if !errors.Is(res.Err, ErrRendererUnavailable) {
		t.Errorf("Err = %v, want ErrRendererUnavailable", res.Err)
	}

	entry, ok := r.Cache().LastAttempt(Canonicalize(url))
	if !ok || entry.Success {
		t.Errorf("failed attempt should be recorded, got %+v %v", entry, ok)
	}
}

// TestResolveRenderFailure tests that all-tier failures carry the last error
func TestResolveRenderFailure(t *testing.T) {
	url := "https://example.com/news/missing-story-of-today"
	mock := NewMockTransport()
	rd := newFakeRenderer()
	rd.err = errors.New("browser crashed")

	r := newMockResolver(t, nil, mock, WithRenderer(rd))
	res := r.Resolve(context.Background(), Canonicalize(url), url)
	if res.Success || res.StatusCode != http.StatusNotFound {
		t.Fatalf("Resolve() = %+v", res)
	}
	if mock.Requests(url) != 1 {
		t.Errorf("404 should not be retried, got %d requests", mock.Requests(url))
	}
	if !errors.Is(res.Err, rd.err) {
		t.Errorf("Err = %v, want the renderer's error", res.Err)
	}
}

func TestResolveProfiles(t *testing.T) {
	profiles := NewProfileRegistry()
	if err := profiles.Register(&SiteProfile{Name: "spa", Hosts: []string{"spa.example.com"}, SkipHTTP: true}); err != nil {
		t.Fatal(err)
	}
	if err := profiles.Register(&SiteProfile{Name: "static", Hosts: []string{"static.example.com"}, DisableRender: true}); err != nil {
		t.Fatal(err)
	}

	spaURL := "https://spa.example.com/news/rendered-only-story-here"
	staticURL := "https://static.example.com/news/blocked-static-story-here"
	mock := NewMockTransport()
	mock.RegisterHTML(staticURL, blockedHTML)
	rd := newFakeRenderer()
	rd.pages[spaURL] = articleHTML("SPA")
	rd.pages[staticURL] = articleHTML("Static")

	r := newMockResolver(t, nil, mock, WithRenderer(rd), WithProfiles(profiles))

	res := r.Resolve(context.Background(), Canonicalize(spaURL), spaURL)
	if !res.Success || res.Tier != TierRendered {
		t.Errorf("spa Resolve() = %+v", res)
	}
	if mock.Requests(spaURL) != 0 {
		t.Error("SkipHTTP profile should not hit the HTTP tier")
	}

	res = r.Resolve(context.Background(), Canonicalize(staticURL), staticURL)
	if res.Success || !errors.Is(res.Err, ErrRendererUnavailable) {
		t.Errorf("static Resolve() = %+v", res)
	}
	if r.HasRenderer("static.example.com") || !r.HasRenderer("spa.example.com") {
		t.Error("HasRenderer should honor DisableRender")
	}
}

func TestResolveStrictRenderValidity(t *testing.T) {
	url := "https://example.com/news/captcha-wall-story-here"
	mock := NewMockTransport()
	mock.RegisterStatus(url, http.StatusForbidden)
	rd := newFakeRenderer()
	rd.pages[url] = blockedHTML

	cfg := testConfig()
	cfg.Validity.StrictRenderValidity = true
	r := newMockResolver(t, cfg, mock, WithRenderer(rd))

	res := r.Resolve(context.Background(), Canonicalize(url), url)
	var invalid *InvalidContentError
	if res.Success || !errors.As(res.Err, &invalid) || invalid.Tier != TierRendered {
		t.Errorf("Resolve() = %+v, want a rendered-tier InvalidContentError", res)
	}
}

// slowRenderer counts concurrent Render calls
type slowRenderer struct {
	fakeRenderer
	active, peak atomic.Int32
}

func (s *slowRenderer) Render(ctx context.Context, url string, settle time.Duration) ([]byte, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return []byte(articleHTML("rendered")), nil
}

// TestResolveSerializesRenders tests that the single browser session is
// never driven by two callers at once
func TestResolveSerializesRenders(t *testing.T) {
	mock := NewMockTransport()
	rd := &slowRenderer{}
	r := newMockResolver(t, nil, mock, WithRenderer(rd))

	done := make(chan struct{})
	for _, p := range itemPaths(0, 6) {
		go func() {
			defer func() { done <- struct{}{} }()
			u := "https://example.com" + p
			r.Resolve(context.Background(), Canonicalize(u), u)
		}()
	}
	for range 6 {
		<-done
	}
	if rd.peak.Load() != 1 {
		t.Errorf("peak concurrent renders = %d, want 1", rd.peak.Load())
	}
}

// TestResolveRenderTimeoutExcludesQueueing tests that waiting for a renderer
// held by a live traversal does not eat into the render timeout
func TestResolveRenderTimeoutExcludesQueueing(t *testing.T) {
	url := "https://example.com/news/app-shell-story-here"
	mock := NewMockTransport()
	mock.RegisterStatus(url, http.StatusNotFound)
	rd := newFakeRenderer()
	rd.pages[url] = articleHTML("App shell story")

	cfg := testConfig()
	cfg.Rendering.Timeout = DurationFrom(50 * time.Millisecond)
	r := newMockResolver(t, cfg, mock, WithRenderer(rd))

	held := make(chan struct{})
	released := make(chan error, 1)
	go func() {
		released <- r.UseRenderer(context.Background(), func(Renderer) error {
			close(held)
			time.Sleep(200 * time.Millisecond)
			return nil
		})
	}()
	<-held

	res := r.Resolve(context.Background(), Canonicalize(url), url)
	if !res.Success || res.Tier != TierRendered {
		t.Fatalf("Resolve() = success %v tier %q, err %v", res.Success, res.Tier, res.Err)
	}
	if err := <-released; err != nil {
		t.Errorf("UseRenderer() = %v", err)
	}
	if rd.renderCount() != 1 {
		t.Errorf("renders = %d, want 1", rd.renderCount())
	}
}

// stuckRenderer never finishes a render before its context ends
type stuckRenderer struct {
	fakeRenderer
}

func (s *stuckRenderer) Render(ctx context.Context, url string, settle time.Duration) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveRenderTimeout(t *testing.T) {
	url := "https://example.com/news/never-finishing-story-here"
	mock := NewMockTransport()
	mock.RegisterStatus(url, http.StatusNotFound)

	cfg := testConfig()
	cfg.Rendering.Timeout = DurationFrom(20 * time.Millisecond)
	r := newMockResolver(t, cfg, mock, WithRenderer(&stuckRenderer{}))

	res := r.Resolve(context.Background(), Canonicalize(url), url)
	if res.Success || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Resolve() = success %v, err %v, want a render deadline", res.Success, res.Err)
	}
}

func TestUseRendererUnavailable(t *testing.T) {
	r := newMockResolver(t, nil, NewMockTransport())
	err := r.UseRenderer(context.Background(), func(Renderer) error { return nil })
	if !errors.Is(err, ErrRendererUnavailable) {
		t.Errorf("UseRenderer() = %v", err)
	}
}
