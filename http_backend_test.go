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
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentberlin/driftnet/testutil"
	"github.com/andybalholm/brotli"
)

func newTestBackend(t *testing.T, cfg HTTPConfig, rt http.RoundTripper) *httpBackend {
	t.Helper()
	h, err := newHTTPBackend(cfg, rt)
	if err != nil {
		t.Fatalf("newHTTPBackend failed: %v", err)
	}
	return h
}

func TestHTTPBackendAgainstSite(t *testing.T) {
	site := testutil.NewSite()
	defer site.Close()

	cfg := NewDefaultConfig().HTTP
	cfg.TraceHTTP = true
	h := newTestBackend(t, cfg, nil)

	t.Run("gzip", func(t *testing.T) {
		res, err := h.Fetch(context.Background(), site.URL+"/gzip")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if !bytes.Contains(res.Body, []byte("city council approves budget")) {
			t.Errorf("gzip body was not decoded: %.80q", res.Body)
		}
		if res.Trace == nil || res.Trace.FirstByteDuration <= 0 {
			t.Errorf("expected a trace with first byte timing, got %+v", res.Trace)
		}
	})

	t.Run("redirect", func(t *testing.T) {
		res, err := h.Fetch(context.Background(), site.URL+"/redirect")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if res.FinalURL != site.URL+"/news" {
			t.Errorf("FinalURL = %q", res.FinalURL)
		}
	})

	t.Run("status", func(t *testing.T) {
		_, err := h.Fetch(context.Background(), site.URL+"/missing")
		var fetchErr *TransientFetchError
		if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusNotFound {
			t.Errorf("Fetch() error = %v, want a 404 TransientFetchError", err)
		}
	})
}

func TestHTTPBackendBrotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	w.Write([]byte("<html><body>brotli body</body></html>"))
	w.Close()

	mock := NewMockTransport()
	mock.RegisterResponse("https://example.com/br", &MockResponse{
		Body:    buf.String(),
		Headers: http.Header{"Content-Encoding": []string{"br"}, "Content-Type": []string{"text/html; charset=utf-8"}},
	})
	h := newTestBackend(t, NewDefaultConfig().HTTP, mock)

	res, err := h.Fetch(context.Background(), "https://example.com/br")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(res.Body) != "<html><body>brotli body</body></html>" {
		t.Errorf("Body = %q", res.Body)
	}
}

func TestHTTPBackendCharset(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterResponse("https://example.com/latin1", &MockResponse{
		Body:    "<p>caf\xe9 cr\xe8me</p>",
		Headers: http.Header{"Content-Type": []string{"text/html; charset=ISO-8859-1"}},
	})
	h := newTestBackend(t, NewDefaultConfig().HTTP, mock)

	res, err := h.Fetch(context.Background(), "https://example.com/latin1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(res.Body) != "<p>café crème</p>" {
		t.Errorf("Body = %q, want UTF-8", res.Body)
	}
}

func TestHTTPBackendHeadersAndBodyLimit(t *testing.T) {
	var gotUA, gotLang, gotCustom string
	mock := NewMockTransport()
	mock.RegisterResponse("https://example.com/big", &MockResponse{
		BodyFunc: func(r *http.Request) string {
			gotUA = r.Header.Get("User-Agent")
			gotLang = r.Header.Get("Accept-Language")
			gotCustom = r.Header.Get("X-Team")
			return strings.Repeat("a", 1000)
		},
	})

	cfg := NewDefaultConfig().HTTP
	cfg.MaxBodySize = 100
	cfg.Headers = map[string]string{"X-Team": "news", "Accept-Language": "de-DE"}
	h := newTestBackend(t, cfg, mock)

	res, err := h.Fetch(context.Background(), "https://example.com/big")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(res.Body) != 100 {
		t.Errorf("len(Body) = %d, want 100", len(res.Body))
	}
	if gotUA != defaultUserAgent || gotLang != "de-DE" || gotCustom != "news" {
		t.Errorf("headers = %q %q %q", gotUA, gotLang, gotCustom)
	}
}

func TestHTTPBackendTransportError(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterError("https://example.com/down", errors.New("connection reset"))
	h := newTestBackend(t, NewDefaultConfig().HTTP, mock)

	_, err := h.Fetch(context.Background(), "https://example.com/down")
	var fetchErr *TransientFetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 0 {
		t.Errorf("Fetch() error = %v", err)
	}
}

func TestLimitRule(t *testing.T) {
	rule := &LimitRule{}
	if err := rule.Init(); !errors.Is(err, ErrNoPattern) {
		t.Errorf("Init() = %v, want ErrNoPattern", err)
	}

	rule = &LimitRule{DomainGlob: "*.example.com"}
	if err := rule.Init(); err != nil {
		t.Fatal(err)
	}
	if !rule.Match("news.example.com") || rule.Match("example.org") {
		t.Error("glob match is wrong")
	}

	rule = &LimitRule{DomainRegexp: `^example\.(com|org)$`}
	if err := rule.Init(); err != nil {
		t.Fatal(err)
	}
	if !rule.Match("example.org") || rule.Match("news.example.com") {
		t.Error("regexp match is wrong")
	}
}

// TestLimitRuleParallelism tests that a parallelism of one serializes
// requests to the matching domain
func TestLimitRuleParallelism(t *testing.T) {
	mock := NewMockTransport()
	for _, p := range []string{"/a", "/b", "/c"} {
		mock.RegisterResponse("https://slow.example.com"+p, &MockResponse{Body: "ok", Delay: 20 * time.Millisecond})
	}
	cfg := NewDefaultConfig().HTTP
	cfg.LimitRules = []LimitRuleConfig{{DomainGlob: "slow.example.com", Parallelism: 1}}
	h := newTestBackend(t, cfg, mock)

	start := time.Now()
	var wg sync.WaitGroup
	for _, p := range []string{"/a", "/b", "/c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Fetch(context.Background(), "https://slow.example.com"+p); err != nil {
				t.Errorf("Fetch failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("three serialized requests took %s, want at least 60ms", elapsed)
	}
}

func TestNewHTTPBackendRejectsBadRule(t *testing.T) {
	cfg := NewDefaultConfig().HTTP
	cfg.LimitRules = []LimitRuleConfig{{Parallelism: 2}}
	if _, err := newHTTPBackend(cfg, nil); !errors.Is(err, ErrNoPattern) {
		t.Errorf("newHTTPBackend() = %v, want ErrNoPattern", err)
	}
}
