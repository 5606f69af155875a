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

package driftnet

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gobwas/glob"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// browserHeaders is the header set of a desktop Chrome navigation request.
// User-Agent is set separately from HTTPConfig.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Accept-Encoding":           "gzip, deflate, br",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
}

const maxRedirects = 10

// LimitRule provides connection restrictions for domains.
// Both DomainRegexp and DomainGlob can be used to specify
// the included domains patterns, but at least one is required.
// There can be three kinds of limitations:
//   - Parallelism: Set limit for the number of concurrent requests to matching domains
//   - Delay: Wait specified amount of time between requests (parallelism is 1 in this case)
//   - RequestsPerSecond: Token bucket shared by all requests to matching domains
type LimitRule struct {
	// DomainRegexp is a regular expression to match against domains
	DomainRegexp string
	// DomainGlob is a glob pattern to match against domains
	DomainGlob string
	// Delay is the duration to wait before releasing the slot of a finished request
	Delay time.Duration
	// RandomDelay is the extra randomized duration to wait added to Delay
	RandomDelay time.Duration
	// Parallelism is the number of the maximum allowed concurrent requests of the matching domains
	Parallelism int
	// RequestsPerSecond enables a token bucket for the matching domains. 0 disables it.
	RequestsPerSecond float64
	// Burst is the token bucket size. Defaults to 1.
	Burst int

	waitChan       chan struct{}
	limiter        *rate.Limiter
	compiledRegexp *regexp.Regexp
	compiledGlob   glob.Glob
}

// Init initializes the private members of LimitRule
func (r *LimitRule) Init() error {
	waitChanSize := 1
	if r.Parallelism > 1 {
		waitChanSize = r.Parallelism
	}
	r.waitChan = make(chan struct{}, waitChanSize)
	if r.RequestsPerSecond > 0 {
		burst := r.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(r.RequestsPerSecond), burst)
	}
	hasPattern := false
	if r.DomainRegexp != "" {
		c, err := regexp.Compile(r.DomainRegexp)
		if err != nil {
			return err
		}
		r.compiledRegexp = c
		hasPattern = true
	}
	if r.DomainGlob != "" {
		c, err := glob.Compile(r.DomainGlob)
		if err != nil {
			return err
		}
		r.compiledGlob = c
		hasPattern = true
	}
	if !hasPattern {
		return ErrNoPattern
	}
	return nil
}

// Match checks that the domain parameter triggers the rule
func (r *LimitRule) Match(domain string) bool {
	if r.compiledRegexp != nil && r.compiledRegexp.MatchString(domain) {
		return true
	}
	return r.compiledGlob != nil && r.compiledGlob.Match(domain)
}

// acquire blocks until the rule admits a request or ctx is done. The returned
// release func must be called once the request finished.
func (r *LimitRule) acquire(ctx context.Context) (release func(), err error) {
	select {
	case r.waitChan <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			<-r.waitChan
			return nil, err
		}
	}
	return func() {
		delay := r.Delay
		if r.RandomDelay > 0 {
			delay += time.Duration(rand.Int63n(int64(r.RandomDelay)))
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		<-r.waitChan
	}, nil
}

// httpResponse is what the HTTP tier hands to the resolver
type httpResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	// FinalURL is the URL after redirects
	FinalURL string
	Trace    *HTTPTrace
}

type httpBackend struct {
	Client        *http.Client
	LimitRules    []*LimitRule
	UserAgent     string
	Headers       map[string]string
	MaxBodySize   int
	DetectCharset bool
	TraceHTTP     bool
	lock          *sync.RWMutex
}

// newHTTPBackend builds the HTTP tier from cfg. transport may be nil for
// http.DefaultTransport.
func newHTTPBackend(cfg HTTPConfig, transport http.RoundTripper) (*httpBackend, error) {
	h := &httpBackend{
		Client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout.Duration,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		UserAgent:     cfg.UserAgent,
		Headers:       cfg.Headers,
		MaxBodySize:   cfg.MaxBodySize,
		DetectCharset: cfg.DetectCharset,
		TraceHTTP:     cfg.TraceHTTP,
		lock:          &sync.RWMutex{},
	}
	for _, rc := range cfg.LimitRules {
		rule := &LimitRule{
			DomainGlob:        rc.DomainGlob,
			DomainRegexp:      rc.DomainRegexp,
			Delay:             rc.Delay.Duration,
			RandomDelay:       rc.RandomDelay.Duration,
			Parallelism:       rc.Parallelism,
			RequestsPerSecond: rc.RequestsPerSecond,
			Burst:             rc.Burst,
		}
		if err := h.Limit(rule); err != nil {
			return nil, fmt.Errorf("limit rule %q: %w", rc.DomainGlob+rc.DomainRegexp, err)
		}
	}
	return h, nil
}

func (h *httpBackend) GetMatchingRule(domain string) *LimitRule {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for _, r := range h.LimitRules {
		if r.Match(domain) {
			return r
		}
	}
	return nil
}

// Limit adds a new LimitRule
func (h *httpBackend) Limit(rule *LimitRule) error {
	if err := rule.Init(); err != nil {
		return err
	}
	h.lock.Lock()
	h.LimitRules = append(h.LimitRules, rule)
	h.lock.Unlock()
	return nil
}

// Fetch performs one GET with browser-like headers. Non-2xx statuses and
// transport failures come back as *TransientFetchError.
func (h *httpBackend) Fetch(ctx context.Context, rawURL string) (*httpResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransientFetchError{URL: rawURL, Err: err}
	}

	if r := h.GetMatchingRule(req.URL.Hostname()); r != nil {
		release, err := r.acquire(ctx)
		if err != nil {
			return nil, &TransientFetchError{URL: rawURL, Err: err}
		}
		defer release()
	}

	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", h.UserAgent)
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	var trace *HTTPTrace
	if h.TraceHTTP {
		trace = &HTTPTrace{}
		req = trace.WithTrace(req)
	}

	res, err := h.Client.Do(req)
	if err != nil {
		return nil, &TransientFetchError{URL: rawURL, Err: err}
	}
	defer res.Body.Close()

	finalURL := rawURL
	if res.Request != nil && res.Request.URL != nil {
		finalURL = res.Request.URL.String()
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, res.Body, 4096)
		return nil, &TransientFetchError{URL: rawURL, StatusCode: res.StatusCode}
	}

	body, err := h.readBody(res)
	if err != nil {
		return nil, &TransientFetchError{URL: rawURL, Err: err}
	}

	return &httpResponse{
		StatusCode: res.StatusCode,
		Body:       body,
		Headers:    res.Header,
		FinalURL:   finalURL,
		Trace:      trace,
	}, nil
}

// readBody applies the size cap, undoes Content-Encoding and converts the
// body to UTF-8
func (h *httpBackend) readBody(res *http.Response) ([]byte, error) {
	var bodyReader io.Reader = res.Body
	if h.MaxBodySize > 0 {
		bodyReader = io.LimitReader(bodyReader, int64(h.MaxBodySize))
	}

	encoding := strings.ToLower(strings.TrimSpace(res.Header.Get("Content-Encoding")))
	if !res.Uncompressed {
		switch {
		case strings.Contains(encoding, "br"):
			bodyReader = brotli.NewReader(bodyReader)
		case strings.Contains(encoding, "gzip"):
			gz, err := gzip.NewReader(bodyReader)
			if err != nil {
				return nil, err
			}
			defer gz.Close()
			bodyReader = gz
		case strings.Contains(encoding, "deflate"):
			fl := flate.NewReader(bodyReader)
			defer fl.Close()
			bodyReader = fl
		}
	}

	body, err := io.ReadAll(bodyReader)
	if err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && len(body) > 0) {
		return nil, err
	}
	return fixCharset(body, res.Header.Get("Content-Type"), h.DetectCharset)
}

// fixCharset converts body to UTF-8 according to the Content-Type charset,
// or a detected one when the header has none and detect is set
func fixCharset(body []byte, contentType string, detect bool) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}
	contentType = strings.ToLower(contentType)
	if strings.Contains(contentType, "image/") ||
		strings.Contains(contentType, "video/") ||
		strings.Contains(contentType, "audio/") ||
		strings.Contains(contentType, "font/") {
		return body, nil
	}

	if !strings.Contains(contentType, "charset") {
		if !detect {
			return body, nil
		}
		result, err := chardet.NewTextDetector().DetectBest(body)
		if err != nil {
			return body, nil
		}
		contentType = "text/plain; charset=" + strings.ToLower(result.Charset)
	}
	if strings.Contains(contentType, "utf-8") || strings.Contains(contentType, "utf8") {
		return body, nil
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body, nil
	}
	converted, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return converted, nil
}
