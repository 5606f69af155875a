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
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"
)

// MockResponse is a canned response of a MockTransport
type MockResponse struct {
	// StatusCode defaults to 200
	StatusCode int
	Body       string
	// BodyFunc builds the body per request and wins over Body
	BodyFunc func(*http.Request) string
	Headers  http.Header
	// Delay simulates latency. It respects the request context.
	Delay time.Duration
	// Error simulates a network failure
	Error error
}

type mockPattern struct {
	pattern  *regexp.Regexp
	response *MockResponse
}

// MockTransport is an http.RoundTripper serving registered responses, so the
// HTTP tier can be exercised without a network. Unregistered URLs get a 404.
// It counts requests per URL, which lets tests assert on cache hits and
// retries.
type MockTransport struct {
	responses map[string][]*MockResponse
	patterns  []mockPattern
	requests  map[string]int
	mutex     sync.Mutex
}

// NewMockTransport creates an empty MockTransport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[string][]*MockResponse),
		requests:  make(map[string]int),
	}
}

func (m *MockTransport) defaults(r *MockResponse) *MockResponse {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	return r
}

// RegisterResponse registers the response for an exact URL
func (m *MockTransport) RegisterResponse(url string, response *MockResponse) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.responses[url] = []*MockResponse{m.defaults(response)}
}

// RegisterSequence registers responses served in turn for successive
// requests of url. The last one repeats.
func (m *MockTransport) RegisterSequence(url string, responses ...*MockResponse) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	seq := make([]*MockResponse, len(responses))
	for i, r := range responses {
		seq[i] = m.defaults(r)
	}
	m.responses[url] = seq
}

// RegisterHTML registers an HTML page with status 200
func (m *MockTransport) RegisterHTML(url, html string) {
	headers := make(http.Header)
	headers.Set("Content-Type", "text/html; charset=utf-8")
	m.RegisterResponse(url, &MockResponse{Body: html, Headers: headers})
}

// RegisterXML registers a sitemap or feed document with status 200
func (m *MockTransport) RegisterXML(url, xml string) {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/xml; charset=utf-8")
	m.RegisterResponse(url, &MockResponse{Body: xml, Headers: headers})
}

// RegisterStatus registers an empty response with the given status
func (m *MockTransport) RegisterStatus(url string, status int) {
	m.RegisterResponse(url, &MockResponse{StatusCode: status})
}

// RegisterError makes requests to url fail with err
func (m *MockTransport) RegisterError(url string, err error) {
	m.RegisterResponse(url, &MockResponse{Error: err})
}

// RegisterPattern registers a response for every URL matching pattern.
// Exact registrations win.
func (m *MockTransport) RegisterPattern(pattern string, response *MockResponse) error {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.patterns = append(m.patterns, mockPattern{pattern: regex, response: m.defaults(response)})
	return nil
}

// Requests returns how many requests were made for url
func (m *MockTransport) Requests(url string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requests[url]
}

// TotalRequests returns the number of requests over all URLs
func (m *MockTransport) TotalRequests() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := 0
	for _, c := range m.requests {
		n += c
	}
	return n
}

// RoundTrip implements http.RoundTripper
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	m.mutex.Lock()
	m.requests[url]++
	n := m.requests[url]
	var mockResp *MockResponse
	if seq, ok := m.responses[url]; ok && len(seq) > 0 {
		mockResp = seq[min(n, len(seq))-1]
	} else {
		for _, p := range m.patterns {
			if p.pattern.MatchString(url) {
				mockResp = p.response
				break
			}
		}
	}
	m.mutex.Unlock()

	if mockResp == nil {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewBufferString("Not Found")),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	if mockResp.Delay > 0 {
		t := time.NewTimer(mockResp.Delay)
		select {
		case <-t.C:
		case <-req.Context().Done():
			t.Stop()
			return nil, req.Context().Err()
		}
	}
	if mockResp.Error != nil {
		return nil, mockResp.Error
	}

	body := mockResp.Body
	if mockResp.BodyFunc != nil {
		body = mockResp.BodyFunc(req)
	}
	return &http.Response{
		StatusCode:    mockResp.StatusCode,
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		Header:        mockResp.Headers.Clone(),
		ContentLength: int64(len(body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}, nil
}
