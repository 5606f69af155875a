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
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func roundTrip(t *testing.T, mock *MockTransport, url string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := mock.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestMockTransport_RegisterHTML(t *testing.T) {
	mock := NewMockTransport()
	url := "https://example.com/"
	html := `<html><head><title>Test Page</title></head><body>Content</body></html>`
	mock.RegisterHTML(url, html)

	resp, body := roundTrip(t, mock, url)
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected Content-Type to contain 'text/html', got '%s'", ct)
	}
	if body != html {
		t.Errorf("Expected body '%s', got '%s'", html, body)
	}
}

func TestMockTransport_RegisterXML(t *testing.T) {
	mock := NewMockTransport()
	url := "https://example.com/sitemap.xml"
	mock.RegisterXML(url, testSitemap)

	resp, body := roundTrip(t, mock, url)
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "xml") {
		t.Errorf("Expected an XML Content-Type, got '%s'", ct)
	}
	if body != testSitemap {
		t.Errorf("Expected the sitemap body, got '%s'", body)
	}
}

func TestMockTransport_Unregistered(t *testing.T) {
	mock := NewMockTransport()
	resp, _ := roundTrip(t, mock, "https://example.com/nothing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
	if mock.Requests("https://example.com/nothing") != 1 {
		t.Error("Expected the unregistered request to be counted")
	}
}

func TestMockTransport_RegisterSequence(t *testing.T) {
	mock := NewMockTransport()
	url := "https://example.com/flaky"
	mock.RegisterSequence(url,
		&MockResponse{StatusCode: http.StatusServiceUnavailable},
		&MockResponse{Body: "ok"},
	)

	want := []int{503, 200, 200}
	for i, status := range want {
		resp, _ := roundTrip(t, mock, url)
		if resp.StatusCode != status {
			t.Errorf("Request %d: expected status %d, got %d", i+1, status, resp.StatusCode)
		}
	}
	if mock.TotalRequests() != 3 {
		t.Errorf("Expected 3 requests, got %d", mock.TotalRequests())
	}
}

func TestMockTransport_RegisterPattern(t *testing.T) {
	mock := NewMockTransport()
	if err := mock.RegisterPattern(`/news/story-\d+$`, &MockResponse{Body: "story"}); err != nil {
		t.Fatal(err)
	}
	mock.RegisterHTML("https://example.com/news/story-7", "exact")

	if _, body := roundTrip(t, mock, "https://example.com/news/story-3"); body != "story" {
		t.Errorf("Expected the pattern response, got '%s'", body)
	}
	if _, body := roundTrip(t, mock, "https://example.com/news/story-7"); body != "exact" {
		t.Errorf("Expected the exact registration to win, got '%s'", body)
	}
	if err := mock.RegisterPattern(`(`, &MockResponse{}); err == nil {
		t.Error("Expected an invalid pattern to be rejected")
	}
}

func TestMockTransport_BodyFunc(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterResponse("https://example.com/echo?q=go", &MockResponse{
		BodyFunc: func(req *http.Request) string { return req.URL.Query().Get("q") },
	})
	if _, body := roundTrip(t, mock, "https://example.com/echo?q=go"); body != "go" {
		t.Errorf("Expected 'go', got '%s'", body)
	}
}

func TestMockTransport_RegisterError(t *testing.T) {
	mock := NewMockTransport()
	url := "https://example.com/error"
	expectedErr := errors.New("network timeout")
	mock.RegisterError(url, expectedErr)

	req, _ := http.NewRequest("GET", url, nil)
	if _, err := mock.RoundTrip(req); !errors.Is(err, expectedErr) {
		t.Errorf("Expected error '%v', got '%v'", expectedErr, err)
	}
}

func TestMockTransport_DelayHonoursContext(t *testing.T) {
	mock := NewMockTransport()
	url := "https://example.com/slow"
	mock.RegisterResponse(url, &MockResponse{Body: "late", Delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)

	start := time.Now()
	if _, err := mock.RoundTrip(req); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected the delay to be cut short, took %v", elapsed)
	}
}
