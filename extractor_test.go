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
	"errors"
	"strings"
	"testing"
)

func TestDocumentExtractor(t *testing.T) {
	body := `<!DOCTYPE html><html lang="en-GB"><head><title>Fallback title</title>
<meta property="og:title" content="  Budget   approved ">
<meta property="og:description" content="The council voted.">
<meta name="author" content="City Desk">
<meta property="og:image" content="https://example.com/a.jpg">
</head><body>
<nav><a href="/">Home</a></nav>
<article><h1>Budget approved</h1><time datetime="2024-05-01T10:00:00Z">May 1</time>
<p>` + testFiller + `</p><script>track()</script></article>
<footer>Copyright</footer></body></html>`

	u := Canonicalize("https://example.com/news/budget-approved")
	record, err := DocumentExtractor{}.Extract([]byte(body), u)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	doc := record.(*Document)
	if doc.URL != u.URL || doc.Title != "Budget approved" || doc.Description != "The council voted." {
		t.Errorf("metadata = %+v", doc)
	}
	if doc.Author != "City Desk" || doc.Published != "2024-05-01T10:00:00Z" || doc.Language != "en-GB" {
		t.Errorf("metadata = %+v", doc)
	}
	if doc.Image != "https://example.com/a.jpg" {
		t.Errorf("Image = %q", doc.Image)
	}
	if !strings.Contains(doc.Text, "Members debated the proposal") {
		t.Errorf("Text = %q", doc.Text)
	}
	for _, noise := range []string{"track()", "Copyright", "Home"} {
		if strings.Contains(doc.Text, noise) {
			t.Errorf("Text should not contain %q: %q", noise, doc.Text)
		}
	}

	short, _ := DocumentExtractor{MaxTextChars: 20}.Extract([]byte(body), u)
	if n := len([]rune(short.(*Document).Text)); n != 20 {
		t.Errorf("truncated text has %d runes", n)
	}
}

func TestDocumentExtractorNoContent(t *testing.T) {
	_, err := DocumentExtractor{}.Extract([]byte(`<html><body><nav><a href="/">x</a></nav></body></html>`), Canonicalize("https://example.com/x"))
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Extract() error = %v, want ErrNoContent", err)
	}
}

func TestExtractorFunc(t *testing.T) {
	var e Extractor = ExtractorFunc(func(body []byte, u CanonicalURL) (any, error) {
		return len(body), nil
	})
	got, err := e.Extract([]byte("abc"), CanonicalURL{})
	if err != nil || got.(int) != 3 {
		t.Errorf("Extract() = %v, %v", got, err)
	}
}
