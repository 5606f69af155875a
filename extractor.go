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
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kennygrant/sanitize"
)

// Extractor turns a fetched body into a domain record. The engine knows
// nothing about the record; callers register one extractor per content
// family.
type Extractor interface {
	Extract(body []byte, u CanonicalURL) (any, error)
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(body []byte, u CanonicalURL) (any, error)

// Extract implements Extractor
func (f ExtractorFunc) Extract(body []byte, u CanonicalURL) (any, error) {
	return f(body, u)
}

// ErrNoContent is returned by DocumentExtractor for pages without main text
var ErrNoContent = errors.New("page has no main content")

// Document is the generic record produced by DocumentExtractor
type Document struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Published   string `json:"published,omitempty"`
	Image       string `json:"image,omitempty"`
	Language    string `json:"language,omitempty"`
	Text        string `json:"text"`
}

// DocumentExtractor reads the common metadata (Open Graph, article meta
// tags) and the main-content text of a page. It is the default extractor of
// the command line tool; real deployments plug in site-aware extractors.
type DocumentExtractor struct {
	// MaxTextChars truncates Text. 0 keeps everything.
	MaxTextChars int
}

// Extract implements Extractor
func (e DocumentExtractor) Extract(body []byte, u CanonicalURL) (any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	d := &Document{
		URL:         u.URL,
		Title:       firstNonEmpty(metaContent(doc, "og:title"), doc.Find("title").First().Text(), doc.Find("h1").First().Text()),
		Description: firstNonEmpty(metaContent(doc, "og:description"), metaContent(doc, "description")),
		Author:      firstNonEmpty(metaContent(doc, "author"), metaContent(doc, "article:author")),
		Published:   firstNonEmpty(metaContent(doc, "article:published_time"), timeAttr(doc)),
		Image:       metaContent(doc, "og:image"),
	}
	if lang, ok := doc.Find("html").Attr("lang"); ok {
		d.Language = strings.TrimSpace(lang)
	}

	stripNoise(doc)
	main, err := mainContent(doc).Html()
	if err != nil {
		return nil, err
	}
	d.Text = normalizeWhitespace(sanitize.HTML(main))
	if d.Text == "" {
		return nil, ErrNoContent
	}
	if e.MaxTextChars > 0 {
		if r := []rune(d.Text); len(r) > e.MaxTextChars {
			d.Text = string(r[:e.MaxTextChars])
		}
	}
	return d, nil
}

// metaContent reads <meta property=name> or <meta name=name>
func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[property="` + name + `"], meta[name="` + name + `"]`).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func timeAttr(doc *goquery.Document) string {
	dt, _ := doc.Find("article time[datetime], time[datetime]").First().Attr("datetime")
	return strings.TrimSpace(dt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = normalizeWhitespace(v); v != "" {
			return v
		}
	}
	return ""
}
