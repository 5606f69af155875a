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
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// staticSource is a single page (NONE), or the entries of a feed seed
type staticSource struct {
	pageURL string
	body    []byte
	feed    []string
}

func (s *staticSource) Enumerate(context.Context) (Visible, error) {
	if s.feed != nil {
		return Visible{PageURL: s.pageURL, Links: s.feed, Feed: true}, nil
	}
	return Visible{PageURL: s.pageURL, Body: s.body}, nil
}

func (s *staticSource) Advance(context.Context) (bool, error) {
	return false, nil
}

// numberedSource follows next-page links, fetching each page through the
// Resolver
type numberedSource struct {
	resolver *Resolver
	pageURL  string
	body     []byte
	page     int
	visited  map[string]bool
}

func newNumberedSource(resolver *Resolver, pageURL string, body []byte) *numberedSource {
	return &numberedSource{
		resolver: resolver,
		pageURL:  pageURL,
		body:     body,
		page:     1,
		visited:  map[string]bool{Canonicalize(pageURL).Fingerprint: true},
	}
}

func (s *numberedSource) Enumerate(context.Context) (Visible, error) {
	return Visible{PageURL: s.pageURL, Body: s.body}, nil
}

func (s *numberedSource) Advance(ctx context.Context) (bool, error) {
	next, ok := nextPageURL(s.body, s.pageURL, s.page)
	if !ok {
		return false, nil
	}
	u := Canonicalize(next)
	if s.visited[u.Fingerprint] {
		return false, nil
	}
	s.visited[u.Fingerprint] = true

	res := s.resolver.Resolve(ctx, u, next)
	if !res.Success {
		return false, res.Err
	}
	s.pageURL, s.body = next, res.Body
	s.page++
	return true, nil
}

var nextLabels = map[string]bool{
	"next": true, "next page": true, "next ›": true, "next »": true, "next >": true,
	"›": true, "»": true, ">": true, "older": true, "older posts": true, "older entries": true,
}

// nextPageURL finds the link to the page after page: rel=next first, then a
// "next" labelled link, then a pager link labelled page+1
func nextPageURL(body []byte, pageURL string, page int) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	resolve := func(href string) (string, bool) {
		u, ok := ResolveLink(pageURL, href)
		if !ok {
			return "", false
		}
		return u.URL, true
	}

	if href, ok := doc.Find(`link[rel="next"], a[rel="next"]`).First().Attr("href"); ok {
		if u, ok := resolve(href); ok {
			return u, true
		}
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := strings.ToLower(normalizeWhitespace(a.Text()))
		aria, _ := a.Attr("aria-label")
		if nextLabels[label] || strings.Contains(strings.ToLower(aria), "next page") {
			href, _ := a.Attr("href")
			if u, ok := resolve(href); ok {
				found = u
				return false
			}
		}
		return true
	})
	if found != "" {
		return found, true
	}

	want := strconv.Itoa(page + 1)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != want || linkPosition(a) != PositionPagination {
			return true
		}
		href, _ := a.Attr("href")
		if u, ok := resolve(href); ok {
			found = u
			return false
		}
		return true
	})
	return found, found != ""
}

// liveSource is the shared part of the browser-driven mechanisms. The first
// Enumerate renders the listing; later ones read the live DOM.
type liveSource struct {
	renderer Renderer
	pageURL  string
	settle   time.Duration
	rendered bool
}

func (s *liveSource) Enumerate(ctx context.Context) (Visible, error) {
	if !s.rendered {
		if _, err := s.renderer.Render(ctx, s.pageURL, s.settle); err != nil {
			return Visible{}, err
		}
		s.rendered = true
	}
	links, err := s.renderer.EnumerateVisibleItems(ctx)
	if err != nil {
		return Visible{}, err
	}
	return Visible{PageURL: s.pageURL, Links: links}, nil
}

// loadMoreSource clicks the load-more control until it disappears
type loadMoreSource struct {
	liveSource
	selector string
}

func (s *loadMoreSource) Advance(ctx context.Context) (bool, error) {
	return s.renderer.ClickControl(ctx, s.selector)
}

// scrollSource scrolls to the bottom each round. It never runs out on its
// own; the stability counter ends it.
type scrollSource struct {
	liveSource
}

func (s *scrollSource) Advance(ctx context.Context) (bool, error) {
	if err := s.renderer.Scroll(ctx, ScrollDown); err != nil {
		return false, err
	}
	return true, nil
}
