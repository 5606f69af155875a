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

// Package testutil provides a synthetic news site for driftnet tests and
// manual runs. It serves a numbered listing, a load-more listing, an empty
// client-rendered shell, a sitemap, an RSS feed, a soft-block page and the
// articles they all link to.
package testutil

import (
	"compress/gzip"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
)

// Site layout
const (
	// ArticlesPerPage is the number of items on each listing page
	ArticlesPerPage = 4
	// ListingPages is the number of pages of /news
	ListingPages = 3
)

// Filler is paragraph text long enough to pass the soft-block check
const Filler = "The council met on Tuesday evening to discuss the new budget. " +
	"Members debated the proposal for several hours before voting on the final text. " +
	"Residents who attended the meeting asked questions about road repairs and parks."

var topics = []string{
	"city-council-approves-budget",
	"river-park-opens-to-public",
	"local-team-wins-championship",
	"new-library-branch-announced",
	"school-board-elects-chair",
	"bridge-repairs-start-monday",
	"farmers-market-returns-downtown",
	"museum-unveils-winter-exhibit",
	"transit-fares-stay-flat",
	"storm-cleanup-nears-completion",
	"hospital-adds-night-clinic",
	"festival-draws-record-crowd",
}

// Slugs returns the article slugs in listing order
func Slugs() []string {
	return append([]string{}, topics[:ArticlesPerPage*ListingPages]...)
}

// ArticlePath returns the path of the i-th article
func ArticlePath(i int) string {
	return "/news/" + topics[i]
}

// Site is a running fixture site
type Site struct {
	*httptest.Server
	hits atomic.Int64
}

// Hits returns the number of requests served
func (s *Site) Hits() int64 {
	return s.hits.Load()
}

// NewSite starts the fixture site on a local port
func NewSite() *Site {
	s := &Site{}
	s.Server = httptest.NewServer(s.counted(NewHandler()))
	return s
}

func (s *Site) counted(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		h.ServeHTTP(w, r)
	})
}

// NewHandler returns the fixture site's handler, for use with any server
func NewHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		if page > ListingPages {
			http.NotFound(w, r)
			return
		}
		writeHTML(w, listingPage("Latest news", page, true))
	})

	mux.HandleFunc("/stories", func(w http.ResponseWriter, r *http.Request) {
		// first batch only, the rest arrives through the load-more control
		writeHTML(w, listingPage("Stories", 1, false)+
			`<button class="load-more" data-next="/stories?offset=4">Load more</button>`)
	})

	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<!DOCTYPE html><html><head><title>News</title>
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
<script src="/static/js/main.js"></script></head>
<body><div id="root"></div></body></html>`)
	})

	mux.HandleFunc("/news/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimPrefix(r.URL.Path, "/news/")
		for _, t := range topics {
			if t == slug {
				writeHTML(w, articlePage(slug))
				return
			}
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
		b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
		for i := range Slugs() {
			fmt.Fprintf(&b, "<url><loc>http://%s%s</loc></url>", r.Host, ArticlePath(i))
		}
		b.WriteString("</urlset>")
		w.Write([]byte(b.String()))
	})

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>News</title>`)
		for i := range ArticlesPerPage {
			fmt.Fprintf(&b, "<item><title>%s</title><link>http://%s%s</link></item>", topics[i], r.Host, ArticlePath(i))
		}
		b.WriteString("</channel></rss>")
		w.Write([]byte(b.String()))
	})

	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<html><head><title>Access Denied</title></head><body>Please enable JavaScript.</body></html>`)
	})

	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gz.Write([]byte(articlePage(topics[0])))
	})

	mux.HandleFunc("/flaky", func() http.HandlerFunc {
		var calls atomic.Int64
		return func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeHTML(w, articlePage(topics[1]))
		}
	}())

	mux.Handle("/redirect", http.RedirectHandler("/news", http.StatusMovedPermanently))

	return mux
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

func listingPage(title string, page int, numbered bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html><html><head><title>%s</title></head><body>
<header><nav><a href="/">Home</a> <a href="/news">News</a> <a href="/about">About</a></nav></header>
<main><h1>%s</h1><p>%s</p><ul class="stories">`, title, title, Filler)
	start := (page - 1) * ArticlesPerPage
	for i := start; i < start+ArticlesPerPage; i++ {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, ArticlePath(i), topics[i])
	}
	b.WriteString("</ul>")
	if numbered {
		b.WriteString(`<nav class="pagination">`)
		for p := 1; p <= ListingPages; p++ {
			if p == page {
				fmt.Fprintf(&b, `<span class="current">%d</span>`, p)
				continue
			}
			fmt.Fprintf(&b, `<a href="/news?page=%d">%d</a>`, p, p)
		}
		if page < ListingPages {
			fmt.Fprintf(&b, `<a rel="next" href="/news?page=%d">Next</a>`, page+1)
		}
		b.WriteString("</nav>")
	}
	b.WriteString(`</main><footer><a href="/privacy">Privacy</a></footer></body></html>`)
	return b.String()
}

func articlePage(slug string) string {
	title := strings.ReplaceAll(slug, "-", " ")
	return fmt.Sprintf(`<!DOCTYPE html><html lang="en"><head><title>%s</title>
<meta property="og:type" content="article">
<meta property="og:title" content="%s">
<meta name="description" content="About %s">
<meta name="author" content="City Desk">
<meta property="article:published_time" content="2025-03-14T09:00:00Z">
</head><body><article><h1>%s</h1><p>%s</p><p>%s</p></article></body></html>`,
		title, title, title, title, Filler, Filler)
}
