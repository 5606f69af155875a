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
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentberlin/driftnet/internal/framework"
	"github.com/antchfx/xmlquery"
)

// maxChildSitemaps bounds how many sitemaps of a sitemap index are fetched
const maxChildSitemaps = 50

// maxFeedCandidates bounds how many advertised or well-known feeds are tried for
// a listing page that yields no items
const maxFeedCandidates = 4

// feedKind is the type of an XML seed document
type feedKind string

const (
	feedSitemap      feedKind = "sitemap"
	feedSitemapIndex feedKind = "sitemapindex"
	feedRSS          feedKind = "rss"
	feedAtom         feedKind = "atom"
)

// feedDocument is a parsed sitemap, sitemap index, RSS or Atom seed
type feedDocument struct {
	Kind feedKind
	// Links are item URLs in document order
	Links []string
	// Children are the sitemaps listed by a sitemap index
	Children []string
}

// parseFeed recognizes XML seed documents. ok is false for anything else,
// HTML in particular.
func parseFeed(body []byte) (feedDocument, bool) {
	if !looksLikeXML(body) {
		return feedDocument{}, false
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return feedDocument{}, false
	}

	texts := func(expr string) []string {
		var out []string
		for _, n := range xmlquery.Find(doc, expr) {
			if s := strings.TrimSpace(n.InnerText()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	switch {
	case xmlquery.FindOne(doc, "/*[local-name()='urlset']") != nil:
		return feedDocument{Kind: feedSitemap, Links: texts("//*[local-name()='url']/*[local-name()='loc']")}, true
	case xmlquery.FindOne(doc, "/*[local-name()='sitemapindex']") != nil:
		return feedDocument{Kind: feedSitemapIndex, Children: texts("//*[local-name()='sitemap']/*[local-name()='loc']")}, true
	case xmlquery.FindOne(doc, "/rss") != nil:
		links := texts("//item/link")
		if len(links) == 0 {
			links = texts("//item/guid[not(@isPermaLink='false')]")
		}
		return feedDocument{Kind: feedRSS, Links: links}, true
	case xmlquery.FindOne(doc, "/*[local-name()='feed']") != nil:
		var links []string
		for _, entry := range xmlquery.Find(doc, "//*[local-name()='entry']") {
			for _, l := range xmlquery.Find(entry, "*[local-name()='link']") {
				rel := l.SelectAttr("rel")
				if href := strings.TrimSpace(l.SelectAttr("href")); href != "" && (rel == "" || rel == "alternate") {
					links = append(links, href)
					break
				}
			}
		}
		return feedDocument{Kind: feedAtom, Links: links}, true
	}
	return feedDocument{}, false
}

// looksLikeXML checks the start of body for an XML declaration or one of the
// feed root elements
func looksLikeXML(body []byte) bool {
	head := bytes.TrimLeft(body, "\ufeff \t\r\n")
	if len(head) > 512 {
		head = head[:512]
	}
	lower := strings.ToLower(string(head))
	for _, prefix := range []string{"<?xml", "<urlset", "<sitemapindex", "<rss", "<feed"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// expandSitemapIndex fetches the children of a sitemap index through the
// resolver and collects their item links. Children that fail are skipped.
func expandSitemapIndex(ctx context.Context, r *Resolver, feed feedDocument) []string {
	var links []string
	for i, child := range feed.Children {
		if i >= maxChildSitemaps || ctx.Err() != nil {
			break
		}
		res := r.Resolve(ctx, Canonicalize(child), child)
		if !res.Success {
			r.logger.Debug("child sitemap failed", "url", child, "error", res.Err)
			continue
		}
		sub, ok := parseFeed(res.Body)
		if !ok || sub.Kind != feedSitemap {
			continue
		}
		links = append(links, sub.Links...)
	}
	return links
}

// feedLinks reads the feeds a page advertises with <link rel="alternate">,
// then appends the default feed locations of the detected platform. All
// returned URLs are absolute.
func feedLinks(doc *goquery.Document, pageURL string, platform framework.Framework) []string {
	var out []string
	seen := map[string]bool{}
	add := func(href string) {
		abs, ok := absoluteURL(pageURL, href)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, abs)
	}

	if doc != nil {
		doc.Find(`link[rel~="alternate"][href]`).Each(func(_ int, s *goquery.Selection) {
			typ, _ := s.Attr("type")
			typ = strings.ToLower(typ)
			if strings.Contains(typ, "rss") || strings.Contains(typ, "atom") {
				href, _ := s.Attr("href")
				add(strings.TrimSpace(href))
			}
		})
	}

	page, err := url.Parse(pageURL)
	if err != nil || page.Host == "" {
		return out
	}
	origin := page.Scheme + "://" + page.Host
	for _, p := range framework.FeedPaths(platform) {
		add(origin + p)
	}
	return out
}

// firstLiveFeed resolves the candidate feeds in order and returns the first one
// whose body is a sitemap, sitemap index, RSS or Atom document with entries
func firstLiveFeed(ctx context.Context, r *Resolver, candidates []string) (string, FetchResult, bool) {
	for i, candidate := range candidates {
		if i >= maxFeedCandidates || ctx.Err() != nil {
			break
		}
		res := r.Resolve(ctx, Canonicalize(candidate), candidate)
		if !res.Success {
			continue
		}
		if feed, ok := parseFeed(res.Body); ok && len(feed.Links)+len(feed.Children) > 0 {
			return candidate, res, true
		}
	}
	return "", FetchResult{}, false
}
