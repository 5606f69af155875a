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
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentberlin/driftnet/internal/framework"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
)

var (
	// dateSegment matches /YYYY/MM/ and /YYYY/MM/DD/ paths
	dateSegment = regexp.MustCompile(`/(19|20)\d{2}/(0?[1-9]|1[0-2])/((0?[1-9]|[12]\d|3[01])/)?`)
	// numericID matches a trailing content id: /12345, -12345, 12345.html
	numericID = regexp.MustCompile(`(^|[-_./])\d{4,}(\.[a-z]{2,5})?$`)
	// yearOnly is an archive segment, not an id
	yearOnly = regexp.MustCompile(`^(19|20)\d{2}$`)
	// pageExtension is stripped before slug analysis
	pageExtension = regexp.MustCompile(`\.(html?|php|aspx?|jsp|shtml)$`)
)

// navigationSegments disqualify a URL when any path segment equals one of them
var navigationSegments = map[string]bool{
	"tag": true, "tags": true, "category": true, "categories": true,
	"author": true, "authors": true, "login": true, "signin": true,
	"sign-in": true, "signup": true, "sign-up": true, "register": true,
	"account": true, "subscribe": true, "feed": true, "rss": true,
}

// paginationParams are query keys that address a listing page, not an item
var paginationParams = map[string]bool{
	"page": true, "p": true, "pg": true, "offset": true, "start": true, "paged": true,
}

// socialDomains are registrable domains whose links are share buttons or
// profile links, never items of the crawled site
var socialDomains = map[string]bool{
	"facebook.com": true, "twitter.com": true, "x.com": true, "linkedin.com": true,
	"pinterest.com": true, "reddit.com": true, "whatsapp.com": true, "t.me": true,
	"telegram.me": true, "instagram.com": true, "tiktok.com": true, "youtube.com": true,
}

// sharePaths are share endpoints regardless of host
var sharePaths = []string{"/share", "/sharer", "/intent/tweet", "/intent/post"}

// binaryExtensions point at assets rather than pages
var binaryExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
	".ico": true, ".bmp": true, ".avif": true, ".mp4": true, ".webm": true, ".mov": true,
	".avi": true, ".mkv": true, ".mp3": true, ".wav": true, ".ogg": true, ".m4a": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true,
	".pptx": true, ".zip": true, ".gz": true, ".tar": true, ".rar": true, ".7z": true,
	".exe": true, ".dmg": true, ".apk": true, ".woff": true, ".woff2": true, ".ttf": true,
	".eot": true, ".js": true, ".css": true, ".json": true, ".xml": true,
}

// Classifier decides which links of a page are content items. The heuristics
// are generic; site profiles and the include/exclude lists are the only
// per-site input.
type Classifier struct {
	minSlugWords    int
	minPathSegments int
	skipBoilerplate bool
	allowOffsite    bool
	include         []*regexp.Regexp
	exclude         []*regexp.Regexp
	profiles        *ProfileRegistry
}

// NewClassifier compiles the classifier configuration. profiles may be nil.
func NewClassifier(cfg ClassifierConfig, profiles *ProfileRegistry) (*Classifier, error) {
	include, err := compilePatterns(cfg.Include)
	if err != nil {
		return nil, fmt.Errorf("%w: classifier include: %v", ErrInvalidConfig, err)
	}
	exclude, err := compilePatterns(cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("%w: classifier exclude: %v", ErrInvalidConfig, err)
	}
	return &Classifier{
		minSlugWords:    cfg.MinSlugWords,
		minPathSegments: cfg.MinPathSegments,
		skipBoilerplate: cfg.SkipBoilerplateLinks,
		allowOffsite:    cfg.AllowOffsite,
		include:         include,
		exclude:         exclude,
		profiles:        profiles,
	}, nil
}

// Candidate is a link the classifier accepted as a content item
type Candidate struct {
	// RawURL is the absolute URL as it appeared on the page
	RawURL string
	URL    CanonicalURL
}

// ExtractCandidateLinks returns the content-item links of body in document
// order, canonicalized and without duplicates.
func (c *Classifier) ExtractCandidateLinks(body []byte, baseURL string) []CanonicalURL {
	candidates := c.ExtractCandidates(body, baseURL)
	out := make([]CanonicalURL, len(candidates))
	for i, cand := range candidates {
		out[i] = cand.URL
	}
	return out
}

// ExtractCandidates is ExtractCandidateLinks keeping the raw URLs
func (c *Classifier) ExtractCandidates(body []byte, baseURL string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	base := baseURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if abs, ok := absoluteURL(baseURL, href); ok {
			base = abs
		}
	}
	page := Canonicalize(baseURL)
	profile, _ := c.profiles.Lookup(page.Host())

	var hrefs []string
	if profile != nil && profile.ItemXPath != "" {
		hrefs = itemXPathLinks(body, profile.ItemXPath)
	} else {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			if c.skipBoilerplate && linkPosition(s).Boilerplate() {
				return
			}
			href, _ := s.Attr("href")
			hrefs = append(hrefs, href)
		})
	}

	out := c.filter(page, base, hrefs, c.IsContentItem)
	if hasSingleItemSignal(doc) && !c.rejected(page) {
		out = append([]Candidate{{RawURL: baseURL, URL: page}}, out...)
	}
	return out
}

// FilterLinks classifies links that were collected elsewhere, for example by
// a Renderer from the live DOM. Relative links are resolved against pageURL.
func (c *Classifier) FilterLinks(pageURL string, hrefs []string) []Candidate {
	return c.filter(Canonicalize(pageURL), pageURL, hrefs, c.IsContentItem)
}

// FilterFeedLinks keeps the entries of a sitemap or feed. The site lists them
// as items itself, so only the negative signals apply.
func (c *Classifier) FilterFeedLinks(feedURL string, hrefs []string) []Candidate {
	return c.filter(Canonicalize(feedURL), feedURL, hrefs, func(u CanonicalURL) bool {
		return !c.rejected(u)
	})
}

func (c *Classifier) filter(page CanonicalURL, base string, hrefs []string, accept func(CanonicalURL) bool) []Candidate {
	pageSite := registrableDomain(page.Host())
	seen := map[string]bool{page.Fingerprint: true}
	var out []Candidate
	for _, href := range hrefs {
		abs, ok := absoluteURL(base, href)
		if !ok {
			continue
		}
		u := Canonicalize(abs)
		if seen[u.Fingerprint] {
			continue
		}
		seen[u.Fingerprint] = true
		if !c.allowOffsite && pageSite != "" && registrableDomain(u.Host()) != pageSite {
			continue
		}
		if accept(u) {
			out = append(out, Candidate{RawURL: abs, URL: u})
		}
	}
	return out
}

// IsContentItem applies the positive signals, then the negative ones. A site
// profile's Classify func overrides both when it returns a verdict.
func (c *Classifier) IsContentItem(u CanonicalURL) bool {
	parsed := u.Parsed()
	if parsed == nil {
		return false
	}
	profile, _ := c.profiles.Lookup(parsed.Hostname())
	if profile != nil && profile.Classify != nil {
		switch profile.Classify(u) {
		case Accept:
			return true
		case Reject:
			return false
		}
	}
	if !c.positive(u.URL, parsed, profile) {
		return false
	}
	return !c.negative(u.URL, parsed, profile)
}

// rejected reports whether any negative signal applies to u
func (c *Classifier) rejected(u CanonicalURL) bool {
	parsed := u.Parsed()
	if parsed == nil {
		return true
	}
	profile, _ := c.profiles.Lookup(parsed.Hostname())
	return c.negative(u.URL, parsed, profile)
}

func (c *Classifier) positive(raw string, u *url.URL, profile *SiteProfile) bool {
	if matchAny(c.include, raw) || (profile != nil && matchAny(profile.Include, raw)) {
		return true
	}
	p := strings.ToLower(u.EscapedPath())
	if dateSegment.MatchString(p + "/") {
		return true
	}
	last := lastSegment(p)
	if numericID.MatchString(last) && !yearOnly.MatchString(last) {
		return true
	}
	return slugWords(pageExtension.ReplaceAllString(last, "")) >= c.minSlugWords
}

func (c *Classifier) negative(raw string, u *url.URL, profile *SiteProfile) bool {
	if matchAny(c.exclude, raw) || (profile != nil && matchAny(profile.Exclude, raw)) {
		return true
	}

	p := strings.ToLower(u.EscapedPath())
	segments := pathSegments(p)
	if len(segments) < c.minPathSegments {
		return true
	}
	for _, seg := range segments {
		if navigationSegments[seg] || strings.HasPrefix(seg, "search") {
			return true
		}
	}
	for _, sp := range sharePaths {
		if p == sp || strings.HasPrefix(p, sp+"/") || strings.HasPrefix(p, sp+".") {
			return true
		}
	}
	if socialDomains[registrableDomain(u.Hostname())] || framework.IsInternalPath(p) {
		return true
	}
	for key := range u.Query() {
		if paginationParams[strings.ToLower(key)] {
			return true
		}
	}
	return binaryExtensions[path.Ext(lastSegment(p))]
}

// hasSingleItemSignal reports whether the page itself looks like one item
// rather than a listing: og:type=article, or exactly one h1 inside the only
// article element.
func hasSingleItemSignal(doc *goquery.Document) bool {
	if og, ok := doc.Find(`meta[property="og:type"]`).Attr("content"); ok &&
		strings.EqualFold(strings.TrimSpace(og), "article") {
		return true
	}
	articles := doc.Find("article")
	return doc.Find("h1").Length() == 1 && articles.Length() == 1 && articles.Find("h1").Length() == 1
}

// itemXPathLinks collects hrefs from the nodes selected by expr, including
// the selected node itself when it is a link
func itemXPathLinks(body []byte, expr string) []string {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil
	}
	var hrefs []string
	for _, n := range nodes {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := htmlquery.SelectAttr(n, "href"); href != "" {
				hrefs = append(hrefs, href)
			}
			continue
		}
		for _, a := range htmlquery.Find(n, ".//a[@href]") {
			hrefs = append(hrefs, htmlquery.SelectAttr(a, "href"))
		}
	}
	return hrefs
}

func registrableDomain(host string) string {
	if host == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func pathSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func lastSegment(p string) string {
	segs := pathSegments(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// slugWords counts the hyphen-separated words of a slug that contain a letter
func slugWords(seg string) int {
	n := 0
	for _, w := range strings.Split(seg, "-") {
		if strings.IndexFunc(w, func(r rune) bool { return r >= 'a' && r <= 'z' }) >= 0 {
			n++
		}
	}
	return n
}
