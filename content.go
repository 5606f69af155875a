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

// content.go locates the main content region of a page. The validity check
// and the default extractor both depend on it. The noise and scoring
// heuristics follow GoOse's cleaner and CalculateBestNode.

package driftnet

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noisePatterns match class/id values of elements that are typically not content
var noisePatterns = regexp.MustCompile(`(?i)` +
	`[Cc]omentario|^side$|^side_|^widget$|[_-]ads?[_-]?|^ad[s]?[ _-]|^banner|` +
	`breadcrumbs|byline|^caption$|carousel|comment|contact|cookie|consent|` +
	`facebook|figcaption|footnote|footer|header|hidden|menu|[Nn]avigation|navbar|` +
	`^nav[_-]|popup|modal|recommend|related|retweet|rss|search[_-]|share[_-]|` +
	`sidebar|social|sponsor|subscribe|subscription|^tags|teaser|timestamp|` +
	`tooltip|twitter|newsletter|signin|sign-in|paywall`)

// keepPatterns protect elements that should not be removed even when a noise
// pattern also matches
var keepPatterns = regexp.MustCompile(`(?i)\barticle\b|\bcontent\b|\bstory\b|\bpost\b|\bentry\b|\bmain\b|\bbody\b`)

// englishStopwords is a small stopword set, enough to tell prose from
// navigation labels
var englishStopwords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "also": true, "an": true,
	"and": true, "are": true, "as": true, "at": true, "be": true, "because": true,
	"been": true, "but": true, "by": true, "can": true, "could": true, "did": true,
	"do": true, "for": true, "from": true, "had": true, "has": true, "have": true,
	"he": true, "her": true, "his": true, "how": true, "i": true, "if": true,
	"in": true, "into": true, "is": true, "it": true, "its": true, "more": true,
	"most": true, "no": true, "not": true, "of": true, "on": true, "one": true,
	"or": true, "other": true, "our": true, "out": true, "said": true, "she": true,
	"so": true, "some": true, "than": true, "that": true, "the": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "to": true, "up": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "which": true, "who": true, "will": true,
	"with": true, "would": true, "you": true,
}

// stripNoise removes invisible elements, navigation regions and class/id
// flagged boilerplate
func stripNoise(doc *goquery.Document) {
	doc.Find("script, style, noscript, template, iframe, svg, nav, aside, footer").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		attrs := strings.TrimSpace(class + " " + id)
		if attrs == "" || keepPatterns.MatchString(attrs) {
			return
		}
		if noisePatterns.MatchString(class) || noisePatterns.MatchString(id) {
			s.Remove()
		}
	})
}

// mainContent returns the selection most likely to hold the page's primary
// content: article, main, [role=main], the best stopword-scored node, then body.
// doc is expected to have been through stripNoise.
func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"article", "main", "[role='main']"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	if best := bestScoredNode(doc); best != nil {
		return best
	}
	return doc.Find("body")
}

// bestScoredNode scores paragraph-like elements by stopword count and length
// and propagates the score to parent (full) and grandparent (half).
func bestScoredNode(doc *goquery.Document) *goquery.Selection {
	scores := make(map[*html.Node]int)
	nodes := make(map[*html.Node]*goquery.Selection)
	add := func(s *goquery.Selection, score int) {
		n := s.Get(0)
		scores[n] += score
		nodes[n] = s
	}

	doc.Find("p, pre, td").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		stopwords := countStopwords(text)
		if stopwords < 2 || isHighLinkDensity(s) {
			return
		}
		score := stopwords + len(text)/100

		parent := s.Parent()
		if parent.Length() == 0 {
			return
		}
		add(parent, score)
		if grand := parent.Parent(); grand.Length() > 0 {
			add(grand, score/2)
		}
	})

	var best *html.Node
	bestScore := 0
	for n, score := range scores {
		if score > bestScore {
			best, bestScore = n, score
		}
	}
	if best == nil {
		return nil
	}
	return nodes[best]
}

// isHighLinkDensity reports whether most of node's words sit inside links
func isHighLinkDensity(node *goquery.Selection) bool {
	links := node.Find("a")
	if links.Length() < 3 {
		return false
	}
	words := len(strings.Fields(node.Text()))
	if words == 0 {
		return true
	}
	linkWords := 0
	links.Each(func(_ int, a *goquery.Selection) {
		linkWords += len(strings.Fields(a.Text()))
	})
	ratio := float64(linkWords) / float64(words)
	return ratio > 0.5 || (links.Length() > 5 && ratio > 0.3)
}

func countStopwords(text string) int {
	count := 0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if englishStopwords[word] {
			count++
		}
	}
	return count
}

// normalizeWhitespace collapses runs of whitespace into a single space
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
