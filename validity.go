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
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// defaultBlockedTitleMarkers flag error, block and interstitial pages that are
// often served with status 200
var defaultBlockedTitleMarkers = []string{
	"access denied",
	"forbidden",
	"not found",
	"page unavailable",
	"service unavailable",
	"internal server error",
	"bad gateway",
	"blocked",
	"captcha",
	"just a moment",
	"attention required",
	"are you a robot",
	"are you human",
	"verify you are human",
	"unusual traffic",
	"security check",
	"enable javascript",
	"too many requests",
}

// leadingErrorTitle matches titles that open with an error code or word
// standing on its own, like "Error", "404 - Page", "404 Not Found" or
// "Oops! Something went wrong". Headlines such as "Error handling in Go" or
// "404 new flats approved" do not match.
var leadingErrorTitle = regexp.MustCompile(`(?i)^\s*(?:` +
	`(?:error|oops)(?:\s*$|\s*[-|:!.,\x{2013}\x{2014}]|\s+[45]\d\d\b)|` +
	`[45]\d\d(?:\s*$|\s*[-|:!.,\x{2013}\x{2014}]|\s+(?:not found|page|error|forbidden|unauthori[sz]ed|gone|bad|internal|server|service)\b))`)

// ValidityChecker rejects bodies that fetched fine but are not real content
type ValidityChecker struct {
	minChars int
	markers  []string
}

// NewValidityChecker builds a checker from cfg. Extra markers are added to the
// built-in list.
func NewValidityChecker(cfg ValidityConfig) *ValidityChecker {
	markers := make([]string, 0, len(defaultBlockedTitleMarkers)+len(cfg.BlockedTitleMarkers))
	markers = append(markers, defaultBlockedTitleMarkers...)
	for _, m := range cfg.BlockedTitleMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	return &ValidityChecker{minChars: cfg.MinContentChars, markers: markers}
}

// Check returns an empty reason for valid content. Otherwise the reason says
// why the body was rejected.
//
// Sitemaps and feeds are accepted as is. Any other body is rejected when its
// title carries a block/error marker, or when the main content region is
// shorter than the minimum and no single paragraph reaches it either.
func (v *ValidityChecker) Check(body []byte) (reason string) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "empty body"
	}
	if _, ok := parseFeed(body); ok {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("unparsable body: %v", err)
	}

	title := strings.ToLower(normalizeWhitespace(doc.Find("title").First().Text()))
	if title != "" {
		if leadingErrorTitle.MatchString(title) {
			return fmt.Sprintf("error title %q", title)
		}
		for _, marker := range v.markers {
			if strings.Contains(title, marker) {
				return fmt.Sprintf("blocked title %q", title)
			}
		}
	}

	stripNoise(doc)
	text := normalizeWhitespace(mainContent(doc).Text())
	if utf8.RuneCountInString(text) >= v.minChars {
		return ""
	}
	if v.hasLongParagraph(doc) {
		return ""
	}
	return fmt.Sprintf("main content too short (%d chars)", utf8.RuneCountInString(text))
}

// Valid is Check as a boolean
func (v *ValidityChecker) Valid(body []byte) bool {
	return v.Check(body) == ""
}

func (v *ValidityChecker) hasLongParagraph(doc *goquery.Document) bool {
	found := false
	doc.Find("p, pre, blockquote").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if utf8.RuneCountInString(normalizeWhitespace(s.Text())) >= v.minChars {
			found = true
			return false
		}
		return true
	})
	return found
}
