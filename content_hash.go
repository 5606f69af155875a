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
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

// Patterns of text that changes between two fetches of the same item
var (
	timestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`), // ISO8601/RFC3339
		regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}(?::\d{2})? (?:AM|PM)`),
		regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}(?:\s+\d{1,2}:\d{2})?`),
	}

	relativeTimePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d+\s+(?:second|minute|hour|day|week|month|year)s?\s+ago`),
		regexp.MustCompile(`(?i)(?:just\s+now|moments?\s+ago|updated\s+today)`),
	}

	// counters and view numbers that tick between fetches
	counterPattern = regexp.MustCompile(`(?i)\d[\d,.]*\s*(?:views|comments|shares|likes|reads)`)
)

// ContentHasher derives a fingerprint of what a page says, independent of
// the URL it was served under and of the chrome around it. Two item URLs with
// equal content hashes are one item.
type ContentHasher struct {
	algorithm       string
	excludeTags     []string
	stripTimestamps bool
}

// NewContentHasher creates a hasher from cfg
func NewContentHasher(cfg ContentHashConfig) *ContentHasher {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = "xxhash"
	}
	return &ContentHasher{
		algorithm:       algorithm,
		excludeTags:     cfg.ExcludeTags,
		stripTimestamps: cfg.StripTimestamps,
	}
}

// Hash normalizes body and hashes it. Bodies without any main content hash to
// the empty string and are never considered duplicates.
func (h *ContentHasher) Hash(body []byte) (string, error) {
	text, err := h.Normalize(body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", nil
	}
	return ComputeContentHash([]byte(text), h.algorithm)
}

// Normalize reduces body to the lower-cased, whitespace-collapsed text of its
// main content with volatile fragments removed
func (h *ContentHasher) Normalize(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	for _, tag := range h.excludeTags {
		doc.Find(tag).Remove()
	}
	stripNoise(doc)

	text := mainContent(doc).Text()
	if h.stripTimestamps {
		text = stripTimestamps(text)
	}
	text = counterPattern.ReplaceAllString(text, "")
	return strings.ToLower(normalizeWhitespace(text)), nil
}

// stripTimestamps removes timestamp patterns from text
func stripTimestamps(text string) string {
	for _, pattern := range timestampPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	for _, pattern := range relativeTimePatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return text
}

// ComputeContentHash computes a hash of the content using the specified algorithm
func ComputeContentHash(content []byte, algorithm string) (string, error) {
	switch algorithm {
	case "xxhash", "":
		return fmt.Sprintf("%016x", xxhash.Sum64(content)), nil
	case "md5":
		hash := md5.Sum(content)
		return hex.EncodeToString(hash[:]), nil
	case "sha256":
		hash := sha256.Sum256(content)
		return hex.EncodeToString(hash[:]), nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}
