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
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Mode is the mechanism a listing uses to reveal more items
type Mode int

const (
	// ModeAuto detects the mode from the seed page
	ModeAuto Mode = iota
	// ModeNone means one page, no more-content mechanism
	ModeNone
	// ModeNumbered follows discrete page links
	ModeNumbered
	// ModeLoadMore clicks a control that appends items in place
	ModeLoadMore
	// ModeInfiniteScroll scrolls the viewport to trigger lazy loading
	ModeInfiniteScroll
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "NONE"
	case ModeNumbered:
		return "NUMBERED"
	case ModeLoadMore:
		return "LOAD_MORE"
	case ModeInfiniteScroll:
		return "INFINITE_SCROLL"
	default:
		return "AUTO"
	}
}

// NeedsRenderer reports whether the mode drives a live browser page
func (m Mode) NeedsRenderer() bool {
	return m == ModeLoadMore || m == ModeInfiniteScroll
}

// ParseMode accepts the mode names in any case, with '-' or '_' separators
func ParseMode(s string) (Mode, bool) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "auto":
		return ModeAuto, true
	case "none":
		return ModeNone, true
	case "numbered":
		return ModeNumbered, true
	case "load_more", "loadmore":
		return ModeLoadMore, true
	case "infinite_scroll", "scroll":
		return ModeInfiniteScroll, true
	}
	return ModeAuto, false
}

// StopReason records which termination condition ended a traversal
type StopReason string

const (
	StopItemCap       StopReason = "item_cap"
	StopStable        StopReason = "no_new_items"
	StopMaxIterations StopReason = "max_iterations"
	StopExhausted     StopReason = "exhausted"
	StopSingleRound   StopReason = "single_round"
	StopCancelled     StopReason = "cancelled"
	StopAdvanceFailed StopReason = "advance_failed"
)

// PaginationState is the traversal state machine. Only Traverser.Run
// mutates it.
type PaginationState struct {
	Mode Mode
	// Page is the current numbered page, starting at 1
	Page int
	// Offset counts load-more clicks or scroll steps
	Offset int
	// NoNewRounds counts consecutive rounds without a new item
	NoNewRounds int
	// Iterations counts finished rounds
	Iterations int
	// Seen is the total of items admitted across rounds
	Seen       int
	Done       bool
	StopReason StopReason
}

// Visible is what a Source shows in one round. Either Body (a whole page, run
// through ExtractCandidateLinks) or Links (hrefs from a live DOM or a feed) is
// set.
type Visible struct {
	PageURL string
	Body    []byte
	Links   []string
	// Feed marks Links as sitemap or feed entries
	Feed bool
}

// Source abstracts one more-content mechanism
type Source interface {
	// Enumerate returns what is currently visible
	Enumerate(ctx context.Context) (Visible, error)
	// Advance asks for more content. It returns false once the mechanism is
	// exhausted, for example when there is no next page.
	Advance(ctx context.Context) (bool, error)
}

// BatchFunc receives each round's candidates. It returns how many of them were
// new and whether the item cap has been reached.
type BatchFunc func(iteration int, batch []Candidate) (admitted int, capReached bool)

// Traverser drives the enumerate, measure and advance loop shared by every
// pagination mode
type Traverser struct {
	classifier     *Classifier
	noNewThreshold int
	maxIterations  int
	logger         *slog.Logger
}

// NewTraverser creates a Traverser with the pagination limits of cfg
func NewTraverser(classifier *Classifier, cfg PaginationConfig, logger *slog.Logger) *Traverser {
	if logger == nil {
		logger = discardLogger
	}
	return &Traverser{
		classifier:     classifier,
		noNewThreshold: max(cfg.NoNewThreshold, 1),
		maxIterations:  max(cfg.MaxIterations, 1),
		logger:         logger.With("component", "pagination"),
	}
}

// Threshold returns the no-new-rounds threshold for mode. Lazy-loaded content
// can lag a round behind the scroll, so INFINITE_SCROLL gets twice as many.
func (t *Traverser) Threshold(mode Mode) int {
	if mode == ModeInfiniteScroll {
		return t.noNewThreshold * 2
	}
	return t.noNewThreshold
}

// Run traverses src until a termination condition holds. A started round is
// always finished; ctx is only checked between rounds. An error is returned
// only when the very first round cannot enumerate, later failures end the
// traversal with the items found so far.
func (t *Traverser) Run(ctx context.Context, mode Mode, src Source, onBatch BatchFunc) (PaginationState, error) {
	state := PaginationState{Mode: mode, Page: 1}
	threshold := t.Threshold(mode)
	logger := t.logger.With("mode", mode.String())

	stop := func(reason StopReason) (PaginationState, error) {
		state.Done = true
		state.StopReason = reason
		logger.Debug("traversal finished", "reason", reason, "iterations", state.Iterations, "seen", state.Seen)
		return state, nil
	}

	for {
		if ctx.Err() != nil {
			return stop(StopCancelled)
		}

		visible, err := src.Enumerate(ctx)
		if err != nil {
			if state.Iterations == 0 {
				state.Done = true
				return state, fmt.Errorf("enumerate first round: %w", err)
			}
			logger.Warn("enumerate failed, ending traversal", "error", err)
			return stop(StopAdvanceFailed)
		}
		state.Iterations++

		batch := t.classify(visible)
		admitted, capReached := onBatch(state.Iterations, batch)
		state.Seen += admitted
		if admitted == 0 {
			state.NoNewRounds++
		} else {
			state.NoNewRounds = 0
		}
		logger.Debug("round", "iteration", state.Iterations, "candidates", len(batch),
			"new", admitted, "no_new_rounds", state.NoNewRounds)

		switch {
		case capReached:
			return stop(StopItemCap)
		case mode == ModeNone:
			return stop(StopSingleRound)
		case state.NoNewRounds > threshold:
			return stop(StopStable)
		case state.Iterations >= t.maxIterations:
			return stop(StopMaxIterations)
		}

		more, err := src.Advance(ctx)
		if err != nil && ctx.Err() != nil {
			return stop(StopCancelled)
		}
		if err != nil {
			logger.Warn("advance failed, ending traversal", "error", err)
			return stop(StopAdvanceFailed)
		}
		if !more {
			return stop(StopExhausted)
		}
		if mode == ModeNumbered {
			state.Page++
		} else {
			state.Offset++
		}
	}
}

func (t *Traverser) classify(v Visible) []Candidate {
	if v.Body != nil {
		return t.classifier.ExtractCandidates(v.Body, v.PageURL)
	}
	if v.Feed {
		return t.classifier.FilterFeedLinks(v.PageURL, v.Links)
	}
	return t.classifier.FilterLinks(v.PageURL, v.Links)
}

var (
	// loadMoreText matches the label of a load-more control
	loadMoreText = regexp.MustCompile(`(?i)^\s*((load|show|view|see)\s+(more|older)|more\s+(stories|articles|posts|news|results|items)|` +
		`mehr\s+(laden|anzeigen)|voir\s+plus|cargar\s+m[aá]s|ver\s+m[aá]s|mostra\s+altri|carregar\s+mais)\b`)
	// pagerAttr matches class, id or aria-label of a pagination container
	pagerAttr = regexp.MustCompile(`(?i)pag(ination|er|e-numbers|ing)|page-nav`)
	// simpleIdent is a class or id usable in a CSS selector without escaping
	simpleIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// defaultLoadMoreSelector is clicked when the detected control has no usable
// id or class
const defaultLoadMoreSelector = `button[class*="load-more"], button[class*="loadmore"], a[class*="load-more"], ` +
	`[data-action*="load-more"], [data-testid*="load-more"], button[class*="show-more"]`

// DetectMode inspects a listing page. A numbered pager wins over a load-more
// control; when neither is present the page is assumed to scroll.
func DetectMode(doc *goquery.Document) Mode {
	if hasNumberedPager(doc) {
		return ModeNumbered
	}
	if _, ok := LoadMoreSelector(doc); ok {
		return ModeLoadMore
	}
	return ModeInfiniteScroll
}

// DetectModeFromBody parses an HTML body and runs DetectMode on it
func DetectModeFromBody(body []byte) (Mode, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ModeAuto, err
	}
	return DetectMode(doc), nil
}

func hasNumberedPager(doc *goquery.Document) bool {
	if doc.Find(`link[rel="next"], a[rel="next"]`).Length() > 0 {
		return true
	}
	found := false
	doc.Find("nav, ul, ol, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		label, _ := s.Attr("aria-label")
		if !pagerAttr.MatchString(class + " " + id + " " + label) {
			return true
		}
		if integerLinks(s) >= 2 {
			found = true
			return false
		}
		return true
	})
	return found
}

func integerLinks(s *goquery.Selection) int {
	n := 0
	s.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if _, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil {
			n++
		}
	})
	return n
}

// LoadMoreSelector finds a load-more control and returns a CSS selector that
// addresses it in the live DOM
func LoadMoreSelector(doc *goquery.Document) (string, bool) {
	var control *goquery.Selection
	doc.Find(`button, a, [role="button"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeWhitespace(s.Text())
		if text == "" {
			text, _ = s.Attr("aria-label")
		}
		if loadMoreText.MatchString(text) {
			control = s
			return false
		}
		return true
	})
	if control == nil {
		return "", false
	}
	return cssSelectorFor(control), true
}

func cssSelectorFor(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && simpleIdent.MatchString(id) {
		return "#" + id
	}
	tag := goquery.NodeName(s)
	if class, ok := s.Attr("class"); ok {
		sel := tag
		for _, c := range strings.Fields(class) {
			if simpleIdent.MatchString(c) {
				sel += "." + c
			}
		}
		if sel != tag {
			return sel
		}
	}
	if label, ok := s.Attr("aria-label"); ok && label != "" {
		return tag + `[aria-label=` + strconv.Quote(label) + `]`
	}
	return defaultLoadMoreSelector
}
