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
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestLinkPositionClassification(t *testing.T) {
	tests := []struct {
		name             string
		html             string
		expectedPosition LinkPosition
	}{
		{
			name:             "link in main content",
			html:             `<html><body><main><article><p>Check out <a href="/x">this page</a></p></article></main></body></html>`,
			expectedPosition: PositionContent,
		},
		{
			name:             "link in navigation",
			html:             `<html><body><nav><ul><li><a href="/x">Home</a></li></ul></nav></body></html>`,
			expectedPosition: PositionNavigation,
		},
		{
			name:             "link in site header",
			html:             `<html><body><header><a href="/x">Logo</a></header></body></html>`,
			expectedPosition: PositionHeader,
		},
		{
			name:             "link in footer",
			html:             `<html><body><footer><a href="/x">Privacy Policy</a></footer></body></html>`,
			expectedPosition: PositionFooter,
		},
		{
			name:             "link in sidebar",
			html:             `<html><body><aside><a href="/x">Related</a></aside></body></html>`,
			expectedPosition: PositionSidebar,
		},
		{
			name:             "link in breadcrumbs",
			html:             `<html><body><div class="breadcrumb"><a href="/x">Home</a></div></body></html>`,
			expectedPosition: PositionBreadcrumbs,
		},
		{
			name:             "link in pagination",
			html:             `<html><body><ul class="pagination"><li><a href="/x">2</a></li></ul></body></html>`,
			expectedPosition: PositionPagination,
		},
		{
			name:             "title link in card header is content",
			html:             `<html><body><article class="card"><header><h2><a href="/x">Story</a></h2></header></article></body></html>`,
			expectedPosition: PositionContent,
		},
		{
			name:             "nav class token",
			html:             `<html><body><div class="main-nav"><a href="/x">Sports</a></div></body></html>`,
			expectedPosition: PositionNavigation,
		},
		{
			name:             "canvas is not nav",
			html:             `<html><body><div class="canvas"><a href="/x">Story</a></div></body></html>`,
			expectedPosition: PositionUnknown,
		},
		{
			name:             "plain body link",
			html:             `<html><body><div><a href="/x">Story</a></div></body></html>`,
			expectedPosition: PositionUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			link := doc.Find(`a[href="/x"]`)
			if link.Length() != 1 {
				t.Fatalf("expected one link, got %d", link.Length())
			}
			if got := linkPosition(link); got != tt.expectedPosition {
				t.Errorf("expected position %q, got %q (path %s)", tt.expectedPosition, got, buildDOMPath(link))
			}
		})
	}
}

func TestLinkPositionBoilerplate(t *testing.T) {
	boilerplate := []LinkPosition{
		PositionNavigation, PositionHeader, PositionFooter,
		PositionSidebar, PositionBreadcrumbs, PositionPagination,
	}
	for _, p := range boilerplate {
		if !p.Boilerplate() {
			t.Errorf("%q should be boilerplate", p)
		}
	}
	for _, p := range []LinkPosition{PositionContent, PositionUnknown} {
		if p.Boilerplate() {
			t.Errorf("%q should not be boilerplate", p)
		}
	}
}

func TestBuildDOMPath(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><main id="c"><div class="list wide" role="feed"><a href="/x">a</a></div></main></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	got := buildDOMPath(doc.Find("a"))
	want := `body > main#c > div[role="feed"].list > a`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
