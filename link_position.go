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

	"github.com/PuerkitoBio/goquery"
)

// LinkPosition is the page region a link sits in
type LinkPosition string

const (
	PositionContent     LinkPosition = "content"
	PositionBreadcrumbs LinkPosition = "breadcrumbs"
	PositionPagination  LinkPosition = "pagination"
	PositionNavigation  LinkPosition = "navigation"
	PositionHeader      LinkPosition = "header"
	PositionFooter      LinkPosition = "footer"
	PositionSidebar     LinkPosition = "sidebar"
	PositionUnknown     LinkPosition = "unknown"
)

// Boilerplate reports whether links in this region repeat on every page of a
// site and therefore never point at listing items
func (p LinkPosition) Boilerplate() bool {
	switch p {
	case PositionNavigation, PositionHeader, PositionFooter, PositionSidebar,
		PositionBreadcrumbs, PositionPagination:
		return true
	}
	return false
}

// linkPosition determines the semantic position of a link in the page structure.
func linkPosition(sel *goquery.Selection) LinkPosition {
	return classifyLinkPosition(sel, buildDOMPath(sel))
}

// buildDOMPath constructs a simplified DOM path from the link element up to the body.
// Returns a path like "body > main > article > p > a"
// Includes important attributes like id, class, and role for better classification.
func buildDOMPath(selection *goquery.Selection) string {
	var pathParts []string

	current := selection
	for current.Length() > 0 {
		nodeName := goquery.NodeName(current)
		if nodeName == "html" || nodeName == "#document" {
			break
		}

		descriptor := nodeName
		if role, exists := current.Attr("role"); exists && role != "" {
			descriptor += `[role="` + role + `"]`
		}
		if id, exists := current.Attr("id"); exists && id != "" {
			descriptor += "#" + id
		}
		if class, exists := current.Attr("class"); exists && class != "" {
			if classes := strings.Fields(class); len(classes) > 0 {
				descriptor += "." + classes[0]
			}
		}

		pathParts = append([]string{descriptor}, pathParts...)
		current = current.Parent()
	}

	return strings.Join(pathParts, " > ")
}

// classifyLinkPosition walks the ancestors of a link nearest first.
// Navigation-like containers win as soon as they are met. A header or footer
// only counts when no article or main element encloses it, since item cards
// commonly wrap their title link in a header.
func classifyLinkPosition(selection *goquery.Selection, domPath string) LinkPosition {
	var pending LinkPosition

	current := selection.Parent()
	for current.Length() > 0 {
		nodeName := goquery.NodeName(current)
		role, _ := current.Attr("role")
		class, _ := current.Attr("class")
		id, _ := current.Attr("id")
		attributes := strings.ToLower(role + " " + class + " " + id)

		switch {
		case nodeName == "main" || nodeName == "article" || role == "main" || role == "article":
			return PositionContent
		case pending != "":
			// keep looking for an enclosing content element
		case strings.Contains(attributes, "breadcrumb"):
			return PositionBreadcrumbs
		case strings.Contains(attributes, "pagination") || strings.Contains(attributes, "pager") ||
			strings.Contains(attributes, "page-number"):
			return PositionPagination
		case nodeName == "nav" || role == "navigation" || hasNavToken(attributes) ||
			strings.Contains(attributes, "menu"):
			return PositionNavigation
		case nodeName == "aside" || role == "complementary" || strings.Contains(attributes, "sidebar"):
			return PositionSidebar
		case nodeName == "header" || role == "banner" || strings.Contains(attributes, "masthead") ||
			strings.Contains(attributes, "topbar") || strings.Contains(attributes, "site-header"):
			pending = PositionHeader
		case nodeName == "footer" || role == "contentinfo" || strings.Contains(attributes, "site-footer"):
			pending = PositionFooter
		}

		current = current.Parent()
	}
	if pending != "" {
		return pending
	}

	domPathLower := strings.ToLower(domPath)
	switch {
	case strings.Contains(domPathLower, "breadcrumb"):
		return PositionBreadcrumbs
	case strings.Contains(domPathLower, "pagination") || strings.Contains(domPathLower, "pager"):
		return PositionPagination
	case strings.Contains(domPathLower, "sidebar"):
		return PositionSidebar
	}
	return PositionUnknown
}

// hasNavToken matches "nav", "navbar", "main-nav" but not "canvas"
func hasNavToken(attributes string) bool {
	for _, tok := range strings.FieldsFunc(attributes, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}) {
		if strings.HasPrefix(tok, "nav") {
			return true
		}
	}
	return false
}
