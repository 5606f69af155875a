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

// Package framework recognizes the platform a listing site is built on from
// its HTML, and knows the platform-specific paths that are never content
// items and the feeds the platform publishes.
package framework

import (
	"strings"
)

// Framework represents a web framework/platform
type Framework string

const (
	FrameworkOther     Framework = "other"
	FrameworkNextJS    Framework = "nextjs"
	FrameworkNuxtJS    Framework = "nuxtjs"
	FrameworkGatsby    Framework = "gatsby"
	FrameworkReact     Framework = "react"
	FrameworkVue       Framework = "vue"
	FrameworkAngular   Framework = "angular"
	FrameworkWordPress Framework = "wordpress"
	FrameworkGhost     Framework = "ghost"
	FrameworkWebflow   Framework = "webflow"
	FrameworkShopify   Framework = "shopify"
	FrameworkWix       Framework = "wix"
	FrameworkDrupal    Framework = "drupal"
	FrameworkJoomla    Framework = "joomla"
)

// signal is one marker in lowercased HTML and the score it contributes
type signal struct {
	marker string
	score  int
}

// signature lists the markers of one framework. A framework matches once the
// summed score of its markers reaches threshold.
type signature struct {
	framework Framework
	threshold int
	signals   []signal
}

// signatures are checked in order; server-rendered platforms come before the
// client-side libraries they often embed
var signatures = []signature{
	{FrameworkNextJS, 3, []signal{
		{"/_next/static/", 3},
		{`<div id="__next"`, 2},
		{"__next_data__", 2},
	}},
	{FrameworkNuxtJS, 3, []signal{
		{"/_nuxt/", 3},
		{`<div id="__nuxt"`, 2},
		{"window.__nuxt__", 2},
	}},
	{FrameworkWordPress, 3, []signal{
		{"/wp-content/", 3},
		{"/wp-includes/", 3},
		{`name="generator" content="wordpress`, 3},
	}},
	{FrameworkGhost, 3, []signal{
		{`name="generator" content="ghost`, 3},
		{"/ghost/api/", 2},
		{"ghost-portal", 1},
	}},
	{FrameworkShopify, 3, []signal{
		{"cdn.shopify.com", 3},
		{"shopify.theme", 2},
	}},
	{FrameworkWebflow, 3, []signal{
		{"webflow.js", 3},
		{"data-wf-page", 2},
		{"data-wf-site", 2},
	}},
	{FrameworkWix, 3, []signal{
		{"static.wixstatic.com", 3},
		{"data-wix-", 2},
	}},
	{FrameworkGatsby, 3, []signal{
		{"/___gatsby", 3},
		{"gatsby-focus-wrapper", 2},
	}},
	{FrameworkDrupal, 3, []signal{
		{`name="generator" content="drupal`, 3},
		{"drupal-settings-json", 3},
		{"/sites/default/files/", 2},
	}},
	{FrameworkJoomla, 3, []signal{
		{`name="generator" content="joomla`, 3},
		{"/media/jui/", 2},
		{"/media/system/js/", 1},
	}},
	{FrameworkAngular, 2, []signal{
		{"<app-root", 2},
		{"ng-version=", 2},
	}},
	{FrameworkVue, 3, []signal{
		{"data-v-app", 3},
		{`<div id="app"`, 1},
		{"v-cloak", 2},
	}},
	{FrameworkReact, 3, []signal{
		{"data-reactroot", 3},
		{`<div id="root"></div>`, 2},
		{"react-dom", 1},
	}},
}

// Detector handles framework detection from HTML content
type Detector struct {
	signals []string
}

// NewDetector creates a new framework detector
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns the framework whose markers appear in html, or
// FrameworkOther
func (d *Detector) Detect(html []byte) Framework {
	d.signals = d.signals[:0]
	lower := strings.ToLower(string(html))

	for _, sig := range signatures {
		score := 0
		var found []string
		for _, s := range sig.signals {
			if strings.Contains(lower, s.marker) {
				score += s.score
				found = append(found, s.marker)
			}
		}
		if score >= sig.threshold {
			d.signals = append(d.signals, found...)
			return sig.framework
		}
	}
	return FrameworkOther
}

// GetSignals returns the markers behind the last detection
func (d *Detector) GetSignals() []string {
	return d.signals
}

// Detect is a convenience for NewDetector().Detect(html)
func Detect(html []byte) Framework {
	return NewDetector().Detect(html)
}

// ClientRendered reports whether pages of the framework are usually an empty
// shell until JavaScript runs
func (f Framework) ClientRendered() bool {
	switch f {
	case FrameworkReact, FrameworkVue, FrameworkAngular:
		return true
	}
	return false
}
