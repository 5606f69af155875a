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
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/gobwas/glob"
)

// Verdict is the answer of a site-specific classifier
type Verdict int

const (
	// Defer leaves the decision to the generic heuristics
	Defer Verdict = iota
	// Accept marks the URL as a content item
	Accept
	// Reject marks the URL as navigation or noise
	Reject
)

// SiteProfile carries the per-site knowledge the engine needs: which links are
// items, how the listing paginates and which tiers make sense for the host.
// Adding a site means registering a profile, the classifier and traversal
// code stay the same.
type SiteProfile struct {
	// Name identifies the profile in logs
	Name string
	// Hosts are glob patterns matched against the canonical host, for
	// example "example.com" or "*.example.com"
	Hosts []string
	// Include patterns qualify a URL as a content item
	Include []*regexp.Regexp
	// Exclude patterns disqualify a URL, even one that matched Include
	Exclude []*regexp.Regexp
	// ItemXPath restricts link collection to the matching nodes of the page
	ItemXPath string
	// Classify overrides the heuristics for a URL. It returns Defer when it
	// has no opinion.
	Classify func(u CanonicalURL) Verdict
	// Mode forces a pagination mode. ModeAuto detects it.
	Mode Mode
	// LoadMoreSelector is the CSS selector of the site's load-more control
	LoadMoreSelector string
	// SkipHTTP goes straight to the rendered tier for this site
	SkipHTTP bool
	// DisableRender never renders pages of this site
	DisableRender bool

	hostGlobs []glob.Glob
}

// ProfileConfig is the file form of a SiteProfile. Classify has no file form.
type ProfileConfig struct {
	Name             string   `yaml:"name"`
	Hosts            []string `yaml:"hosts"`
	Include          []string `yaml:"include"`
	Exclude          []string `yaml:"exclude"`
	ItemXPath        string   `yaml:"item_xpath"`
	Mode             string   `yaml:"mode"`
	LoadMoreSelector string   `yaml:"load_more_selector"`
	SkipHTTP         bool     `yaml:"skip_http"`
	DisableRender    bool     `yaml:"disable_render"`
}

// Profile compiles the config into a SiteProfile
func (pc ProfileConfig) Profile() (*SiteProfile, error) {
	p := &SiteProfile{
		Name:             pc.Name,
		Hosts:            pc.Hosts,
		ItemXPath:        pc.ItemXPath,
		LoadMoreSelector: pc.LoadMoreSelector,
		SkipHTTP:         pc.SkipHTTP,
		DisableRender:    pc.DisableRender,
	}
	var err error
	if p.Include, err = compilePatterns(pc.Include); err != nil {
		return nil, fmt.Errorf("profile %q include: %w", pc.Name, err)
	}
	if p.Exclude, err = compilePatterns(pc.Exclude); err != nil {
		return nil, fmt.Errorf("profile %q exclude: %w", pc.Name, err)
	}
	if pc.Mode != "" {
		mode, ok := ParseMode(pc.Mode)
		if !ok {
			return nil, fmt.Errorf("profile %q: unknown pagination mode %q", pc.Name, pc.Mode)
		}
		p.Mode = mode
	}
	return p, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func (p *SiteProfile) compile() error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile without a name", ErrInvalidConfig)
	}
	if len(p.Hosts) == 0 {
		return fmt.Errorf("%w: profile %q has no hosts", ErrInvalidConfig, p.Name)
	}
	p.hostGlobs = p.hostGlobs[:0]
	for _, h := range p.Hosts {
		g, err := glob.Compile(strings.ToLower(h), '.')
		if err != nil {
			return fmt.Errorf("%w: profile %q host %q: %v", ErrInvalidConfig, p.Name, h, err)
		}
		p.hostGlobs = append(p.hostGlobs, g)
	}
	if p.ItemXPath != "" {
		if _, err := htmlquery.QueryAll(emptyDocument, p.ItemXPath); err != nil {
			return fmt.Errorf("%w: profile %q item_xpath: %v", ErrInvalidConfig, p.Name, err)
		}
	}
	return nil
}

// emptyDocument lets XPath expressions be validated at registration time
var emptyDocument, _ = htmlquery.Parse(strings.NewReader("<html></html>"))

// MatchHost reports whether the profile applies to host
func (p *SiteProfile) MatchHost(host string) bool {
	host = strings.ToLower(host)
	for _, g := range p.hostGlobs {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// ProfileRegistry looks site profiles up by host. The first registered
// profile that matches wins.
type ProfileRegistry struct {
	mu       sync.RWMutex
	profiles []*SiteProfile
}

// NewProfileRegistry returns an empty registry
func NewProfileRegistry() *ProfileRegistry {
	return &ProfileRegistry{}
}

// NewProfileRegistryFromConfig compiles and registers every configured profile
func NewProfileRegistryFromConfig(cfgs []ProfileConfig) (*ProfileRegistry, error) {
	r := NewProfileRegistry()
	for _, pc := range cfgs {
		p, err := pc.Profile()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a profile
func (r *ProfileRegistry) Register(p *SiteProfile) error {
	if err := p.compile(); err != nil {
		return err
	}
	r.mu.Lock()
	r.profiles = append(r.profiles, p)
	r.mu.Unlock()
	return nil
}

// Lookup returns the profile for host
func (r *ProfileRegistry) Lookup(host string) (*SiteProfile, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.MatchHost(host) {
			return p, true
		}
	}
	return nil, false
}

// Len returns the number of registered profiles
func (r *ProfileRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
