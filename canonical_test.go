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
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lower-cases scheme and host", "HTTPS://News.Example.COM/World/Story-One", "https://news.example.com/World/Story-One"},
		{"drops fragment", "https://example.com/a/b#comments", "https://example.com/a/b"},
		{"drops trailing slash", "https://example.com/news/story-one/", "https://example.com/news/story-one"},
		{"keeps root slash", "https://example.com", "https://example.com/"},
		{"drops default port", "http://example.com:80/x", "http://example.com/x"},
		{"keeps other ports", "http://example.com:8080/x", "http://example.com:8080/x"},
		{"strips utm params", "https://example.com/a?utm_source=tw&utm_medium=social", "https://example.com/a"},
		{"strips click ids but keeps order", "https://example.com/a?b=2&fbclid=xyz&a=1&gclid=q", "https://example.com/a?b=2&a=1"},
		{"tracking keys are case insensitive", "https://example.com/a?UTM_Campaign=x&id=7", "https://example.com/a?id=7"},
		{"trims whitespace", "  https://example.com/a  ", "https://example.com/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.raw)
			if got.URL != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.raw, got.URL, tt.want)
			}
			if len(got.Fingerprint) != 32 {
				t.Errorf("fingerprint %q should be 32 hex characters", got.Fingerprint)
			}
		})
	}
}

// TestCanonicalizeIdempotent tests that a second pass never changes the URL
func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.com/a//",
		"https://example.com/search?q=go+lang&utm_term=x",
		"https://example.com/%7Euser/page/",
		"not a url at all/",
		"https://example.com/a?ref=home#top",
	}
	for _, raw := range inputs {
		once := Canonicalize(raw)
		twice := Canonicalize(once.URL)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", raw, once.URL, twice.URL)
		}
	}
}

func TestCanonicalizeEquivalentSpellings(t *testing.T) {
	spellings := []string{
		"https://example.com/news/story-one",
		"https://EXAMPLE.com/news/story-one/",
		"https://example.com/news/story-one?utm_source=newsletter",
		"https://example.com/news/story-one#section-2",
		"https://example.com:443/news/story-one",
	}
	want := Canonicalize(spellings[0])
	for _, s := range spellings[1:] {
		if got := Canonicalize(s); got.Fingerprint != want.Fingerprint {
			t.Errorf("%q canonicalized to %q, want %q", s, got.URL, want.URL)
		}
	}
	if Canonicalize("https://example.com/a").Fingerprint == Canonicalize("https://example.com/b").Fingerprint {
		t.Error("different resources must not share a fingerprint")
	}
}

// TestCanonicalizeGarbage tests that unparsable input never panics
func TestCanonicalizeGarbage(t *testing.T) {
	for _, raw := range []string{"", "::::", "http://[::1", "%%%", "/relative/path/"} {
		got := Canonicalize(raw)
		if raw == "" && !got.IsZero() && got.URL != "" {
			t.Errorf("empty input gave %q", got.URL)
		}
		if got.Parsed() != nil && got.Host() == "" {
			t.Errorf("%q parsed without a host", raw)
		}
	}
}

func TestResolveLink(t *testing.T) {
	base := "https://example.com/news/index"
	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"/news/story-one/", "https://example.com/news/story-one", true},
		{"story-two?utm_source=x", "https://example.com/news/story-two", true},
		{"//cdn.example.com/a", "https://cdn.example.com/a", true},
		{"https://other.org/x#frag", "https://other.org/x", true},
		{"#top", "", false},
		{"mailto:desk@example.com", "", false},
		{"javascript:void(0)", "", false},
		{"tel:+123", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveLink(base, tt.ref)
		if ok != tt.ok {
			t.Errorf("ResolveLink(%q) ok = %v, want %v", tt.ref, ok, tt.ok)
			continue
		}
		if ok && got.URL != tt.want {
			t.Errorf("ResolveLink(%q) = %q, want %q", tt.ref, got.URL, tt.want)
		}
	}
}

func TestCanonicalURLHost(t *testing.T) {
	c := Canonicalize("https://News.Example.com:8443/a")
	if got := c.Host(); got != "news.example.com" {
		t.Errorf("Host() = %q", got)
	}
	if c.String() != c.URL {
		t.Error("String() should return URL")
	}
}
