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

package framework

import "strings"

// FilterConfig holds what a framework tells about its URLs
type FilterConfig struct {
	// InternalPaths are path fragments of build assets, APIs and admin pages
	InternalPaths []string
	// FeedPaths are the site-relative feeds the platform publishes by default
	FeedPaths []string
}

var filterConfigs = map[Framework]FilterConfig{
	FrameworkNextJS: {
		InternalPaths: []string{"/_next/"},
	},
	FrameworkNuxtJS: {
		InternalPaths: []string{"/_nuxt/"},
	},
	FrameworkGatsby: {
		InternalPaths: []string{"/page-data/", "/___gatsby"},
	},
	FrameworkWordPress: {
		// headless setups serve content from /wp-json/, but never as pages
		InternalPaths: []string{"/wp-json/", "/wp-admin/", "/wp-login.php", "/wp-content/", "/xmlrpc.php"},
		FeedPaths:     []string{"/feed/", "/wp-sitemap.xml"},
	},
	FrameworkGhost: {
		InternalPaths: []string{"/ghost/", "/members/api/"},
		FeedPaths:     []string{"/rss/", "/sitemap-posts.xml"},
	},
	FrameworkShopify: {
		InternalPaths: []string{"/cart", "/checkout", "/account", "/cdn/shop/"},
		FeedPaths:     []string{"/sitemap.xml"},
	},
	FrameworkWix: {
		InternalPaths: []string{"/_api/", "/_partials/"},
		FeedPaths:     []string{"/blog-feed.xml"},
	},
	FrameworkDrupal: {
		InternalPaths: []string{"/user/login", "/node/add", "/sites/default/files/"},
		FeedPaths:     []string{"/rss.xml"},
	},
	FrameworkJoomla: {
		InternalPaths: []string{"/administrator/", "/component/users/"},
	},
	FrameworkWebflow: {
		FeedPaths: []string{"/sitemap.xml"},
	},
}

// GetFilterConfig returns the URL rules of fw. Unknown frameworks get an
// empty config.
func GetFilterConfig(fw Framework) FilterConfig {
	return filterConfigs[fw]
}

// IsInternalPath reports whether the lowercased path p belongs to the build,
// API or admin surface of any known framework. These paths are never content
// items, whichever platform the page was detected as.
func IsInternalPath(p string) bool {
	for _, cfg := range filterConfigs {
		for _, frag := range cfg.InternalPaths {
			if containsSegment(p, frag) {
				return true
			}
		}
	}
	return false
}

// containsSegment matches frag in p only on path segment boundaries, so
// "/cart" matches "/cart/add" but not "/cartoon-of-the-week"
func containsSegment(p, frag string) bool {
	for i := 0; i < len(p); {
		j := strings.Index(p[i:], frag)
		if j < 0 {
			return false
		}
		end := i + j + len(frag)
		if strings.HasSuffix(frag, "/") || end == len(p) || p[end] == '/' || p[end] == '.' {
			return true
		}
		i += j + 1
	}
	return false
}

// FeedPaths returns the default feeds of fw followed by the generic
// locations most sites use
func FeedPaths(fw Framework) []string {
	out := append([]string{}, filterConfigs[fw].FeedPaths...)
	for _, p := range []string{"/feed", "/rss.xml", "/sitemap.xml"} {
		dup := false
		for _, have := range out {
			if strings.TrimSuffix(have, "/") == p {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}
