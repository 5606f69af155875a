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
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// trackingParams are query keys that never change the addressed resource.
// Any key starting with "utm_" is removed as well.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"ref":      true,
	"source":   true,
	"campaign": true,
	"medium":   true,
}

// fingerprintBytes is the width of the fingerprint hash (128 bits)
const fingerprintBytes = 16

// CanonicalURL is a normalized absolute URL plus its fingerprint.
// Two raw URLs that differ only in tracking parameters, trailing slash or host
// case share the same CanonicalURL.
type CanonicalURL struct {
	// URL is the serialized canonical form
	URL string
	// Fingerprint is a 128-bit hash of URL rendered as 32 hex characters
	Fingerprint string
}

// String returns the canonical URL string
func (c CanonicalURL) String() string {
	return c.URL
}

// IsZero reports whether c was never computed
func (c CanonicalURL) IsZero() bool {
	return c.URL == "" && c.Fingerprint == ""
}

// Parsed returns the canonical URL as a *url.URL, or nil if it is not a valid
// absolute URL (best-effort canonicalization of garbage input).
func (c CanonicalURL) Parsed() *url.URL {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// Host returns the lower-cased host name without port
func (c CanonicalURL) Host() string {
	if u := c.Parsed(); u != nil {
		return u.Hostname()
	}
	return ""
}

// Canonicalize normalizes rawURL and derives its fingerprint. It never fails:
// input the URL parser rejects is normalized on a best-effort basis so that a
// single bad link cannot abort a crawl.
//
// Canonicalize is idempotent: Canonicalize(Canonicalize(u).URL) == Canonicalize(u).
func Canonicalize(rawURL string) CanonicalURL {
	s := canonicalString(rawURL)
	return CanonicalURL{URL: s, Fingerprint: Fingerprint(s)}
}

// Fingerprint hashes an already canonical string
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:fingerprintBytes])
}

// ResolveLink resolves ref against base and canonicalizes the result.
// The second return value is false for references that are not http(s)
// resources (mailto:, javascript:, tel:, data:, unparsable input).
func ResolveLink(base, ref string) (CanonicalURL, bool) {
	abs, ok := absoluteURL(base, ref)
	if !ok {
		return CanonicalURL{}, false
	}
	return Canonicalize(abs), true
}

// absoluteURL resolves ref against base without canonicalizing it
func absoluteURL(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	parsed, err := urlParser.ParseRef(base, ref)
	if err != nil {
		return "", false
	}
	abs := parsed.String()
	u, err := url.Parse(abs)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return abs, true
}

func canonicalString(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := urlParser.Parse(raw)
	if err != nil {
		return bestEffortCanonical(raw)
	}
	u, err := url.Parse(parsed.String())
	if err != nil || u.Host == "" {
		return bestEffortCanonical(raw)
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(canonicalHost(u.Scheme, u.Host))
	b.WriteString(canonicalPath(u.EscapedPath()))
	if q := stripTrackingParams(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

// canonicalHost lower-cases the host and drops the scheme's default port
func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// canonicalPath strips the trailing slash of a non-root path. Repeated
// trailing slashes collapse too, otherwise a second pass would not be a no-op.
func canonicalPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// stripTrackingParams removes tracking keys from a raw query while keeping the
// remaining pairs in their original order and spelling.
func stripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	kept := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	return strings.HasPrefix(key, "utm_") || trackingParams[key]
}

// bestEffortCanonical applies the same rules with plain string surgery for
// input the parser rejects.
func bestEffortCanonical(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	query := ""
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		query = stripTrackingParams(raw[i+1:])
		raw = raw[:i]
	}
	if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		hostEnd := strings.IndexByte(rest, '/')
		if hostEnd < 0 {
			hostEnd = len(rest)
		}
		raw = strings.ToLower(raw[:i+3]+rest[:hostEnd]) + canonicalPath(rest[hostEnd:])
	} else if len(raw) > 1 {
		raw = strings.TrimRight(raw, "/")
	}
	if query != "" {
		raw += "?" + query
	}
	return raw
}
