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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains every option consumed when a crawl job starts
type Config struct {
	// Seed is the listing page the job starts from
	Seed string `yaml:"seed"`
	// ItemCap stops the job after this many successful extractions.
	// 0 means no cap.
	ItemCap int `yaml:"item_cap"`
	// Concurrency is the worker pool size used for item fetch+extract
	// Default: 8
	Concurrency int `yaml:"concurrency"`

	HTTP        HTTPConfig        `yaml:"http"`
	Rendering   RenderingConfig   `yaml:"rendering"`
	Cache       CacheConfig       `yaml:"cache"`
	Validity    ValidityConfig    `yaml:"validity"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Pagination  PaginationConfig  `yaml:"pagination"`
	Retry       RetryConfig       `yaml:"retry"`
	ContentHash ContentHashConfig `yaml:"content_hash"`
	// Profiles are per-site overrides looked up by host
	Profiles []ProfileConfig `yaml:"profiles"`

	// Logger receives structured engine logs. nil discards them.
	Logger *slog.Logger `yaml:"-"`
	// Now is the clock used for cache expiry. nil means time.Now.
	Now func() time.Time `yaml:"-"`
}

// HTTPConfig controls the lightweight HTTP tier
type HTTPConfig struct {
	// UserAgent is sent with every request. It should look like a real browser,
	// many sites serve a soft block to obvious bots.
	UserAgent string `yaml:"user_agent"`
	// Headers are added to (and override) the default browser-like header set
	Headers map[string]string `yaml:"headers"`
	// Timeout bounds one HTTP request including the body read
	// Default: 20s
	Timeout Duration `yaml:"timeout"`
	// MaxBodySize is the limit of the retrieved response body in bytes.
	// 0 means unlimited.
	// Default: 10MB
	MaxBodySize int `yaml:"max_body_size"`
	// DetectCharset sniffs the encoding of bodies without a charset declaration
	DetectCharset bool `yaml:"detect_charset"`
	// TraceHTTP attaches connect and first-byte timings to each FetchResult
	TraceHTTP bool `yaml:"trace_http"`
	// LimitRules restrict request rate per matching domain
	LimitRules []LimitRuleConfig `yaml:"limit_rules"`
}

// LimitRuleConfig is the file form of a LimitRule
type LimitRuleConfig struct {
	DomainGlob        string   `yaml:"domain_glob"`
	DomainRegexp      string   `yaml:"domain_regexp"`
	Delay             Duration `yaml:"delay"`
	RandomDelay       Duration `yaml:"random_delay"`
	Parallelism       int      `yaml:"parallelism"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

// RenderingConfig controls the rendered tier and the browser-driven pagination
// mechanisms
type RenderingConfig struct {
	// Enabled turns the rendered tier on. When false the resolver stops after
	// the HTTP tier and LOAD_MORE / INFINITE_SCROLL traversal is unavailable.
	Enabled bool `yaml:"enabled"`
	// SettleDelay is the wait after navigation for JavaScript to hydrate
	// Default: 1500ms
	SettleDelay Duration `yaml:"settle_delay"`
	// ScrollSettleDelay is the wait after each scroll or load-more click
	// Default: 2s
	ScrollSettleDelay Duration `yaml:"scroll_settle_delay"`
	// Timeout bounds one render call
	// Default: 45s
	Timeout Duration `yaml:"timeout"`
	// Headless runs Chrome without a window
	// Default: true
	Headless bool `yaml:"headless"`
	// ExecPath points at a Chrome binary. Empty lets chromedp find one.
	ExecPath string `yaml:"exec_path"`
}

// CacheConfig selects and sizes the fetch cache backend
type CacheConfig struct {
	// TTL is how long a successful fetch is served from cache
	// Default: 72h
	TTL Duration `yaml:"ttl"`
	// Backend is one of "memory", "bounded" or "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`
	// Path is the sqlite database file (sqlite backend only)
	Path string `yaml:"path"`
	// MaxSizeMB caps the bounded backend's memory
	// Default: 256
	MaxSizeMB int `yaml:"max_size_mb"`
}

// ValidityConfig tunes the soft-block detection applied to HTTP-tier bodies
type ValidityConfig struct {
	// MinContentChars is the minimum main-content length of a real page
	// Default: 100
	MinContentChars int `yaml:"min_content_chars"`
	// BlockedTitleMarkers extend the built-in list of title markers that flag a
	// block or error page
	BlockedTitleMarkers []string `yaml:"blocked_title_markers"`
	// StrictRenderValidity also applies the check to rendered bodies
	StrictRenderValidity bool `yaml:"strict_render_validity"`
}

// ClassifierConfig holds the generic link heuristics. Site profiles layer
// their own include/exclude lists on top.
type ClassifierConfig struct {
	// MinSlugWords is the number of hyphen-separated words a slug needs
	// Default: 3
	MinSlugWords int `yaml:"min_slug_words"`
	// MinPathSegments rejects URLs with fewer path segments
	// Default: 1
	MinPathSegments int `yaml:"min_path_segments"`
	// SkipBoilerplateLinks drops links found in navigation, header, footer,
	// sidebar, breadcrumb and pagination regions
	// Default: true
	SkipBoilerplateLinks bool `yaml:"skip_boilerplate_links"`
	// AllowOffsite keeps links to other registrable domains than the page's
	AllowOffsite bool `yaml:"allow_offsite"`
	// Include are regular expressions that qualify a URL as a content item
	Include []string `yaml:"include"`
	// Exclude are regular expressions that disqualify a URL
	Exclude []string `yaml:"exclude"`
}

// PaginationConfig bounds the traversal loop
type PaginationConfig struct {
	// Mode forces a traversal mode ("numbered", "load_more",
	// "infinite_scroll", "none"). Empty means detect.
	Mode string `yaml:"mode"`
	// NoNewThreshold is how many consecutive rounds without new items are
	// tolerated. INFINITE_SCROLL doubles it.
	// Default: 2
	NoNewThreshold int `yaml:"no_new_threshold"`
	// MaxIterations is the absolute round cap
	// Default: 200
	MaxIterations int `yaml:"max_iterations"`
	// LoadMoreSelector overrides the detected load-more control
	LoadMoreSelector string `yaml:"load_more_selector"`
}

// RetryConfig is the file form of a RetryPolicy
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier"`
	Jitter         float64  `yaml:"jitter"`
}

// ContentHashConfig controls duplicate detection on fetched bodies. Two URLs
// whose normalized content hashes match are treated as one item.
type ContentHashConfig struct {
	// Enabled turns content-hash de-duplication on
	Enabled bool `yaml:"enabled"`
	// Algorithm is "xxhash" (default), "md5" or "sha256"
	Algorithm string `yaml:"algorithm"`
	// ExcludeTags are removed before hashing
	// Default: ["script", "style", "nav", "footer", "header", "aside"]
	ExcludeTags []string `yaml:"exclude_tags"`
	// StripTimestamps removes timestamp patterns before hashing
	StripTimestamps bool `yaml:"strip_timestamps"`
}

// NewDefaultConfig returns a Config with sensible defaults for all options
func NewDefaultConfig() *Config {
	return &Config{
		ItemCap:     0,
		Concurrency: 8,
		HTTP: HTTPConfig{
			UserAgent:   defaultUserAgent,
			Timeout:     DurationFrom(20 * time.Second),
			MaxBodySize: 10 * 1024 * 1024, // 10MB
		},
		Rendering: RenderingConfig{
			Enabled:           false,
			SettleDelay:       DurationFrom(1500 * time.Millisecond),
			ScrollSettleDelay: DurationFrom(2 * time.Second),
			Timeout:           DurationFrom(45 * time.Second),
			Headless:          true,
		},
		Cache: CacheConfig{
			TTL:       DurationFrom(72 * time.Hour),
			Backend:   CacheBackendMemory,
			MaxSizeMB: 256,
		},
		Validity: ValidityConfig{
			MinContentChars: 100,
		},
		Classifier: ClassifierConfig{
			MinSlugWords:         3,
			MinPathSegments:      1,
			SkipBoilerplateLinks: true,
		},
		Pagination: PaginationConfig{
			NoNewThreshold: 2,
			MaxIterations:  200,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: DurationFrom(500 * time.Millisecond),
			MaxBackoff:     DurationFrom(5 * time.Second),
			Multiplier:     2.0,
			Jitter:         0.25,
		},
		ContentHash: ContentHashConfig{
			Enabled:         false,
			Algorithm:       "xxhash",
			ExcludeTags:     []string{"script", "style", "nav", "footer", "header", "aside"},
			StripTimestamps: true,
		},
	}
}

// Cache backend names
const (
	CacheBackendMemory  = "memory"
	CacheBackendBounded = "bounded"
	CacheBackendSQLite  = "sqlite"
)

// LoadConfig reads a YAML config file on top of NewDefaultConfig
func LoadConfig(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadConfigFromReader(fh)
}

// LoadConfigFromReader decodes configuration from an arbitrary reader.
// Unknown keys are rejected.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	cfg := NewDefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	c.Seed = strings.TrimSpace(c.Seed)
	c.HTTP.UserAgent = strings.TrimSpace(c.HTTP.UserAgent)
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = defaultUserAgent
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendMemory
	}
	c.Pagination.Mode = strings.ToLower(strings.TrimSpace(c.Pagination.Mode))
	c.ContentHash.Algorithm = strings.ToLower(strings.TrimSpace(c.ContentHash.Algorithm))
	for i := range c.Profiles {
		c.Profiles[i].Name = strings.TrimSpace(c.Profiles[i].Name)
	}
}

// Validate enforces the invariants the engine relies on
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.ItemCap < 0 {
		return fmt.Errorf("%w: item_cap must not be negative", ErrInvalidConfig)
	}
	if c.HTTP.Timeout.Duration <= 0 || c.HTTP.Timeout.Duration > 2*time.Minute {
		return fmt.Errorf("%w: http.timeout must be in (0, 2m], got %s", ErrInvalidConfig, c.HTTP.Timeout)
	}
	if c.HTTP.MaxBodySize < 0 {
		return fmt.Errorf("%w: http.max_body_size must not be negative", ErrInvalidConfig)
	}
	if c.Rendering.Enabled && c.Rendering.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: rendering.timeout must be positive", ErrInvalidConfig)
	}
	if c.Cache.TTL.Duration <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalidConfig)
	}
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendBounded:
	case CacheBackendSQLite:
		if c.Cache.Path == "" {
			return fmt.Errorf("%w: cache.path is required for the sqlite backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.Validity.MinContentChars < 0 {
		return fmt.Errorf("%w: validity.min_content_chars must not be negative", ErrInvalidConfig)
	}
	if c.Pagination.NoNewThreshold < 1 {
		return fmt.Errorf("%w: pagination.no_new_threshold must be at least 1", ErrInvalidConfig)
	}
	if c.Pagination.MaxIterations < 1 {
		return fmt.Errorf("%w: pagination.max_iterations must be at least 1", ErrInvalidConfig)
	}
	if c.Pagination.Mode != "" {
		if _, ok := ParseMode(c.Pagination.Mode); !ok {
			return fmt.Errorf("%w: unknown pagination mode %q", ErrInvalidConfig, c.Pagination.Mode)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", ErrInvalidConfig)
	}
	switch c.ContentHash.Algorithm {
	case "", "xxhash", "md5", "sha256":
	default:
		return fmt.Errorf("%w: unknown content hash algorithm %q", ErrInvalidConfig, c.ContentHash.Algorithm)
	}
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("%w: profile %d has no name", ErrInvalidConfig, i)
		}
		if len(p.Hosts) == 0 {
			return fmt.Errorf("%w: profile %q has no hosts", ErrInvalidConfig, p.Name)
		}
	}
	return nil
}

// RetryPolicy builds the policy described by the retry section
func (c *Config) RetryPolicy() *RetryPolicy {
	p := NewDefaultRetryPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	if c.Retry.InitialBackoff.Duration > 0 {
		p.InitialBackoff = c.Retry.InitialBackoff.Duration
	}
	if c.Retry.MaxBackoff.Duration > 0 {
		p.MaxBackoff = c.Retry.MaxBackoff.Duration
	}
	if c.Retry.Multiplier > 0 {
		p.Multiplier = c.Retry.Multiplier
	}
	p.Jitter = c.Retry.Jitter
	return p
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return discardLogger
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
