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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Pagination.NoNewThreshold != 2 {
		t.Errorf("NoNewThreshold = %d, want 2", cfg.Pagination.NoNewThreshold)
	}
	if cfg.Cache.TTL.Duration != 72*time.Hour {
		t.Errorf("Cache.TTL = %s, want 72h", cfg.Cache.TTL)
	}
}

func TestLoadConfigFromReader(t *testing.T) {
	yamlDoc := `
seed: "  https://example.com/news  "
item_cap: 25
concurrency: 4
http:
  timeout: 5s
  user_agent: ""
  limit_rules:
    - domain_glob: "*.example.com"
      parallelism: 2
      requests_per_second: 5
cache:
  ttl: 3600
  backend: BOUNDED
pagination:
  mode: Numbered
  no_new_threshold: 3
profiles:
  - name: " daily "
    hosts: ["daily.example.com"]
    include: ["/\\d{4}/\\d{2}/"]
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yamlDoc))
	if err != nil {
		t.Fatalf("LoadConfigFromReader failed: %v", err)
	}
	if cfg.Seed != "https://example.com/news" {
		t.Errorf("Seed = %q", cfg.Seed)
	}
	if cfg.ItemCap != 25 || cfg.Concurrency != 4 {
		t.Errorf("ItemCap/Concurrency = %d/%d", cfg.ItemCap, cfg.Concurrency)
	}
	if cfg.HTTP.Timeout.Duration != 5*time.Second {
		t.Errorf("HTTP.Timeout = %s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.UserAgent != defaultUserAgent {
		t.Errorf("empty user agent should fall back to the default, got %q", cfg.HTTP.UserAgent)
	}
	if cfg.Cache.TTL.Duration != time.Hour {
		t.Errorf("numeric ttl should be seconds, got %s", cfg.Cache.TTL)
	}
	if cfg.Cache.Backend != CacheBackendBounded {
		t.Errorf("Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Pagination.Mode != "numbered" {
		t.Errorf("Mode = %q", cfg.Pagination.Mode)
	}
	// untouched sections keep their defaults
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want default 3", cfg.Retry.MaxAttempts)
	}
	if len(cfg.Profiles) != 1 || cfg.Profiles[0].Name != "daily" {
		t.Errorf("Profiles = %+v", cfg.Profiles)
	}
	if len(cfg.HTTP.LimitRules) != 1 || cfg.HTTP.LimitRules[0].Parallelism != 2 {
		t.Errorf("LimitRules = %+v", cfg.HTTP.LimitRules)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("concurency: 4\n"))
	if err == nil {
		t.Fatal("expected an error for a misspelled key")
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("empty file should give defaults: %v", err)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative cap", func(c *Config) { c.ItemCap = -1 }},
		{"zero http timeout", func(c *Config) { c.HTTP.Timeout = Duration{} }},
		{"huge http timeout", func(c *Config) { c.HTTP.Timeout = DurationFrom(time.Hour) }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = Duration{} }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.Cache.Backend = CacheBackendSQLite }},
		{"zero threshold", func(c *Config) { c.Pagination.NoNewThreshold = 0 }},
		{"zero iterations", func(c *Config) { c.Pagination.MaxIterations = 0 }},
		{"bad mode", func(c *Config) { c.Pagination.Mode = "sideways" }},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"bad hash", func(c *Config) { c.ContentHash.Algorithm = "crc32" }},
		{"profile without hosts", func(c *Config) { c.Profiles = []ProfileConfig{{Name: "x"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigRetryPolicy(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Retry.MaxAttempts = 5
	cfg.Retry.InitialBackoff = DurationFrom(10 * time.Millisecond)
	cfg.Retry.Jitter = 0

	p := cfg.RetryPolicy()
	if p.MaxAttempts != 5 || p.InitialBackoff != 10*time.Millisecond || p.Jitter != 0 {
		t.Errorf("RetryPolicy() = %+v", p)
	}
	if len(p.RetryableStatusCodes) == 0 {
		t.Error("retryable status codes should come from the default policy")
	}
}
