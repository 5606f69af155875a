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

package store

// CacheRecord is one fetch cache entry, keyed by URL fingerprint
type CacheRecord struct {
	Key       string `gorm:"primaryKey;column:fingerprint"`
	URL       string `gorm:"type:text;not null"`
	Body      []byte
	FetchedAt int64 `gorm:"index;not null"` // Unix nanoseconds
	Success   bool  `gorm:"default:false"`
	Tier      string
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}

// JobRun is the summary of one finished crawl job
type JobRun struct {
	ID         uint   `gorm:"primaryKey"`
	Seed       string `gorm:"type:text;not null;index"`
	Mode       string
	StopReason string
	Iterations int
	Discovered int
	Succeeded  int
	Failed     int
	Duplicates int
	// Error is the fatal job error, empty for jobs that completed
	Error      string `gorm:"type:text"`
	StartedAt  int64  `gorm:"index"` // Unix seconds
	DurationMs int64
	CreatedAt  int64 `gorm:"autoCreateTime"`
}
