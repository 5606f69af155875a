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

// Package types holds the JSON shapes shared by the HTTP API and the MCP
// tools.
package types

import (
	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/store"
)

// Item is one extracted content item
type Item struct {
	URL         string `json:"url"`
	Tier        string `json:"tier"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Published   string `json:"published,omitempty"`
	Text        string `json:"text,omitempty"`
}

// NewItem converts an extracted item. Text is only copied when includeText
// is set, it dominates the payload size.
func NewItem(item driftnet.ExtractedItem, includeText bool) Item {
	out := Item{URL: item.URL.URL, Tier: string(item.Tier)}
	if doc, ok := item.Record.(*driftnet.Document); ok {
		out.Title = doc.Title
		out.Description = doc.Description
		out.Author = doc.Author
		out.Published = doc.Published
		if includeText {
			out.Text = doc.Text
		}
	}
	return out
}

// CrawlProgress represents the progress of a crawl job
type CrawlProgress struct {
	Discovered int `json:"discovered"`
	Dispatched int `json:"dispatched"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
	Iteration  int `json:"iteration"`
}

// NewCrawlProgress converts a progress snapshot
func NewCrawlProgress(p driftnet.Progress) CrawlProgress {
	return CrawlProgress(p)
}

// CrawlResult is the outcome of a finished crawl job
type CrawlResult struct {
	Seed       string   `json:"seed"`
	Platform   string   `json:"platform,omitempty"`
	Feed       string   `json:"feed,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	StopReason string   `json:"stopReason,omitempty"`
	Iterations int      `json:"iterations"`
	Discovered int      `json:"discovered"`
	Items      []Item   `json:"items"`
	Errors     []string `json:"errors,omitempty"`
}

// NewCrawlResult converts a job report
func NewCrawlResult(report *driftnet.Report, includeText bool) CrawlResult {
	out := CrawlResult{
		Seed:       report.Seed,
		Platform:   report.Platform,
		Feed:       report.Feed,
		Mode:       report.Pagination.Mode.String(),
		StopReason: string(report.Pagination.StopReason),
		Iterations: report.Pagination.Iterations,
		Discovered: report.Discovered,
		Items:      make([]Item, 0, len(report.Items)),
	}
	for _, item := range report.Items {
		out.Items = append(out.Items, NewItem(item, includeText))
	}
	for _, err := range report.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

// RunSummary is one past job
type RunSummary struct {
	ID         uint   `json:"id"`
	Seed       string `json:"seed"`
	Mode       string `json:"mode"`
	StopReason string `json:"stopReason,omitempty"`
	Discovered int    `json:"discovered"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
	StartedAt  int64  `json:"startedAt"`
	DurationMs int64  `json:"durationMs"`
}

// NewRunSummaries converts stored runs
func NewRunSummaries(runs []store.JobRun) []RunSummary {
	out := make([]RunSummary, len(runs))
	for i, r := range runs {
		out[i] = RunSummary{
			ID: r.ID, Seed: r.Seed, Mode: r.Mode, StopReason: r.StopReason,
			Discovered: r.Discovered, Succeeded: r.Succeeded, Failed: r.Failed,
			Error: r.Error, StartedAt: r.StartedAt, DurationMs: r.DurationMs,
		}
	}
	return out
}

// CacheStats reports the size of the persistent fetch cache
type CacheStats struct {
	Entries   int64 `json:"entries"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

// JobState is the lifecycle state of a background job
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobStopped   JobState = "stopped"
)

// JobInfo describes a background crawl job of the HTTP API
type JobInfo struct {
	ID        string        `json:"id"`
	Seed      string        `json:"seed"`
	State     JobState      `json:"state"`
	StartedAt int64         `json:"startedAt"`
	Progress  CrawlProgress `json:"progress"`
	Error     string        `json:"error,omitempty"`
	// Result is set once the job is no longer running
	Result *CrawlResult `json:"result,omitempty"`
}
