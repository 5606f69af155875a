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

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agentberlin/driftnet"
	"github.com/kennygrant/sanitize"
)

// Exporter writes job reports to the output directory, one file per seed
type Exporter struct {
	outputDir string
	format    string

	mkdir sync.Once
	err   error
}

// ItemExport is the exported form of an extracted item
type ItemExport struct {
	Order       int    `json:"order"`
	URL         string `json:"url"`
	Tier        string `json:"tier"`
	Iteration   int    `json:"iteration"`
	ContentHash string `json:"contentHash,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Published   string `json:"published,omitempty"`
	Language    string `json:"language,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Export writes one report
func (e *Exporter) Export(report *driftnet.Report) error {
	e.mkdir.Do(func() {
		if err := os.MkdirAll(e.outputDir, 0755); err != nil {
			e.err = fmt.Errorf("failed to create output directory: %v", err)
		}
	})
	if e.err != nil {
		return e.err
	}

	items := make([]ItemExport, len(report.Items))
	for i, item := range report.Items {
		items[i] = toExport(item)
	}

	base := filepath.Join(e.outputDir, exportBaseName(report.Seed))
	switch e.format {
	case "csv":
		return e.exportCSV(base+".csv", items)
	case "jsonl":
		return e.exportJSONL(base+".jsonl", items)
	default:
		return e.exportJSON(base+".json", report, items)
	}
}

func toExport(item driftnet.ExtractedItem) ItemExport {
	out := ItemExport{
		Order:       item.Order,
		URL:         item.URL.URL,
		Tier:        string(item.Tier),
		Iteration:   item.Iteration,
		ContentHash: item.ContentHash,
	}
	if doc, ok := item.Record.(*driftnet.Document); ok {
		out.Title = doc.Title
		out.Description = doc.Description
		out.Author = doc.Author
		out.Published = doc.Published
		out.Language = doc.Language
		out.Text = doc.Text
	}
	return out
}

// exportBaseName turns a seed URL into a file name, e.g.
// https://example.com/news/latest -> example-com-news-latest
func exportBaseName(seed string) string {
	name := seed
	if u, err := url.Parse(seed); err == nil && u.Host != "" {
		name = u.Host + u.Path
	}
	name = sanitize.BaseName(strings.Trim(name, "/"))
	if name == "" {
		name = "items"
	}
	return name
}

func (e *Exporter) exportJSON(path string, report *driftnet.Report, items []ItemExport) error {
	errs := make([]string, len(report.Errors))
	for i, err := range report.Errors {
		errs[i] = err.Error()
	}

	output := struct {
		Seed       string       `json:"seed"`
		SeedTier   string       `json:"seedTier,omitempty"`
		Mode       string       `json:"mode"`
		StopReason string       `json:"stopReason,omitempty"`
		Iterations int          `json:"iterations"`
		Discovered int          `json:"discovered"`
		Duplicates int          `json:"duplicates"`
		CrawledAt  string       `json:"crawledAt"`
		DurationMs int64        `json:"durationMs"`
		TotalItems int          `json:"totalItems"`
		Items      []ItemExport `json:"items"`
		Errors     []string     `json:"errors,omitempty"`
	}{
		Seed:       report.Seed,
		SeedTier:   string(report.SeedTier),
		Mode:       report.Pagination.Mode.String(),
		StopReason: string(report.Pagination.StopReason),
		Iterations: report.Pagination.Iterations,
		Discovered: report.Discovered,
		Duplicates: report.Duplicates,
		CrawledAt:  report.Started.Format(time.RFC3339),
		DurationMs: report.Finished.Sub(report.Started).Milliseconds(),
		TotalItems: len(items),
		Items:      items,
		Errors:     errs,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (e *Exporter) exportJSONL(path string, items []ItemExport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, item := range items {
		if err := encoder.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) exportCSV(path string, items []ItemExport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"Order",
		"Address",
		"Tier",
		"Iteration",
		"Title",
		"Description",
		"Author",
		"Published",
		"Language",
		"Content Hash",
		"Text",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, item := range items {
		row := []string{
			strconv.Itoa(item.Order),
			item.URL,
			item.Tier,
			strconv.Itoa(item.Iteration),
			item.Title,
			item.Description,
			item.Author,
			item.Published,
			item.Language,
			item.ContentHash,
			item.Text,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
