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

package mcp

import (
	"context"
	"fmt"

	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/store"
	"github.com/agentberlin/driftnet/internal/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxToolItems bounds the item cap an agent may ask for
const maxToolItems = 200

func (s *MCPServer) registerTools() {
	s.registerCrawlListingTool()
	s.registerClassifyLinksTool()
	if s.store != nil {
		s.registerListRunsTool()
		s.registerCacheStatsTool()
	}
}

// CrawlListingArgs defines the input schema for crawl_listing tool
type CrawlListingArgs struct {
	URL          string `json:"url" jsonschema:"listing page, sitemap or feed to crawl"`
	ItemCap      int    `json:"itemCap,omitempty" jsonschema:"maximum number of items to extract (default 20)"`
	Concurrency  int    `json:"concurrency,omitempty" jsonschema:"parallel item fetches"`
	Mode         string `json:"mode,omitempty" jsonschema:"pagination mode: auto, none, numbered, load_more or infinite_scroll"`
	IncludeText  bool   `json:"includeText,omitempty" jsonschema:"include the main text of each item"`
	MaxTextChars int    `json:"maxTextChars,omitempty" jsonschema:"truncate item text to this many characters"`
}

// CrawlListingResult defines the output schema for crawl_listing tool
type CrawlListingResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Result  types.CrawlResult `json:"result"`
}

func (s *MCPServer) registerCrawlListingTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "crawl_listing",
		Description: "Crawls a listing page (news index, blog, category, sitemap or feed), follows its pagination and extracts the content items it links to",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CrawlListingArgs) (*mcp.CallToolResult, CrawlListingResult, error) {
		s.logger.Info("tool called", "tool", "crawl_listing", "url", args.URL)
		out, err := s.crawlListing(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, out, nil
		}
		return nil, out, nil
	})
}

func (s *MCPServer) crawlListing(ctx context.Context, args CrawlListingArgs) (CrawlListingResult, error) {
	out := CrawlListingResult{Result: types.CrawlResult{Seed: args.URL, Items: []types.Item{}}}

	mode, ok := driftnet.ParseMode(args.Mode)
	if !ok {
		out.Message = fmt.Sprintf("unknown pagination mode %q", args.Mode)
		return out, fmt.Errorf("%s", out.Message)
	}
	itemCap := args.ItemCap
	if itemCap <= 0 {
		itemCap = 20
	}
	itemCap = min(itemCap, maxToolItems)

	extractor := driftnet.DocumentExtractor{MaxTextChars: args.MaxTextChars}
	report, jobErr := s.scheduler.RunJob(ctx, driftnet.JobOptions{
		Seed:        args.URL,
		ItemCap:     itemCap,
		Concurrency: args.Concurrency,
		Extractor:   extractor,
		Mode:        mode,
	})
	s.recordRun(report, jobErr)
	out.Result = types.NewCrawlResult(report, args.IncludeText)

	if jobErr != nil {
		out.Message = jobErr.Error()
		return out, jobErr
	}
	out.Success = true
	out.Message = fmt.Sprintf("extracted %d of %d discovered items", len(out.Result.Items), out.Result.Discovered)
	return out, nil
}

// ClassifyLinksArgs defines the input schema for classify_links tool
type ClassifyLinksArgs struct {
	URL string `json:"url" jsonschema:"page whose links are classified"`
}

// ClassifyLinksResult defines the output schema for classify_links tool
type ClassifyLinksResult struct {
	URL   string   `json:"url"`
	Tier  string   `json:"tier,omitempty"`
	Mode  string   `json:"mode,omitempty"`
	Items []string `json:"items"`
}

func (s *MCPServer) registerClassifyLinksTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "classify_links",
		Description: "Fetches one page and lists the links the classifier takes for content items, plus the detected pagination mode",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ClassifyLinksArgs) (*mcp.CallToolResult, ClassifyLinksResult, error) {
		s.logger.Info("tool called", "tool", "classify_links", "url", args.URL)
		out := ClassifyLinksResult{URL: args.URL, Items: []string{}}

		u := driftnet.Canonicalize(args.URL)
		res := s.scheduler.Resolver().Resolve(ctx, u, args.URL)
		if !res.Success {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: res.Err.Error()}},
			}, out, nil
		}
		out.Tier = string(res.Tier)
		if mode, err := driftnet.DetectModeFromBody(res.Body); err == nil {
			out.Mode = mode.String()
		}
		for _, c := range s.scheduler.Classifier().ExtractCandidates(res.Body, args.URL) {
			out.Items = append(out.Items, c.URL.URL)
		}
		return nil, out, nil
	})
}

// ListRunsArgs defines the input schema for list_runs tool
type ListRunsArgs struct {
	Seed  string `json:"seed,omitempty" jsonschema:"only runs of this seed URL"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of runs (default 20)"`
}

// ListRunsResult defines the output schema for list_runs tool
type ListRunsResult struct {
	Runs []types.RunSummary `json:"runs"`
}

func (s *MCPServer) registerListRunsTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_runs",
		Description: "Lists previous crawl jobs, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListRunsArgs) (*mcp.CallToolResult, ListRunsResult, error) {
		limit := args.Limit
		if limit <= 0 {
			limit = 20
		}
		runs, err := s.store.ListRuns(args.Seed, limit)
		if err != nil {
			return nil, ListRunsResult{}, err
		}
		out := ListRunsResult{Runs: types.NewRunSummaries(runs)}
		return nil, out, nil
	})
}

// CacheStatsArgs defines the (empty) input schema for cache_stats tool
type CacheStatsArgs struct{}

// CacheStatsResult defines the output schema for cache_stats tool
type CacheStatsResult = types.CacheStats

func (s *MCPServer) registerCacheStatsTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cache_stats",
		Description: "Reports the size of the persistent fetch cache",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CacheStatsArgs) (*mcp.CallToolResult, CacheStatsResult, error) {
		stats, err := s.store.Stats()
		if err != nil {
			return nil, CacheStatsResult{}, err
		}
		return nil, CacheStatsResult(stats), nil
	})
}

func (s *MCPServer) recordRun(report *driftnet.Report, jobErr error) {
	if s.store == nil || report == nil {
		return
	}
	if err := s.store.RecordRun(store.NewJobRun(report, jobErr)); err != nil {
		s.logger.Warn("failed to record run", "error", err)
	}
}
