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
// driftnet CLI
//
// Command-line interface for the driftnet content acquisition engine. Crawls
// listing pages, follows their pagination and extracts the items they link
// to.
//
// Usage:
//
//	driftnet <command> [flags]
//
// Commands:
//
//	crawl     Crawl one or more listing pages and export the items
//	list      List previous crawl runs
//	cache     Inspect or purge the persistent fetch cache
//	mcp       Serve the crawl tools over the Model Context Protocol
//	version   Show version information
package main

import (
	"fmt"
	"os"

	"github.com/agentberlin/driftnet/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	var err error
	switch command {
	case "crawl":
		err = runCrawl(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "cache":
		err = runCache(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("driftnet %s\n", version.CurrentVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`driftnet - adaptive content acquisition for listing pages

Usage:
  driftnet <command> [flags]

Commands:
  crawl     Crawl listing pages and export the extracted items
  list      List previous crawl runs
  cache     Inspect or purge the persistent fetch cache
  mcp       Serve crawl tools over MCP (stdio or HTTP)
  version   Show version information
  help      Show this help message

Examples:
  # Extract the 50 newest articles of a news index
  driftnet crawl https://example.com/news -n 50

  # Crawl a sitemap with a persistent cache
  driftnet crawl https://example.com/sitemap.xml --cache sqlite

  # Crawl an infinite-scroll listing with headless Chrome
  driftnet crawl https://example.com/latest --render --mode infinite_scroll

  # Show the last runs
  driftnet list runs

Use "driftnet <command> --help" for more information about a command.`)
}
