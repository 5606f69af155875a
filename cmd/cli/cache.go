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
	"flag"
	"fmt"
	"time"
)

func runCache(args []string) error {
	if len(args) < 1 {
		printCacheUsage()
		return fmt.Errorf("subcommand required: stats, entries or purge")
	}

	switch args[0] {
	case "stats":
		return runCacheStats(args[1:])
	case "entries":
		return runCacheEntries(args[1:])
	case "purge":
		return runCachePurge(args[1:])
	case "help", "-h", "--help":
		printCacheUsage()
		return nil
	default:
		printCacheUsage()
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func printCacheUsage() {
	fmt.Println(`Usage: driftnet cache <subcommand> [flags]

Subcommands:
  stats       Show the size of the sqlite fetch cache
  entries     List cached fetch attempts, newest first
  purge       Delete cached attempts older than a duration

Examples:
  driftnet cache stats
  driftnet cache entries --limit 50
  driftnet cache purge --older-than 168h`)
}

func runCacheStats(args []string) error {
	fs := flag.NewFlagSet("cache stats", flag.ExitOnError)
	var dbPath string
	fs.StringVar(&dbPath, "cache-path", "", "sqlite cache file (default ~/.driftnet/cache.db)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Cache:     %s\n", st.Path())
	fmt.Printf("Entries:   %d\n", stats.Entries)
	fmt.Printf("Succeeded: %d\n", stats.Succeeded)
	fmt.Printf("Failed:    %d\n", stats.Failed)
	fmt.Printf("Body size: %.1f MB\n", float64(stats.Bytes)/(1024*1024))
	return nil
}

func runCacheEntries(args []string) error {
	fs := flag.NewFlagSet("cache entries", flag.ExitOnError)
	var dbPath string
	var limit int
	fs.StringVar(&dbPath, "cache-path", "", "sqlite cache file (default ~/.driftnet/cache.db)")
	fs.IntVar(&limit, "limit", 20, "Maximum number of entries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ListEntries(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Cache is empty.")
		return nil
	}

	fmt.Printf("%-17s %-8s %-9s %s\n", "Fetched", "Tier", "Result", "URL")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "failed"
		}
		fmt.Printf("%-17s %-8s %-9s %s\n", e.FetchedAt.Format("2006-01-02 15:04"), e.Tier, result, e.URL)
	}
	return nil
}

func runCachePurge(args []string) error {
	fs := flag.NewFlagSet("cache purge", flag.ExitOnError)
	var dbPath string
	var olderThan time.Duration
	fs.StringVar(&dbPath, "cache-path", "", "sqlite cache file (default ~/.driftnet/cache.db)")
	fs.DurationVar(&olderThan, "older-than", 72*time.Hour, "Delete attempts older than this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Purge(time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d entries.\n", n)
	return nil
}
