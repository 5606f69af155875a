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
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agentberlin/driftnet/internal/store"
)

func runList(args []string) error {
	if len(args) < 1 {
		printListUsage()
		return fmt.Errorf("subcommand required: runs")
	}

	subcommand := args[0]

	switch subcommand {
	case "runs":
		return runListRuns(args[1:])
	case "help", "-h", "--help":
		printListUsage()
		return nil
	default:
		printListUsage()
		return fmt.Errorf("unknown subcommand: %s", subcommand)
	}
}

func printListUsage() {
	fmt.Println(`Usage: driftnet list <subcommand> [flags]

Subcommands:
  runs        List previous crawl runs recorded in the sqlite cache

Examples:
  # List the last 20 runs
  driftnet list runs

  # List runs of one seed as JSON
  driftnet list runs --seed https://example.com/news --json`)
}

func runListRuns(args []string) error {
	fs := flag.NewFlagSet("list runs", flag.ExitOnError)

	var seed, dbPath string
	var limit int
	var jsonOutput bool
	fs.StringVar(&seed, "seed", "", "Only runs of this seed URL")
	fs.StringVar(&seed, "s", "", "Seed URL (shorthand)")
	fs.IntVar(&limit, "limit", 20, "Maximum number of runs")
	fs.StringVar(&dbPath, "cache-path", "", "sqlite cache file (default ~/.driftnet/cache.db)")
	fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Println(`Usage: driftnet list runs [flags]

List previous crawl runs, newest first.

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(seed, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Printf("%-6s %-40s %-17s %-16s %-8s %-8s %-10s\n", "ID", "Seed", "Date", "Mode", "Items", "Failed", "Duration")
	fmt.Println("-------------------------------------------------------------------------------------------------------------")

	for _, r := range runs {
		date := time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04")
		fmt.Printf("%-6d %-40s %-17s %-16s %-8d %-8d %-10s\n",
			r.ID, truncate(r.Seed, 40), date, r.Mode, r.Succeeded, r.Failed, formatDuration(r.DurationMs))
		if r.Error != "" {
			fmt.Printf("       error: %s\n", r.Error)
		}
	}

	return nil
}

// openStore opens the sqlite cache at path, or at the default location
func openStore(path string) (*store.Store, error) {
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}
	return st, nil
}

// truncate truncates a string to the specified length
func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// formatDuration formats a duration in milliseconds to a human-readable string
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := ms / 1000
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
}
