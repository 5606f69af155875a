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
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/agentberlin/driftnet"
)

// buildLogger returns a slog logger writing to stderr
func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", format)
	}
}

// progressPrinter shows job progress on stdout. With a single seed it
// rewrites one status line, with several it prints a line per finished job.
type progressPrinter struct {
	quiet  bool
	single bool
	mu     sync.Mutex
}

func newProgressPrinter(quiet bool, seeds int) *progressPrinter {
	return &progressPrinter{quiet: quiet, single: seeds == 1}
}

func (p *progressPrinter) forSeed(seed string) driftnet.OnProgressFunc {
	if p.quiet || !p.single {
		return nil
	}
	return func(pr driftnet.Progress) {
		p.mu.Lock()
		defer p.mu.Unlock()
		fmt.Printf("\rRound: %d | Discovered: %d | Extracted: %d | Failed: %d | Duplicates: %d",
			pr.Iteration, pr.Discovered, pr.Succeeded, pr.Failed, pr.Duplicates)
	}
}

func (p *progressPrinter) done(seed string, report *driftnet.Report, err error) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.single {
		fmt.Println()
	}
	if err != nil {
		fmt.Printf("%s: %v (%d items kept)\n", seed, err, len(report.Items))
		return
	}
	fmt.Printf("%s: %d items, %d failed, mode %s, stopped: %s\n",
		seed, len(report.Items), len(report.Errors),
		report.Pagination.Mode, report.Pagination.StopReason)
}
