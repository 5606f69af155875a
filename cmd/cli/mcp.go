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
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/mcp"
	"github.com/agentberlin/driftnet/internal/store"
)

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)

	var configFile, httpAddr, logLevel, dbPath string
	var render, noStore bool
	fs.StringVar(&configFile, "config", "", "YAML config file")
	fs.StringVar(&configFile, "c", "", "YAML config file (shorthand)")
	fs.StringVar(&httpAddr, "http", "", "Serve streamable HTTP on this address instead of stdio, e.g. :8090")
	fs.BoolVar(&render, "render", false, "Enable headless Chrome")
	fs.StringVar(&dbPath, "cache-path", "", "sqlite cache file (default ~/.driftnet/cache.db)")
	fs.BoolVar(&noStore, "no-store", false, "Use an in-memory cache and do not record runs")
	fs.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	fs.Usage = func() {
		fmt.Println(`Usage: driftnet mcp [flags]

Serve the crawl_listing and classify_links tools over the Model Context Protocol.
Logs go to stderr, stdout carries the protocol.

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	// stdout belongs to the protocol in stdio mode
	logger, err := buildLogger(logLevel, "json")
	if err != nil {
		return err
	}

	cfg := driftnet.NewDefaultConfig()
	if configFile != "" {
		if cfg, err = driftnet.LoadConfig(configFile); err != nil {
			return err
		}
	}
	if render {
		cfg.Rendering.Enabled = true
	}
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := mcp.Options{Config: cfg, Logger: logger}
	if !noStore {
		var st *store.Store
		if st, err = openStore(dbPath); err != nil {
			return err
		}
		defer st.Close()
		opts.Store = st
	}
	if cfg.Rendering.Enabled {
		session, err := driftnet.OpenChromeSession(ctx, cfg.Rendering, cfg.HTTP.UserAgent)
		if err != nil {
			return err
		}
		defer session.Close()
		opts.ResolverOptions = append(opts.ResolverOptions, driftnet.WithRenderer(session))
	}

	server, err := mcp.NewMCPServer(opts)
	if err != nil {
		return err
	}
	defer server.Close()

	if httpAddr != "" {
		return server.RunHTTP(ctx, httpAddr)
	}
	return server.Run(ctx)
}
