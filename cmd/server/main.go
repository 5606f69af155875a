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

// driftnet HTTP Server
//
// REST API for running crawl jobs in the background.
//
// Usage:
//
//	driftnet-server [flags]
//
// Flags:
//
//	-host string    Host to bind the server to (default "0.0.0.0")
//	-port int       Port to run the server on (default 8080)
//	-config string  YAML config file
//	-render         Enable headless Chrome
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/server"
	"github.com/agentberlin/driftnet/internal/store"
	"github.com/agentberlin/driftnet/internal/version"
)

func main() {
	// Parse command-line flags
	port := flag.Int("port", 8080, "Port to run the HTTP server on")
	host := flag.String("host", "0.0.0.0", "Host to bind the HTTP server to")
	configFile := flag.String("config", "", "YAML config file")
	render := flag.Bool("render", false, "Enable headless Chrome")
	dbPath := flag.String("cache-path", "", "sqlite cache file (default ~/.driftnet/cache.db)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("driftnet server %s\n", version.CurrentVersion)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(logger, fmt.Sprintf("%s:%d", *host, *port), *configFile, *dbPath, *render); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, configFile, dbPath string, render bool) error {
	cfg := driftnet.NewDefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = driftnet.LoadConfig(configFile); err != nil {
			return err
		}
	}
	if render {
		cfg.Rendering.Enabled = true
	}
	cfg.Logger = logger

	if dbPath == "" {
		var err error
		if dbPath, err = store.DefaultPath(); err != nil {
			return err
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []driftnet.ResolverOption{driftnet.WithCacheStore(st)}
	if cfg.Rendering.Enabled {
		session, err := driftnet.OpenChromeSession(ctx, cfg.Rendering, cfg.HTTP.UserAgent)
		if err != nil {
			return err
		}
		defer session.Close()
		opts = append(opts, driftnet.WithRenderer(session))
	}
	resolver, err := driftnet.NewResolver(cfg, opts...)
	if err != nil {
		return err
	}
	scheduler, err := driftnet.NewScheduler(cfg, resolver)
	if err != nil {
		return err
	}

	srv := server.NewServer(scheduler, st, logger)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting driftnet HTTP server", "addr", addr, "version", version.CurrentVersion)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown()
	return httpServer.Shutdown(shutdownCtx)
}
