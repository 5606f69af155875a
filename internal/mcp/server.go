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

// Package mcp exposes the acquisition engine as Model Context Protocol tools,
// so an agent can crawl a listing and read back the extracted items.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/store"
	"github.com/agentberlin/driftnet/internal/version"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is announced to MCP clients
const ServerName = "driftnet"

// Options configure NewMCPServer
type Options struct {
	// Config is the engine configuration. nil uses the defaults.
	Config *driftnet.Config
	// ResolverOptions are passed to the shared Resolver, e.g. a renderer
	ResolverOptions []driftnet.ResolverOption
	// Store records job runs and backs the cache tools. Optional.
	Store *store.Store
	// Logger receives server logs. nil discards them.
	Logger *slog.Logger
}

// MCPServer serves crawl tools over MCP. All tool calls share one Resolver,
// so the fetch cache carries over between jobs.
type MCPServer struct {
	server    *mcp.Server
	scheduler *driftnet.Scheduler
	store     *store.Store
	logger    *slog.Logger
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(opts Options) (*MCPServer, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = driftnet.NewDefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	resolverOpts := opts.ResolverOptions
	if opts.Store != nil {
		resolverOpts = append(resolverOpts, driftnet.WithCacheStore(opts.Store))
	}
	resolver, err := driftnet.NewResolver(cfg, resolverOpts...)
	if err != nil {
		return nil, err
	}
	scheduler, err := driftnet.NewScheduler(cfg, resolver)
	if err != nil {
		return nil, err
	}

	s := &MCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: version.CurrentVersion,
		}, nil),
		scheduler: scheduler,
		store:     opts.Store,
		logger:    logger.With("component", "mcp"),
	}
	s.registerTools()

	s.logger.Debug("MCP server initialized")
	return s, nil
}

// GetServer returns the internal MCP server instance
func (s *MCPServer) GetServer() *mcp.Server {
	return s.server
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves
func (s *MCPServer) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP at addr until ctx is done
func (s *MCPServer) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
	httpServer := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	s.logger.Info("serving MCP over HTTP", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the shared fetch cache
func (s *MCPServer) Close() error {
	return s.scheduler.Resolver().Cache().Close()
}
