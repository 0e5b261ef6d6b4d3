// Package main is the entry point for the semcache server, an MCP tool
// server exposing the Cache Controller over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/blueberrycongee/semcache/internal/config"
	"github.com/blueberrycongee/semcache/internal/semcache"
	"github.com/blueberrycongee/semcache/internal/tooldispatcher"
)

func main() {
	if err := run(); err != nil {
		slog.Error("semcached failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/semcache.yaml", "path to configuration file")
	flag.Parse()

	// The MCP transport owns stdout for protocol framing; diagnostics go
	// to stderr only.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting semcache", "version", "0.1.0")

	cfgManager, err := config.NewManager(*configPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer func() { _ = cfgManager.Close() }()

	cfg := cfgManager.Get()

	controller, embedder, err := semcache.NewFromConfig(cfg.ToSemcacheConfig())
	if err != nil {
		return fmt.Errorf("failed to construct cache controller: %w", err)
	}
	defer func() {
		if err := controller.Destroy(); err != nil {
			logger.Error("failed to destroy cache controller", "error", err)
		}
	}()

	if cfg.SnapshotDir != "" {
		if err := controller.Restore(cfg.SnapshotDir); err != nil {
			logger.Warn("no prior snapshot restored", "dir", cfg.SnapshotDir, "error", err)
		} else {
			logger.Info("restored cache snapshot", "dir", cfg.SnapshotDir)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watchErr := cfgManager.Watch(ctx); watchErr != nil {
		logger.Warn("config hot-reload disabled", "error", watchErr)
	}

	dispatcher := tooldispatcher.New(controller, embedder)

	mcpServer := server.NewMCPServer("semcache", "0.1.0", server.WithToolCapabilities(true))
	registerTools(mcpServer, dispatcher)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("serving MCP tools over stdio")
		serverErr <- server.ServeStdio(mcpServer)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down semcache...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("mcp server error: %w", err)
		}
	}

	if cfg.SnapshotDir != "" {
		if err := controller.Snapshot(cfg.SnapshotDir); err != nil {
			logger.Error("failed to snapshot cache before shutdown", "error", err)
		} else {
			logger.Info("snapshotted cache", "dir", cfg.SnapshotDir)
		}
	}

	logger.Info("semcache stopped")
	return nil
}

// registerTools wires the five MCP tools to the
// dispatcher's methods.
func registerTools(s *server.MCPServer, d *tooldispatcher.Dispatcher) {
	s.AddTool(mcp.NewTool("ai_complete",
		mcp.WithDescription("Look up a cached response for prompt by exact or semantic match"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("the prompt to look up")),
		mcp.WithString("model", mcp.Description("the upstream model a hit would have avoided calling")),
		mcp.WithNumber("similarityThreshold", mcp.Description("override the configured similarity threshold")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p tooldispatcher.AICompleteParams
		if err := req.BindArguments(&p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return d.AIComplete(ctx, p), nil
	})

	s.AddTool(mcp.NewTool("cache_check",
		mcp.WithDescription("Check whether prompt has a cached response, without recording a completion"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("the prompt to look up")),
		mcp.WithNumber("similarityThreshold", mcp.Description("override the configured similarity threshold")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p tooldispatcher.CacheCheckParams
		if err := req.BindArguments(&p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return d.CacheCheck(ctx, p), nil
	})

	s.AddTool(mcp.NewTool("cache_store",
		mcp.WithDescription("Store a prompt/response pair in the cache"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("the prompt to cache")),
		mcp.WithString("response", mcp.Required(), mcp.Description("the response to cache")),
		mcp.WithString("ttl", mcp.Description("entry lifetime, e.g. \"1h\"")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var raw struct {
			Prompt    string    `json:"prompt"`
			Response  string    `json:"response"`
			Embedding []float32 `json:"embedding,omitempty"`
			Metadata  any       `json:"metadata,omitempty"`
			TTL       string    `json:"ttl,omitempty"`
		}
		if err := req.BindArguments(&raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p := tooldispatcher.CacheStoreParams{
			Prompt:    raw.Prompt,
			Response:  raw.Response,
			Embedding: raw.Embedding,
			Metadata:  raw.Metadata,
		}
		if raw.TTL != "" {
			if ttl, err := time.ParseDuration(raw.TTL); err == nil {
				p.TTL = ttl
			}
		}
		return d.CacheStore(ctx, p), nil
	})

	s.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Return cache size, hit rate, and savings statistics"),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return d.CacheStats(ctx), nil
	})

	s.AddTool(mcp.NewTool("generate_embedding",
		mcp.WithDescription("Generate an embedding vector for text using the configured embedder"),
		mcp.WithString("text", mcp.Required(), mcp.Description("the text to embed")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p tooldispatcher.GenerateEmbeddingParams
		if err := req.BindArguments(&p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return d.GenerateEmbedding(ctx, p), nil
	})
}
