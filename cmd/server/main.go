// Package main provides the MCP server entry point for the curriculum assistant.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/curriculum-rag/internal/app"
	"github.com/bull/curriculum-rag/internal/config"
	"github.com/bull/curriculum-rag/internal/logger"
	mcpserver "github.com/bull/curriculum-rag/internal/mcp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level)
	if envErr != nil {
		log.Debug("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.IndexOnStartup(ctx); err != nil {
		return err
	}

	server := mcpserver.NewServer(&mcpserver.Config{
		Answerer:    a.RAG,
		Searcher:    a.Retriever,
		Index:       a.Index,
		Assessments: a.Assessments,
		Feedback:    a.Feedback,
	})

	mux := mcpserver.NewMux(server, mcpserver.NewHealthHandler(a.Index, a.Chain.Providers()), nil)
	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.Mode == config.ModeHTTP {
		// HTTP mode: serve MCP over HTTP for remote clients
		log.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		return serve(ctx, httpServer)
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients.
	// The HTTP health endpoint runs in the background for local testing.
	go func() {
		log.Info("Starting health server", "addr", httpServer.Addr)
		if err := serve(ctx, httpServer); err != nil {
			log.Warn("Health server error", "error", err)
		}
	}()

	log.Info("Starting curriculum MCP server (stdio mode)")
	return server.Run(ctx)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
