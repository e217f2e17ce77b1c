package main

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/mailbills-assistant/internal/adapters/mcp"
	"github.com/kirillkom/mailbills-assistant/internal/bootstrap"
	"github.com/kirillkom/mailbills-assistant/internal/config"
	"github.com/kirillkom/mailbills-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// A local assistant session is never metered.
	cfg.FreeRuns = 0
	// stdout carries the protocol, so logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mailbills-mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := server.ServeStdio(mcpadapter.New(app.Pipeline, logger).MCPServer()); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
