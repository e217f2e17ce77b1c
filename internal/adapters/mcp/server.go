package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
)

const (
	serverName    = "mailbills-assistant"
	serverVersion = "1.0.0"
)

// Server exposes the pipeline as MCP tools for assistants that talk over stdio.
type Server struct {
	pipeline ports.PipelineService
	logger   *slog.Logger
}

func New(pipeline ports.PipelineService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: pipeline, logger: logger}
}

func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("interpret_text",
		mcp.WithDescription("Summarize a letter or bill given as plain text and translate the summary."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text of the document")),
		mcp.WithString("target_lang", mcp.Description("Language for the translated summary, e.g. es")),
		mcp.WithString("ui_lang", mcp.Description("Language of the explanation, defaults to en")),
	), s.interpretText)

	srv.AddTool(mcp.NewTool("current_run",
		mcp.WithDescription("Return the state of the most recent document run."),
	), s.currentRun)

	srv.AddTool(mcp.NewTool("clear_run",
		mcp.WithDescription("Forget the current document and its results."),
	), s.clearRun)

	return srv
}

func (s *Server) interpretText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text must not be empty"), nil
	}

	// No client id: a local assistant session is never metered.
	run, err := s.pipeline.Run(ctx, domain.Submission{
		Files: []domain.SubmittedFile{{
			Name:         "document.txt",
			DeclaredMIME: "text/plain",
			Data:         []byte(text),
		}},
		TargetLang: req.GetString("target_lang", ""),
		UILang:     req.GetString("ui_lang", ""),
	})
	if err != nil {
		s.logger.Warn("mcp_interpret_failed", "run_id", run.ID, "error", err)
		return mcp.NewToolResultError(domain.UserMessage(err)), nil
	}
	return runResult(run)
}

func (s *Server) currentRun(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, ok := s.pipeline.Current()
	if !ok {
		return mcp.NewToolResultError("No document has been processed yet."), nil
	}
	return runResult(run)
}

func (s *Server) clearRun(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.pipeline.Clear()
	return mcp.NewToolResultText("cleared"), nil
}

func runResult(run domain.PipelineRun) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
