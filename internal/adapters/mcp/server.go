package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
)

// Tools exposes the agent operations as MCP tools.
type Tools struct {
	parser   ports.InvoiceParser
	updater  ports.Updater
	settings ports.SettingsService
}

func NewTools(parser ports.InvoiceParser, updater ports.Updater, settings ports.SettingsService) *Tools {
	return &Tools{parser: parser, updater: updater, settings: settings}
}

func (t *Tools) Server(name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("parse_invoice",
		mcp.WithDescription("Extract the text of an invoice PDF, falling back to OCR for scanned documents."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Absolute path of the PDF on this machine.")),
	), t.parseInvoice)
	s.AddTool(mcp.NewTool("update",
		mcp.WithDescription("Check for a newer agent release and install it. The agent restarts when an update is applied."),
	), t.update)
	s.AddTool(mcp.NewTool("save_api_key",
		mcp.WithDescription("Store the API key used for OCR and invoice import requests."),
		mcp.WithString("key", mcp.Required(), mcp.Description("API key value.")),
	), t.saveSetting(t.settings.SaveAPIKey, "key"))
	s.AddTool(mcp.NewTool("load_api_key",
		mcp.WithDescription("Return the stored API key, or an empty string."),
	), t.loadSetting(t.settings.LoadAPIKey))
	s.AddTool(mcp.NewTool("save_api_base_url",
		mcp.WithDescription("Store the base URL of the invoice backend."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Base URL, for example https://api.example.com.")),
	), t.saveSetting(t.settings.SaveAPIBaseURL, "url"))
	s.AddTool(mcp.NewTool("load_api_base_url",
		mcp.WithDescription("Return the stored API base URL, or an empty string."),
	), t.loadSetting(t.settings.LoadAPIBaseURL))

	return s
}

// ServeStdio blocks until ctx is cancelled or stdin is closed.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve mcp stdio: %w", err)
	}
	return nil
}

func (t *Tools) parseInvoice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := t.parser.ParseInvoice(ctx, path)
	if err != nil {
		return toolError("parse_invoice", err), nil
	}
	return mcp.NewToolResultText(result.Text), nil
}

func (t *Tools) update(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outcome, err := t.updater.Update(ctx)
	if err != nil {
		return toolError("update", err), nil
	}
	raw, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("encode update outcome: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (t *Tools) saveSetting(save func(context.Context, string) error, arg string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := req.RequireString(arg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := save(ctx, value); err != nil {
			return toolError(req.Params.Name, err), nil
		}
		return mcp.NewToolResultText("saved"), nil
	}
}

func (t *Tools) loadSetting(load func(context.Context) (string, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := load(ctx)
		if err != nil {
			return toolError(req.Params.Name, err), nil
		}
		return mcp.NewToolResultText(value), nil
	}
}

func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(domain.PublicMessage(err))
}
