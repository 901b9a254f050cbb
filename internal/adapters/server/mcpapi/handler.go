// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/vrognas/redmyne/internal/adapters/bridge"
	"github.com/vrognas/redmyne/internal/app"
	"github.com/vrognas/redmyne/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the timesheet tools.
func NewHandler(cfg Config, svc *app.Service) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("timesheet service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	view := bridge.NewBridge(svc)
	registerWeekTools(mcpSrv, svc, view)
	registerQueueTools(mcpSrv, svc)
	registerRowTools(mcpSrv, svc, view)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "redmyne"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerWeekTools registers the `timesheet_week` and `timesheet_update_cell` tools.
func registerWeekTools(srv *mcpserver.MCPServer, svc *app.Service, view *bridge.Bridge) {
	srv.AddTool(
		mcp.NewTool(
			"timesheet_week",
			mcp.WithDescription("Load one week of the timesheet and return the merged grid with totals and staged changes."),
			mcp.WithString("week", mcp.Required(), mcp.Description("Any date inside the week, formatted yyyy-mm-dd")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			weekArg, err := req.RequireString("week")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			week, err := domain.ParseWeek(weekArg)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if _, err := svc.LoadWeek(ctx, week); err != nil {
				return toolResultFromError(err), nil
			}
			return respondRender(ctx, view, "timesheet_week")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_update_cell",
			mcp.WithDescription("Stage an hour change for one row and day. Nothing reaches the server until timesheet_commit."),
			mcp.WithString("row_id", mcp.Required(), mcp.Description("Row identifier from timesheet_week")),
			mcp.WithNumber("day_index", mcp.Required(), mcp.Description("0=Monday through 6=Sunday")),
			mcp.WithNumber("hours", mcp.Required(), mcp.Description("New hour value; 0 stages a delete for a saved entry")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rowID, err := req.RequireString("row_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			day, err := req.RequireInt("day_index")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			hours, err := req.RequireFloat("hours")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := svc.UpdateCell(rowID, day, hours); err != nil {
				return toolResultFromError(err), nil
			}
			return respondRender(ctx, view, "timesheet_update_cell")
		},
	)
}

// registerQueueTools registers the `timesheet_pending`, `timesheet_commit`, and
// `timesheet_discard` tools.
func registerQueueTools(srv *mcpserver.MCPServer, svc *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"timesheet_pending",
			mcp.WithDescription("List staged operations in the order they will be committed."),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ops := svc.Pending()
			descriptions := make([]string, 0, len(ops))
			for _, op := range ops {
				descriptions = append(descriptions, op.Description)
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"operations": descriptions})
			if err != nil {
				return nil, fmt.Errorf("encode timesheet_pending result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_commit",
			mcp.WithDescription("Apply every staged operation against the remote server. Rejected operations stay staged."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			report, err := svc.Commit(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			failed := make([]map[string]string, 0, len(report.Failed))
			for _, failure := range report.Failed {
				failed = append(failed, map[string]string{
					"description": failure.Description,
					"error":       failure.Err.Error(),
				})
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"attempted": report.Attempted,
				"applied":   report.Applied,
				"failed":    failed,
			})
			if err != nil {
				return nil, fmt.Errorf("encode timesheet_commit result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_discard",
			mcp.WithDescription("Drop every staged operation without touching the remote server."),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			discarded := svc.DiscardAll()
			result, err := mcp.NewToolResultJSON(map[string]any{"discarded": discarded})
			if err != nil {
				return nil, fmt.Errorf("encode timesheet_discard result: %w", err)
			}
			return result, nil
		},
	)
}

// respondRender encodes the refreshed week view as the tool result.
func respondRender(ctx context.Context, view *bridge.Bridge, toolName string) (*mcp.CallToolResult, error) {
	render, err := view.RenderView(ctx)
	if err != nil {
		return toolResultFromError(err), nil
	}
	result, err := mcp.NewToolResultJSON(render)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", toolName, err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, app.ErrNoWeekLoaded):
		return mcp.NewToolResultError("no_week_loaded: " + err.Error())
	case errors.Is(err, app.ErrRowNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidDayIndex),
		errors.Is(err, domain.ErrInvalidHours),
		errors.Is(err, domain.ErrInvalidIssueID),
		errors.Is(err, domain.ErrInvalidActivityID),
		errors.Is(err, app.ErrUnknownField),
		errors.Is(err, app.ErrNothingToMerge):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, app.ErrNothingToRestore),
		errors.Is(err, app.ErrEmptyClipboard),
		errors.Is(err, app.ErrNothingToUndo):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
