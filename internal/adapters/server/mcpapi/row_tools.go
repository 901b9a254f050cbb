package mcpapi

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/vrognas/redmyne/internal/adapters/bridge"
	"github.com/vrognas/redmyne/internal/app"
)

// registerRowTools registers row-level editing tools on top of the core week
// and queue tools.
func registerRowTools(srv *mcpserver.MCPServer, svc *app.Service, view *bridge.Bridge) {
	srv.AddTool(
		mcp.NewTool(
			"timesheet_add_row",
			mcp.WithDescription("Add an empty draft row to the loaded week. Hours are staged separately with timesheet_update_cell."),
			mcp.WithNumber("issue_id", mcp.Required(), mcp.Description("Issue identifier")),
			mcp.WithNumber("activity_id", mcp.Required(), mcp.Description("Activity identifier from timesheet_activities")),
			mcp.WithNumber("project_id", mcp.Description("Optional project identifier")),
			mcp.WithString("comment", mcp.Description("Optional comment")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			issueID, err := req.RequireInt("issue_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			activityID, err := req.RequireInt("activity_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			row, err := svc.AddRow(ctx, app.AddRowInput{
				ProjectID:  int64(req.GetInt("project_id", 0)),
				IssueID:    int64(issueID),
				ActivityID: int64(activityID),
				Comment:    req.GetString("comment", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"rowId":      row.ID,
				"issueId":    row.IssueID,
				"activityId": row.ActivityID,
				"comment":    row.Comment,
			})
			if err != nil {
				return nil, fmt.Errorf("encode timesheet_add_row result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_update_row_field",
			mcp.WithDescription("Change one identity field of a row. Saved rows keep the change staged until timesheet_commit."),
			mcp.WithString("row_id", mcp.Required(), mcp.Description("Row identifier")),
			mcp.WithString("field", mcp.Required(), mcp.Description("Field to change"), mcp.Enum("issue", "activity", "comment")),
			mcp.WithNumber("issue_id", mcp.Description("New issue id when field is issue")),
			mcp.WithNumber("activity_id", mcp.Description("New activity id when field is activity")),
			mcp.WithString("comment", mcp.Description("New comment when field is comment")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rowID, err := req.RequireString("row_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			field, err := req.RequireString("field")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			change := app.FieldChange{
				Field:      app.RowField(field),
				IssueID:    int64(req.GetInt("issue_id", 0)),
				ActivityID: int64(req.GetInt("activity_id", 0)),
				Comment:    req.GetString("comment", ""),
			}
			if err := svc.UpdateRowField(ctx, rowID, change); err != nil {
				return toolResultFromError(err), nil
			}
			return respondRender(ctx, view, "timesheet_update_row_field")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_delete_row",
			mcp.WithDescription("Delete a row. Saved entries stage deletes that apply on timesheet_commit; drafts are dropped."),
			mcp.WithString("row_id", mcp.Required(), mcp.Description("Row identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rowID, err := req.RequireString("row_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := svc.DeleteRow(ctx, rowID); err != nil {
				return toolResultFromError(err), nil
			}
			return respondRender(ctx, view, "timesheet_delete_row")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_restore_row",
			mcp.WithDescription("Bring back a deleted row before its staged deletes are committed."),
			mcp.WithString("row_id", mcp.Required(), mcp.Description("Row identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rowID, err := req.RequireString("row_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := svc.RestoreRow(rowID); err != nil {
				return toolResultFromError(err), nil
			}
			return respondRender(ctx, view, "timesheet_restore_row")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_duplicate_row",
			mcp.WithDescription("Duplicate a row into a draft copy carrying the same identity and hours."),
			mcp.WithString("row_id", mcp.Required(), mcp.Description("Row identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rowID, err := req.RequireString("row_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			row, err := svc.DuplicateRow(ctx, rowID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"rowId": row.ID})
			if err != nil {
				return nil, fmt.Errorf("encode timesheet_duplicate_row result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_merge_entries",
			mcp.WithDescription("Merge several saved entries sharing one row identity into the oldest one."),
			mcp.WithArray("entry_ids", mcp.Required(), mcp.Description("Saved entry ids; at least two")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				EntryIDs []int64 `json:"entry_ids"`
			}
			if err := req.BindArguments(&args); err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			if err := svc.MergeEntries(args.EntryIDs); err != nil {
				return toolResultFromError(err), nil
			}
			return respondRender(ctx, view, "timesheet_merge_entries")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"timesheet_activities",
			mcp.WithDescription("List selectable time-entry activities."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activities, err := svc.Activities(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			dtos := make([]bridge.ActivityDTO, 0, len(activities))
			for _, a := range activities {
				dtos = append(dtos, bridge.ActivityDTO{ID: a.ID, Name: a.Name})
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"activities": dtos})
			if err != nil {
				return nil, fmt.Errorf("encode timesheet_activities result: %w", err)
			}
			return result, nil
		},
	)
}
