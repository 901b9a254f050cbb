package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vrognas/redmyne/internal/app"
	"github.com/vrognas/redmyne/internal/domain"
)

type remoteCall struct {
	method string
	path   string
}

type fakeRemote struct {
	entries    map[string][]domain.TimeEntry
	activities []domain.Activity
	calls      []remoteCall
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{entries: map[string][]domain.TimeEntry{}}
}

func (f *fakeRemote) Create(_ context.Context, path string, _ domain.EntryBody) error {
	f.calls = append(f.calls, remoteCall{method: "POST", path: path})
	return nil
}

func (f *fakeRemote) Update(_ context.Context, path string, _ domain.EntryBody) error {
	f.calls = append(f.calls, remoteCall{method: "PUT", path: path})
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, path string) error {
	f.calls = append(f.calls, remoteCall{method: "DELETE", path: path})
	return nil
}

func (f *fakeRemote) ListWeek(_ context.Context, week domain.Week) ([]domain.TimeEntry, error) {
	return f.entries[week.String()], nil
}

func (f *fakeRemote) ListActivities(context.Context) ([]domain.Activity, error) {
	return f.activities, nil
}

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := f.data[key]
	return raw, ok, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeRemote) {
	t.Helper()
	remote := newFakeRemote()
	week := domain.NewWeek(time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC))
	entry, err := domain.NewTimeEntry(domain.TimeEntryInput{
		ID:         101,
		ProjectID:  12,
		IssueID:    5,
		ActivityID: 9,
		SpentOn:    week.Day(1),
		Hours:      2,
		Comment:    "review",
	})
	if err != nil {
		t.Fatalf("NewTimeEntry() error = %v", err)
	}
	remote.entries[week.String()] = []domain.TimeEntry{entry}

	n := 0
	idGen := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	clock := func() time.Time { return time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC) }
	svc := app.NewService(app.NewDraftQueue(), remote, newFakeKV(), idGen, clock, app.ServiceConfig{Source: "mcp"})

	handler, err := NewHandler(Config{}, svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return handler, remote
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "redmyne-test",
				"version": "1.0.0",
			},
		},
	}
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()
	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

func TestHandlerRegistersTimesheetTools(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"timesheet_week",
		"timesheet_update_cell",
		"timesheet_pending",
		"timesheet_commit",
		"timesheet_discard",
		"timesheet_add_row",
		"timesheet_update_row_field",
		"timesheet_delete_row",
		"timesheet_restore_row",
		"timesheet_duplicate_row",
		"timesheet_merge_entries",
		"timesheet_activities",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

func TestTimesheetWeekToolLoadsGrid(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "timesheet_week", map[string]any{"week": "2026-02-18"}))

	structured := toolResultStructured(t, callResp.Result)
	if structured["week"] != "2026-02-16" {
		t.Fatalf("unexpected week %v", structured["week"])
	}
	rows, ok := structured["rows"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("unexpected rows: %#v", structured["rows"])
	}
	if structured["weekTotal"] != float64(2) {
		t.Fatalf("unexpected week total %v", structured["weekTotal"])
	}
}

func TestTimesheetWeekToolRejectsBadDate(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "timesheet_week", map[string]any{"week": "soon"}))

	if got := toolResultText(t, callResp.Result); !strings.HasPrefix(got, "invalid_request:") {
		t.Fatalf("unexpected tool error %q", got)
	}
}

func TestTimesheetUpdateCellRequiresLoadedWeek(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "timesheet_update_cell", map[string]any{
			"row_id":    "entry-101",
			"day_index": 1,
			"hours":     5,
		}))

	if got := toolResultText(t, callResp.Result); !strings.HasPrefix(got, "no_week_loaded:") {
		t.Fatalf("unexpected tool error %q", got)
	}
}

func TestTimesheetUpdateCellFlowsThroughCommit(t *testing.T) {
	handler, remote := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, _ = postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "timesheet_week", map[string]any{"week": "2026-02-16"}))

	_, updateResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(3, "timesheet_update_cell", map[string]any{
			"row_id":    "entry-101",
			"day_index": 1,
			"hours":     5,
		}))
	structured := toolResultStructured(t, updateResp.Result)
	if structured["pendingCount"] != float64(1) {
		t.Fatalf("unexpected pending count %v", structured["pendingCount"])
	}
	if structured["weekTotal"] != float64(5) {
		t.Fatalf("unexpected week total %v", structured["weekTotal"])
	}

	_, pendingResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(4, "timesheet_pending", map[string]any{}))
	pending := toolResultStructured(t, pendingResp.Result)
	if ops, ok := pending["operations"].([]any); !ok || len(ops) != 1 {
		t.Fatalf("unexpected operations: %#v", pending["operations"])
	}

	_, commitResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(5, "timesheet_commit", map[string]any{}))
	report := toolResultStructured(t, commitResp.Result)
	if report["attempted"] != float64(1) || report["applied"] != float64(1) {
		t.Fatalf("unexpected commit report: %#v", report)
	}
	if len(remote.calls) != 1 || remote.calls[0].method != "PUT" || remote.calls[0].path != "/time_entries/101.json" {
		t.Fatalf("unexpected remote calls: %#v", remote.calls)
	}

	_, pendingResp = postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(6, "timesheet_pending", map[string]any{}))
	pending = toolResultStructured(t, pendingResp.Result)
	if ops, ok := pending["operations"].([]any); !ok || len(ops) != 0 {
		t.Fatalf("queue not drained: %#v", pending["operations"])
	}
}

func TestTimesheetAddRowThenStageHours(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, _ = postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "timesheet_week", map[string]any{"week": "2026-02-16"}))

	_, addResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(3, "timesheet_add_row", map[string]any{
			"issue_id":    7,
			"activity_id": 3,
			"comment":     "pairing",
		}))
	added := toolResultStructured(t, addResp.Result)
	if added["rowId"] != "id-1" {
		t.Fatalf("unexpected row id %v", added["rowId"])
	}

	_, updateResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(4, "timesheet_update_cell", map[string]any{
			"row_id":    "id-1",
			"day_index": 2,
			"hours":     4,
		}))
	structured := toolResultStructured(t, updateResp.Result)
	if structured["pendingCount"] != float64(1) {
		t.Fatalf("unexpected pending count %v", structured["pendingCount"])
	}
}

func TestTimesheetDiscardTool(t *testing.T) {
	handler, _ := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, _ = postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "timesheet_week", map[string]any{"week": "2026-02-16"}))
	_, _ = postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(3, "timesheet_update_cell", map[string]any{
			"row_id":    "entry-101",
			"day_index": 1,
			"hours":     5,
		}))

	_, discardResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(4, "timesheet_discard", map[string]any{}))
	structured := toolResultStructured(t, discardResp.Result)
	if structured["discarded"] != float64(1) {
		t.Fatalf("unexpected discard count %v", structured["discarded"])
	}
}

func TestTimesheetActivitiesTool(t *testing.T) {
	handler, remote := newTestHandler(t)
	remote.activities = []domain.Activity{{ID: 9, Name: "Development"}, {ID: 3, Name: "Design"}}
	server := httptest.NewServer(handler)
	defer server.Close()

	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "timesheet_activities", map[string]any{}))

	structured := toolResultStructured(t, callResp.Result)
	activities, ok := structured["activities"].([]any)
	if !ok || len(activities) != 2 {
		t.Fatalf("unexpected activities: %#v", structured["activities"])
	}
}
