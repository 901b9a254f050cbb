package bridgeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vrognas/redmyne/internal/app"
	"github.com/vrognas/redmyne/internal/domain"
)

type remoteCall struct {
	method string
	path   string
}

type fakeRemote struct {
	entries map[string][]domain.TimeEntry
	calls   []remoteCall
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
	return nil, nil
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

func newTestServer(t *testing.T) (*httptest.Server, *fakeRemote) {
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
	svc := app.NewService(app.NewDraftQueue(), remote, newFakeKV(), idGen, clock, app.ServiceConfig{Source: "bridge"})

	server := httptest.NewServer(NewHandler(svc))
	t.Cleanup(server.Close)
	return server, remote
}

func doRequest(t *testing.T, client *http.Client, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

func messageTypes(t *testing.T, decoded map[string]any) []string {
	t.Helper()
	rawMessages, ok := decoded["messages"].([]any)
	if !ok {
		t.Fatalf("messages missing in response: %#v", decoded)
	}
	types := make([]string, 0, len(rawMessages))
	for _, raw := range rawMessages {
		msg, ok := raw.(map[string]any)
		if !ok {
			t.Fatalf("message has unexpected type %T", raw)
		}
		name, _ := msg["type"].(string)
		types = append(types, name)
	}
	return types
}

func TestHandlerRenderLoadsWeek(t *testing.T) {
	server, _ := newTestServer(t)

	resp, decoded := doRequest(t, server.Client(), http.MethodGet, server.URL+"/?week=2026-02-18", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
	if decoded["type"] != "render" || decoded["week"] != "2026-02-16" {
		t.Fatalf("unexpected render payload: %#v", decoded)
	}
	rows, ok := decoded["rows"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("unexpected rows: %#v", decoded["rows"])
	}
}

func TestHandlerRenderWithoutLoadedWeek(t *testing.T) {
	server, _ := newTestServer(t)

	resp, decoded := doRequest(t, server.Client(), http.MethodGet, server.URL+"/", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	errMap, ok := decoded["error"].(map[string]any)
	if !ok || errMap["code"] != "conflict" {
		t.Fatalf("unexpected error payload: %#v", decoded)
	}
}

func TestHandlerRenderRejectsBadWeek(t *testing.T) {
	server, _ := newTestServer(t)

	resp, decoded := doRequest(t, server.Client(), http.MethodGet, server.URL+"/?week=next-tuesday", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	errMap, ok := decoded["error"].(map[string]any)
	if !ok || errMap["code"] != "invalid_request" {
		t.Fatalf("unexpected error payload: %#v", decoded)
	}
}

func TestHandlerDispatchUpdateCell(t *testing.T) {
	server, _ := newTestServer(t)
	doRequest(t, server.Client(), http.MethodGet, server.URL+"/?week=2026-02-16", "")

	resp, decoded := doRequest(t, server.Client(), http.MethodPost, server.URL+"/",
		`{"type":"updateCell","rowId":"entry-101","dayIndex":1,"hours":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if types := messageTypes(t, decoded); len(types) != 1 || types[0] != "updateRow" {
		t.Fatalf("unexpected message types %v", types)
	}

	resp, decoded = doRequest(t, server.Client(), http.MethodGet, server.URL+"/pending", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	ops, ok := decoded["operations"].([]any)
	if !ok || len(ops) != 1 {
		t.Fatalf("unexpected operations: %#v", decoded["operations"])
	}
}

func TestHandlerDispatchUnknownIntent(t *testing.T) {
	server, _ := newTestServer(t)

	resp, decoded := doRequest(t, server.Client(), http.MethodPost, server.URL+"/", `{"type":"zoomGrid"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if types := messageTypes(t, decoded); len(types) != 1 || types[0] != "showToast" {
		t.Fatalf("unexpected message types %v", types)
	}
}

func TestHandlerCommitAppliesQueue(t *testing.T) {
	server, remote := newTestServer(t)
	doRequest(t, server.Client(), http.MethodGet, server.URL+"/?week=2026-02-16", "")
	doRequest(t, server.Client(), http.MethodPost, server.URL+"/",
		`{"type":"updateCell","rowId":"entry-101","dayIndex":1,"hours":5}`)

	resp, decoded := doRequest(t, server.Client(), http.MethodPost, server.URL+"/commit", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded["attempted"] != float64(1) || decoded["applied"] != float64(1) {
		t.Fatalf("unexpected commit report: %#v", decoded)
	}
	if failed, ok := decoded["failed"].([]any); !ok || len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", decoded["failed"])
	}
	if len(remote.calls) != 1 || remote.calls[0].method != "PUT" || remote.calls[0].path != "/time_entries/101.json" {
		t.Fatalf("unexpected remote calls: %#v", remote.calls)
	}

	_, decoded = doRequest(t, server.Client(), http.MethodGet, server.URL+"/pending", "")
	if ops, ok := decoded["operations"].([]any); !ok || len(ops) != 0 {
		t.Fatalf("queue not drained: %#v", decoded["operations"])
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	resp, decoded := doRequest(t, server.Client(), http.MethodDelete, server.URL+"/", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
	if got := resp.Header.Get("Allow"); got != "GET, POST" {
		t.Fatalf("Allow header = %q", got)
	}
	errMap, ok := decoded["error"].(map[string]any)
	if !ok || errMap["code"] != "method_not_allowed" {
		t.Fatalf("unexpected error payload: %#v", decoded)
	}
}

func TestHandlerUnknownRoute(t *testing.T) {
	server, _ := newTestServer(t)

	resp, decoded := doRequest(t, server.Client(), http.MethodGet, server.URL+"/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	errMap, ok := decoded["error"].(map[string]any)
	if !ok || errMap["code"] != "not_found" {
		t.Fatalf("unexpected error payload: %#v", decoded)
	}
}
