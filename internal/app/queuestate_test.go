package app

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/vrognas/redmyne/internal/domain"
)

func TestQueueStateRoundTrip(t *testing.T) {
	remote := newFakeRemote()
	svc, kv := newTestService(t, remote)
	loadTestWeek(t, svc, remote, makeEntry(t, testWeek(t), 101, 5, 9, 0, 2, ""))

	row, err := svc.AddRow(context.Background(), AddRowInput{IssueID: 7, ActivityID: 3, Comment: "pairing"})
	if err != nil {
		t.Fatalf("AddRow() error = %v", err)
	}
	if err := svc.UpdateCell("entry-101", 0, 5); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}
	if err := svc.UpdateCell(row.ID, 1, 3); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}
	want := svc.Pending()
	if len(want) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(want))
	}

	if err := svc.SaveQueue(context.Background()); err != nil {
		t.Fatalf("SaveQueue() error = %v", err)
	}

	other := NewService(NewDraftQueue(), remote, kv, nil, nil, ServiceConfig{Source: "other"})
	restored, err := other.RestoreQueue(context.Background())
	if err != nil {
		t.Fatalf("RestoreQueue() error = %v", err)
	}
	if restored != 2 {
		t.Fatalf("expected 2 restored ops, got %d", restored)
	}
	if !reflect.DeepEqual(other.Pending(), want) {
		t.Fatalf("restored queue differs:\n%+v\n%+v", other.Pending(), want)
	}

	grid, err := other.LoadWeek(context.Background(), testWeek(t))
	if err != nil {
		t.Fatalf("LoadWeek() error = %v", err)
	}
	if got := grid.Rows[0].Days[0].Hours; got != 5 {
		t.Fatalf("restored update not replayed, hours = %v", got)
	}
	draft := grid.RowByID(row.ID)
	if draft == nil || draft.Days[1].Hours != 3 {
		t.Fatalf("restored create not replayed onto the draft row: %+v", draft)
	}
}

func TestRestoreQueueWithoutState(t *testing.T) {
	remote := newFakeRemote()
	svc, _ := newTestService(t, remote)

	restored, err := svc.RestoreQueue(context.Background())
	if err != nil {
		t.Fatalf("RestoreQueue() error = %v", err)
	}
	if restored != 0 {
		t.Fatalf("expected 0 restored ops, got %d", restored)
	}
}

func TestSaveQueueEmptyRemovesState(t *testing.T) {
	remote := newFakeRemote()
	svc, kv := newTestService(t, remote)
	loadTestWeek(t, svc, remote, makeEntry(t, testWeek(t), 101, 5, 9, 0, 2, ""))

	if err := svc.UpdateCell("entry-101", 0, 5); err != nil {
		t.Fatalf("UpdateCell() error = %v", err)
	}
	if err := svc.SaveQueue(context.Background()); err != nil {
		t.Fatalf("SaveQueue() error = %v", err)
	}
	if _, ok := kv.data[queueStateKey]; !ok {
		t.Fatal("queue state not persisted")
	}

	svc.DiscardAll()
	if err := svc.SaveQueue(context.Background()); err != nil {
		t.Fatalf("SaveQueue() error = %v", err)
	}
	if _, ok := kv.data[queueStateKey]; ok {
		t.Fatal("empty queue must remove the persisted state")
	}
}

func TestRestoreQueueSkipsUnbuildableRecords(t *testing.T) {
	remote := newFakeRemote()
	svc, kv := newTestService(t, remote)
	kv.data[queueStateKey] = []byte(`{
		"version": "redmyne.queue.v1",
		"operations": [
			{"id": "op-1", "type": "update", "timestamp": "2026-02-20T10:00:00Z",
			 "resourceKey": "ts:timeentry:101", "resourceId": 101,
			 "method": "PUT", "path": "/time_entries/101.json", "body": {"hours": 5}},
			{"id": "op-2", "type": "create", "timestamp": "2026-02-20T10:01:00Z",
			 "resourceKey": "ts:timeentry:new:7:3:2026-02-17", "tempId": "garbage",
			 "method": "POST", "path": "/time_entries.json", "body": {"hours": 3}}
		]
	}`)

	restored, err := svc.RestoreQueue(context.Background())
	if err != nil {
		t.Fatalf("RestoreQueue() error = %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 restored op, got %d", restored)
	}
	op, ok := svc.queue.Get("ts:timeentry:101")
	if !ok || op.Type != domain.OperationUpdate || op.Payload.Body.Hours != 5 {
		t.Fatalf("unexpected restored op %+v", op)
	}
}

func TestRestoreQueueRejectsBadState(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "unknown version",
			raw:  `{"version": "redmyne.queue.v9", "operations": []}`,
			want: "unsupported queue state version",
		},
		{
			name: "missing id",
			raw:  `{"version": "redmyne.queue.v1", "operations": [{"type": "update", "resourceKey": "ts:timeentry:101"}]}`,
			want: "operations[0].id is required",
		},
		{
			name: "bad type",
			raw:  `{"version": "redmyne.queue.v1", "operations": [{"id": "op-1", "type": "upsert", "resourceKey": "ts:timeentry:101"}]}`,
			want: "type must be",
		},
		{
			name: "duplicate key",
			raw: `{"version": "redmyne.queue.v1", "operations": [
				{"id": "op-1", "type": "delete", "resourceKey": "ts:timeentry:101"},
				{"id": "op-2", "type": "update", "resourceKey": "ts:timeentry:101"}
			]}`,
			want: "duplicate resource key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeRemote()
			svc, kv := newTestService(t, remote)
			kv.data[queueStateKey] = []byte(tt.raw)

			_, err := svc.RestoreQueue(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
