package app

import (
	"context"

	"github.com/vrognas/redmyne/internal/domain"
)

// RemoteClient applies queued operations against the time-tracking server and
// fetches week snapshots. Implementations send exactly the method/path/body
// triples they are given.
type RemoteClient interface {
	Create(context.Context, string, domain.EntryBody) error
	Update(context.Context, string, domain.EntryBody) error
	Delete(context.Context, string) error
	ListWeek(context.Context, domain.Week) ([]domain.TimeEntry, error)
	ListActivities(context.Context) ([]domain.Activity, error)
}

// KeyValueStore persists per-week draft rows and view preferences.
type KeyValueStore interface {
	Get(context.Context, string) ([]byte, bool, error)
	Set(context.Context, string, []byte) error
	Delete(context.Context, string) error
}
