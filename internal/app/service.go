package app

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vrognas/redmyne/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Source string
}

// Service orchestrates one weekly grid view over a shared draft queue. Every
// edit becomes a queued operation; the visible grid is always the pristine
// snapshot with the queue replayed on top, so reverting an edit to its
// original value leaves no trace.
type Service struct {
	queue  *DraftQueue
	remote RemoteClient
	kv     KeyValueStore
	idGen  IDGenerator
	clock  Clock
	source string

	mu         sync.Mutex
	snapshot   domain.Grid
	view       domain.Grid
	deleted    map[string]domain.Row
	clipboard  domain.Grid
	lastPaste  []string
	activities []domain.Activity

	viewStale atomic.Bool
}

// NewService constructs a new value for this package.
func NewService(queue *DraftQueue, remote RemoteClient, kv KeyValueStore, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Source == "" {
		cfg.Source = "core"
	}

	s := &Service{
		queue:   queue,
		remote:  remote,
		kv:      kv,
		idGen:   idGen,
		clock:   clock,
		source:  cfg.Source,
		deleted: map[string]domain.Row{},
	}
	queue.Subscribe(s.source, func(string) { s.viewStale.Store(true) })
	return s
}

// Source returns the service's queue source tag.
func (s *Service) Source() string {
	return s.source
}

// LoadWeek fetches the week's entries from the remote server, merges the
// week's persisted draft rows, and returns the grid with all queued
// operations replayed.
func (s *Service) LoadWeek(ctx context.Context, week domain.Week) (domain.Grid, error) {
	entries, err := s.remote.ListWeek(ctx, week)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("load week %s: %w", week, err)
	}
	drafts, err := s.loadDraftRows(ctx, week)
	if err != nil {
		return domain.Grid{}, err
	}

	grid := domain.Grid{Week: week}
	for _, entry := range entries {
		row, ok := domain.RowFromEntry(entry, week)
		if !ok {
			continue
		}
		grid.Rows = append(grid.Rows, row)
	}
	grid.Rows = append(grid.Rows, drafts...)
	grid.SortRows()

	s.mu.Lock()
	s.snapshot = grid
	s.deleted = map[string]domain.Row{}
	s.viewStale.Store(true)
	view := s.viewLocked()
	s.mu.Unlock()
	return view, nil
}

// View returns the current reconciled grid.
func (s *Service) View() (domain.Grid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return domain.Grid{}, ErrNoWeekLoaded
	}
	return s.viewLocked(), nil
}

// Week returns the loaded week, reporting false before the first LoadWeek.
func (s *Service) Week() (domain.Week, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Week, s.weekLoadedLocked()
}

// UpdateCell applies one cell edit. Edits to entry-backed cells queue an
// update or delete; an edit back to the original hours removes the pending
// operation. Edits to unsaved cells queue a create keyed by issue, activity,
// and date, so repeated edits of the same cell replace one another.
func (s *Service) UpdateCell(rowID string, day int, hours float64) error {
	if !dayInRange(day) {
		return domain.ErrInvalidDayIndex
	}
	if hours < 0 {
		return domain.ErrInvalidHours
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return ErrNoWeekLoaded
	}
	view := s.viewLocked()
	row := view.RowByID(rowID)
	if row == nil {
		return nil
	}

	cell := row.Days[day]
	date := s.snapshot.Week.Day(day)
	switch {
	case cell.HasEntry():
		if hours == cell.OriginalHours {
			s.queue.RemoveByKey(domain.EntryKey(cell.EntryID), s.source)
			break
		}
		if hours == 0 {
			op, err := s.deleteEntryOp(cell.EntryID, cell.OriginalHours, date)
			if err != nil {
				return err
			}
			s.queue.Add(op, s.source)
			break
		}
		op, err := s.updateEntryOp(*row, cell.EntryID, hours, date)
		if err != nil {
			return err
		}
		s.queue.Add(op, s.source)
	default:
		if hours == 0 {
			s.queue.RemoveByKey(domain.NewEntryKey(row.IssueID, row.ActivityID, date), s.source)
			break
		}
		op, err := s.createCellOp(*row, day, hours, date)
		if err != nil {
			return err
		}
		s.queue.Add(op, s.source)
	}

	s.viewStale.Store(true)
	return nil
}

// RowField selects the identity field a field edit changes.
type RowField string

// FieldIssue and related constants define package defaults.
const (
	FieldIssue    RowField = "issue"
	FieldActivity RowField = "activity"
	FieldComment  RowField = "comment"
)

// FieldChange holds one row identity edit.
type FieldChange struct {
	Field      RowField
	IssueID    int64
	ActivityID int64
	Comment    string
}

// UpdateRowField changes one identity field of a row. For saved rows the
// change lives only in the queue as full-body updates, one per entry-backed
// cell, and pending creates on the row are re-keyed under the new identity.
// For draft rows the identity is changed in place and persisted.
func (s *Service) UpdateRowField(ctx context.Context, rowID string, change FieldChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return ErrNoWeekLoaded
	}
	view := s.viewLocked()
	row := view.RowByID(rowID)
	if row == nil {
		return nil
	}

	next := *row
	switch change.Field {
	case FieldIssue:
		if change.IssueID <= 0 {
			return domain.ErrInvalidIssueID
		}
		next.IssueID = change.IssueID
	case FieldActivity:
		if change.ActivityID <= 0 {
			return domain.ErrInvalidActivityID
		}
		next.ActivityID = change.ActivityID
	case FieldComment:
		next.Comment = strings.TrimSpace(change.Comment)
	default:
		return ErrUnknownField
	}
	if next.IssueID == row.IssueID && next.ActivityID == row.ActivityID && next.Comment == row.Comment {
		return nil
	}

	if row.IsNew {
		return s.rekeyDraftRowLocked(ctx, *row, next)
	}
	if err := s.restageSavedRowLocked(*row, next); err != nil {
		return err
	}
	s.viewStale.Store(true)
	return nil
}

// rekeyDraftRowLocked rewrites a draft row's identity in the snapshot and
// re-keys its pending creates so later reloads replay them onto the new
// identity.
func (s *Service) rekeyDraftRowLocked(ctx context.Context, row, next domain.Row) error {
	if snap := s.snapshot.RowByID(row.ID); snap != nil {
		snap.IssueID = next.IssueID
		snap.ActivityID = next.ActivityID
		snap.Comment = next.Comment
	}
	for day := 0; day < domain.DaysPerWeek; day++ {
		op, ok := s.pendingCellCreate(row.ID, day)
		if !ok {
			continue
		}
		s.queue.RemoveByKey(op.ResourceKey, s.source)
		created, err := s.createCellOp(next, day, op.Payload.Body.Hours, s.snapshot.Week.Day(day))
		if err != nil {
			return err
		}
		s.queue.Add(created, s.source)
	}
	s.viewStale.Store(true)
	return s.saveDraftRowsLocked(ctx)
}

// restageSavedRowLocked stages the identity change of a saved row: one
// full-body update per entry-backed cell, skipping cells with a pending
// delete, removing ops that land back on the snapshot state, and re-keying
// pending creates on the row's unsaved cells.
func (s *Service) restageSavedRowLocked(row, next domain.Row) error {
	snap := s.snapshot.RowByID(row.ID)
	for day := 0; day < domain.DaysPerWeek; day++ {
		cell := row.Days[day]
		date := s.snapshot.Week.Day(day)
		if cell.HasEntry() {
			key := domain.EntryKey(cell.EntryID)
			if op, ok := s.queue.Get(key); ok && op.Type == domain.OperationDelete {
				continue
			}
			if snap != nil && sameIdentity(next, *snap) && cell.Hours == cell.OriginalHours {
				s.queue.RemoveByKey(key, s.source)
				continue
			}
			op, err := s.updateEntryOp(next, cell.EntryID, cell.Hours, date)
			if err != nil {
				return err
			}
			s.queue.Add(op, s.source)
			continue
		}
		pending, ok := s.pendingCellCreate(row.ID, day)
		if !ok {
			continue
		}
		s.queue.RemoveByKey(pending.ResourceKey, s.source)
		created, err := s.createCellOp(next, day, pending.Payload.Body.Hours, date)
		if err != nil {
			return err
		}
		s.queue.Add(created, s.source)
	}
	return nil
}

// Pending returns the queued operations in insertion order.
func (s *Service) Pending() []domain.DraftOperation {
	return s.queue.All()
}

// DiscardAll drops every queued operation, restores rows deleted in this
// session, and forgets the last paste. It returns the number of operations
// dropped.
func (s *Service) DiscardAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.deleted) > 0 {
		for id, row := range s.deleted {
			s.snapshot.Rows = append(s.snapshot.Rows, row)
			delete(s.deleted, id)
		}
		s.snapshot.SortRows()
	}
	s.lastPaste = nil
	n := s.queue.Clear(s.source)
	s.viewStale.Store(true)
	return n
}

// Activities returns the remote activity catalog, fetched once and cached.
func (s *Service) Activities(ctx context.Context) ([]domain.Activity, error) {
	s.mu.Lock()
	if len(s.activities) > 0 {
		out := slices.Clone(s.activities)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	activities, err := s.remote.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	s.mu.Lock()
	s.activities = activities
	s.mu.Unlock()
	return slices.Clone(activities), nil
}

func (s *Service) weekLoadedLocked() bool {
	return !s.snapshot.Week.IsZero()
}

func (s *Service) viewLocked() domain.Grid {
	if s.viewStale.Swap(false) {
		s.view = Reconcile(s.snapshot, s.queue.All())
	}
	return s.view.Clone()
}

// pendingCellCreate finds the queued create targeting the given row and day,
// whatever resource key it was staged under.
func (s *Service) pendingCellCreate(rowID string, day int) (domain.DraftOperation, bool) {
	for _, op := range s.queue.All() {
		if op.Type != domain.OperationCreate || op.TempID.Kind != domain.TempCell {
			continue
		}
		if op.TempID.RowID == rowID && op.TempID.DayIndex == day {
			return op, true
		}
	}
	return domain.DraftOperation{}, false
}

func (s *Service) createCellOp(row domain.Row, day int, hours float64, date time.Time) (domain.DraftOperation, error) {
	tempID, err := domain.NewCellTempID(row.ID, day)
	if err != nil {
		return domain.DraftOperation{}, err
	}
	return domain.NewDraftOperation(domain.DraftOperationInput{
		ID:          s.idGen(),
		Type:        domain.OperationCreate,
		ResourceKey: domain.NewEntryKey(row.IssueID, row.ActivityID, date),
		TempID:      tempID,
		Description: describeCreate(row.IssueID, hours, date),
		Payload: domain.Payload{
			Method: http.MethodPost,
			Path:   domain.EntriesPath,
			Body:   entryBody(row, date, hours),
		},
	}, s.clock())
}

func (s *Service) updateEntryOp(row domain.Row, entryID int64, hours float64, date time.Time) (domain.DraftOperation, error) {
	return domain.NewDraftOperation(domain.DraftOperationInput{
		ID:          s.idGen(),
		Type:        domain.OperationUpdate,
		ResourceKey: domain.EntryKey(entryID),
		ResourceID:  entryID,
		Description: describeUpdate(entryID, hours, date),
		Payload: domain.Payload{
			Method: http.MethodPut,
			Path:   domain.EntryPath(entryID),
			Body:   entryBody(row, date, hours),
		},
	}, s.clock())
}

func (s *Service) deleteEntryOp(entryID int64, hours float64, date time.Time) (domain.DraftOperation, error) {
	return domain.NewDraftOperation(domain.DraftOperationInput{
		ID:          s.idGen(),
		Type:        domain.OperationDelete,
		ResourceKey: domain.EntryKey(entryID),
		ResourceID:  entryID,
		Description: describeDelete(entryID, hours, date),
		Payload: domain.Payload{
			Method: http.MethodDelete,
			Path:   domain.EntryPath(entryID),
		},
	}, s.clock())
}

func entryBody(row domain.Row, date time.Time, hours float64) domain.EntryBody {
	return domain.EntryBody{
		IssueID:    row.IssueID,
		ProjectID:  row.ProjectID,
		ActivityID: row.ActivityID,
		SpentOn:    date.Format(domain.DateLayout),
		Hours:      hours,
		Comments:   row.Comment,
	}
}

func sameIdentity(a, b domain.Row) bool {
	return a.IssueID == b.IssueID && a.ActivityID == b.ActivityID && a.Comment == b.Comment
}

func describeCreate(issueID int64, hours float64, date time.Time) string {
	return fmt.Sprintf("create %s on %s for issue #%d", formatHours(hours), date.Format(domain.DateLayout), issueID)
}

func describeUpdate(entryID int64, hours float64, date time.Time) string {
	return fmt.Sprintf("set entry #%d to %s on %s", entryID, formatHours(hours), date.Format(domain.DateLayout))
}

func describeDelete(entryID int64, hours float64, date time.Time) string {
	return fmt.Sprintf("delete entry #%d (%s on %s)", entryID, formatHours(hours), date.Format(domain.DateLayout))
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}
