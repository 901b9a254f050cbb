package app

import (
	"cmp"
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/vrognas/redmyne/internal/domain"
)

// AddRowInput holds input values for adding an empty draft row.
type AddRowInput struct {
	ProjectID    int64
	IssueID      int64
	ActivityID   int64
	Comment      string
	ProjectName  string
	ActivityName string
}

// AddRow appends an empty draft row to the loaded week and persists it so a
// reopened view shows it again.
func (s *Service) AddRow(ctx context.Context, in AddRowInput) (domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return domain.Row{}, ErrNoWeekLoaded
	}

	row, err := domain.NewRow(domain.RowInput{
		ID:           s.idGen(),
		ProjectID:    in.ProjectID,
		IssueID:      in.IssueID,
		ActivityID:   in.ActivityID,
		Comment:      in.Comment,
		ProjectName:  in.ProjectName,
		ActivityName: in.ActivityName,
		IsNew:        true,
	})
	if err != nil {
		return domain.Row{}, err
	}
	s.snapshot.Rows = append(s.snapshot.Rows, row)
	s.viewStale.Store(true)
	if err := s.saveDraftRowsLocked(ctx); err != nil {
		return domain.Row{}, err
	}
	return row, nil
}

// DeleteRow removes a row from the grid. A draft row is dropped along with
// its queued creates. A saved row stages one delete per entry-backed cell and
// is kept aside so RestoreRow can bring it back before commit.
func (s *Service) DeleteRow(ctx context.Context, rowID string) error {
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

	if row.IsNew {
		s.snapshot.RemoveRow(rowID)
		s.queue.RemoveByTempIDPrefix(rowID, s.source)
		s.viewStale.Store(true)
		return s.saveDraftRowsLocked(ctx)
	}

	snap, ok := s.snapshot.RemoveRow(rowID)
	if !ok {
		return nil
	}
	for day := 0; day < domain.DaysPerWeek; day++ {
		cell := row.Days[day]
		if cell.HasEntry() {
			op, err := s.deleteEntryOp(cell.EntryID, cell.OriginalHours, s.snapshot.Week.Day(day))
			if err != nil {
				return err
			}
			s.queue.Add(op, s.source)
			continue
		}
		if pending, ok := s.pendingCellCreate(rowID, day); ok {
			s.queue.RemoveByKey(pending.ResourceKey, s.source)
		}
	}
	s.deleted[rowID] = snap
	s.viewStale.Store(true)
	return nil
}

// RestoreRow reinserts a deleted saved row and removes its queued deletes.
func (s *Service) RestoreRow(rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.deleted[rowID]
	if !ok {
		return ErrNothingToRestore
	}
	s.restoreLocked(rowID, row)
	return nil
}

// RestoreRowsByKey restores every deleted row sharing the aggregation key,
// returning how many came back.
func (s *Service) RestoreRowsByKey(key domain.AggregationKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, row := range s.deleted {
		if row.Key() != key {
			continue
		}
		s.restoreLocked(id, row)
		n++
	}
	if n == 0 {
		return 0, ErrNothingToRestore
	}
	return n, nil
}

func (s *Service) restoreLocked(rowID string, row domain.Row) {
	delete(s.deleted, rowID)
	s.snapshot.Rows = append(s.snapshot.Rows, row)
	s.snapshot.SortRows()
	for _, cell := range row.Days {
		if cell.HasEntry() {
			s.queue.RemoveByKey(domain.EntryKey(cell.EntryID), s.source)
		}
	}
	s.viewStale.Store(true)
}

// DuplicateRow copies a row's identity and hours into a fresh draft row with
// no entry backing, staging one create per cell with hours.
func (s *Service) DuplicateRow(ctx context.Context, rowID string) (domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return domain.Row{}, ErrNoWeekLoaded
	}
	view := s.viewLocked()
	src := view.RowByID(rowID)
	if src == nil {
		return domain.Row{}, ErrRowNotFound
	}

	var hours [domain.DaysPerWeek]float64
	for day, cell := range src.Days {
		hours[day] = cell.Hours
	}
	return s.spawnRowLocked(ctx, *src, hours)
}

// DuplicateMergedRow duplicates a merged display row: hours are summed across
// every contributing source row first, then treated as one new draft row.
func (s *Service) DuplicateMergedRow(ctx context.Context, key domain.AggregationKey) (domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return domain.Row{}, ErrNoWeekLoaded
	}
	view := s.viewLocked()
	rows := view.RowsByKey(key)
	if len(rows) == 0 {
		return domain.Row{}, ErrRowNotFound
	}

	var hours [domain.DaysPerWeek]float64
	for _, row := range rows {
		for day, cell := range row.Days {
			hours[day] += cell.Hours
		}
	}
	return s.spawnRowLocked(ctx, aggregateRow(&view, key), hours)
}

func (s *Service) spawnRowLocked(ctx context.Context, identity domain.Row, hours [domain.DaysPerWeek]float64) (domain.Row, error) {
	row, err := domain.NewRow(domain.RowInput{
		ID:              s.idGen(),
		ProjectID:       identity.ProjectID,
		ParentProjectID: identity.ParentProjectID,
		IssueID:         identity.IssueID,
		ActivityID:      identity.ActivityID,
		Comment:         identity.Comment,
		ProjectName:     identity.ProjectName,
		ActivityName:    identity.ActivityName,
		IsNew:           true,
	})
	if err != nil {
		return domain.Row{}, err
	}
	s.snapshot.Rows = append(s.snapshot.Rows, row)
	for day := 0; day < domain.DaysPerWeek; day++ {
		if hours[day] <= 0 {
			continue
		}
		op, err := s.createCellOp(row, day, hours[day], s.snapshot.Week.Day(day))
		if err != nil {
			return domain.Row{}, err
		}
		s.queue.Add(op, s.source)
	}
	s.viewStale.Store(true)
	if err := s.saveDraftRowsLocked(ctx); err != nil {
		return domain.Row{}, err
	}
	return row, nil
}

// CopyWeek captures the current reconciled grid so it can be pasted into
// another week.
func (s *Service) CopyWeek() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return ErrNoWeekLoaded
	}
	s.clipboard = s.viewLocked()
	return nil
}

// PasteWeek stages one create per copied merged row and day with hours, dated
// into the loaded week. The staged operation ids are remembered so UndoPaste
// can remove exactly this batch.
func (s *Service) PasteWeek() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return 0, ErrNoWeekLoaded
	}
	if len(s.clipboard.Rows) == 0 {
		return 0, ErrEmptyClipboard
	}

	var ids []string
	for _, merged := range s.clipboard.Merged() {
		row := domain.Row{
			ProjectID:    merged.ProjectID,
			IssueID:      merged.Key.IssueID,
			ActivityID:   merged.Key.ActivityID,
			Comment:      merged.Key.Comment,
			ProjectName:  merged.ProjectName,
			ActivityName: merged.ActivityName,
		}
		for day := 0; day < domain.DaysPerWeek; day++ {
			if merged.Days[day].Hours <= 0 {
				continue
			}
			op, err := s.pasteOp(row, s.snapshot.Week.Day(day), merged.Days[day].Hours)
			if err != nil {
				return 0, err
			}
			s.queue.Add(op, s.source)
			ids = append(ids, op.ID)
		}
	}
	s.lastPaste = ids
	s.viewStale.Store(true)
	return len(ids), nil
}

func (s *Service) pasteOp(row domain.Row, date time.Time, hours float64) (domain.DraftOperation, error) {
	tempID, err := domain.NewPasteTempID(s.idGen())
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

// UndoPaste removes the operations staged by the most recent PasteWeek,
// returning how many were still queued.
func (s *Service) UndoPaste() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lastPaste) == 0 {
		return 0, ErrNothingToUndo
	}
	n := 0
	for _, id := range s.lastPaste {
		if s.queue.Remove(id, s.source) {
			n++
		}
	}
	s.lastPaste = nil
	s.viewStale.Store(true)
	return n, nil
}

// MergeEntries collapses two or more saved entries into the one with the
// lowest id: one update carrying the summed hours plus one delete per other
// entry.
func (s *Service) MergeEntries(entryIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return ErrNoWeekLoaded
	}
	view := s.viewLocked()

	type mergeSource struct {
		row  domain.Row
		day  int
		cell domain.Cell
	}
	var sources []mergeSource
	seen := map[int64]bool{}
	for _, id := range entryIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		row, day, ok := view.CellByEntry(id)
		if !ok {
			continue
		}
		sources = append(sources, mergeSource{row: *row, day: day, cell: row.Days[day]})
	}
	if len(sources) < 2 {
		return ErrNothingToMerge
	}

	slices.SortFunc(sources, func(a, b mergeSource) int {
		return cmp.Compare(a.cell.EntryID, b.cell.EntryID)
	})
	var total float64
	for _, src := range sources {
		total += src.cell.Hours
	}

	survivor := sources[0]
	op, err := s.updateEntryOp(survivor.row, survivor.cell.EntryID, total, s.snapshot.Week.Day(survivor.day))
	if err != nil {
		return err
	}
	s.queue.Add(op, s.source)
	for _, src := range sources[1:] {
		del, err := s.deleteEntryOp(src.cell.EntryID, src.cell.OriginalHours, s.snapshot.Week.Day(src.day))
		if err != nil {
			return err
		}
		s.queue.Add(del, s.source)
	}
	s.viewStale.Store(true)
	return nil
}
