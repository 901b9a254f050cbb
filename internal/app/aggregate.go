package app

import (
	"context"
	"net/http"
	"time"

	"github.com/vrognas/redmyne/internal/domain"
)

// SourceEntry describes one underlying cell contributing to a merged cell. A
// zero EntryID marks a draft contribution backed only by a queued create.
type SourceEntry struct {
	RowID         string
	EntryID       int64
	Hours         float64
	OriginalHours float64
}

// CellConfirm asks the caller to approve collapsing several source entries
// into one value before anything is staged.
type CellConfirm struct {
	Key              domain.AggregationKey
	DayIndex         int
	Hours            float64
	SourceEntryCount int
}

// FieldConfirm asks the caller to approve a field change fanning out to
// several source rows.
type FieldConfirm struct {
	Key            domain.AggregationKey
	Change         FieldChange
	SourceRowCount int
}

// Resolution is the queue plan produced for one merged-cell edit. Unstage
// lists resource keys whose pending operations are removed before the staged
// operations are added. A non-nil Confirm means nothing was applied.
type Resolution struct {
	Unstage []string
	Stage   []domain.DraftOperation
	Confirm *CellConfirm
}

// SetAggregatedCell resolves an edit against the merged cell for the given
// aggregation key and day. With zero or one source entry the edit maps to a
// single queued operation; with several source entries nothing is applied
// until the caller confirms, after which every source entry is deleted and
// one create carries the merged value.
func (s *Service) SetAggregatedCell(key domain.AggregationKey, day int, hours float64, confirmed bool) (Resolution, error) {
	if !dayInRange(day) {
		return Resolution{}, domain.ErrInvalidDayIndex
	}
	if hours < 0 {
		return Resolution{}, domain.ErrInvalidHours
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.weekLoadedLocked() {
		return Resolution{}, ErrNoWeekLoaded
	}
	view := s.viewLocked()
	sources := sourcesForCell(&view, key, day)
	res, err := s.resolveAggregatedCell(&view, key, day, hours, sources, confirmed)
	if err != nil {
		return Resolution{}, err
	}
	if res.Confirm != nil {
		return res, nil
	}
	s.applyResolutionLocked(res)
	return res, nil
}

// UpdateAggregatedField applies one identity change to every row sharing the
// aggregation key through the normal single-row field path. With more than
// one source row and no confirmation, nothing is applied and a FieldConfirm
// is returned.
func (s *Service) UpdateAggregatedField(ctx context.Context, key domain.AggregationKey, change FieldChange, confirmed bool) (*FieldConfirm, error) {
	s.mu.Lock()
	if !s.weekLoadedLocked() {
		s.mu.Unlock()
		return nil, ErrNoWeekLoaded
	}
	view := s.viewLocked()
	s.mu.Unlock()

	rows := view.RowsByKey(key)
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 && !confirmed {
		return &FieldConfirm{Key: key, Change: change, SourceRowCount: len(rows)}, nil
	}
	for _, row := range rows {
		if err := s.UpdateRowField(ctx, row.ID, change); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// sourcesForCell lists the cells contributing to one merged cell: every cell
// under the key that is entry-backed or carries draft hours.
func sourcesForCell(view *domain.Grid, key domain.AggregationKey, day int) []SourceEntry {
	var sources []SourceEntry
	for _, row := range view.RowsByKey(key) {
		cell := row.Days[day]
		if !cell.HasEntry() && cell.Hours == 0 {
			continue
		}
		sources = append(sources, SourceEntry{
			RowID:         row.ID,
			EntryID:       cell.EntryID,
			Hours:         cell.Hours,
			OriginalHours: cell.OriginalHours,
		})
	}
	return sources
}

func (s *Service) resolveAggregatedCell(view *domain.Grid, key domain.AggregationKey, day int, hours float64, sources []SourceEntry, confirmed bool) (Resolution, error) {
	var res Resolution
	date := view.Week.Day(day)
	newKey := domain.NewEntryKey(key.IssueID, key.ActivityID, date)

	switch {
	case len(sources) == 0:
		if hours == 0 {
			res.Unstage = append(res.Unstage, newKey)
			return res, nil
		}
		op, err := s.createAggregateOp(aggregateRow(view, key), day, hours, date)
		if err != nil {
			return Resolution{}, err
		}
		res.Stage = append(res.Stage, op)

	case len(sources) == 1 && sources[0].EntryID == 0:
		if hours == 0 {
			res.Unstage = append(res.Unstage, newKey)
			return res, nil
		}
		row := view.RowByID(sources[0].RowID)
		if row == nil {
			return res, nil
		}
		op, err := s.createCellOp(*row, day, hours, date)
		if err != nil {
			return Resolution{}, err
		}
		res.Stage = append(res.Stage, op)

	case len(sources) == 1:
		src := sources[0]
		entryKey := domain.EntryKey(src.EntryID)
		switch {
		case hours == src.OriginalHours:
			res.Unstage = append(res.Unstage, entryKey)
		case hours == 0:
			op, err := s.deleteEntryOp(src.EntryID, src.OriginalHours, date)
			if err != nil {
				return Resolution{}, err
			}
			res.Stage = append(res.Stage, op)
		default:
			op, err := s.updateEntryOp(aggregateRow(view, key), src.EntryID, hours, date)
			if err != nil {
				return Resolution{}, err
			}
			res.Stage = append(res.Stage, op)
		}

	default:
		if !confirmed {
			res.Confirm = &CellConfirm{Key: key, DayIndex: day, Hours: hours, SourceEntryCount: len(sources)}
			return res, nil
		}
		for _, src := range sources {
			if src.EntryID == 0 {
				res.Unstage = append(res.Unstage, newKey)
				continue
			}
			op, err := s.deleteEntryOp(src.EntryID, src.OriginalHours, date)
			if err != nil {
				return Resolution{}, err
			}
			res.Stage = append(res.Stage, op)
		}
		if hours > 0 {
			op, err := s.createAggregateOp(aggregateRow(view, key), day, hours, date)
			if err != nil {
				return Resolution{}, err
			}
			res.Stage = append(res.Stage, op)
		}
	}
	return res, nil
}

func (s *Service) createAggregateOp(row domain.Row, day int, hours float64, date time.Time) (domain.DraftOperation, error) {
	tempID, err := domain.NewAggregateTempID(row.IssueID, row.ActivityID, row.Comment, day)
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

// aggregateRow builds the identity carrier for operations staged against a
// merged cell, borrowing project fields from an existing row under the key
// when one exists.
func aggregateRow(view *domain.Grid, key domain.AggregationKey) domain.Row {
	row := domain.Row{IssueID: key.IssueID, ActivityID: key.ActivityID, Comment: key.Comment}
	if existing := view.RowByKey(key); existing != nil {
		row.ProjectID = existing.ProjectID
		row.ParentProjectID = existing.ParentProjectID
		row.ProjectName = existing.ProjectName
		row.ActivityName = existing.ActivityName
	}
	return row
}

func (s *Service) applyResolutionLocked(res Resolution) {
	for _, key := range res.Unstage {
		s.queue.RemoveByKey(key, s.source)
	}
	for _, op := range res.Stage {
		s.queue.Add(op, s.source)
	}
	s.viewStale.Store(true)
}
