package app

import (
	"time"

	"github.com/vrognas/redmyne/internal/domain"
)

// Reconcile replays every queued operation onto a copy of the snapshot grid
// so each operation's intended end state is visible without anything being
// sent. It is a pure function of its inputs: identical inputs yield
// structurally equal output. Operations referencing rows or entries no longer
// present are skipped.
func Reconcile(snapshot domain.Grid, ops []domain.DraftOperation) domain.Grid {
	grid := snapshot.Clone()
	for _, op := range ops {
		switch op.Type {
		case domain.OperationUpdate:
			applyUpdate(&grid, op)
		case domain.OperationDelete:
			applyDelete(&grid, op)
		case domain.OperationCreate:
			applyCreate(&grid, op)
		}
	}
	return grid
}

func applyUpdate(grid *domain.Grid, op domain.DraftOperation) {
	row, day, ok := grid.CellByEntry(op.ResourceID)
	if !ok {
		return
	}
	cell := &row.Days[day]
	cell.Hours = op.Payload.Body.Hours
	cell.Dirty = true
	applyIdentity(row, op.Payload.Body)
}

// applyDelete zeroes the cell but keeps the row and its entry id so the
// pending delete stays visible and revertable.
func applyDelete(grid *domain.Grid, op domain.DraftOperation) {
	row, day, ok := grid.CellByEntry(op.ResourceID)
	if !ok {
		return
	}
	cell := &row.Days[day]
	cell.Hours = 0
	cell.Dirty = true
}

func applyCreate(grid *domain.Grid, op domain.DraftOperation) {
	body := op.Payload.Body
	switch op.TempID.Kind {
	case domain.TempAggregate:
		if !dayInRange(op.TempID.DayIndex) {
			return
		}
		row := grid.RowByIdentity(body.IssueID, body.ActivityID)
		if row == nil {
			return
		}
		setDraftHours(&row.Days[op.TempID.DayIndex], body.Hours)
	case domain.TempPaste:
		day, ok := grid.Week.IndexOf(parseSpentOn(body.SpentOn))
		if !ok {
			return
		}
		row := grid.RowByKey(domain.NewAggregationKey(body.IssueID, body.ActivityID, body.Comments))
		if row == nil {
			synth, err := domain.NewRow(domain.RowInput{
				ID:         op.TempID.String(),
				ProjectID:  body.ProjectID,
				IssueID:    body.IssueID,
				ActivityID: body.ActivityID,
				Comment:    body.Comments,
				IsNew:      true,
			})
			if err != nil {
				return
			}
			grid.Rows = append(grid.Rows, synth)
			row = &grid.Rows[len(grid.Rows)-1]
		}
		setDraftHours(&row.Days[day], body.Hours)
	case domain.TempCell:
		if !dayInRange(op.TempID.DayIndex) {
			return
		}
		row := grid.RowByID(op.TempID.RowID)
		if row == nil {
			return
		}
		setDraftHours(&row.Days[op.TempID.DayIndex], body.Hours)
	}
}

// applyIdentity folds a full-body update's identity fields into its row so a
// queued field edit is visible alongside hour edits.
func applyIdentity(row *domain.Row, body domain.EntryBody) {
	if body.IssueID > 0 {
		row.IssueID = body.IssueID
	}
	if body.ActivityID > 0 {
		row.ActivityID = body.ActivityID
	}
	row.Comment = body.Comments
}

func setDraftHours(cell *domain.Cell, hours float64) {
	cell.Hours = hours
	cell.Dirty = true
}

func dayInRange(day int) bool {
	return day >= 0 && day < domain.DaysPerWeek
}

func parseSpentOn(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
