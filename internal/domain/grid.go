package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Cell is one day of one row. OriginalHours is the last known server value
// and stays zero for cells that were never synced.
type Cell struct {
	Hours         float64
	OriginalHours float64
	EntryID       int64
	Dirty         bool
}

// HasEntry reports whether the cell is backed by a committed remote entry.
func (c Cell) HasEntry() bool {
	return c.EntryID != 0
}

// Row is one grid line: a (project, issue, activity, comment) identity plus
// seven day cells. Snapshot rows carry exactly one entry-backed cell; rows
// with IsNew set never own an entry-backed cell.
type Row struct {
	ID              string
	ProjectID       int64
	ParentProjectID int64
	IssueID         int64
	ActivityID      int64
	Comment         string
	ProjectName     string
	ActivityName    string
	IsNew           bool
	Days            [DaysPerWeek]Cell
}

// RowInput holds input values for row construction.
type RowInput struct {
	ID              string
	ProjectID       int64
	ParentProjectID int64
	IssueID         int64
	ActivityID      int64
	Comment         string
	ProjectName     string
	ActivityName    string
	IsNew           bool
}

// NewRow constructs a validated row with empty cells.
func NewRow(in RowInput) (Row, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Row{}, ErrInvalidRowID
	}
	if in.IssueID <= 0 {
		return Row{}, ErrInvalidIssueID
	}
	if in.ActivityID <= 0 {
		return Row{}, ErrInvalidActivityID
	}
	return Row{
		ID:              in.ID,
		ProjectID:       in.ProjectID,
		ParentProjectID: in.ParentProjectID,
		IssueID:         in.IssueID,
		ActivityID:      in.ActivityID,
		Comment:         strings.TrimSpace(in.Comment),
		ProjectName:     strings.TrimSpace(in.ProjectName),
		ActivityName:    strings.TrimSpace(in.ActivityName),
		IsNew:           in.IsNew,
	}, nil
}

// RowFromEntry builds a snapshot row holding one remote entry. The second
// return value is false when the entry's date falls outside the week.
func RowFromEntry(e TimeEntry, week Week) (Row, bool) {
	day, ok := week.IndexOf(e.SpentOn)
	if !ok {
		return Row{}, false
	}
	row := Row{
		ID:              fmt.Sprintf("entry-%d", e.ID),
		ProjectID:       e.ProjectID,
		ParentProjectID: e.ParentProjectID,
		IssueID:         e.IssueID,
		ActivityID:      e.ActivityID,
		Comment:         e.Comment,
		ProjectName:     e.ProjectName,
		ActivityName:    e.ActivityName,
	}
	row.Days[day] = Cell{Hours: e.Hours, OriginalHours: e.Hours, EntryID: e.ID}
	return row, true
}

// WeekTotal sums the row's hours. It is always derived, never stored.
func (r Row) WeekTotal() float64 {
	var total float64
	for _, c := range r.Days {
		total += c.Hours
	}
	return total
}

// Key returns the display-time join key merging rows that share an issue,
// activity, and comment.
func (r Row) Key() AggregationKey {
	return NewAggregationKey(r.IssueID, r.ActivityID, r.Comment)
}

// AggregationKey joins several rows into one displayed row. It is never
// persisted.
type AggregationKey struct {
	IssueID    int64
	ActivityID int64
	Comment    string
}

// NewAggregationKey normalizes the comment component with a trim.
func NewAggregationKey(issueID, activityID int64, comment string) AggregationKey {
	return AggregationKey{IssueID: issueID, ActivityID: activityID, Comment: strings.TrimSpace(comment)}
}

// Grid is the weekly view model: one row per underlying entry or draft.
type Grid struct {
	Week Week
	Rows []Row
}

// Clone returns a structurally independent copy of the grid.
func (g Grid) Clone() Grid {
	rows := make([]Row, len(g.Rows))
	copy(rows, g.Rows)
	return Grid{Week: g.Week, Rows: rows}
}

// DayTotals sums hours per day column.
func (g Grid) DayTotals() [DaysPerWeek]float64 {
	var totals [DaysPerWeek]float64
	for _, row := range g.Rows {
		for i, c := range row.Days {
			totals[i] += c.Hours
		}
	}
	return totals
}

// Total sums hours across the whole week.
func (g Grid) Total() float64 {
	var total float64
	for _, row := range g.Rows {
		total += row.WeekTotal()
	}
	return total
}

// RowByID returns the row with the given id, or nil.
func (g *Grid) RowByID(id string) *Row {
	for i := range g.Rows {
		if g.Rows[i].ID == id {
			return &g.Rows[i]
		}
	}
	return nil
}

// RowByIdentity returns the first row matching issue and activity, or nil.
func (g *Grid) RowByIdentity(issueID, activityID int64) *Row {
	for i := range g.Rows {
		if g.Rows[i].IssueID == issueID && g.Rows[i].ActivityID == activityID {
			return &g.Rows[i]
		}
	}
	return nil
}

// RowByKey returns the first row matching the aggregation key, or nil.
func (g *Grid) RowByKey(key AggregationKey) *Row {
	for i := range g.Rows {
		if g.Rows[i].Key() == key {
			return &g.Rows[i]
		}
	}
	return nil
}

// RowsByKey returns every row sharing the aggregation key, in grid order.
func (g *Grid) RowsByKey(key AggregationKey) []*Row {
	var rows []*Row
	for i := range g.Rows {
		if g.Rows[i].Key() == key {
			rows = append(rows, &g.Rows[i])
		}
	}
	return rows
}

// CellByEntry locates the cell backed by the given remote entry id across all
// rows, returning its row and day index.
func (g *Grid) CellByEntry(entryID int64) (*Row, int, bool) {
	if entryID == 0 {
		return nil, 0, false
	}
	for i := range g.Rows {
		for day, c := range g.Rows[i].Days {
			if c.EntryID == entryID {
				return &g.Rows[i], day, true
			}
		}
	}
	return nil, 0, false
}

// RemoveRow removes and returns the row with the given id.
func (g *Grid) RemoveRow(id string) (Row, bool) {
	for i := range g.Rows {
		if g.Rows[i].ID == id {
			row := g.Rows[i]
			g.Rows = append(g.Rows[:i], g.Rows[i+1:]...)
			return row, true
		}
	}
	return Row{}, false
}

// SortRows orders rows by issue, activity, comment, and id for a stable
// display and deterministic lookups.
func (g *Grid) SortRows() {
	slices.SortStableFunc(g.Rows, func(a, b Row) int {
		if c := cmp.Compare(a.IssueID, b.IssueID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ActivityID, b.ActivityID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Comment, b.Comment); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// MergedCell is one day of a merged display row.
type MergedCell struct {
	Hours      float64
	Dirty      bool
	EntryCount int
}

// MergedRow is the display-time union of all rows sharing one aggregation
// key.
type MergedRow struct {
	Key          AggregationKey
	RowIDs       []string
	ProjectID    int64
	ProjectName  string
	ActivityName string
	IsNew        bool
	Days         [DaysPerWeek]MergedCell
}

// WeekTotal sums the merged row's hours.
func (m MergedRow) WeekTotal() float64 {
	var total float64
	for _, c := range m.Days {
		total += c.Hours
	}
	return total
}

// Merged folds the grid into one row per aggregation key, in grid order.
func (g Grid) Merged() []MergedRow {
	var out []MergedRow
	index := map[AggregationKey]int{}
	for _, row := range g.Rows {
		key := row.Key()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, MergedRow{
				Key:          key,
				ProjectID:    row.ProjectID,
				ProjectName:  row.ProjectName,
				ActivityName: row.ActivityName,
				IsNew:        row.IsNew,
			})
		}
		merged := &out[i]
		merged.RowIDs = append(merged.RowIDs, row.ID)
		merged.IsNew = merged.IsNew && row.IsNew
		if merged.ProjectID == 0 {
			merged.ProjectID = row.ProjectID
		}
		if merged.ProjectName == "" {
			merged.ProjectName = row.ProjectName
		}
		if merged.ActivityName == "" {
			merged.ActivityName = row.ActivityName
		}
		for day, c := range row.Days {
			mc := &merged.Days[day]
			mc.Hours += c.Hours
			mc.Dirty = mc.Dirty || c.Dirty
			if c.HasEntry() {
				mc.EntryCount++
			}
		}
	}
	return out
}
