package bridge

import "github.com/vrognas/redmyne/internal/domain"

// MsgUpdateCell and related constants name the wire discriminators carried in
// the type field of every message crossing the view boundary.
const (
	MsgUpdateCell               = "updateCell"
	MsgUpdateRowField           = "updateRowField"
	MsgAddRow                   = "addRow"
	MsgDeleteRow                = "deleteRow"
	MsgDuplicateRow             = "duplicateRow"
	MsgCopyWeek                 = "copyWeek"
	MsgPasteWeek                = "pasteWeek"
	MsgMergeEntries             = "mergeEntries"
	MsgUpdateAggregatedCell     = "updateAggregatedCell"
	MsgUpdateAggregatedField    = "updateAggregatedField"
	MsgRestoreAggregatedEntries = "restoreAggregatedEntries"
	MsgUndoPaste                = "undoPaste"
	MsgGetPreferences           = "getPreferences"
	MsgSetPreferences           = "setPreferences"

	MsgRender                        = "render"
	MsgUpdateRow                     = "updateRow"
	MsgRowAdded                      = "rowAdded"
	MsgRowDeleted                    = "rowDeleted"
	MsgRowDuplicated                 = "rowDuplicated"
	MsgRequestAggregatedCellConfirm  = "requestAggregatedCellConfirm"
	MsgRequestAggregatedFieldConfirm = "requestAggregatedFieldConfirm"
	MsgShowToast                     = "showToast"
	MsgPasteComplete                 = "pasteComplete"
	MsgPreferences                   = "preferences"
)

// ToastInfo and ToastError are the toast severity levels.
const (
	ToastInfo  = "info"
	ToastError = "error"
)

// KeyDTO identifies one merged display row on the wire.
type KeyDTO struct {
	IssueID    int64  `json:"issueId"`
	ActivityID int64  `json:"activityId"`
	Comment    string `json:"comment"`
}

// MergedCellDTO is one day of a merged row on the wire.
type MergedCellDTO struct {
	Hours      float64 `json:"hours"`
	Dirty      bool    `json:"dirty"`
	EntryCount int     `json:"entryCount"`
}

// MergedRowDTO is one merged display row on the wire.
type MergedRowDTO struct {
	Key          KeyDTO          `json:"key"`
	RowIDs       []string        `json:"rowIds"`
	ProjectID    int64           `json:"projectId"`
	ProjectName  string          `json:"projectName,omitempty"`
	ActivityName string          `json:"activityName,omitempty"`
	IsNew        bool            `json:"isNew"`
	Days         []MergedCellDTO `json:"days"`
	WeekTotal    float64         `json:"weekTotal"`
}

// ActivityDTO is one selectable activity on the wire.
type ActivityDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UpdateCellIntent edits one day cell of one row.
type UpdateCellIntent struct {
	Type     string  `json:"type"`
	RowID    string  `json:"rowId"`
	DayIndex int     `json:"dayIndex"`
	Hours    float64 `json:"hours"`
}

// UpdateRowFieldIntent changes one identity field of a row. Only the value
// matching the named field is read.
type UpdateRowFieldIntent struct {
	Type       string `json:"type"`
	RowID      string `json:"rowId"`
	Field      string `json:"field"`
	IssueID    int64  `json:"issueId"`
	ActivityID int64  `json:"activityId"`
	Comment    string `json:"comment"`
}

// AddRowIntent appends an empty draft row to the loaded week.
type AddRowIntent struct {
	Type         string `json:"type"`
	ProjectID    int64  `json:"projectId"`
	IssueID      int64  `json:"issueId"`
	ActivityID   int64  `json:"activityId"`
	Comment      string `json:"comment"`
	ProjectName  string `json:"projectName"`
	ActivityName string `json:"activityName"`
}

// DeleteRowIntent removes one row from the loaded week.
type DeleteRowIntent struct {
	Type  string `json:"type"`
	RowID string `json:"rowId"`
}

// DuplicateRowIntent spawns a draft copy of one row.
type DuplicateRowIntent struct {
	Type  string `json:"type"`
	RowID string `json:"rowId"`
}

// CopyWeekIntent snapshots the loaded week for a later paste.
type CopyWeekIntent struct {
	Type string `json:"type"`
}

// PasteWeekIntent stages the copied snapshot into the loaded week.
type PasteWeekIntent struct {
	Type string `json:"type"`
}

// MergeEntriesIntent folds several saved entries into the oldest one.
type MergeEntriesIntent struct {
	Type     string  `json:"type"`
	EntryIDs []int64 `json:"entryIds"`
}

// UpdateAggregatedCellIntent edits one day cell of a merged row. Confirmed is
// set when the view re-sends an edit the user approved.
type UpdateAggregatedCellIntent struct {
	Type      string  `json:"type"`
	Key       KeyDTO  `json:"key"`
	DayIndex  int     `json:"dayIndex"`
	Hours     float64 `json:"hours"`
	Confirmed bool    `json:"confirmed"`
}

// UpdateAggregatedFieldIntent changes one identity field across every row
// behind a merged row.
type UpdateAggregatedFieldIntent struct {
	Type       string `json:"type"`
	Key        KeyDTO `json:"key"`
	Field      string `json:"field"`
	IssueID    int64  `json:"issueId"`
	ActivityID int64  `json:"activityId"`
	Comment    string `json:"comment"`
	Confirmed  bool   `json:"confirmed"`
}

// RestoreAggregatedEntriesIntent undeletes every deleted row behind a merged
// row.
type RestoreAggregatedEntriesIntent struct {
	Type string `json:"type"`
	Key  KeyDTO `json:"key"`
}

// UndoPasteIntent removes the operations staged by the latest paste.
type UndoPasteIntent struct {
	Type string `json:"type"`
}

// GetPreferencesIntent asks for the persisted view preferences.
type GetPreferencesIntent struct {
	Type string `json:"type"`
}

// SetPreferencesIntent replaces the persisted view preferences.
type SetPreferencesIntent struct {
	Type      string   `json:"type"`
	SortBy    string   `json:"sortBy"`
	GroupBy   string   `json:"groupBy"`
	Collapsed []string `json:"collapsed"`
}

// Outbound is one view-bound message. The concrete set is closed; every
// message carries its wire discriminator in Type.
type Outbound interface {
	message()
}

// Render carries the full week view model.
type Render struct {
	Type         string         `json:"type"`
	Week         string         `json:"week"`
	Days         []string       `json:"days"`
	Rows         []MergedRowDTO `json:"rows"`
	DayTotals    []float64      `json:"dayTotals"`
	WeekTotal    float64        `json:"weekTotal"`
	PendingCount int            `json:"pendingCount"`
	Activities   []ActivityDTO  `json:"activities,omitempty"`
}

// UpdateRow refreshes one merged row in place.
type UpdateRow struct {
	Type         string       `json:"type"`
	Row          MergedRowDTO `json:"row"`
	DayTotals    []float64    `json:"dayTotals"`
	WeekTotal    float64      `json:"weekTotal"`
	PendingCount int          `json:"pendingCount"`
}

// RowAdded announces a freshly created draft row. Row is the merged row the
// draft folded into.
type RowAdded struct {
	Type         string       `json:"type"`
	RowID        string       `json:"rowId"`
	Row          MergedRowDTO `json:"row"`
	DayTotals    []float64    `json:"dayTotals"`
	WeekTotal    float64      `json:"weekTotal"`
	PendingCount int          `json:"pendingCount"`
}

// RowDeleted tells the view one row was removed.
type RowDeleted struct {
	Type         string    `json:"type"`
	RowID        string    `json:"rowId"`
	DayTotals    []float64 `json:"dayTotals"`
	WeekTotal    float64   `json:"weekTotal"`
	PendingCount int       `json:"pendingCount"`
}

// RowDuplicated announces the draft copy spawned from an existing row. Row is
// the merged row the copy folded into.
type RowDuplicated struct {
	Type         string       `json:"type"`
	RowID        string       `json:"rowId"`
	Row          MergedRowDTO `json:"row"`
	DayTotals    []float64    `json:"dayTotals"`
	WeekTotal    float64      `json:"weekTotal"`
	PendingCount int          `json:"pendingCount"`
}

// RequestAggregatedCellConfirm asks the view to approve collapsing several
// source entries into one value.
type RequestAggregatedCellConfirm struct {
	Type             string  `json:"type"`
	Key              KeyDTO  `json:"key"`
	DayIndex         int     `json:"dayIndex"`
	Hours            float64 `json:"hours"`
	SourceEntryCount int     `json:"sourceEntryCount"`
}

// RequestAggregatedFieldConfirm asks the view to approve a field change
// fanning out to several rows.
type RequestAggregatedFieldConfirm struct {
	Type           string `json:"type"`
	Key            KeyDTO `json:"key"`
	Field          string `json:"field"`
	SourceRowCount int    `json:"sourceRowCount"`
}

// ShowToast surfaces a transient notice in the view.
type ShowToast struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// PasteComplete reports how many entries a paste staged.
type PasteComplete struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ViewPreferences carries the persisted view preferences back to the view.
type ViewPreferences struct {
	Type      string   `json:"type"`
	SortBy    string   `json:"sortBy,omitempty"`
	GroupBy   string   `json:"groupBy,omitempty"`
	Collapsed []string `json:"collapsed,omitempty"`
}

func (Render) message()                        {}
func (UpdateRow) message()                     {}
func (RowAdded) message()                      {}
func (RowDeleted) message()                    {}
func (RowDuplicated) message()                 {}
func (RequestAggregatedCellConfirm) message()  {}
func (RequestAggregatedFieldConfirm) message() {}
func (ShowToast) message()                     {}
func (PasteComplete) message()                 {}
func (ViewPreferences) message()               {}

func keyDTO(key domain.AggregationKey) KeyDTO {
	return KeyDTO{IssueID: key.IssueID, ActivityID: key.ActivityID, Comment: key.Comment}
}

func (k KeyDTO) domain() domain.AggregationKey {
	return domain.NewAggregationKey(k.IssueID, k.ActivityID, k.Comment)
}

func mergedRowDTO(m domain.MergedRow) MergedRowDTO {
	dto := MergedRowDTO{
		Key:          keyDTO(m.Key),
		RowIDs:       append([]string(nil), m.RowIDs...),
		ProjectID:    m.ProjectID,
		ProjectName:  m.ProjectName,
		ActivityName: m.ActivityName,
		IsNew:        m.IsNew,
		Days:         make([]MergedCellDTO, 0, domain.DaysPerWeek),
		WeekTotal:    m.WeekTotal(),
	}
	for _, c := range m.Days {
		dto.Days = append(dto.Days, MergedCellDTO{Hours: c.Hours, Dirty: c.Dirty, EntryCount: c.EntryCount})
	}
	return dto
}

func mergedRowDTOs(view domain.Grid) []MergedRowDTO {
	merged := view.Merged()
	out := make([]MergedRowDTO, 0, len(merged))
	for _, m := range merged {
		out = append(out, mergedRowDTO(m))
	}
	return out
}

func activityDTOs(activities []domain.Activity) []ActivityDTO {
	out := make([]ActivityDTO, 0, len(activities))
	for _, a := range activities {
		out = append(out, ActivityDTO{ID: a.ID, Name: a.Name})
	}
	return out
}
