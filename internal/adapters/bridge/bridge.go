// Package bridge translates the JSON message protocol spoken by view frontends
// into timesheet service calls, and service results back into view-bound
// messages. Message DTOs never leak into the core packages.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vrognas/redmyne/internal/app"
	"github.com/vrognas/redmyne/internal/domain"
)

// Bridge dispatches inbound view intents against one timesheet service.
type Bridge struct {
	svc *app.Service
}

// NewBridge constructs a new value for this package.
func NewBridge(svc *app.Service) *Bridge {
	return &Bridge{svc: svc}
}

// Dispatch decodes one inbound intent and applies it. It returns zero or more
// view-bound messages; failures additionally surface as an error toast so the
// view never goes silent.
func (b *Bridge) Dispatch(ctx context.Context, raw []byte) ([]Outbound, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return failure("decode intent envelope", errors.Join(ErrMalformedIntent, err))
	}

	switch head.Type {
	case MsgUpdateCell:
		var in UpdateCellIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.updateCell(ctx, in)
	case MsgUpdateRowField:
		var in UpdateRowFieldIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.updateRowField(ctx, in)
	case MsgAddRow:
		var in AddRowIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.addRow(ctx, in)
	case MsgDeleteRow:
		var in DeleteRowIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.deleteRow(ctx, in)
	case MsgDuplicateRow:
		var in DuplicateRowIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.duplicateRow(ctx, in)
	case MsgCopyWeek:
		var in CopyWeekIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.copyWeek()
	case MsgPasteWeek:
		var in PasteWeekIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.pasteWeek(ctx)
	case MsgMergeEntries:
		var in MergeEntriesIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.mergeEntries(ctx, in)
	case MsgUpdateAggregatedCell:
		var in UpdateAggregatedCellIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.updateAggregatedCell(ctx, in)
	case MsgUpdateAggregatedField:
		var in UpdateAggregatedFieldIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.updateAggregatedField(ctx, in)
	case MsgRestoreAggregatedEntries:
		var in RestoreAggregatedEntriesIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.restoreAggregatedEntries(ctx, in)
	case MsgUndoPaste:
		var in UndoPasteIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.undoPaste(ctx)
	case MsgGetPreferences:
		var in GetPreferencesIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.getPreferences(ctx)
	case MsgSetPreferences:
		var in SetPreferencesIntent
		if err := decodeIntent(raw, &in); err != nil {
			return failure(head.Type, err)
		}
		return b.setPreferences(ctx, in)
	default:
		return failure(fmt.Sprintf("dispatch %q", head.Type), ErrUnknownIntent)
	}
}

// RenderView builds the full view model for the loaded week. Serve frontends
// call it after loading a week and after commits.
func (b *Bridge) RenderView(ctx context.Context) (Render, error) {
	return b.renderMsg(ctx)
}

func (b *Bridge) updateCell(ctx context.Context, in UpdateCellIntent) ([]Outbound, error) {
	if err := b.svc.UpdateCell(in.RowID, in.DayIndex, in.Hours); err != nil {
		return failure("update cell", err)
	}
	return b.rowRefresh(ctx, in.RowID)
}

func (b *Bridge) updateRowField(ctx context.Context, in UpdateRowFieldIntent) ([]Outbound, error) {
	change := app.FieldChange{
		Field:      app.RowField(in.Field),
		IssueID:    in.IssueID,
		ActivityID: in.ActivityID,
		Comment:    in.Comment,
	}
	if err := b.svc.UpdateRowField(ctx, in.RowID, change); err != nil {
		return failure("update row field", err)
	}
	// Identity edits can re-merge rows, so the whole grid is re-sent.
	return b.fullRefresh(ctx)
}

func (b *Bridge) addRow(ctx context.Context, in AddRowIntent) ([]Outbound, error) {
	row, err := b.svc.AddRow(ctx, app.AddRowInput{
		ProjectID:    in.ProjectID,
		IssueID:      in.IssueID,
		ActivityID:   in.ActivityID,
		Comment:      in.Comment,
		ProjectName:  in.ProjectName,
		ActivityName: in.ActivityName,
	})
	if err != nil {
		return failure("add row", err)
	}
	view, err := b.svc.View()
	if err != nil {
		return failure("add row", err)
	}
	merged, ok := mergedRowContaining(view, row.ID)
	if !ok {
		return b.fullRefresh(ctx)
	}
	msg := RowAdded{
		Type:         MsgRowAdded,
		RowID:        row.ID,
		Row:          merged,
		DayTotals:    totalsSlice(view),
		WeekTotal:    view.Total(),
		PendingCount: len(b.svc.Pending()),
	}
	return []Outbound{msg}, nil
}

func (b *Bridge) deleteRow(ctx context.Context, in DeleteRowIntent) ([]Outbound, error) {
	if err := b.svc.DeleteRow(ctx, in.RowID); err != nil {
		return failure("delete row", err)
	}
	view, err := b.svc.View()
	if err != nil {
		return failure("delete row", err)
	}
	msg := RowDeleted{
		Type:         MsgRowDeleted,
		RowID:        in.RowID,
		DayTotals:    totalsSlice(view),
		WeekTotal:    view.Total(),
		PendingCount: len(b.svc.Pending()),
	}
	return []Outbound{msg}, nil
}

func (b *Bridge) duplicateRow(ctx context.Context, in DuplicateRowIntent) ([]Outbound, error) {
	dup, err := b.svc.DuplicateRow(ctx, in.RowID)
	if err != nil {
		return failure("duplicate row", err)
	}
	view, err := b.svc.View()
	if err != nil {
		return failure("duplicate row", err)
	}
	merged, ok := mergedRowContaining(view, dup.ID)
	if !ok {
		return b.fullRefresh(ctx)
	}
	msg := RowDuplicated{
		Type:         MsgRowDuplicated,
		RowID:        dup.ID,
		Row:          merged,
		DayTotals:    totalsSlice(view),
		WeekTotal:    view.Total(),
		PendingCount: len(b.svc.Pending()),
	}
	return []Outbound{msg}, nil
}

func (b *Bridge) copyWeek() ([]Outbound, error) {
	if err := b.svc.CopyWeek(); err != nil {
		return failure("copy week", err)
	}
	week, _ := b.svc.Week()
	return []Outbound{infoToast(fmt.Sprintf("copied week %s", week))}, nil
}

func (b *Bridge) pasteWeek(ctx context.Context) ([]Outbound, error) {
	count, err := b.svc.PasteWeek()
	if err != nil {
		return failure("paste week", err)
	}
	render, err := b.renderMsg(ctx)
	if err != nil {
		return failure("paste week", err)
	}
	return []Outbound{PasteComplete{Type: MsgPasteComplete, Count: count}, render}, nil
}

func (b *Bridge) mergeEntries(ctx context.Context, in MergeEntriesIntent) ([]Outbound, error) {
	if err := b.svc.MergeEntries(in.EntryIDs); err != nil {
		return failure("merge entries", err)
	}
	return b.fullRefresh(ctx)
}

func (b *Bridge) updateAggregatedCell(ctx context.Context, in UpdateAggregatedCellIntent) ([]Outbound, error) {
	key := in.Key.domain()
	res, err := b.svc.SetAggregatedCell(key, in.DayIndex, in.Hours, in.Confirmed)
	if err != nil {
		return failure("update aggregated cell", err)
	}
	if res.Confirm != nil {
		msg := RequestAggregatedCellConfirm{
			Type:             MsgRequestAggregatedCellConfirm,
			Key:              keyDTO(res.Confirm.Key),
			DayIndex:         res.Confirm.DayIndex,
			Hours:            res.Confirm.Hours,
			SourceEntryCount: res.Confirm.SourceEntryCount,
		}
		return []Outbound{msg}, nil
	}
	return b.keyRefresh(ctx, key)
}

func (b *Bridge) updateAggregatedField(ctx context.Context, in UpdateAggregatedFieldIntent) ([]Outbound, error) {
	change := app.FieldChange{
		Field:      app.RowField(in.Field),
		IssueID:    in.IssueID,
		ActivityID: in.ActivityID,
		Comment:    in.Comment,
	}
	confirm, err := b.svc.UpdateAggregatedField(ctx, in.Key.domain(), change, in.Confirmed)
	if err != nil {
		return failure("update aggregated field", err)
	}
	if confirm != nil {
		msg := RequestAggregatedFieldConfirm{
			Type:           MsgRequestAggregatedFieldConfirm,
			Key:            keyDTO(confirm.Key),
			Field:          string(confirm.Change.Field),
			SourceRowCount: confirm.SourceRowCount,
		}
		return []Outbound{msg}, nil
	}
	return b.fullRefresh(ctx)
}

func (b *Bridge) restoreAggregatedEntries(ctx context.Context, in RestoreAggregatedEntriesIntent) ([]Outbound, error) {
	count, err := b.svc.RestoreRowsByKey(in.Key.domain())
	if err != nil {
		return failure("restore aggregated entries", err)
	}
	render, err := b.renderMsg(ctx)
	if err != nil {
		return failure("restore aggregated entries", err)
	}
	return []Outbound{render, infoToast(fmt.Sprintf("restored %d deleted rows", count))}, nil
}

func (b *Bridge) undoPaste(ctx context.Context) ([]Outbound, error) {
	count, err := b.svc.UndoPaste()
	if err != nil {
		return failure("undo paste", err)
	}
	render, err := b.renderMsg(ctx)
	if err != nil {
		return failure("undo paste", err)
	}
	return []Outbound{render, infoToast(fmt.Sprintf("removed %d pasted entries", count))}, nil
}

func (b *Bridge) getPreferences(ctx context.Context) ([]Outbound, error) {
	prefs, err := b.svc.Preferences(ctx)
	if err != nil {
		return failure("load preferences", err)
	}
	return []Outbound{preferencesMsg(prefs)}, nil
}

func (b *Bridge) setPreferences(ctx context.Context, in SetPreferencesIntent) ([]Outbound, error) {
	prefs := app.Preferences{SortBy: in.SortBy, GroupBy: in.GroupBy, Collapsed: in.Collapsed}
	if err := b.svc.SetPreferences(ctx, prefs); err != nil {
		return failure("save preferences", err)
	}
	return []Outbound{preferencesMsg(prefs)}, nil
}

func preferencesMsg(prefs app.Preferences) ViewPreferences {
	return ViewPreferences{
		Type:      MsgPreferences,
		SortBy:    prefs.SortBy,
		GroupBy:   prefs.GroupBy,
		Collapsed: append([]string(nil), prefs.Collapsed...),
	}
}

// rowRefresh sends the merged row containing rowID, falling back to a full
// render when the row is gone.
func (b *Bridge) rowRefresh(ctx context.Context, rowID string) ([]Outbound, error) {
	view, err := b.svc.View()
	if err != nil {
		return failure("refresh row", err)
	}
	merged, ok := mergedRowContaining(view, rowID)
	if !ok {
		return b.fullRefresh(ctx)
	}
	return []Outbound{b.updateRowMsg(view, merged)}, nil
}

// keyRefresh sends the merged row for key, falling back to a full render when
// no row carries it anymore.
func (b *Bridge) keyRefresh(ctx context.Context, key domain.AggregationKey) ([]Outbound, error) {
	view, err := b.svc.View()
	if err != nil {
		return failure("refresh row", err)
	}
	for _, m := range view.Merged() {
		if m.Key == key {
			return []Outbound{b.updateRowMsg(view, mergedRowDTO(m))}, nil
		}
	}
	return b.fullRefresh(ctx)
}

func (b *Bridge) fullRefresh(ctx context.Context) ([]Outbound, error) {
	render, err := b.renderMsg(ctx)
	if err != nil {
		return failure("render", err)
	}
	return []Outbound{render}, nil
}

func (b *Bridge) updateRowMsg(view domain.Grid, row MergedRowDTO) UpdateRow {
	return UpdateRow{
		Type:         MsgUpdateRow,
		Row:          row,
		DayTotals:    totalsSlice(view),
		WeekTotal:    view.Total(),
		PendingCount: len(b.svc.Pending()),
	}
}

func (b *Bridge) renderMsg(ctx context.Context) (Render, error) {
	week, ok := b.svc.Week()
	if !ok {
		return Render{}, app.ErrNoWeekLoaded
	}
	view, err := b.svc.View()
	if err != nil {
		return Render{}, err
	}
	days := make([]string, 0, domain.DaysPerWeek)
	for i := 0; i < domain.DaysPerWeek; i++ {
		days = append(days, week.Day(i).Format(domain.DateLayout))
	}
	msg := Render{
		Type:         MsgRender,
		Week:         week.String(),
		Days:         days,
		Rows:         mergedRowDTOs(view),
		DayTotals:    totalsSlice(view),
		WeekTotal:    view.Total(),
		PendingCount: len(b.svc.Pending()),
	}
	// The activity catalog is best effort; the grid renders without it.
	if activities, err := b.svc.Activities(ctx); err == nil {
		msg.Activities = activityDTOs(activities)
	}
	return msg, nil
}

func mergedRowContaining(view domain.Grid, rowID string) (MergedRowDTO, bool) {
	for _, m := range view.Merged() {
		for _, id := range m.RowIDs {
			if id == rowID {
				return mergedRowDTO(m), true
			}
		}
	}
	return MergedRowDTO{}, false
}

func totalsSlice(view domain.Grid) []float64 {
	totals := view.DayTotals()
	return totals[:]
}

// decodeIntent decodes one intent payload with strict shape checks.
func decodeIntent(raw []byte, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode intent: %w", errors.Join(ErrMalformedIntent, err))
	}
	// Reject trailing payloads so malformed messages fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode intent: trailing content: %w", ErrMalformedIntent)
	}
	return nil
}

func failure(action string, err error) ([]Outbound, error) {
	wrapped := fmt.Errorf("%s: %w", action, err)
	return []Outbound{errorToast(wrapped.Error())}, wrapped
}

func errorToast(message string) ShowToast {
	return ShowToast{Type: MsgShowToast, Level: ToastError, Message: message}
}

func infoToast(message string) ShowToast {
	return ShowToast{Type: MsgShowToast, Level: ToastInfo, Message: message}
}
