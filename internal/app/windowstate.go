package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vrognas/redmyne/internal/domain"
)

const (
	draftRowsKeyPrefix = "ts:draftRows:"
	prefsKey           = "ts:prefs:view"
)

// draftRowRecord is the persisted form of one ephemeral draft row. Hours are
// not stored; they are reproduced by replaying the queue.
type draftRowRecord struct {
	ID              string `json:"id"`
	ProjectID       int64  `json:"projectId,omitempty"`
	ParentProjectID int64  `json:"parentProjectId,omitempty"`
	IssueID         int64  `json:"issueId"`
	ActivityID      int64  `json:"activityId"`
	Comment         string `json:"comment,omitempty"`
	ProjectName     string `json:"projectName,omitempty"`
	ActivityName    string `json:"activityName,omitempty"`
}

func draftRowsKey(week domain.Week) string {
	return draftRowsKeyPrefix + week.String()
}

func (s *Service) loadDraftRows(ctx context.Context, week domain.Week) ([]domain.Row, error) {
	if s.kv == nil {
		return nil, nil
	}
	raw, ok, err := s.kv.Get(ctx, draftRowsKey(week))
	if err != nil {
		return nil, fmt.Errorf("load draft rows: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var records []draftRowRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode draft rows: %w", err)
	}
	var rows []domain.Row
	for _, rec := range records {
		row, err := domain.NewRow(domain.RowInput{
			ID:              rec.ID,
			ProjectID:       rec.ProjectID,
			ParentProjectID: rec.ParentProjectID,
			IssueID:         rec.IssueID,
			ActivityID:      rec.ActivityID,
			Comment:         rec.Comment,
			ProjectName:     rec.ProjectName,
			ActivityName:    rec.ActivityName,
			IsNew:           true,
		})
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Service) saveDraftRowsLocked(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	var records []draftRowRecord
	for _, row := range s.snapshot.Rows {
		if !row.IsNew {
			continue
		}
		records = append(records, draftRowRecord{
			ID:              row.ID,
			ProjectID:       row.ProjectID,
			ParentProjectID: row.ParentProjectID,
			IssueID:         row.IssueID,
			ActivityID:      row.ActivityID,
			Comment:         row.Comment,
			ProjectName:     row.ProjectName,
			ActivityName:    row.ActivityName,
		})
	}

	key := draftRowsKey(s.snapshot.Week)
	if len(records) == 0 {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear draft rows: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode draft rows: %w", err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save draft rows: %w", err)
	}
	return nil
}

// Preferences are orthogonal view settings persisted across sessions.
type Preferences struct {
	SortBy    string   `json:"sortBy,omitempty"`
	GroupBy   string   `json:"groupBy,omitempty"`
	Collapsed []string `json:"collapsed,omitempty"`
}

// Preferences returns the persisted view preferences, zero-valued when none
// were saved.
func (s *Service) Preferences(ctx context.Context) (Preferences, error) {
	if s.kv == nil {
		return Preferences{}, nil
	}
	raw, ok, err := s.kv.Get(ctx, prefsKey)
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	if !ok {
		return Preferences{}, nil
	}
	var prefs Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

// SetPreferences persists the view preferences.
func (s *Service) SetPreferences(ctx context.Context, prefs Preferences) error {
	if s.kv == nil {
		return nil
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.kv.Set(ctx, prefsKey, raw); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
