package domain

import (
	"strings"
	"time"
)

type TimeEntry struct {
	ID              int64
	ProjectID       int64
	ParentProjectID int64
	IssueID         int64
	ActivityID      int64
	SpentOn         time.Time
	Hours           float64
	Comment         string
	ProjectName     string
	ActivityName    string
}

type TimeEntryInput struct {
	ID              int64
	ProjectID       int64
	ParentProjectID int64
	IssueID         int64
	ActivityID      int64
	SpentOn         time.Time
	Hours           float64
	Comment         string
	ProjectName     string
	ActivityName    string
}

func NewTimeEntry(in TimeEntryInput) (TimeEntry, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	in.ProjectName = strings.TrimSpace(in.ProjectName)
	in.ActivityName = strings.TrimSpace(in.ActivityName)

	if in.ID <= 0 {
		return TimeEntry{}, ErrInvalidEntryID
	}
	if in.IssueID <= 0 {
		return TimeEntry{}, ErrInvalidIssueID
	}
	if in.ActivityID <= 0 {
		return TimeEntry{}, ErrInvalidActivityID
	}
	if in.Hours < 0 {
		return TimeEntry{}, ErrInvalidHours
	}
	if in.SpentOn.IsZero() {
		return TimeEntry{}, ErrInvalidDate
	}

	return TimeEntry{
		ID:              in.ID,
		ProjectID:       in.ProjectID,
		ParentProjectID: in.ParentProjectID,
		IssueID:         in.IssueID,
		ActivityID:      in.ActivityID,
		SpentOn:         DayStart(in.SpentOn),
		Hours:           in.Hours,
		Comment:         in.Comment,
		ProjectName:     in.ProjectName,
		ActivityName:    in.ActivityName,
	}, nil
}

// Activity is one selectable time-entry activity from the remote catalog.
type Activity struct {
	ID   int64
	Name string
}
