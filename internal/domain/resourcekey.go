package domain

import (
	"fmt"
	"time"
)

// Resource keys give every queued operation one canonical identity. A
// committed entry is keyed by its remote id; a not-yet-created entry is keyed
// by the (issue, activity, date) tuple so repeated edits to the same unsaved
// cell collapse into one queued create.
const (
	EntryKeyPrefix    = "ts:timeentry:"
	NewEntryKeyPrefix = "ts:timeentry:new:"
)

// EntryKey returns the canonical key for a committed remote entry.
func EntryKey(id int64) string {
	return fmt.Sprintf("%s%d", EntryKeyPrefix, id)
}

// NewEntryKey returns the canonical key for a not-yet-created entry.
func NewEntryKey(issueID, activityID int64, date time.Time) string {
	return fmt.Sprintf("%s%d:%d:%s", NewEntryKeyPrefix, issueID, activityID, DayStart(date).Format(DateLayout))
}
