package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TempIDKind discriminates the three temp-id encodings.
type TempIDKind string

// TempID kinds, in decode priority order.
const (
	TempAggregate TempIDKind = "aggregate"
	TempPaste     TempIDKind = "paste"
	TempCell      TempIDKind = "cell"
)

const (
	tempAggregatePrefix = "agg-"
	tempPastePrefix     = "draft-timeentry-"
)

// TempID correlates a queued create with the cell it originated from before a
// remote id exists. Exactly one kind is set; the zero value means no temp id.
// Field usage by kind: aggregate carries IssueID, ActivityID, Comment and
// DayIndex; paste carries Token only (its identity lives in the operation
// payload); cell carries RowID and DayIndex.
type TempID struct {
	Kind       TempIDKind
	IssueID    int64
	ActivityID int64
	Comment    string
	DayIndex   int
	Token      string
	RowID      string
}

// NewAggregateTempID builds a temp id for an edit of a merged cell.
func NewAggregateTempID(issueID, activityID int64, comment string, dayIndex int) (TempID, error) {
	if issueID <= 0 {
		return TempID{}, ErrInvalidIssueID
	}
	if activityID <= 0 {
		return TempID{}, ErrInvalidActivityID
	}
	if dayIndex < 0 || dayIndex >= DaysPerWeek {
		return TempID{}, ErrInvalidDayIndex
	}
	return TempID{
		Kind:       TempAggregate,
		IssueID:    issueID,
		ActivityID: activityID,
		Comment:    strings.TrimSpace(comment),
		DayIndex:   dayIndex,
	}, nil
}

// NewPasteTempID builds a temp id for one bulk-pasted entry.
func NewPasteTempID(token string) (TempID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TempID{}, ErrInvalidID
	}
	return TempID{Kind: TempPaste, Token: token}, nil
}

// NewCellTempID builds a temp id for an ordinary single-row cell edit.
func NewCellTempID(rowID string, dayIndex int) (TempID, error) {
	rowID = strings.TrimSpace(rowID)
	if rowID == "" {
		return TempID{}, ErrInvalidRowID
	}
	if dayIndex < 0 || dayIndex >= DaysPerWeek {
		return TempID{}, ErrInvalidDayIndex
	}
	return TempID{Kind: TempCell, RowID: rowID, DayIndex: dayIndex}, nil
}

// IsZero reports whether the temp id is unset.
func (t TempID) IsZero() bool {
	return t.Kind == ""
}

// String returns the canonical serialized form.
func (t TempID) String() string {
	switch t.Kind {
	case TempAggregate:
		return fmt.Sprintf("%s%d::%d::%s:%d", tempAggregatePrefix, t.IssueID, t.ActivityID, t.Comment, t.DayIndex)
	case TempPaste:
		return tempPastePrefix + t.Token
	case TempCell:
		return t.RowID + ":" + strconv.Itoa(t.DayIndex)
	default:
		return ""
	}
}

// ParseTempID decodes a serialized temp id, trying the aggregate, paste, and
// cell shapes in that order. Row ids may contain colons, so the cell shape
// splits on the last colon.
func ParseTempID(s string) (TempID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TempID{}, ErrMalformedTempID
	}
	if id, ok := parseAggregateTempID(s); ok {
		return id, nil
	}
	if token, ok := strings.CutPrefix(s, tempPastePrefix); ok && token != "" {
		return TempID{Kind: TempPaste, Token: token}, nil
	}
	if id, ok := parseCellTempID(s); ok {
		return id, nil
	}
	return TempID{}, fmt.Errorf("%w: %q", ErrMalformedTempID, s)
}

func parseAggregateTempID(s string) (TempID, bool) {
	rest, ok := strings.CutPrefix(s, tempAggregatePrefix)
	if !ok {
		return TempID{}, false
	}
	issueRaw, rest, ok := strings.Cut(rest, "::")
	if !ok {
		return TempID{}, false
	}
	activityRaw, rest, ok := strings.Cut(rest, "::")
	if !ok {
		return TempID{}, false
	}
	issueID, err := strconv.ParseInt(issueRaw, 10, 64)
	if err != nil || issueID <= 0 {
		return TempID{}, false
	}
	activityID, err := strconv.ParseInt(activityRaw, 10, 64)
	if err != nil || activityID <= 0 {
		return TempID{}, false
	}
	// Comments may themselves contain colons; the day index is everything
	// after the last one.
	sep := strings.LastIndex(rest, ":")
	if sep < 0 {
		return TempID{}, false
	}
	day, err := strconv.Atoi(rest[sep+1:])
	if err != nil || day < 0 || day >= DaysPerWeek {
		return TempID{}, false
	}
	return TempID{
		Kind:       TempAggregate,
		IssueID:    issueID,
		ActivityID: activityID,
		Comment:    rest[:sep],
		DayIndex:   day,
	}, true
}

func parseCellTempID(s string) (TempID, bool) {
	sep := strings.LastIndex(s, ":")
	if sep <= 0 {
		return TempID{}, false
	}
	day, err := strconv.Atoi(s[sep+1:])
	if err != nil || day < 0 || day >= DaysPerWeek {
		return TempID{}, false
	}
	return TempID{Kind: TempCell, RowID: s[:sep], DayIndex: day}, true
}
