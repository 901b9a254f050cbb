package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidEntryID       = errors.New("invalid entry id")
	ErrInvalidIssueID       = errors.New("invalid issue id")
	ErrInvalidActivityID    = errors.New("invalid activity id")
	ErrInvalidHours         = errors.New("invalid hours")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidDayIndex      = errors.New("invalid day index")
	ErrInvalidRowID         = errors.New("invalid row id")
	ErrInvalidOperationType = errors.New("invalid operation type")
	ErrMalformedResourceKey = errors.New("malformed resource key")
	ErrMalformedTempID      = errors.New("malformed temp id")
)
