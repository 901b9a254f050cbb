package app

import "errors"

// ErrNoWeekLoaded and related errors describe invalid service states.
var (
	ErrNoWeekLoaded     = errors.New("no week loaded")
	ErrRowNotFound      = errors.New("row not found")
	ErrNothingToMerge   = errors.New("nothing to merge")
	ErrNothingToRestore = errors.New("nothing to restore")
	ErrEmptyClipboard   = errors.New("clipboard is empty")
	ErrNothingToUndo    = errors.New("no paste to undo")
	ErrUnknownField     = errors.New("unknown row field")
)
