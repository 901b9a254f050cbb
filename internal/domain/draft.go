package domain

import (
	"fmt"
	"strings"
	"time"
)

// OperationType tags a queued mutation as create, update, or delete.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// EntriesPath is the collection endpoint for time entries.
const EntriesPath = "/time_entries.json"

// EntryPath returns the member endpoint for one committed entry.
func EntryPath(id int64) string {
	return fmt.Sprintf("/time_entries/%d.json", id)
}

// EntryBody is the wire body of one time-entry mutation. Field names mirror
// the remote JSON payload; zero-valued identity fields are omitted so partial
// updates stay partial.
type EntryBody struct {
	IssueID    int64   `json:"issue_id,omitempty"`
	ProjectID  int64   `json:"project_id,omitempty"`
	ActivityID int64   `json:"activity_id,omitempty"`
	SpentOn    string  `json:"spent_on,omitempty"`
	Hours      float64 `json:"hours"`
	Comments   string  `json:"comments,omitempty"`
}

// Payload mirrors the eventual REST call of a queued operation. It is applied
// verbatim at commit time.
type Payload struct {
	Method string
	Path   string
	Body   EntryBody
}

// DraftOperation is one pending, not-yet-sent mutation against a remote
// entry. At most one operation exists per ResourceKey at any time; a later
// enqueue for the same key replaces the earlier one.
type DraftOperation struct {
	ID          string
	Type        OperationType
	Timestamp   time.Time
	ResourceKey string
	ResourceID  int64
	TempID      TempID
	Description string
	Payload     Payload
}

// DraftOperationInput holds input values for draft-operation construction.
type DraftOperationInput struct {
	ID          string
	Type        OperationType
	ResourceKey string
	ResourceID  int64
	TempID      TempID
	Description string
	Payload     Payload
}

// NewDraftOperation constructs a validated draft operation. Creates must
// carry a temp id; updates and deletes must carry the remote id.
func NewDraftOperation(in DraftOperationInput, now time.Time) (DraftOperation, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ResourceKey = strings.TrimSpace(in.ResourceKey)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return DraftOperation{}, ErrInvalidID
	}
	if in.ResourceKey == "" {
		return DraftOperation{}, ErrMalformedResourceKey
	}

	switch in.Type {
	case OperationCreate:
		if in.TempID.IsZero() {
			return DraftOperation{}, ErrMalformedTempID
		}
	case OperationUpdate, OperationDelete:
		if in.ResourceID <= 0 {
			return DraftOperation{}, ErrInvalidEntryID
		}
	default:
		return DraftOperation{}, ErrInvalidOperationType
	}

	return DraftOperation{
		ID:          in.ID,
		Type:        in.Type,
		Timestamp:   now.UTC(),
		ResourceKey: in.ResourceKey,
		ResourceID:  in.ResourceID,
		TempID:      in.TempID,
		Description: in.Description,
		Payload:     in.Payload,
	}, nil
}
