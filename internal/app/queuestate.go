package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vrognas/redmyne/internal/domain"
)

const (
	queueStateVersion = "redmyne.queue.v1"
	queueStateKey     = "ts:queue"
)

// queueState is the persisted form of the draft queue. Operations keep their
// insertion order; temp ids are stored in their serialized string form and
// parsed back on restore.
type queueState struct {
	Version    string            `json:"version"`
	SavedAt    time.Time         `json:"savedAt"`
	Operations []operationRecord `json:"operations"`
}

// operationRecord is the persisted form of one queued operation.
type operationRecord struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Timestamp   time.Time        `json:"timestamp"`
	ResourceKey string           `json:"resourceKey"`
	ResourceID  int64            `json:"resourceId,omitempty"`
	TempID      string           `json:"tempId,omitempty"`
	Description string           `json:"description,omitempty"`
	Method      string           `json:"method"`
	Path        string           `json:"path"`
	Body        domain.EntryBody `json:"body"`
}

// SaveQueue persists the queue under a versioned key. An empty queue removes
// the key so a later restore starts clean.
func (s *Service) SaveQueue(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	ops := s.queue.All()
	if len(ops) == 0 {
		if err := s.kv.Delete(ctx, queueStateKey); err != nil {
			return fmt.Errorf("clear queue state: %w", err)
		}
		return nil
	}

	state := queueState{
		Version:    queueStateVersion,
		SavedAt:    s.clock().UTC(),
		Operations: make([]operationRecord, 0, len(ops)),
	}
	for _, op := range ops {
		state.Operations = append(state.Operations, operationRecordFromDomain(op))
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode queue state: %w", err)
	}
	if err := s.kv.Set(ctx, queueStateKey, raw); err != nil {
		return fmt.Errorf("save queue state: %w", err)
	}
	return nil
}

// RestoreQueue loads the persisted queue and replays it into the live one,
// preserving order and original timestamps. Records that no longer rebuild,
// such as creates whose temp id format drifted, are skipped. It returns the
// number of operations restored.
func (s *Service) RestoreQueue(ctx context.Context) (int, error) {
	if s.kv == nil {
		return 0, nil
	}
	raw, ok, err := s.kv.Get(ctx, queueStateKey)
	if err != nil {
		return 0, fmt.Errorf("load queue state: %w", err)
	}
	if !ok {
		return 0, nil
	}

	var state queueState
	if err := json.Unmarshal(raw, &state); err != nil {
		return 0, fmt.Errorf("decode queue state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return 0, err
	}

	restored := 0
	for _, rec := range state.Operations {
		op, err := rec.toDomain()
		if err != nil {
			continue
		}
		s.queue.Add(op, s.source)
		restored++
	}
	if restored > 0 {
		s.viewStale.Store(true)
	}
	return restored, nil
}

// Validate validates the persisted queue state.
func (s *queueState) Validate() error {
	if s.Version != "" && s.Version != queueStateVersion {
		return fmt.Errorf("unsupported queue state version: %q", s.Version)
	}

	keys := map[string]struct{}{}
	for i, rec := range s.Operations {
		if strings.TrimSpace(rec.ID) == "" {
			return fmt.Errorf("operations[%d].id is required", i)
		}
		if strings.TrimSpace(rec.ResourceKey) == "" {
			return fmt.Errorf("operations[%d].resourceKey is required", i)
		}
		switch domain.OperationType(rec.Type) {
		case domain.OperationCreate, domain.OperationUpdate, domain.OperationDelete:
		default:
			return fmt.Errorf("operations[%d].type must be create|update|delete", i)
		}
		if _, exists := keys[rec.ResourceKey]; exists {
			return fmt.Errorf("duplicate resource key: %q", rec.ResourceKey)
		}
		keys[rec.ResourceKey] = struct{}{}
	}
	return nil
}

// operationRecordFromDomain converts one queued operation to its persisted
// form.
func operationRecordFromDomain(op domain.DraftOperation) operationRecord {
	rec := operationRecord{
		ID:          op.ID,
		Type:        string(op.Type),
		Timestamp:   op.Timestamp.UTC(),
		ResourceKey: op.ResourceKey,
		ResourceID:  op.ResourceID,
		Description: op.Description,
		Method:      op.Payload.Method,
		Path:        op.Payload.Path,
		Body:        op.Payload.Body,
	}
	if !op.TempID.IsZero() {
		rec.TempID = op.TempID.String()
	}
	return rec
}

// toDomain rebuilds the queued operation, parsing the temp id back from its
// string form.
func (r operationRecord) toDomain() (domain.DraftOperation, error) {
	var tempID domain.TempID
	if strings.TrimSpace(r.TempID) != "" {
		parsed, err := domain.ParseTempID(r.TempID)
		if err != nil {
			return domain.DraftOperation{}, err
		}
		tempID = parsed
	}
	return domain.NewDraftOperation(domain.DraftOperationInput{
		ID:          r.ID,
		Type:        domain.OperationType(r.Type),
		ResourceKey: r.ResourceKey,
		ResourceID:  r.ResourceID,
		TempID:      tempID,
		Description: r.Description,
		Payload: domain.Payload{
			Method: r.Method,
			Path:   r.Path,
			Body:   r.Body,
		},
	}, r.Timestamp)
}
