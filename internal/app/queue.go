package app

import (
	"strings"
	"sync"

	"github.com/vrognas/redmyne/internal/domain"
)

// ChangeHandler receives the source tag of the mutation that fired it.
type ChangeHandler func(source string)

type queueSubscriber struct {
	owner   string
	handler ChangeHandler
}

// DraftQueue is an ordered store of draft operations keyed by resource key.
// At most one operation exists per key; a later Add for the same key replaces
// the earlier one and moves it to the tail. Every mutation carries a source
// tag, and subscribers owned by that source are skipped when the change is
// announced.
type DraftQueue struct {
	mu          sync.Mutex
	byKey       map[string]domain.DraftOperation
	order       []string
	subscribers []queueSubscriber
}

// NewDraftQueue constructs an empty queue.
func NewDraftQueue() *DraftQueue {
	return &DraftQueue{byKey: map[string]domain.DraftOperation{}}
}

// Add inserts the operation, replacing any queued operation with the same
// resource key.
func (q *DraftQueue) Add(op domain.DraftOperation, source string) {
	q.mu.Lock()
	if _, ok := q.byKey[op.ResourceKey]; ok {
		q.dropKeyLocked(op.ResourceKey)
	}
	q.byKey[op.ResourceKey] = op
	q.order = append(q.order, op.ResourceKey)
	q.mu.Unlock()
	q.notify(source)
}

// Remove deletes the operation with the given id and reports whether one was
// found.
func (q *DraftQueue) Remove(id, source string) bool {
	q.mu.Lock()
	removed := false
	for key, op := range q.byKey {
		if op.ID == id {
			q.dropKeyLocked(key)
			removed = true
			break
		}
	}
	q.mu.Unlock()
	if removed {
		q.notify(source)
	}
	return removed
}

// RemoveByKey deletes the operation queued under the given resource key.
func (q *DraftQueue) RemoveByKey(key, source string) bool {
	q.mu.Lock()
	_, removed := q.byKey[key]
	if removed {
		q.dropKeyLocked(key)
	}
	q.mu.Unlock()
	if removed {
		q.notify(source)
	}
	return removed
}

// RemoveByTempIDPrefix deletes every operation whose temp id serialization
// starts with the given prefix, returning how many were removed.
func (q *DraftQueue) RemoveByTempIDPrefix(prefix, source string) int {
	q.mu.Lock()
	var keys []string
	for key, op := range q.byKey {
		if op.TempID.IsZero() {
			continue
		}
		if strings.HasPrefix(op.TempID.String(), prefix) {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		q.dropKeyLocked(key)
	}
	q.mu.Unlock()
	if len(keys) > 0 {
		q.notify(source)
	}
	return len(keys)
}

// Clear empties the queue, returning how many operations were dropped.
func (q *DraftQueue) Clear(source string) int {
	q.mu.Lock()
	n := len(q.order)
	q.byKey = map[string]domain.DraftOperation{}
	q.order = nil
	q.mu.Unlock()
	if n > 0 {
		q.notify(source)
	}
	return n
}

// Get returns the operation queued under the given resource key.
func (q *DraftQueue) Get(key string) (domain.DraftOperation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.byKey[key]
	return op, ok
}

// All returns every queued operation in insertion order.
func (q *DraftQueue) All() []domain.DraftOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := make([]domain.DraftOperation, 0, len(q.order))
	for _, key := range q.order {
		ops = append(ops, q.byKey[key])
	}
	return ops
}

// ByKeyPrefix returns queued operations whose resource key starts with the
// given prefix, in insertion order.
func (q *DraftQueue) ByKeyPrefix(prefix string) []domain.DraftOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ops []domain.DraftOperation
	for _, key := range q.order {
		if strings.HasPrefix(key, prefix) {
			ops = append(ops, q.byKey[key])
		}
	}
	return ops
}

// Len returns the number of queued operations.
func (q *DraftQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// Subscribe registers a change handler owned by the given source tag. The
// handler is not called for mutations carrying that same tag.
func (q *DraftQueue) Subscribe(owner string, handler ChangeHandler) {
	if handler == nil {
		return
	}
	q.mu.Lock()
	q.subscribers = append(q.subscribers, queueSubscriber{owner: owner, handler: handler})
	q.mu.Unlock()
}

func (q *DraftQueue) dropKeyLocked(key string) {
	delete(q.byKey, key)
	for i, k := range q.order {
		if k == key {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *DraftQueue) notify(source string) {
	q.mu.Lock()
	subs := make([]queueSubscriber, len(q.subscribers))
	copy(subs, q.subscribers)
	q.mu.Unlock()
	for _, sub := range subs {
		if sub.owner == source {
			continue
		}
		sub.handler(source)
	}
}
