package app

import (
	"context"

	"github.com/vrognas/redmyne/internal/domain"
)

// commitSource tags queue removals performed by the commit loop.
const commitSource = "commit"

// CommitFailure records one operation the remote server rejected.
type CommitFailure struct {
	Description string
	Err         error
}

// CommitReport summarizes one commit pass over the queue.
type CommitReport struct {
	Attempted int
	Applied   int
	Failed    []CommitFailure
}

// Commit applies the queue in insertion order, one REST call per operation.
// Applied operations are removed from the queue; rejected ones stay queued
// and the loop continues to the next. The returned error is non-nil only when
// the context ends the pass early.
func (s *Service) Commit(ctx context.Context) (CommitReport, error) {
	ops := s.queue.All()
	report := CommitReport{Attempted: len(ops)}
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var err error
		switch op.Type {
		case domain.OperationCreate:
			err = s.remote.Create(ctx, op.Payload.Path, op.Payload.Body)
		case domain.OperationUpdate:
			err = s.remote.Update(ctx, op.Payload.Path, op.Payload.Body)
		case domain.OperationDelete:
			err = s.remote.Delete(ctx, op.Payload.Path)
		default:
			err = domain.ErrInvalidOperationType
		}
		if err != nil {
			report.Failed = append(report.Failed, CommitFailure{Description: op.Description, Err: err})
			continue
		}
		report.Applied++
		s.queue.Remove(op.ID, commitSource)
	}
	s.viewStale.Store(true)
	return report, nil
}
