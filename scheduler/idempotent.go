package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/watlab/autocontrol/idempotency"
	"github.com/watlab/autocontrol/task"
)

// QueuePutIdempotent wraps QueuePut with a client-supplied idempotency
// key: a retried Submit with the same key inside the cache's TTL window
// replays the original outcome instead of enqueueing a duplicate task.
// An empty key disables idempotency checking for this call.
func (s *Scheduler) QueuePutIdempotent(ctx context.Context, idem *idempotency.Store, key string, t *task.Task) (bool, uuid.UUID, int, string, error) {
	if idem == nil || key == "" {
		return s.QueuePut(t)
	}

	if cached, ok := idem.Get(ctx, key); ok {
		return true, cached.TaskID, cached.SampleNumber, cached.Response, nil
	}

	ok, id, num, resp, err := s.QueuePut(t)
	if err != nil || !ok {
		return ok, id, num, resp, err
	}

	idem.Put(ctx, key, idempotency.Result{
		TaskID:       id,
		SampleNumber: num,
		Response:     fmt.Sprintf("%s (replayed from idempotency key %q)", resp, key),
	})
	return ok, id, num, resp, nil
}
