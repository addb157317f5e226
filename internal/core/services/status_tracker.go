package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/curation/internal/core/ports"
)

const DefaultStatusClearDelay = 5 * time.Second

// statusTracker holds the outcome of recent writes so clients can poll them.
// Finished operations disappear after clearDelay.
type statusTracker struct {
	mu         sync.Mutex
	ops        map[string]ports.Operation
	timers     map[string]*time.Timer
	clearDelay time.Duration
	now        func() time.Time
}

func NewOperationTracker(clearDelay time.Duration) ports.OperationTracker {
	if clearDelay <= 0 {
		clearDelay = DefaultStatusClearDelay
	}
	return &statusTracker{
		ops:        make(map[string]ports.Operation),
		timers:     make(map[string]*time.Timer),
		clearDelay: clearDelay,
		now:        time.Now,
	}
}

func (t *statusTracker) Begin(kind string) string {
	id := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[id] = ports.Operation{
		ID:        id,
		Kind:      kind,
		Status:    ports.OperationPending,
		UpdatedAt: t.now(),
	}
	return id
}

func (t *statusTracker) Finish(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[id]
	if !ok {
		return
	}
	op.Status = ports.OperationSuccess
	op.Message = ""
	if err != nil {
		op.Status = ports.OperationError
		op.Message = err.Error()
	}
	op.UpdatedAt = t.now()
	t.ops[id] = op

	if timer, ok := t.timers[id]; ok {
		timer.Stop()
	}
	t.timers[id] = time.AfterFunc(t.clearDelay, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.ops, id)
		delete(t.timers, id)
	})
}

func (t *statusTracker) Get(id string) (ports.Operation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	return op, ok
}
