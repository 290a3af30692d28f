package course

import "sync"

type DeletionState int

const (
	StateIdle DeletionState = iota
	StateDeleting
)

func (s DeletionState) String() string {
	if s == StateDeleting {
		return "deleting"
	}
	return "idle"
}

// DeletionTracker keeps at most one in-flight deletion per id.
// An id goes Idle -> Deleting on Begin and back to Idle on End, whatever the outcome:
// a failed deletion leaves the record in place and a successful one removes it for good.
type DeletionTracker struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewDeletionTracker() *DeletionTracker {
	return &DeletionTracker{inflight: make(map[string]struct{})}
}

// Begin marks `id` as being deleted. It fails with ErrDeleteInProgress if it already is.
func (t *DeletionTracker) Begin(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.inflight[id]; ok {
		return ErrDeleteInProgress
	}
	t.inflight[id] = struct{}{}
	return nil
}

// End releases `id`.
func (t *DeletionTracker) End(id string) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

func (t *DeletionTracker) State(id string) DeletionState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.inflight[id]; ok {
		return StateDeleting
	}
	return StateIdle
}
