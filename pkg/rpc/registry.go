package rpc

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome is what a Waiter receives: a raw result or an error.
type Outcome struct {
	Result json.RawMessage
	Err    error
}

// PendingRequest describes an outstanding call.
type PendingRequest struct {
	ID        uint64
	Namespace string
	Method    string
	CreatedAt time.Time
}

// Waiter is the caller's side of a PendingRequest. It is completed exactly once.
type Waiter struct {
	PendingRequest
	done <-chan Outcome
}

// Done delivers the single Outcome of the request.
func (w *Waiter) Done() <-chan Outcome { return w.done }

type pendingEntry struct {
	PendingRequest
	done chan Outcome
}

// Registry maps request ids to their waiters. It is the only holder of the
// sending side of each waiter, so a request completes at most once: whichever
// of Resolve, Reject, Remove or FailAll reaches it first wins and later calls
// for the same id do nothing.
type Registry struct {
	lastID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]*pendingEntry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[uint64]*pendingEntry),
		now:     time.Now,
	}
}

// NextID returns a fresh id. Ids increase monotonically and are never reused
// by the same registry.
func (r *Registry) NextID() uint64 {
	return r.lastID.Add(1)
}

// Register creates the waiter for id.
func (r *Registry) Register(id uint64, namespace, method string) (*Waiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[id]; exists {
		return nil, ErrDuplicateRequestID
	}

	entry := &pendingEntry{
		PendingRequest: PendingRequest{
			ID:        id,
			Namespace: namespace,
			Method:    method,
			CreatedAt: r.now(),
		},
		done: make(chan Outcome, 1),
	}
	r.pending[id] = entry

	return &Waiter{PendingRequest: entry.PendingRequest, done: entry.done}, nil
}

// Resolve completes id with result. It reports whether id was pending.
func (r *Registry) Resolve(id uint64, result json.RawMessage) bool {
	return r.complete(id, Outcome{Result: result})
}

// Reject completes id with err. It reports whether id was pending.
func (r *Registry) Reject(id uint64, err error) bool {
	return r.complete(id, Outcome{Err: err})
}

// Remove forgets id without completing its waiter. Used when the caller gave up.
func (r *Registry) Remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.pending[id]
	delete(r.pending, id)
	return ok
}

func (r *Registry) Has(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.pending[id]
	return ok
}

// Get returns the description of a pending request.
func (r *Registry) Get(id uint64) (PendingRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[id]
	if !ok {
		return PendingRequest{}, false
	}
	return entry.PendingRequest, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// FailAll rejects every pending waiter with a *ConnectionLostError carrying
// cause and returns how many were rejected. The registry is empty afterwards.
func (r *Registry) FailAll(cause error) int {
	r.mu.Lock()
	entries := r.pending
	r.pending = make(map[uint64]*pendingEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.done <- Outcome{Err: &ConnectionLostError{
			RequestID: e.ID,
			Namespace: e.Namespace,
			Method:    e.Method,
			Cause:     cause,
		}}
	}
	return len(entries)
}

func (r *Registry) complete(id uint64, out Outcome) bool {
	r.mu.Lock()
	entry, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	// Buffered with capacity one and sent to only once, since the entry is gone.
	entry.done <- out
	return true
}
