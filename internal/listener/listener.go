// Package listener defines the success/failure listener contracts the
// query engine invokes for every batch, an ordered registry that guards
// against mutation after a job starts, and a small set of named,
// config-constructible listener implementations.
package listener

import (
	"errors"
	"sync"

	"github.com/chtzvt/forestbatch/internal/batch"
)

// ErrRegistryLocked is returned by Add* once a Registry has been locked
// (the engine locks its registries at Start; listener registration is
// forbidden after that point).
var ErrRegistryLocked = errors.New("listener: registry locked after job start")

// SuccessListener is invoked once per delivered batch, in registration
// order, on the worker thread that fetched the page. It may return an
// error; the engine catches and logs it and the error never affects
// pagination or the next-page task.
type SuccessListener func(batch.Batch) error

// FailureEvent carries the Batch as it stood at the moment of failure
// (no items, counters as of the failed attempt) and the error that
// caused the failure, along with everything retry() needs to resume.
type FailureEvent struct {
	Batch              batch.Batch
	Cause              error
	ShardBatchNumber   int64
	ShardResultsSoFar  int64
	JobBatchNumber     int64
}

// FailureListener is invoked once per failed task, in registration
// order, when the task was marked to invoke failure listeners (i.e. not
// itself a retry re-entry). Errors are caught and logged the same way as
// success listeners.
type FailureListener func(FailureEvent) error

// Registry holds ordered success and failure listener lists. It is
// mutable only before Lock is called; afterward Add* fail and reads are
// safe without further synchronization since the slices are no longer
// written to.
type Registry struct {
	mu       sync.Mutex
	success  []SuccessListener
	failure  []FailureListener
	locked   bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// AddSuccess appends a success listener. Fails once the registry is locked.
func (r *Registry) AddSuccess(l SuccessListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrRegistryLocked
	}
	r.success = append(r.success, l)
	return nil
}

// AddFailure appends a failure listener. Fails once the registry is locked.
func (r *Registry) AddFailure(l FailureListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrRegistryLocked
	}
	r.failure = append(r.failure, l)
	return nil
}

// Lock freezes the registry; called once by the engine at Start.
func (r *Registry) Lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

// Success returns the registered success listeners in registration order.
// Safe to call without locking once Lock has been called.
func (r *Registry) Success() []SuccessListener {
	return r.success
}

// Failure returns the registered failure listeners in registration order.
func (r *Registry) Failure() []FailureListener {
	return r.failure
}
