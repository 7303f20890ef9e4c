// Package storage defines the object store contract used by every stage and
// its GCS, MinIO and in-memory implementations.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned (wrapped) when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectRef addresses one object.
type ObjectRef struct {
	Bucket string
	Name   string
}

func (r ObjectRef) String() string {
	return r.Bucket + "/" + r.Name
}

// ObjectInfo is returned by List.
type ObjectInfo struct {
	Name    string
	Size    int64
	Updated time.Time
}

// CopyState is the lifecycle of an asynchronous copy.
type CopyState string

const (
	CopyPending   CopyState = "PENDING"
	CopyCompleted CopyState = "COMPLETED"
	CopyFailed    CopyState = "FAILED"
)

// CopyHandle identifies an asynchronous copy started with Store.Copy.
type CopyHandle string

// CopyStatus is the answer to a poll. Err is set when State is CopyFailed.
type CopyStatus struct {
	State CopyState
	Err   error
}

// Store is the narrow object store contract. Copy is asynchronous: callers
// poll Status until the copy leaves CopyPending.
type Store interface {
	Get(ctx context.Context, bucket, name string) ([]byte, error)
	// Create writes the object only if it does not exist yet. created is
	// false when an object with that name was already present.
	Create(ctx context.Context, bucket, name string, data []byte) (created bool, err error)
	Copy(ctx context.Context, src, dst ObjectRef) (CopyHandle, error)
	Status(ctx context.Context, h CopyHandle) (CopyStatus, error)
	// Abandon releases a copy the caller stopped polling. A copy still
	// running is cancelled where the backend allows it. Unknown handles are ignored.
	Abandon(ctx context.Context, h CopyHandle) error
	Delete(ctx context.Context, bucket, name string) error
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// copyTracker records the outcome of copies running in the background.
type copyTracker struct {
	mu  sync.Mutex
	ops map[CopyHandle]*copyOp
}

type copyOp struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

func newCopyTracker() *copyTracker {
	return &copyTracker{ops: make(map[CopyHandle]*copyOp)}
}

// start runs fn in the background and returns a handle for polling it. The
// context passed to fn is cancelled when the handle is forgotten.
func (t *copyTracker) start(ctx context.Context, fn func(context.Context) error) CopyHandle {
	h := CopyHandle(uuid.NewString())
	runCtx, cancel := context.WithCancel(ctx)
	op := &copyOp{done: make(chan struct{}), cancel: cancel}
	t.mu.Lock()
	t.ops[h] = op
	t.mu.Unlock()

	go func() {
		defer cancel()
		op.err = fn(runCtx)
		close(op.done)
	}()
	return h
}

// finished records a copy that already ran to completion.
func (t *copyTracker) finished(err error) CopyHandle {
	h := CopyHandle(uuid.NewString())
	op := &copyOp{done: make(chan struct{}), err: err}
	close(op.done)
	t.mu.Lock()
	t.ops[h] = op
	t.mu.Unlock()
	return h
}

// status reports the state of h. Terminal states are reported once; the
// handle is forgotten afterwards.
func (t *copyTracker) status(h CopyHandle) (CopyStatus, error) {
	t.mu.Lock()
	op, ok := t.ops[h]
	t.mu.Unlock()
	if !ok {
		return CopyStatus{}, errors.New("unknown copy handle " + string(h))
	}

	select {
	case <-op.done:
	default:
		return CopyStatus{State: CopyPending}, nil
	}

	t.forget(h)
	if op.err != nil {
		return CopyStatus{State: CopyFailed, Err: op.err}, nil
	}
	return CopyStatus{State: CopyCompleted}, nil
}

// forget drops h and cancels its copy if it is still running.
func (t *copyTracker) forget(h CopyHandle) {
	t.mu.Lock()
	op, ok := t.ops[h]
	delete(t.ops, h)
	t.mu.Unlock()
	if ok && op.cancel != nil {
		op.cancel()
	}
}

// pending reports how many handles are still tracked.
func (t *copyTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}
