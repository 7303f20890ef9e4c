package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

const (
	DefaultPollInterval = time.Second
	DefaultCopyTimeout  = 5 * time.Minute
)

// Router moves objects between stage locations on top of a store that only
// offers asynchronous copy plus delete.
type Router struct {
	store        storage.Store
	buckets      Buckets
	pollInterval time.Duration
	copyTimeout  time.Duration
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithPollInterval sets how long Relocate waits between copy status polls.
func WithPollInterval(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithCopyTimeout bounds how long Relocate waits for a copy to finish.
func WithCopyTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.copyTimeout = d
		}
	}
}

func NewRouter(store storage.Store, buckets Buckets, opts ...RouterOption) *Router {
	r := &Router{
		store:        store,
		buckets:      buckets,
		pollInterval: DefaultPollInterval,
		copyTimeout:  DefaultCopyTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Relocation describes a finished move. DeleteErr is set when the copy
// succeeded but the source could not be removed; the move still counts as done.
type Relocation struct {
	Source      storage.ObjectRef
	Destination storage.ObjectRef
	DeleteErr   error
}

// Warning reports whether the source object was left behind.
func (r *Relocation) Warning() bool {
	return r.DeleteErr != nil
}

// Ref resolves a location and object name into a store reference.
func (r *Router) Ref(l Location, name string) (storage.ObjectRef, error) {
	bucket, err := r.buckets.Bucket(l)
	if err != nil {
		return storage.ObjectRef{}, models.ConfigurationError("resolving stage location", err)
	}
	return storage.ObjectRef{Bucket: bucket, Name: name}, nil
}

// Read fetches an object from a stage location.
func (r *Router) Read(ctx context.Context, l Location, name string) ([]byte, error) {
	ref, err := r.Ref(l, name)
	if err != nil {
		return nil, err
	}
	data, err := r.store.Get(ctx, ref.Bucket, ref.Name)
	if err != nil {
		return nil, models.StorageError("get", fmt.Sprintf("reading %s", ref), err)
	}
	return data, nil
}

// Deposit writes data into a stage location unless the object already exists.
// created is false when an earlier delivery of the same event got there first.
func (r *Router) Deposit(ctx context.Context, l Location, name string, data []byte) (created bool, err error) {
	ref, err := r.Ref(l, name)
	if err != nil {
		return false, err
	}
	created, err = r.store.Create(ctx, ref.Bucket, ref.Name, data)
	if err != nil {
		return false, models.StorageError("put", fmt.Sprintf("writing %s", ref), err)
	}
	return created, nil
}

// Remove deletes an object from a stage location.
func (r *Router) Remove(ctx context.Context, l Location, name string) error {
	ref, err := r.Ref(l, name)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, ref.Bucket, ref.Name); err != nil {
		return models.StorageError("delete", fmt.Sprintf("deleting %s", ref), err)
	}
	return nil
}

// List returns the objects currently held in a stage location.
func (r *Router) List(ctx context.Context, l Location, prefix string) ([]storage.ObjectInfo, error) {
	bucket, err := r.buckets.Bucket(l)
	if err != nil {
		return nil, models.ConfigurationError("resolving stage location", err)
	}
	objects, err := r.store.List(ctx, bucket, prefix)
	if err != nil {
		return nil, models.StorageError("list", fmt.Sprintf("listing %s", bucket), err)
	}
	return objects, nil
}

// Relocate copies src into dst under dstName, waits for the copy to finish and
// then deletes the source. A failed copy is returned as a StorageError; a
// failed delete is only recorded on the returned Relocation.
func (r *Router) Relocate(ctx context.Context, src Location, srcName string, dst Location, dstName string) (*Relocation, error) {
	from, err := r.Ref(src, srcName)
	if err != nil {
		return nil, err
	}
	to, err := r.Ref(dst, dstName)
	if err != nil {
		return nil, err
	}
	logCtx := slog.With("source", from.String(), "destination", to.String())

	handle, err := r.store.Copy(ctx, from, to)
	if err != nil {
		logCtx.Error("Failed to start copy", "error", err)
		return nil, models.StorageError("copy", fmt.Sprintf("copying %s to %s", from, to), err)
	}
	if err := r.awaitCopy(ctx, handle); err != nil {
		logCtx.Error("Copy did not complete", "error", err)
		if aerr := r.store.Abandon(context.WithoutCancel(ctx), handle); aerr != nil {
			logCtx.Warn("Failed to abandon copy", "handle", string(handle), "error", aerr)
		}
		return nil, models.StorageError("copy", fmt.Sprintf("copying %s to %s", from, to), err)
	}

	result := &Relocation{Source: from, Destination: to}
	if err := r.store.Delete(ctx, from.Bucket, from.Name); err != nil {
		logCtx.Warn("Copied object but failed to delete source; duplicate left behind", "error", err)
		result.DeleteErr = models.StorageError("delete", fmt.Sprintf("deleting %s", from), err)
		return result, nil
	}
	logCtx.Info("Relocated object.")
	return result, nil
}

// ErrCopyTimeout is wrapped into the StorageError returned when a copy outlives the copy timeout.
var ErrCopyTimeout = errors.New("timed out waiting for copy")

// awaitCopy polls the copy until it leaves the pending state, the copy
// timeout expires or ctx is cancelled.
func (r *Router) awaitCopy(ctx context.Context, h storage.CopyHandle) error {
	deadline := time.NewTimer(r.copyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		status, err := r.store.Status(ctx, h)
		if err != nil {
			return fmt.Errorf("polling copy status: %w", err)
		}
		switch status.State {
		case storage.CopyCompleted:
			return nil
		case storage.CopyFailed:
			if status.Err == nil {
				return errors.New("copy failed")
			}
			return status.Err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s", ErrCopyTimeout, r.copyTimeout)
		case <-ticker.C:
		}
	}
}
