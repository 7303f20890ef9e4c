package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSStore implements Store on Google Cloud Storage. Copies run the rewrite
// API in the background so callers observe the same poll-until-done contract
// as any other backend.
type GCSStore struct {
	client *storage.Client
	copies *copyTracker
}

// NewGCSStore creates a store backed by a new GCS client.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return NewGCSStoreFromClient(client), nil
}

// NewGCSStoreFromClient wraps an existing client.
func NewGCSStoreFromClient(client *storage.Client) *GCSStore {
	return &GCSStore{client: client, copies: newCopyTracker()}
}

func (s *GCSStore) Get(ctx context.Context, bucket, name string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", bucket, name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, name, err)
	}
	return data, nil
}

// Create writes the object only if it doesn't already exist.
func (s *GCSStore) Create(ctx context.Context, bucket, name string, data []byte) (bool, error) {
	writer := s.client.Bucket(bucket).Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	err := finishWrite(writer, data, bucket, name)
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		slog.Info("SKIPPING: object already exists.", "bucket", bucket, "object", name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func finishWrite(writer *storage.Writer, data []byte, bucket, name string) error {
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to gs://%s/%s: %w", bucket, name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize write of gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *GCSStore) Copy(ctx context.Context, src, dst ObjectRef) (CopyHandle, error) {
	srcObj := s.client.Bucket(src.Bucket).Object(src.Name)
	dstObj := s.client.Bucket(dst.Bucket).Object(dst.Name)
	if _, err := srcObj.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("copy source gs://%s: %w", src, ErrNotFound)
		}
		return "", fmt.Errorf("failed to stat copy source gs://%s: %w", src, err)
	}

	copier := dstObj.CopierFrom(srcObj)
	return s.copies.start(ctx, func(ctx context.Context) error {
		if _, err := copier.Run(ctx); err != nil {
			return fmt.Errorf("rewrite gs://%s to gs://%s: %w", src, dst, err)
		}
		return nil
	}), nil
}

func (s *GCSStore) Status(_ context.Context, h CopyHandle) (CopyStatus, error) {
	return s.copies.status(h)
}

// Abandon stops the background rewrite behind h.
func (s *GCSStore) Abandon(_ context.Context, h CopyHandle) error {
	s.copies.forget(h)
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, bucket, name string) error {
	if err := s.client.Bucket(bucket).Object(name).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("gs://%s/%s: %w", bucket, name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %s: %w", bucket, err)
		}
		objects = append(objects, ObjectInfo{Name: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return objects, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
