package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for an S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore implements Store on MinIO or any S3-compatible endpoint.
// Server-side copies complete synchronously, so Copy returns an already
// terminal handle.
type MinioStore struct {
	client *minio.Client
	copies *copyTracker
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioStore{client: client, copies: newCopyTracker()}, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (s *MinioStore) Get(ctx context.Context, bucket, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", bucket, name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", bucket, name, err)
	}
	return data, nil
}

func (s *MinioStore) put(ctx context.Context, bucket, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, name, err)
	}
	return nil
}

// Create checks for the object before writing. S3 has no portable
// create-only precondition, so two racing writers may both succeed.
func (s *MinioStore) Create(ctx context.Context, bucket, name string, data []byte) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, name, minio.StatObjectOptions{})
	if err == nil {
		slog.Info("SKIPPING: object already exists.", "bucket", bucket, "object", name)
		return false, nil
	}
	if !isNoSuchKey(err) {
		return false, fmt.Errorf("failed to stat %s/%s: %w", bucket, name, err)
	}
	if err := s.put(ctx, bucket, name, data); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MinioStore) Copy(ctx context.Context, src, dst ObjectRef) (CopyHandle, error) {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dst.Bucket, Object: dst.Name},
		minio.CopySrcOptions{Bucket: src.Bucket, Object: src.Name},
	)
	if err != nil && isNoSuchKey(err) {
		return "", fmt.Errorf("copy source %s: %w", src, ErrNotFound)
	}
	if err != nil {
		err = fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return s.copies.finished(err), nil
}

func (s *MinioStore) Status(_ context.Context, h CopyHandle) (CopyStatus, error) {
	return s.copies.status(h)
}

func (s *MinioStore) Abandon(_ context.Context, h CopyHandle) error {
	s.copies.forget(h)
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, bucket, name string) error {
	if err := s.client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *MinioStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects in %s: %w", bucket, obj.Err)
		}
		objects = append(objects, ObjectInfo{Name: obj.Key, Size: obj.Size, Updated: obj.LastModified})
	}
	return objects, nil
}
