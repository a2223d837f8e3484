package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound is returned when a referenced binary is missing from the
// store. Reads of a record whose binary is gone must treat this as
// "binary unavailable", never as a record error.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore abstracts the binary store holding uploaded audio payloads.
// Put reports the number of bytes durably written, which is the only source
// for a record's file size.
type ObjectStore interface {
	Put(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (int64, error)
	Get(ctx context.Context, objectPath string) (io.ReadCloser, error)
	Remove(ctx context.Context, objectPath string) error
	Exists(ctx context.Context, objectPath string) (bool, error)
}

// AudioObjectPath derives the deterministic storage location for an uploaded
// binary: <namespace>/<owner-username>/<filename>.
func AudioObjectPath(namespace, username, filename string) string {
	return path.Join(namespace, username, filename)
}

// ResolveAudioObjectPath returns the storage location for an upload,
// applying the collision policy: when the deterministic path is already
// taken for that user, the stored name gets a short random suffix before the
// extension. Existing objects are never overwritten.
func ResolveAudioObjectPath(ctx context.Context, store ObjectStore, namespace, username, filename string) (string, error) {
	objectPath := AudioObjectPath(namespace, username, filename)
	exists, err := store.Exists(ctx, objectPath)
	if err != nil {
		return "", fmt.Errorf("failed to check object %s: %w", objectPath, err)
	}
	if !exists {
		return objectPath, nil
	}

	ext := path.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	renamed := fmt.Sprintf("%s-%s%s", base, suffix, ext)
	return AudioObjectPath(namespace, username, renamed), nil
}

// ContentTypeByExtension maps an audio filename to its MIME type for
// storage and serving.
func ContentTypeByExtension(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// minioObjectStore implements ObjectStore on a MinIO bucket.
type minioObjectStore struct {
	client *minio.Client
	bucket string
}

// NewMinioObjectStore creates an ObjectStore backed by the given MinIO
// client and bucket.
func NewMinioObjectStore(client *minio.Client, bucket string) ObjectStore {
	return &minioObjectStore{client: client, bucket: bucket}
}

func (s *minioObjectStore) Put(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (int64, error) {
	info, err := s.client.PutObject(ctx, s.bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object %s: %w", objectPath, err)
	}
	return info.Size, nil
}

func (s *minioObjectStore) Get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	// GetObject defers errors to the first read, so confirm existence first.
	if _, err := s.client.StatObject(ctx, s.bucket, objectPath, minio.StatObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object %s: %w", objectPath, err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectPath, err)
	}
	return object, nil
}

func (s *minioObjectStore) Remove(ctx context.Context, objectPath string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to remove object %s: %w", objectPath, err)
	}
	return nil
}

func (s *minioObjectStore) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", objectPath, err)
	}
	return true, nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
