// Package storage provides object storage for publishing run artifacts.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrUploadFailed = errors.New("upload failed")
	ErrDeleteFailed = errors.New("delete failed")
)

// ObjectStorage abstracts the destination the run's output artifacts are
// published to. Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload uploads a local file to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object. Deleting an absent object is not an error.
	Delete(ctx context.Context, objectPath string) error
}
