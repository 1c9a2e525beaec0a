// Package storage publishes snapshot archives to an object store. S3 is the
// production backend; GCS and the local filesystem satisfy the same
// interface.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrCredentials is returned when ambient credentials for a backend cannot be
// resolved.
var ErrCredentials = errors.New("storage: credentials unavailable")

// Uploader persists an object to a storage backend. An existing object with
// the same name is replaced unconditionally. Uploads are attempted once.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}

type UploadRequest struct {
	// ObjectName is the object key within the configured bucket.
	ObjectName string

	// Content is the data to be uploaded.
	Content io.Reader

	// ContentLength is the size of Content in bytes, or -1 if unknown.
	ContentLength int64

	// ContentType is the MIME type of the content, e.g. "application/gzip".
	ContentType string
}

// UploadResult is the outcome of a successful upload.
type UploadResult struct {
	// ObjectName is the object key within the configured bucket.
	ObjectName string

	// Location identifies the stored object, e.g. "s3://bucket/key".
	Location string

	// SignedURL provides time-limited access to the object, if the backend
	// supports it.
	SignedURL string

	// ExpiresAt is when the signed URL becomes invalid.
	ExpiresAt time.Time
}
