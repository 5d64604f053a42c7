package repository

import (
	"context"
	"io"
	"time"
)

// Bucket names the three logical buckets of the object store gateway.
type Bucket string

const (
	BucketUploads  Bucket = "uploads"
	BucketSidecars Bucket = "sidecars"
	BucketTmp      Bucket = "tmp"
)

// PresignedPut is a time-bounded URL for a single direct PUT.
type PresignedPut struct {
	URL       string
	ExpiresAt time.Time
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectStorage is the gateway over the S3-compatible store. It is
// stateless and does not verify uploaded content.
type ObjectStorage interface {
	// PresignUpload creates a presigned PUT URL bound to a key, the
	// declared content type, and the declared size, valid for the TTL.
	PresignUpload(ctx context.Context, bucket Bucket, key, contentType string, sizeBytes int64, ttl time.Duration) (*PresignedPut, error)

	// PresignDownload creates a presigned GET URL valid for the TTL.
	PresignDownload(ctx context.Context, bucket Bucket, key string, ttl time.Duration) (string, error)

	// Put stores an object. Used by the pipeline for sidecars and
	// scratch artifacts.
	Put(ctx context.Context, bucket Bucket, key string, reader io.Reader, size int64, contentType string) error

	// Get retrieves an object as a stream. Caller closes the reader.
	// Returns ErrObjectNotFound for missing keys.
	Get(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, error)

	// Stat fetches object metadata, or ErrObjectNotFound.
	Stat(ctx context.Context, bucket Bucket, key string) (*ObjectInfo, error)

	// Exists checks whether an object is present.
	Exists(ctx context.Context, bucket Bucket, key string) (bool, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, bucket Bucket, key string) error
}
