package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/scenedex/internal/domain/repository"
)

// minioClient defines the MinIO operations the gateway uses. The
// abstraction exists for unit testing with mocks.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PresignHeader(ctx context.Context, method, bucketName, objectName string, expires time.Duration, reqParams url.Values, extraHeaders http.Header) (*url.URL, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// objectReader abstracts minio.Object for testability.
// *minio.Object satisfies this interface.
type objectReader interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// minioClientAdapter wraps *minio.Client to implement minioClient.
// Needed because GetObject returns the concrete *minio.Object.
type minioClientAdapter struct {
	client *minio.Client
}

func (a *minioClientAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.client.BucketExists(ctx, bucketName)
}

func (a *minioClientAdapter) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return a.client.MakeBucket(ctx, bucketName, opts)
}

func (a *minioClientAdapter) PresignHeader(ctx context.Context, method, bucketName, objectName string, expires time.Duration, reqParams url.Values, extraHeaders http.Header) (*url.URL, error) {
	return a.client.PresignHeader(ctx, method, bucketName, objectName, expires, reqParams, extraHeaders)
}

func (a *minioClientAdapter) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	return a.client.PresignedGetObject(ctx, bucketName, objectName, expiry, reqParams)
}

func (a *minioClientAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a *minioClientAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return a.client.RemoveObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.client.StatObject(ctx, bucketName, objectName, opts)
}

// GatewayConfig holds configuration for the object store gateway.
type GatewayConfig struct {
	Endpoint       string
	PublicEndpoint string // Optional: external-facing endpoint for presigned URLs
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Buckets        map[repository.Bucket]string
}

// DefaultBuckets maps the logical buckets onto their default names.
func DefaultBuckets() map[repository.Bucket]string {
	return map[repository.Bucket]string{
		repository.BucketUploads:  "uploads",
		repository.BucketSidecars: "sidecars",
		repository.BucketTmp:      "tmp",
	}
}

// Gateway implements repository.ObjectStorage over an S3-compatible
// store. It is stateless; buckets are created at startup if missing.
type Gateway struct {
	client          minioClient
	presignedClient minioClient // may point at the public endpoint
	buckets         map[repository.Bucket]string
}

// NewGateway creates the gateway and ensures the three logical
// buckets exist. If PublicEndpoint is set, a separate client signs
// presigned URLs against it so browsers can reach them.
func NewGateway(ctx context.Context, cfg GatewayConfig) (*Gateway, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	adapter := &minioClientAdapter{client: client}

	var presignedAdapter minioClient = adapter
	if cfg.PublicEndpoint != "" {
		presignedClient, err := minio.New(cfg.PublicEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create presigned minio client: %w", err)
		}
		presignedAdapter = &minioClientAdapter{client: presignedClient}
	}

	return newGatewayWithClient(ctx, adapter, presignedAdapter, cfg.Buckets)
}

// newGatewayWithClient builds a Gateway with injected clients.
// Used for dependency injection in tests.
func newGatewayWithClient(ctx context.Context, client, presignedClient minioClient, buckets map[repository.Bucket]string) (*Gateway, error) {
	if buckets == nil {
		buckets = DefaultBuckets()
	}

	for _, name := range buckets {
		exists, err := client.BucketExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket %s: %w", name, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, name, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
	}

	return &Gateway{
		client:          client,
		presignedClient: presignedClient,
		buckets:         buckets,
	}, nil
}

func (g *Gateway) bucketName(b repository.Bucket) (string, error) {
	name, ok := g.buckets[b]
	if !ok {
		return "", fmt.Errorf("%w: %s", repository.ErrBucketNotFound, b)
	}
	return name, nil
}

// PresignUpload creates a presigned PUT URL bound to the object's
// content type and declared size; an upload with a different
// Content-Type or Content-Length header fails signature verification
// at the store.
func (g *Gateway) PresignUpload(ctx context.Context, bucket repository.Bucket, key, contentType string, sizeBytes int64, ttl time.Duration) (*repository.PresignedPut, error) {
	name, err := g.bucketName(bucket)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Content-Type", contentType)
	headers.Set("Content-Length", strconv.FormatInt(sizeBytes, 10))

	expiresAt := time.Now().Add(ttl)
	presignedURL, err := g.presignedClient.PresignHeader(ctx, http.MethodPut, name, key, ttl, url.Values{}, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}

	return &repository.PresignedPut{
		URL:       presignedURL.String(),
		ExpiresAt: expiresAt,
	}, nil
}

// PresignDownload creates a presigned GET URL valid for the TTL.
func (g *Gateway) PresignDownload(ctx context.Context, bucket repository.Bucket, key string, ttl time.Duration) (string, error) {
	name, err := g.bucketName(bucket)
	if err != nil {
		return "", err
	}

	presignedURL, err := g.presignedClient.PresignedGetObject(ctx, name, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return presignedURL.String(), nil
}

// Put stores an object.
func (g *Gateway) Put(ctx context.Context, bucket repository.Bucket, key string, reader io.Reader, size int64, contentType string) error {
	name, err := g.bucketName(bucket)
	if err != nil {
		return err
	}

	_, err = g.client.PutObject(ctx, name, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Get retrieves an object from the store.
// Caller is responsible for closing the returned ReadCloser.
func (g *Gateway) Get(ctx context.Context, bucket repository.Bucket, key string) (io.ReadCloser, error) {
	name, err := g.bucketName(bucket)
	if err != nil {
		return nil, err
	}

	obj, err := g.client.GetObject(ctx, name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject returns a lazy reader that doesn't fail until read;
	// stat it so missing keys surface here.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, nil
}

// Stat fetches object metadata.
func (g *Gateway) Stat(ctx context.Context, bucket repository.Bucket, key string) (*repository.ObjectInfo, error) {
	name, err := g.bucketName(bucket)
	if err != nil {
		return nil, err
	}

	info, err := g.client.StatObject(ctx, name, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return &repository.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Exists checks if an object exists in the store.
func (g *Gateway) Exists(ctx context.Context, bucket repository.Bucket, key string) (bool, error) {
	_, err := g.Stat(ctx, bucket, key)
	if err != nil {
		if err == repository.ErrObjectNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes an object.
func (g *Gateway) Delete(ctx context.Context, bucket repository.Bucket, key string) error {
	name, err := g.bucketName(bucket)
	if err != nil {
		return err
	}

	if err := g.client.RemoveObject(ctx, name, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Ping verifies the store is reachable by checking bucket access.
func (g *Gateway) Ping(ctx context.Context) error {
	name, err := g.bucketName(repository.BucketUploads)
	if err != nil {
		return err
	}
	if _, err := g.client.BucketExists(ctx, name); err != nil {
		return fmt.Errorf("failed to ping object store: %w", err)
	}
	return nil
}

// Compile-time verification that Gateway implements repository.ObjectStorage.
var _ repository.ObjectStorage = (*Gateway)(nil)
