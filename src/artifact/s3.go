package artifact

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the S3-compatible store backend.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store is an S3-compatible artifact store backed by minio-go. The
// publish contract is the same as HTTPStore's: a completed transfer only
// counts once the store's acknowledgement (the returned ETag, re-checked
// against a post-put stat) is verified.
type S3Store struct {
	mc     *minio.Client
	bucket string
}

// NewS3Store creates an S3 store client and validates its options.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("s3 store: endpoint is required")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("s3 store: access_key and secret_key are required")
	}
	if opts.Bucket == "" {
		opts.Bucket = "kfreight"
	}

	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 store: creating client: %w", err)
	}

	return &S3Store{mc: mc, bucket: opts.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("s3 store: checking bucket: %w", err)
	}
	if !exists {
		if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("s3 store: creating bucket: %w", err)
		}
	}
	return nil
}

// Location returns the s3:// form of the key's object path.
func (s *S3Store) Location(key Key) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key.ObjectPath())
}

// Fetch downloads the object at the key's location.
func (s *S3Store) Fetch(ctx context.Context, key Key) ([]byte, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, key.ObjectPath(), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 store: get %s: %w", key.ObjectPath(), err)
	}
	defer obj.Close()

	// GetObject defers errors until the first read; Stat surfaces them.
	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("s3 store: get %s: %w", key.ObjectPath(), ErrNotFound)
		}
		return nil, fmt.Errorf("s3 store: stat %s: %w", key.ObjectPath(), err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("s3 store: read %s: %w", key.ObjectPath(), err)
	}
	return buf.Bytes(), nil
}

// Publish uploads the payload and verifies the store acknowledged it: the
// put must return an ETag and a follow-up stat must report the same ETag
// and size. Anything less is an AckError.
func (s *S3Store) Publish(ctx context.Context, key Key, payload []byte) error {
	path := key.ObjectPath()

	info, err := s.mc.PutObject(ctx, s.bucket, path, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("s3 store: put %s: %w", path, err)
	}
	if info.ETag == "" {
		return &AckError{Location: s.Location(key), Body: "put returned no etag"}
	}

	stat, err := s.mc.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		return &AckError{Location: s.Location(key), Body: fmt.Sprintf("post-put stat failed: %v", err)}
	}
	if stat.ETag != info.ETag || stat.Size != int64(len(payload)) {
		return &AckError{
			Location: s.Location(key),
			Body:     fmt.Sprintf("stat mismatch: etag %s != %s or size %d != %d", stat.ETag, info.ETag, stat.Size, len(payload)),
		}
	}
	return nil
}
