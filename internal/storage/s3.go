package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/IshaanNene/FacetGrab/internal/types"
)

// ObjectPutter is the subset of the S3 client used by S3Storage.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Storage mirrors every saved image into a bucket, keyed by its path
// relative to the destination root.
type S3Storage struct {
	client ObjectPutter
	bucket string
	prefix string
	layout *Layout
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewS3Storage loads the default AWS credential chain for region.
func NewS3Storage(ctx context.Context, bucket, region, prefix string, layout *Layout, logger *slog.Logger) (*S3Storage, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3StorageWithClient(s3.NewFromConfig(cfg), bucket, prefix, layout, logger), nil
}

// NewS3StorageWithClient builds an S3 mirror on an existing client.
func NewS3StorageWithClient(client ObjectPutter, bucket, prefix string, layout *Layout, logger *slog.Logger) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: prefix,
		layout: layout,
		logger: logger.With("component", "s3_storage", "bucket", bucket),
	}
}

func (s *S3Storage) Name() string { return "s3" }

// Key returns the object key for a file saved under the layout root.
func (s *S3Storage) Key(localPath string) string {
	return path.Join(s.prefix, s.layout.Rel(localPath))
}

func (s *S3Storage) Store(ctx context.Context, records []*types.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if err := s.upload(ctx, r); err != nil {
			return storeErr(s.Name(), err)
		}
		s.count++
	}
	return nil
}

func (s *S3Storage) upload(ctx context.Context, r *types.ImageRecord) error {
	f, err := os.Open(r.LocalPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.LocalPath, err)
	}
	defer f.Close()

	key := s.Key(r.LocalPath)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if r.ContentType != "" {
		input.ContentType = aws.String(r.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	s.logger.Debug("image mirrored", "key", key, "size", r.Size)
	return nil
}

func (s *S3Storage) Close() error {
	s.logger.Info("s3 mirror closing", "uploaded", s.count)
	return nil
}
