package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"testops/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// NewS3Client builds an S3 client. A custom endpoint switches to path-style
// addressing so MinIO works.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := endpointURL(cfg)
	var s3Opts []func(*s3.Options)
	if endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// S3Store implements FileStore on one bucket of an S3-compatible backend.
type S3Store struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

// NewS3Store creates the store and makes sure the bucket exists.
func NewS3Store(ctx context.Context, client *s3.Client, bucket, endpoint string) (*S3Store, error) {
	s := &S3Store{client: client, bucket: bucket, endpoint: strings.TrimRight(endpoint, "/")}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to check bucket %q: %w", s.bucket, err)
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Put uploads data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (Ref, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Ref{}, err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Ref{}, fmt.Errorf("failed to put object %q: %w", key, err)
	}
	return Ref{Bucket: s.bucket, Key: key, Size: int64(len(data))}, nil
}

// Get streams the object body.
func (s *S3Store) Get(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", ref.Key, err)
	}
	return out.Body, nil
}

// Delete removes the object.
func (s *S3Store) Delete(ctx context.Context, ref Ref) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %q: %w", ref.Key, err)
	}
	return nil
}

func (s *S3Store) Link(prefix string) string {
	if s.endpoint == "" {
		return fmt.Sprintf("s3://%s/%s", s.bucket, prefix)
	}
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, prefix)
}
