package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cleverdata/s3-uploader/internal/core"
)

// Bodies above this size go through the multipart uploader.
const multipartThreshold = 64 << 20

type Options struct {
	Bucket           string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string // Custom endpoint for S3-compatible stores
	ForcePathStyle   bool
	RetryMaxAttempts int
}

// S3 is the remote store backed by an S3 bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

var _ core.RemoteStore = (*S3)(nil)

func New(ctx context.Context, opts Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	if opts.RetryMaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(opts.RetryMaxAttempts))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	return NewWithClient(client, opts.Bucket), nil
}

func NewWithClient(client *s3.Client, bucket string) *S3 {
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

func (s *S3) Bucket() string { return s.bucket }

// Put stores body under key. size is the exact byte length of body.
func (s *S3) Put(ctx context.Context, key string, body io.Reader, size int64, attrs core.ObjectAttrs, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(attrs.ContentType),
	}
	if attrs.CacheControl != "" {
		input.CacheControl = aws.String(attrs.CacheControl)
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	if size > multipartThreshold {
		if _, err := s.uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("multipart upload s3://%s/%s: %w", s.bucket, key, err)
		}
		return nil
	}

	input.ContentLength = aws.Int64(size)
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
