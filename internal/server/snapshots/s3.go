// Package snapshots stores exported page snapshots in an S3-compatible
// bucket and hands out presigned download links.
package snapshots

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store keeps snapshot objects.
type Store interface {
	Put(ctx context.Context, key string, body []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configure the S3 connection. BaseEndpoint points at MinIO or
// another S3-compatible server; path-style addressing is always used.
type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

type S3Store struct {
	objects objectAPI
	presign presignAPI
	bucket  string
}

// loadAWSConfig is a seam for tests.
var loadAWSConfig = config.LoadDefaultConfig

func NewS3Store(ctx context.Context, o Options) (*S3Store, error) {
	cfg, err := loadAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.BaseEndpoint != "" {
			opts.BaseEndpoint = aws.String(o.BaseEndpoint)
		}
		opts.UsePathStyle = true
	})
	return &S3Store{objects: client, presign: s3.NewPresignClient(client), bucket: o.Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put snapshot %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign snapshot %s: %w", key, err)
	}
	return req.URL, nil
}

// Key returns a fresh object key for a user's snapshot taken at t.
func Key(userID string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("snapshots/%s/%04d/%02d/%02d/%s.json", userID, t.Year(), t.Month(), t.Day(), uuid.NewString())
}
