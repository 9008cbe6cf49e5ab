package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ArchiveStore stores export packs in S3, content-addressed by SHA-256.
type S3ArchiveStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3ArchiveConfig holds configuration for S3ArchiveStore.
type S3ArchiveConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
	Prefix   string // optional key prefix, e.g. "audit/"
}

// NewS3ArchiveStore creates an S3-backed archive store.
func NewS3ArchiveStore(ctx context.Context, cfg S3ArchiveConfig) (*S3ArchiveStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("audit: load AWS config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO/LocalStack
		}
	}

	return &S3ArchiveStore{
		client: s3.NewFromConfig(awsCfg, clientOpts),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store uploads data under its hash and returns the content address. A pack
// already present is not re-uploaded.
func (s *S3ArchiveStore) Store(ctx context.Context, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := s.prefix + hash + ".zip"

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err == nil {
		return "sha256:" + hash, nil
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	}); err != nil {
		return "", fmt.Errorf("audit: s3 upload: %w", err)
	}
	return "sha256:" + hash, nil
}
