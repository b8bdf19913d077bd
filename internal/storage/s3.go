package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/isharee/backend/internal/config"
)

// S3MediaStore implements media deletion against an S3-compatible service.
// Clients upload media directly to the store; the backend only ever deletes
// assets by their opaque public id, which doubles as the object key.
type S3MediaStore struct {
	client *s3.Client
	bucket string
}

// NewS3MediaStore configures a client targeting the provided object store.
func NewS3MediaStore(ctx context.Context, cfg config.MediaStoreConfig) (*S3MediaStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 media store: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if strings.TrimSpace(cfg.Endpoint) != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:           cfg.Endpoint,
					SigningRegion: cfg.Region,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3MediaStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Delete removes the object identified by publicID from the bucket. Deleting
// an already-absent key succeeds, which keeps the call idempotent.
func (s *S3MediaStore) Delete(ctx context.Context, publicID string) error {
	key := strings.TrimLeft(publicID, "/")
	if key == "" {
		return fmt.Errorf("s3 media store: empty key")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 media store delete %s: %w", key, err)
	}

	return nil
}
