package filestore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/paulexconde/camperportal/internal/config"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
)

// MinioStore serves application files from a MinIO bucket through presigned URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinioStore connects to MinIO and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig, log *logger.Logger) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO server: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("error creating bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("created bucket", "bucket", cfg.Bucket)
	}

	log.Info("connected to MinIO", "endpoint", endpoint, "bucket", cfg.Bucket)
	return &MinioStore{client: client, bucket: cfg.Bucket, ttl: cfg.URLTTL}, nil
}

func (s *MinioStore) PresignedURL(ctx context.Context, path string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, s.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", path, err)
	}
	return u.String(), nil
}

func (s *MinioStore) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, body, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

func (s *MinioStore) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
