package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage stores listing photos and hands back a public URL.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	log    logger.Logger
}

func NewMinIOStorage(ctx context.Context, cfg config.MinIOConfig, log logger.Logger) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.Endpoint, err)
	}

	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, errExists := client.BucketExists(ctx, cfg.Bucket)
		if errExists != nil || !exists {
			return nil, fmt.Errorf("failed to make/verify bucket %s: (make: %v / exists_check: %v)", cfg.Bucket, err, errExists)
		}
	}

	return &MinIOStorage{client: client, bucket: cfg.Bucket, log: log}, nil
}

// Upload stores the photo bytes under a fresh object key and returns the
// public URL. The key keeps no trace of the uploader.
func (s *MinIOStorage) Upload(ctx context.Context, data []byte) (string, error) {
	objectKey := fmt.Sprintf("photos/%s.jpg", uuid.New().String())

	info, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: http.DetectContentType(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", objectKey, s.bucket, err)
	}

	fileURL := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, objectKey)
	s.log.Infof("photo uploaded: key=%s size=%d url=%s", info.Key, info.Size, fileURL)
	return fileURL, nil
}
