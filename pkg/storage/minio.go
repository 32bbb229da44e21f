package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Prefix    string
	URLTTL    time.Duration
}

// MinioPublisher uploads exports to a MinIO (or other S3-compatible) bucket and
// returns a presigned download URL.
type MinioPublisher struct {
	client *minio.Client
	cfg    MinioConfig
}

func NewMinioPublisher(ctx context.Context, cfg MinioConfig) (*MinioPublisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", cfg.Bucket, err)
		}
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 24 * time.Hour
	}
	return &MinioPublisher{client: client, cfg: cfg}, nil
}

func (p *MinioPublisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	key := objectKey(p.cfg.Prefix, localPath)
	_, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"job-id": jobID},
	})
	if err != nil {
		return "", fmt.Errorf("minio upload %s: %w", key, err)
	}

	u, err := p.client.PresignedGetObject(ctx, p.cfg.Bucket, key, p.cfg.URLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", key, err)
	}
	return u.String(), nil
}
