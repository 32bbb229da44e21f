package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	URLTTL    time.Duration
}

// S3Publisher uploads exports to S3 or an S3-compatible store such as R2.
type S3Publisher struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	cfg       S3Config
}

func NewS3Publisher(ctx context.Context, c S3Config) (*S3Publisher, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("missing S3 bucket (S3_BUCKET)")
	}
	if c.Region == "" {
		c.Region = "auto"
	}
	if c.URLTTL <= 0 {
		c.URLTTL = 24 * time.Hour
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" && c.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if strings.TrimSpace(c.Endpoint) != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Publisher{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		cfg:       c,
	}, nil
}

func (p *S3Publisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(p.cfg.Prefix, localPath)
	_, err = p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"job-id": jobID},
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object %q: %w", key, err)
	}

	out, err := p.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = p.cfg.URLTTL
	})
	if err != nil {
		return "", fmt.Errorf("s3 presign %q: %w", key, err)
	}
	return out.URL, nil
}
