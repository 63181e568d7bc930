package storage

import (
	"context"
	"fmt"
	"net/url"

	"callpipe/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient implements Client against any S3-compatible endpoint.
type MinioClient struct {
	client *minio.Client
}

// NewMinioClient creates a storage client from config. The endpoint is a full
// URL; the scheme decides TLS.
func NewMinioClient(cfg config.StorageConfig) (*MinioClient, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse storage endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("storage endpoint %q has no host", cfg.Endpoint)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &MinioClient{client: client}, nil
}

func (c *MinioClient) Exists(ctx context.Context, bucket, objectPath string) (bool, error) {
	_, err := c.client.StatObject(ctx, bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", objectPath, err)
	}
	return true, nil
}

func (c *MinioClient) Download(ctx context.Context, bucket, objectPath, localDest string) error {
	if err := c.client.FGetObject(ctx, bucket, objectPath, localDest, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download object %s: %w", objectPath, err)
	}
	return nil
}

func (c *MinioClient) Upload(ctx context.Context, bucket, objectPath, localSrc, contentType string) error {
	_, err := c.client.FPutObject(ctx, bucket, objectPath, localSrc, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", objectPath, err)
	}
	return nil
}

func (c *MinioClient) Remove(ctx context.Context, bucket, objectPath string) error {
	if err := c.client.RemoveObject(ctx, bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", objectPath, err)
	}
	return nil
}

var _ Client = (*MinioClient)(nil)
