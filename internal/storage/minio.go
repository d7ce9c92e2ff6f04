package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxArchiveSize bounds how much of an archived document is read back.
const maxArchiveSize = 16 << 20

// MinIOStorage keeps exported content documents and pre-reset snapshots.
type MinIOStorage struct {
	client  *minio.Client
	bucket  string
	linkTTL time.Duration
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg *MinIOConfig) (*MinIOStorage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStorage{client: mc, bucket: cfg.Bucket, linkTTL: 15 * time.Minute}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// UploadFile uploads data from reader to the configured bucket using the provided key.
func (s *MinIOStorage) UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// DownloadFile returns a ReadCloser for the stored object.
func (s *MinIOStorage) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// GetPresignedURL returns a presigned GET URL valid for the given duration.
func (s *MinIOStorage) GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, url.Values{})
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}

// Put stores a JSON document and returns a short-lived download link.
func (s *MinIOStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := s.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("archive put %s: %w", key, err)
	}
	link, err := s.GetPresignedURL(ctx, key, s.linkTTL)
	if err != nil {
		return "", fmt.Errorf("archive presign %s: %w", key, err)
	}
	return link, nil
}

// Get reads an archived document back.
func (s *MinIOStorage) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.DownloadFile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("archive get %s: %w", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("archive read %s: %w", key, err)
	}
	if len(data) > maxArchiveSize {
		return nil, fmt.Errorf("archive %s exceeds %d bytes", key, maxArchiveSize)
	}
	return data, nil
}
