package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yourusername/catalog-importer/internal/domain/repository"
)

// MinioConfig MinIO ulanish sozlamalari
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type minioArtifactStore struct {
	client *minio.Client
	bucket string
}

// NewMinioArtifactStore backup fayllar uchun MinIO store; bucket is created
// when missing.
func NewMinioArtifactStore(ctx context.Context, cfg MinioConfig) (repository.ArtifactStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("MINIO_ENDPOINT va MINIO_BUCKET kerak")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client yaratilmadi: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket tekshirilmadi: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("bucket yaratilmadi: %w", err)
		}
	}
	return &minioArtifactStore{client: client, bucket: cfg.Bucket}, nil
}

// Upload faylni bucketga yuklash
func (m *minioArtifactStore) Upload(ctx context.Context, localPath string) (string, error) {
	name := filepath.Base(localPath)
	_, err := m.client.FPutObject(ctx, m.bucket, name, localPath, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("backup yuklanmadi: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", m.bucket, name), nil
}

// Download fetches an object by base name into localPath.
func (m *minioArtifactStore) Download(ctx context.Context, name, localPath string) error {
	if err := m.client.FGetObject(ctx, m.bucket, filepath.Base(name), localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("backup yuklab olinmadi: %w", err)
	}
	return nil
}
