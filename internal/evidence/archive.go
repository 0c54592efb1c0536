package evidence

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Archiver mirrors locally saved evidence files to a second store. This is
// independent of the tracker upload path: no incident association, no
// budget.
type Archiver interface {
	Archive(path string) error
}

// MinIOArchiver archives evidence files into an object-storage bucket.
type MinIOArchiver struct {
	client  *minio.Client
	bucket  string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// MinIOConfig holds object-store connection settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinIOArchiver connects to the object store, retrying with exponential
// backoff for up to 30 seconds, and ensures the bucket exists.
func NewMinIOArchiver(ctx context.Context, cfg MinIOConfig, logger *zap.SugaredLogger) (*MinIOArchiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	a := &MinIOArchiver{
		client:  client,
		bucket:  cfg.Bucket,
		timeout: 30 * time.Second,
		logger:  logger,
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err = backoff.Retry(func() error {
		return a.ensureBucket(ctx)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("connect archive store %s: %w", cfg.Endpoint, err)
	}

	logger.Infow("evidence archival enabled", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return a, nil
}

func (a *MinIOArchiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
}

// Archive uploads one evidence file, keyed by its base name.
func (a *MinIOArchiver) Archive(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	key := filepath.Base(path)
	_, err := a.client.FPutObject(ctx, a.bucket, key, path, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}
