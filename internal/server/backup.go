// backup.go - Scheduled blob mirroring to S3-compatible object storage.
//
// The GridFS bucket is the system of record; the mirror is a belt for
// disaster recovery. Blobs are immutable once written, so an object that
// already exists in the mirror bucket never needs re-uploading.
package server

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BackupConfig contains configuration for the blob mirror.
type BackupConfig struct {
	Enabled  bool          // Enable the scheduler
	Interval time.Duration // Mirror pass interval (e.g. 24h for daily)
	Bucket   string        // Object storage bucket receiving the mirror
	Prefix   string        // Key prefix inside the bucket
}

// LoadBackupConfig reads the mirror configuration from the environment.
func LoadBackupConfig() BackupConfig {
	cfg := BackupConfig{
		Enabled:  os.Getenv("SEO_BACKUP_ENABLED") == "true",
		Interval: 24 * time.Hour,
		Bucket:   os.Getenv("SEO_S3_BUCKET"),
		Prefix:   os.Getenv("SEO_S3_PREFIX"),
	}
	if raw := os.Getenv("SEO_BACKUP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	return cfg
}

// BackupManager runs periodic mirror passes over the blob store.
type BackupManager struct {
	config   BackupConfig
	store    *GridFSStore
	mc       *minio.Client
	stopChan chan struct{}
}

// NewBackupManager builds a manager, creating the object storage client from
// SEO_S3_* environment variables when mirroring is enabled.
func NewBackupManager(config BackupConfig, store *GridFSStore) (*BackupManager, error) {
	bm := &BackupManager{
		config:   config,
		store:    store,
		stopChan: make(chan struct{}),
	}
	if !config.Enabled {
		return bm, nil
	}

	mc, err := newMinioClient()
	if err != nil {
		return nil, err
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("SEO_S3_BUCKET is empty")
	}
	exists, err := mc.BucketExists(context.Background(), config.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("mirror bucket does not exist: %s", config.Bucket)
	}

	bm.mc = mc
	return bm, nil
}

// Start begins the mirror scheduler.
func (bm *BackupManager) Start() {
	if !bm.config.Enabled {
		Info("blob backups disabled", nil)
		return
	}

	Info("blob backup scheduler started", map[string]any{
		"interval": bm.config.Interval.String(),
		"bucket":   bm.config.Bucket,
		"prefix":   bm.config.Prefix,
	})

	// Run initial pass
	go func() {
		if err := bm.performBackup(); err != nil {
			Error("initial backup failed", map[string]any{"error": err.Error()}, err)
		}
	}()

	// Schedule periodic passes
	ticker := time.NewTicker(bm.config.Interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := bm.performBackup(); err != nil {
					Error("scheduled backup failed", map[string]any{"error": err.Error()}, err)
				}
			case <-bm.stopChan:
				ticker.Stop()
				Info("backup scheduler stopped", nil)
				return
			}
		}
	}()
}

// Stop halts the scheduler. A pass already in flight finishes on its own.
func (bm *BackupManager) Stop() {
	if bm.config.Enabled {
		close(bm.stopChan)
	}
}

// performBackup mirrors every blob missing from the object storage bucket.
// Individual blob failures are logged and counted but do not end the pass.
func (bm *BackupManager) performBackup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	blobs, err := bm.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}

	mirrored := 0
	for _, b := range blobs {
		key := path.Join(bm.config.Prefix, b.ID)
		if _, err := bm.mc.StatObject(ctx, bm.config.Bucket, key, minio.StatObjectOptions{}); err == nil {
			continue // already mirrored
		}

		if err := bm.mirrorOne(ctx, b, key); err != nil {
			Error("blob mirror failed", map[string]any{"blob_id": b.ID, "key": key}, err)
			GetMetrics().RecordBackup(false)
			continue
		}
		GetMetrics().RecordBackup(true)
		mirrored++
	}

	Info("blob backup pass complete", map[string]any{
		"mirrored": mirrored,
		"total":    len(blobs),
	})
	return nil
}

func (bm *BackupManager) mirrorOne(ctx context.Context, b BlobDescriptor, key string) error {
	id, err := primitive.ObjectIDFromHex(b.ID)
	if err != nil {
		return fmt.Errorf("bad blob id %q: %w", b.ID, err)
	}

	rh, err := bm.store.OpenRead(ctx, id)
	if err != nil {
		return err
	}
	defer func() { _ = rh.Close() }()

	_, err = bm.mc.PutObject(ctx, bm.config.Bucket, key, rh, b.Length, minio.PutObjectOptions{
		ContentType: b.ContentType,
	})
	return err
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

func newMinioClient() (*minio.Client, error) {
	rawEndpoint := os.Getenv("SEO_S3_ENDPOINT")
	accessKey := os.Getenv("SEO_S3_ACCESS_KEY")
	secretKey := os.Getenv("SEO_S3_SECRET_KEY")

	if rawEndpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("mirror storage configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(rawEndpoint)
	if err != nil {
		return nil, err
	}

	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
}
