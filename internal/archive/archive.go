// Package archive copies attempt outputs and database snapshots to
// S3-compatible storage. When no bucket is configured the NoopArchiver is
// used and nothing leaves the host.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/syncplane/internal/config"
	"github.com/hyperengineering/syncplane/internal/types"
)

// Archiver stores attempt outputs and snapshots.
type Archiver interface {
	// ArchiveOutput stores the output of one attempt.
	ArchiveOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error

	// UploadSnapshot stores the database snapshot file at filePath.
	UploadSnapshot(ctx context.Context, filePath string) error
}

// s3Client defines the minimal minio.Client operations used by S3Archiver.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
	FPutObject(ctx context.Context, bucket, objectName, filePath, contentType string) error
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath, contentType string) error {
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath,
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// S3Archiver stores objects under a key prefix of a single bucket.
type S3Archiver struct {
	client s3Client
	bucket string
	prefix string
}

// ArchiveOutput uploads the output as JSON.
func (a *S3Archiver) ArchiveOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	key := outputKey(a.prefix, jobID, attemptNumber)
	if err := a.client.PutObject(ctx, a.bucket, key, data, "application/json"); err != nil {
		return fmt.Errorf("upload output to S3: %w", err)
	}
	return nil
}

// UploadSnapshot uploads the snapshot file under its base name.
func (a *S3Archiver) UploadSnapshot(ctx context.Context, filePath string) error {
	key := snapshotKey(a.prefix, filePath)
	if err := a.client.FPutObject(ctx, a.bucket, key, filePath, "application/octet-stream"); err != nil {
		return fmt.Errorf("upload snapshot to S3: %w", err)
	}
	return nil
}

// NoopArchiver is used when archive storage is not configured.
type NoopArchiver struct{}

// ArchiveOutput is a no-op.
func (NoopArchiver) ArchiveOutput(ctx context.Context, jobID int64, attemptNumber int, output types.JobOutput) error {
	return nil
}

// UploadSnapshot is a no-op.
func (NoopArchiver) UploadSnapshot(ctx context.Context, filePath string) error {
	return nil
}

// NewArchiver creates the appropriate Archiver based on configuration.
// Returns NoopArchiver when bucket is empty, S3Archiver otherwise.
func NewArchiver(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return NoopArchiver{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Archiver{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// outputKey returns the object key of an attempt output.
// Convention: {prefix}/{job_id}/{attempt_number}/output.json
func outputKey(prefix string, jobID int64, attemptNumber int) string {
	return path.Join(prefix, strconv.FormatInt(jobID, 10), strconv.Itoa(attemptNumber), "output.json")
}

// snapshotKey returns the object key of a snapshot file.
// Convention: {prefix}/snapshots/{file name}
func snapshotKey(prefix, filePath string) string {
	return path.Join(prefix, "snapshots", filepath.Base(filePath))
}
