// Package archive keeps a copy of every produced export in S3-compatible
// object storage. Archival is best-effort: a storage failure never affects
// the export handed to the user.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fsawadogo/sqordia-sub000/internal/export"
)

// Service writes export results to a MinIO bucket.
type Service struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and ensures the bucket exists.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Service{client: client, bucket: bucket}, nil
}

// Save stores one export result under "{planID}/{filename}". Runs in the
// caller's goroutine; callers wanting fire-and-forget wrap it themselves.
func (s *Service) Save(ctx context.Context, planID string, result *export.Result) error {
	object := planID + "/" + result.Filename
	_, err := s.client.PutObject(ctx, s.bucket, object,
		bytes.NewReader(result.Data), int64(len(result.Data)),
		minio.PutObjectOptions{ContentType: result.MimeType})
	if err != nil {
		return fmt.Errorf("archive %s: %w", object, err)
	}
	return nil
}

// SaveAsync archives in the background and logs failures.
func (s *Service) SaveAsync(planID string, result *export.Result) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Save(ctx, planID, result); err != nil {
			log.Printf("archive: save export for plan %s: %v", planID, err)
		}
	}()
}
