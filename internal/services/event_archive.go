package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// EventArchive conserve le payload brut de chaque webhook vérifié
type EventArchive interface {
	Archive(ctx context.Context, eventID, eventType string, payload []byte) error
}

// MinioEventArchive range les payloads dans un bucket MinIO
type MinioEventArchive struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinioClient ouvre le client MinIO
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
}

// NewMinioEventArchive crée le bucket s'il n'existe pas encore
func NewMinioEventArchive(ctx context.Context, client *minio.Client, bucket string) (*MinioEventArchive, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("vérification bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("création bucket %s: %w", bucket, err)
		}
		log.Printf("✅ Bucket MinIO créé: %s", bucket)
	}
	return &MinioEventArchive{client: client, bucket: bucket, now: time.Now}, nil
}

// ArchiveObjectName range les événements par jour puis par type
func ArchiveObjectName(at time.Time, eventType, eventID string) string {
	return path.Join(at.UTC().Format("2006/01/02"), eventType, eventID+".json")
}

func (a *MinioEventArchive) Archive(ctx context.Context, eventID, eventType string, payload []byte) error {
	name := ArchiveObjectName(a.now(), eventType, eventID)
	_, err := a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("archivage %s: %w", eventID, err)
	}
	return nil
}
