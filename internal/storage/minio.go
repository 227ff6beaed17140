package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PhotoStore keeps recipe photos in a MinIO bucket under one object per
// recipe.
type PhotoStore struct {
	client *minio.Client
	bucket string
}

// NewPhotoStore creates a new MinIO-backed photo store and ensures the bucket exists.
func NewPhotoStore(cfg *MinIOConfig) (*PhotoStore, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &PhotoStore{client: mc, bucket: cfg.Bucket}
	// ensure bucket exists (idempotent)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func photoKey(recipeID int64) string {
	return fmt.Sprintf("recipes/%d/photo", recipeID)
}

// UploadPhoto stores the photo for a recipe, replacing any previous one.
func (s *PhotoStore) UploadPhoto(ctx context.Context, recipeID int64, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, photoKey(recipeID), reader, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// DownloadPhoto returns a ReadCloser for the recipe's stored photo.
func (s *PhotoStore) DownloadPhoto(ctx context.Context, recipeID int64) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, photoKey(recipeID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// perform a stat to ensure object exists
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// DeletePhoto removes the recipe's photo if one exists.
func (s *PhotoStore) DeletePhoto(ctx context.Context, recipeID int64) error {
	return s.client.RemoveObject(ctx, s.bucket, photoKey(recipeID), minio.RemoveObjectOptions{})
}

// PhotoURL returns a presigned GET URL valid for the given duration.
func (s *PhotoStore) PhotoURL(ctx context.Context, recipeID int64, expires time.Duration) (string, error) {
	reqParams := make(url.Values)
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, photoKey(recipeID), expires, reqParams)
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}
