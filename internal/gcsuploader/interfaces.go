package gcsuploader

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/purchase-analytics/internal/gcs"
)

// StorageService is re-exported so callers need only this package.
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService backed by
// Google Cloud Storage. It holds a shared client for the lifetime of a command.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage service using Application Default Credentials.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: creating client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close releases the storage client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// OpenObject delegates to OpenObjectWithClient.
func (s *GCSStorageService) OpenObject(ctx context.Context, uri string) (io.ReadCloser, error) {
	return OpenObjectWithClient(ctx, s.client, uri)
}

// UploadFile delegates to UploadFileWithClient.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFileWithClient(ctx, s.client, bucketName, objectName, filePath)
}
