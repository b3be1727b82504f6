package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/purchase-analytics/internal/gcs"
	"github.com/dvloznov/purchase-analytics/internal/logger"
)

const uploadTimeout = 2 * time.Minute

// OpenObjectWithClient opens a streaming reader over a gs:// object.
func OpenObjectWithClient(ctx context.Context, client *storage.Client, uri string) (io.ReadCloser, error) {
	bucketName, objectPath, err := gcs.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("OpenObject: %w", err)
	}

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("OpenObject: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	return rc, nil
}

// UploadFileWithClient uploads a local file to a GCS bucket under the given object name.
func UploadFileWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType(filePath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}
	return nil
}

// UploadFiles uploads each local file under prefix in bucketName and returns the gs:// URIs.
func UploadFiles(ctx context.Context, svc StorageService, bucketName, prefix string, paths []string) ([]string, error) {
	log := logger.FromContext(ctx)

	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		objectName := gcs.ObjectName(prefix, filepath.Base(p))
		if err := svc.UploadFile(ctx, bucketName, objectName, p); err != nil {
			return uris, fmt.Errorf("UploadFiles: %w", err)
		}
		uri := gcs.Scheme + bucketName + "/" + objectName
		log.Info().Str("file", p).Str("uri", uri).Msg("Uploaded export")
		uris = append(uris, uri)
	}
	return uris, nil
}

func contentType(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
