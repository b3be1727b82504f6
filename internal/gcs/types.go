package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Scheme prefixes every Cloud Storage URI.
const Scheme = "gs://"

// StorageService provides cloud storage operations for inputs and exports.
type StorageService interface {
	// OpenObject opens a reader over the object at a gs:// URI. The caller closes it.
	OpenObject(ctx context.Context, uri string) (io.ReadCloser, error)

	// UploadFile uploads a local file to a bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error
}

// IsURI reports whether s names a Cloud Storage object.
func IsURI(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseURI splits "gs://bucket/path/to/object" into its bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, Scheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename returns the last path element of a URI or local path.
// e.g., "gs://bucket/2019-Oct.csv" → "2019-Oct.csv"
func Filename(uri string) string {
	if _, object, err := ParseURI(uri); err == nil {
		return path.Base(object)
	}
	return path.Base(uri)
}

// ObjectName joins an optional prefix and a file name into an object path.
func ObjectName(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
