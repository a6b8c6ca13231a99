// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"fmt"
)

// ObjectStorage defines the secondary port for the store holding layer
// files. Keys have the form <district>/<file>.
type ObjectStorage interface {
	// List returns the layer files and shapefile sidecars stored directly
	// in the given district directories.
	List(ctx context.Context, districts []string) ([]StorageObject, error)

	// Download replaces dest with the content of the object. A failed
	// download leaves an existing dest untouched.
	Download(ctx context.Context, key string, dest string) error
}

// StorageObject represents a file in object storage.
type StorageObject struct {
	Key          string // Object key/path
	Size         int64  // Size in bytes
	LastModified int64  // Unix timestamp
	ETag         string // Content hash
}

// Revision identifies the stored content of the object. It is the ETag when
// the backend reports one and size plus modification time otherwise.
func (o StorageObject) Revision() string {
	if o.ETag != "" {
		return o.ETag
	}
	return fmt.Sprintf("%d-%d", o.Size, o.LastModified)
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeLocal StorageType = "local"
)
