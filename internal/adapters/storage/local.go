// Package storage provides object storage adapters.
package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/jobrunner/tarantula/internal/ports/output"
)

// LocalStorage implements ObjectStorage for a local directory holding one
// subdirectory per district.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage adapter.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// List reads the district directories. Missing districts are skipped.
func (s *LocalStorage) List(ctx context.Context, districts []string) ([]output.StorageObject, error) {
	if len(districts) == 0 {
		var err error
		if districts, err = s.districts(); err != nil {
			return nil, err
		}
	}

	var objects []output.StorageObject
	for _, district := range districts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := os.ReadDir(filepath.Join(s.basePath, district))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			key := path.Join(district, e.Name())
			if e.IsDir() || !inDistricts(key, nil) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				// Removed while listing.
				continue
			}
			objects = append(objects, output.StorageObject{
				Key:          key,
				Size:         info.Size(),
				LastModified: info.ModTime().Unix(),
			})
		}
	}

	return objects, nil
}

// districts returns every subdirectory of the base path.
func (s *LocalStorage) districts() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Download copies a file to the destination. Nothing is copied when the
// destination is the file itself.
func (s *LocalStorage) Download(_ context.Context, key string, dest string) error {
	srcPath := s.FullPath(key)
	if filepath.Clean(srcPath) == filepath.Clean(dest) {
		return nil
	}

	src, err := os.Open(srcPath) //#nosec G304 -- key comes from List
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	return writeFile(dest, src)
}

// FullPath returns the full path for a key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}
