package storage

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jobrunner/tarantula/internal/domain"
)

// writeFile copies r into a temporary file next to dest and renames it over
// dest once complete, so readers never see a partial layer file. The
// temporary name does not look like a layer file and is ignored by the
// watcher.
func writeFile(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		cleanup()
		return err
	}
	return nil
}

// inDistricts reports whether key names a dataset file stored directly in
// one of the district directories. An empty district list accepts every
// directory.
func inDistricts(key string, districts []string) bool {
	dir, file := path.Split(key)
	if !domain.IsDatasetFile(file) {
		return false
	}
	if len(districts) == 0 {
		return true
	}
	dir = strings.TrimSuffix(dir, "/")
	for _, d := range districts {
		if dir == d {
			return true
		}
	}
	return false
}
