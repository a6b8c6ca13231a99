package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

func keysOf(t *testing.T, storage *LocalStorage, districts []string) []string {
	t.Helper()
	objects, err := storage.List(context.Background(), districts)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var keys []string
	for _, obj := range objects {
		keys = append(keys, obj.Key)
		if obj.Size != 4 {
			t.Errorf("object %q size = %d, want 4", obj.Key, obj.Size)
		}
		if obj.LastModified == 0 {
			t.Errorf("object %q LastModified should not be 0", obj.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func TestLocalStorageList(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"seoul/sido.shp":          "test",
		"seoul/sido.dbf":          "test",
		"seoul/sido.SHX":          "test",
		"seoul/dong_01.cpg":       "test",
		"seoul/old/sido.shp":      "test",
		"busan/sigungu.geojson":   "test",
		"jeju.gpkg":               "test",
		"seoul/readme.txt":        "test",
		"seoul/sido.sbn":          "test",
		"seoul/.sido.shp.12.part": "test",
	})
	storage := NewLocalStorage(tmpDir)

	tests := []struct {
		name      string
		districts []string
		want      []string
	}{
		{
			name: "all districts",
			want: []string{
				"busan/sigungu.geojson",
				"seoul/dong_01.cpg",
				"seoul/sido.SHX",
				"seoul/sido.dbf",
				"seoul/sido.shp",
			},
		},
		{
			name:      "one district",
			districts: []string{"busan"},
			want:      []string{"busan/sigungu.geojson"},
		},
		{
			name:      "missing district is skipped",
			districts: []string{"daegu", "busan"},
			want:      []string{"busan/sigungu.geojson"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := keysOf(t, storage, tt.districts)
			if len(keys) != len(tt.want) {
				t.Fatalf("keys = %v, want %v", keys, tt.want)
			}
			for i := range tt.want {
				if keys[i] != tt.want[i] {
					t.Errorf("key %d = %q, want %q", i, keys[i], tt.want[i])
				}
			}
		})
	}
}

func TestLocalStorageListEmpty(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())
	objects, err := storage.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("len(objects) = %d, want 0", len(objects))
	}
}

func TestLocalStorageListNonExistent(t *testing.T) {
	storage := NewLocalStorage("/nonexistent/path")
	if _, err := storage.List(context.Background(), nil); err == nil {
		t.Error("List() should error for non-existent path")
	}
}

func TestLocalStorageListRevision(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"seoul/sido.geojson": "test"})
	storage := NewLocalStorage(tmpDir)

	objects, err := storage.List(context.Background(), nil)
	if err != nil || len(objects) != 1 {
		t.Fatalf("List() = %v, %v", objects, err)
	}
	before := objects[0].Revision()

	writeFiles(t, tmpDir, map[string]string{"seoul/sido.geojson": "changed"})
	objects, err = storage.List(context.Background(), nil)
	if err != nil || len(objects) != 1 {
		t.Fatalf("List() = %v, %v", objects, err)
	}
	if objects[0].Revision() == before {
		t.Errorf("revision %q did not change after rewrite", before)
	}
}

func TestLocalStorageDownload(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	testContent := "test content for download"
	writeFiles(t, srcDir, map[string]string{"seoul/sido.dbf": testContent})
	storage := NewLocalStorage(srcDir)

	// Destination directory does not exist yet.
	destFile := filepath.Join(destDir, "layers", "seoul", "sido.dbf")

	if err := storage.Download(context.Background(), "seoul/sido.dbf", destFile); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	content, err := os.ReadFile(destFile)
	if err != nil {
		t.Fatalf("failed to read dest file: %v", err)
	}
	if string(content) != testContent {
		t.Errorf("content = %q, want %q", string(content), testContent)
	}

	entries, err := os.ReadDir(filepath.Dir(destFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("destination holds %d entries, want only the downloaded file", len(entries))
	}
}

func TestLocalStorageDownloadSameFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"seoul/sido.shp": "test"})
	storage := NewLocalStorage(tmpDir)

	err := storage.Download(context.Background(), "seoul/sido.shp", filepath.Join(tmpDir, "seoul", "sido.shp"))
	if err != nil {
		t.Errorf("Download() to same location should not error, got: %v", err)
	}
}

func TestLocalStorageDownloadNonExistent(t *testing.T) {
	destDir := t.TempDir()
	dest := filepath.Join(destDir, "sido.shp")
	writeFiles(t, destDir, map[string]string{"sido.shp": "keep"})

	storage := NewLocalStorage(t.TempDir())
	if err := storage.Download(context.Background(), "seoul/sido.shp", dest); err == nil {
		t.Error("Download() should error for non-existent source")
	}

	content, err := os.ReadFile(dest)
	if err != nil || string(content) != "keep" {
		t.Errorf("existing destination changed: %q, %v", content, err)
	}
}

func TestLocalStorageFullPath(t *testing.T) {
	storage := NewLocalStorage("/data/layers")

	tests := []struct {
		key  string
		want string
	}{
		{"seoul/sido.shp", "/data/layers/seoul/sido.shp"},
		{"busan/sigungu.geojson", "/data/layers/busan/sigungu.geojson"},
		{"", "/data/layers"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := storage.FullPath(tt.key); got != tt.want {
				t.Errorf("FullPath(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestInDistricts(t *testing.T) {
	tests := []struct {
		key       string
		districts []string
		want      bool
	}{
		{"seoul/sido.shp", nil, true},
		{"seoul/sido.shp", []string{"busan", "seoul"}, true},
		{"seoul/sido.shp", []string{"busan"}, false},
		{"seoul/old/sido.shp", []string{"seoul"}, false},
		{"seoul/readme.txt", nil, false},
		{"sido.shp", []string{"seoul"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := inDistricts(tt.key, tt.districts); got != tt.want {
				t.Errorf("inDistricts(%q, %v) = %v, want %v", tt.key, tt.districts, got, tt.want)
			}
		})
	}
}
