package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestFsnotifyOpToOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       fsnotify.Op
		expected Operation
	}{
		{
			name:     "Remove returns OpDelete",
			op:       fsnotify.Remove,
			expected: OpDelete,
		},
		{
			name:     "Rename returns OpDelete",
			op:       fsnotify.Rename,
			expected: OpDelete,
		},
		{
			name:     "Create returns OpCreate",
			op:       fsnotify.Create,
			expected: OpCreate,
		},
		{
			name:     "Write returns OpModify",
			op:       fsnotify.Write,
			expected: OpModify,
		},
		{
			name:     "Chmod returns OpModify",
			op:       fsnotify.Chmod,
			expected: OpModify,
		},
		{
			name:     "Remove takes precedence over Write",
			op:       fsnotify.Remove | fsnotify.Write,
			expected: OpDelete,
		},
		{
			name:     "Rename takes precedence over Create",
			op:       fsnotify.Rename | fsnotify.Create,
			expected: OpDelete,
		},
		{
			name:     "Create takes precedence over Write",
			op:       fsnotify.Create | fsnotify.Write,
			expected: OpCreate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := fsnotifyOpToOperation(tt.op)
			if result != tt.expected {
				t.Errorf("fsnotifyOpToOperation(%v) = %v, want %v", tt.op, result, tt.expected)
			}
		})
	}
}

func TestOperationString(t *testing.T) {
	tests := []struct {
		op       Operation
		expected string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.op.String(); got != tt.expected {
				t.Errorf("Operation.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLayerEvent(t *testing.T) {
	dir := t.TempDir()
	district := filepath.Join(dir, "seoul")
	if err := os.MkdirAll(district, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(district, "sido.shp"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	shp := filepath.Join(district, "sido.shp")

	tests := []struct {
		name   string
		path   string
		op     Operation
		want   string
		wantOp Operation
		ok     bool
	}{
		{"shapefile", shp, OpCreate, shp, OpCreate, true},
		{"deleted shapefile", filepath.Join(district, "gone.shp"), OpDelete, filepath.Join(district, "gone.shp"), OpDelete, true},
		{"geojson", "/data/busan/sigungu.GeoJSON", OpModify, "/data/busan/sigungu.GeoJSON", OpModify, true},
		{"geopackage", "/data/jeju.gpkg", OpCreate, "/data/jeju.gpkg", OpCreate, true},
		{"sidecar", filepath.Join(district, "sido.dbf"), OpCreate, shp, OpModify, true},
		{"deleted sidecar", filepath.Join(district, "sido.cpg"), OpDelete, shp, OpModify, true},
		{"orphan sidecar", filepath.Join(district, "dong.dbf"), OpCreate, "", 0, false},
		{"unrelated file", filepath.Join(district, "notes.txt"), OpCreate, "", 0, false},
		{"backup", "/data/jeju.gpkg.bak", OpCreate, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, op, ok := layerEvent(tt.path, tt.op)
			if ok != tt.ok || got != tt.want || (ok && op != tt.wantOp) {
				t.Errorf("layerEvent(%q, %v) = %q, %v, %v; want %q, %v, %v",
					tt.path, tt.op, got, op, ok, tt.want, tt.wantOp, tt.ok)
			}
		})
	}
}

func TestUpdatePendingEvent(t *testing.T) {
	tests := []struct {
		name     string
		existing Operation
		next     Operation
		want     Operation
	}{
		{"delete then create", OpDelete, OpCreate, OpCreate},
		{"delete then modify", OpDelete, OpModify, OpCreate},
		{"modify then delete", OpModify, OpDelete, OpDelete},
		{"create then modify", OpCreate, OpModify, OpCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &pendingEvent{op: tt.existing}
			updatePendingEvent(p, tt.next)
			if p.op != tt.want {
				t.Errorf("op = %v, want %v", p.op, tt.want)
			}
		})
	}
}

func TestWatcherReportsDistrictFiles(t *testing.T) {
	dir := t.TempDir()
	district := filepath.Join(dir, "seoul")
	if err := os.MkdirAll(district, 0o750); err != nil {
		t.Fatal(err)
	}

	events := make(chan Event, 4)
	handler := func(_ context.Context, e Event) error {
		events <- e
		return nil
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	w, err := New(Config{Paths: []string{dir}, Debounce: 50 * time.Millisecond}, handler, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	path := filepath.Join(district, "sigungu.geojson")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-events:
		if filepath.Base(e.Path) != "sigungu.geojson" {
			t.Errorf("event path = %q", e.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event for a file in a district directory")
	}
}

func TestWatcherSettled(t *testing.T) {
	w := &Watcher{debounce: time.Second, pending: make(map[string]*pendingEvent)}
	now := time.Now()
	w.pending["/data/seoul/sigungu.shp"] = &pendingEvent{timestamp: now.Add(-2 * time.Second), op: OpModify}
	w.pending["/data/busan/sido.shp"] = &pendingEvent{timestamp: now.Add(-3 * time.Second), op: OpDelete}
	w.pending["/data/seoul/sido.shp"] = &pendingEvent{timestamp: now, op: OpCreate}

	events := w.settled(now)
	if len(events) != 2 {
		t.Fatalf("settled() = %v, want 2 events", events)
	}
	if events[0].Path != "/data/busan/sido.shp" || events[0].Operation != OpDelete {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Path != "/data/seoul/sigungu.shp" {
		t.Errorf("second event = %+v", events[1])
	}
	if _, ok := w.pending["/data/seoul/sido.shp"]; !ok || len(w.pending) != 1 {
		t.Errorf("pending = %v, want only the unsettled event", w.pending)
	}
}
