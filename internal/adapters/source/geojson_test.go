package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/spatial"
)

const districtsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"code": 11, "name": "Central"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [
          [[0, 0], [4, 0], [4, 4], [0, 4], [0, 0]],
          [[1, 1], [1, 2], [2, 2], [2, 1], [1, 1]]
        ]
      }
    },
    {
      "type": "Feature",
      "properties": {"code": 12, "name": "Islands"},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[10, 0], [11, 0], [11, 1], [10, 1], [10, 0]]],
          [[[12, 0], [13, 0], [13, 1], [12, 1], [12, 0]]]
        ]
      }
    },
    {
      "type": "Feature",
      "properties": {"code": 13, "name": "Marker"},
      "geometry": {"type": "Point", "coordinates": [20, 20]}
    }
  ]
}`

func TestGeoJSONDecode(t *testing.T) {
	g := NewGeoJSON(NewBuilder(BuildOptions{}, nil, testLogger()))
	spec := domain.LayerSpec{Name: "districts", Level: 2, Attributes: []string{"code", "name"}}

	features, err := g.Decode(context.Background(), []byte(districtsGeoJSON), spec)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(features) != 2 {
		t.Fatalf("Decode() returned %d features, want 2", len(features))
	}
	if features[0].Info.Name != "Central" || features[0].Info.Attributes["code"] != "11" {
		t.Errorf("first feature info = %+v", features[0].Info)
	}
	if features[0].Info.Level != 2 {
		t.Errorf("Level = %d, want 2", features[0].Info.Level)
	}
	if len(features[0].Rings) != 2 || !features[0].Rings[0].Outer || features[0].Rings[1].Outer {
		t.Errorf("first feature rings = %+v", features[0].Rings)
	}
	if features[1].OuterRings() != 2 {
		t.Errorf("OuterRings() = %d, want 2", features[1].OuterRings())
	}
}

func TestGeoJSONDecodeInvalid(t *testing.T) {
	g := NewGeoJSON(NewBuilder(BuildOptions{}, nil, testLogger()))
	if _, err := g.Decode(context.Background(), []byte(`{"type":`), domain.LayerSpec{}); err == nil {
		t.Error("Decode() should fail on truncated input")
	}
}

func TestGeoJSONLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.geojson")
	if err := os.WriteFile(path, []byte(districtsGeoJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	g := NewGeoJSON(NewBuilder(BuildOptions{}, nil, testLogger()))
	layer, err := g.Load(context.Background(), path, domain.LayerSpec{
		Name:       "districts",
		Attributes: []string{"code", "name"},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		lng, lat float64
		want     string
	}{
		{"shell", 3, 3, "Central"},
		{"hole", 1.5, 1.5, ""},
		{"first island", 10.5, 0.5, "Islands"},
		{"second island", 12.5, 0.5, "Islands"},
		{"between islands", 11.5, 0.5, ""},
		{"marker", 20, 20, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ""
			if r, ok := layer.Region(layer.Index.Search(tt.lng, tt.lat)); ok {
				got = r.Name
			}
			if got != tt.want {
				t.Errorf("region = %q, want %q", got, tt.want)
			}
		})
	}

	result := layer.Index.SearchPolygon(3, 3)
	if result.ID == spatial.NoMatch || len(result.Vertices) != 8 {
		t.Errorf("SearchPolygon() = id %d with %d vertices, want 8 vertices", result.ID, len(result.Vertices))
	}
}

func TestGeoJSONLoadMissingFile(t *testing.T) {
	g := NewGeoJSON(NewBuilder(BuildOptions{}, nil, testLogger()))
	_, err := g.Load(context.Background(), filepath.Join(t.TempDir(), "none.geojson"), domain.LayerSpec{})
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
