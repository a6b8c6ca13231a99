package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/jobrunner/tarantula/internal/spatial"
)

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    LayerFormat
		wantErr bool
	}{
		{"seoul/sido.shp", FormatShapefile, false},
		{"seoul/SIDO.SHP", FormatShapefile, false},
		{"regions.geojson", FormatGeoJSON, false},
		{"regions.json", FormatGeoJSON, false},
		{"regions.gpkg", FormatGeoPackage, false},
		{"postgis://regions/seoul", FormatPostGIS, false},
		{"seoul/sido.dbf", "", true},
		{"readme.txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatFromPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("error should wrap ErrUnsupportedFormat, got %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatFromPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLayerFile(t *testing.T) {
	if !IsLayerFile("a/b.shp") {
		t.Error("IsLayerFile(.shp) = false")
	}
	if IsLayerFile("a/b.shx") {
		t.Error("IsLayerFile(.shx) = true")
	}
	if IsLayerFile("postgis://t/d") {
		t.Error("PostGIS URLs are not files")
	}
}

func TestLayerSpecRegionName(t *testing.T) {
	tests := []struct {
		name string
		spec LayerSpec
		want string
	}{
		{"explicit", LayerSpec{NameAttribute: "NAME", Attributes: []string{"CODE", "KOR"}}, "NAME"},
		{"second attribute", LayerSpec{Attributes: []string{"CODE", "KOR"}}, "KOR"},
		{"single attribute", LayerSpec{Attributes: []string{"CODE"}}, "CODE"},
		{"none", LayerSpec{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.RegionName(); got != tt.want {
				t.Errorf("RegionName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLayerID(t *testing.T) {
	if got := LayerID("seoul", "/data/seoul/dong_01.shp"); got != "seoul/dong_01" {
		t.Errorf("LayerID() = %q", got)
	}
	if got := LayerID("", "regions.geojson"); got != "regions" {
		t.Errorf("LayerID() = %q", got)
	}
}

func TestLayerMayContain(t *testing.T) {
	l := &Layer{Status: StatusReady, LoadedAt: time.Now()}
	if !l.IsReady() {
		t.Error("IsReady() = false")
	}
	if !l.MayContain(NewCoordinate(0, 0)) {
		t.Error("layer without extent must accept any coordinate")
	}

	e := EmptyExtent()
	e.Extend(126, 33)
	e.Extend(130, 38)
	l.Extent = &e
	if l.MayContain(NewCoordinate(0, 0)) {
		t.Error("MayContain() outside extent = true")
	}
}

func TestRegionInfo(t *testing.T) {
	r := RegionInfo{Attributes: map[string]string{"CODE": "11", "NAME": ""}}
	if v, ok := r.GetAttribute("CODE"); !ok || v != "11" {
		t.Errorf("GetAttribute() = %q, %v", v, ok)
	}
	if r.GetIntAttribute("CODE") != 11 || r.GetIntAttribute("NAME") != 0 {
		t.Error("GetIntAttribute() mismatch")
	}
	if !r.HasAttributes() {
		t.Error("HasAttributes() = false")
	}
	empty := RegionInfo{Attributes: map[string]string{"NAME": ""}}
	if empty.HasAttributes() {
		t.Error("HasAttributes() with only empty values = true")
	}
}

func TestRegionFeatureOuterRings(t *testing.T) {
	f := RegionFeature{Rings: []Ring{{Outer: true}, {Outer: false}, {Outer: true}}}
	if got := f.OuterRings(); got != 2 {
		t.Errorf("OuterRings() = %d, want 2", got)
	}
}

func TestSearchResponseSortByLevel(t *testing.T) {
	r := &SearchResponse{}
	r.AddMatch(Match{Name: "dong", Level: 3})
	r.AddMatch(Match{Name: "sido", Level: 1})
	r.AddMatch(Match{Name: "zone-a", Level: 3})
	r.AddMatch(Match{Name: "sgg", Level: 2})
	r.SortByLevel()

	want := []string{"sido", "sgg", "dong", "zone-a"}
	for i, m := range r.Matches {
		if m.Name != want[i] {
			t.Errorf("Matches[%d] = %q, want %q", i, m.Name, want[i])
		}
	}
	if !r.HasMatches() {
		t.Error("HasMatches() = false")
	}
}

func TestLayerSearchResultFound(t *testing.T) {
	r := LayerSearchResult{RegionID: spatial.NoMatch}
	if r.Found() {
		t.Error("Found() = true for NoMatch")
	}
	m := Match{LngLats: []spatial.LngLat{{Lng: 1, Lat: 2}}}
	if !m.HasBoundary() {
		t.Error("HasBoundary() = false")
	}
}
