package source

import (
	"context"
	"errors"
	"testing"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

func TestParsePostGISPath(t *testing.T) {
	tests := []struct {
		path         string
		wantTable    string
		wantDistrict string
		wantErr      bool
	}{
		{"postgis://emd/seoul", "emd", "seoul", false},
		{"postgis://sido", "sido", "", false},
		{"postgis:///seoul", "", "", true},
		{"/data/emd.shp", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			table, district, err := ParsePostGISPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePostGISPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if table != tt.wantTable || district != tt.wantDistrict {
				t.Errorf("ParsePostGISPath() = %q, %q; want %q, %q", table, district, tt.wantTable, tt.wantDistrict)
			}
		})
	}

	if got := PostGISPath("emd", "seoul"); got != "postgis://emd/seoul" {
		t.Errorf("PostGISPath() = %q", got)
	}
}

func TestPostGISBuildQuery(t *testing.T) {
	p := &PostGIS{cfg: PostGISConfig{Schema: "admin", DistrictColumn: "district"}}

	query, args := p.buildQuery("emd", "seoul", []string{"code", "name"})
	want := `SELECT ST_AsBinary(ST_Force2D("geom")), "code"::text, "name"::text FROM "admin"."emd" WHERE "geom" IS NOT NULL AND "district" = $1`
	if query != want {
		t.Errorf("query =\n%s\nwant\n%s", query, want)
	}
	if len(args) != 1 || args[0] != "seoul" {
		t.Errorf("args = %v", args)
	}

	p = &PostGIS{cfg: PostGISConfig{GeometryColumn: "the_geom"}}
	query, args = p.buildQuery("sido", "seoul", nil)
	want = `SELECT ST_AsBinary(ST_Force2D("the_geom")) FROM "sido" WHERE "the_geom" IS NOT NULL`
	if query != want || len(args) != 0 {
		t.Errorf("query = %s, args = %v", query, args)
	}
}

type stubSource struct {
	format domain.LayerFormat
	calls  int
}

func (s *stubSource) Load(_ context.Context, _ string, _ domain.LayerSpec) (*output.LoadedLayer, error) {
	s.calls++
	return &output.LoadedLayer{}, nil
}

func (s *stubSource) Supports(format domain.LayerFormat) bool {
	return format == s.format
}

func TestRouter(t *testing.T) {
	shape := &stubSource{format: domain.FormatShapefile}
	pg := &stubSource{format: domain.FormatPostGIS}
	r := NewRouter(shape, pg)

	ctx := context.Background()
	if _, err := r.Load(ctx, "/data/seoul/emd.shp", domain.LayerSpec{}); err != nil {
		t.Fatalf("Load(shp) error = %v", err)
	}
	if _, err := r.Load(ctx, "postgis://emd/seoul", domain.LayerSpec{}); err != nil {
		t.Fatalf("Load(postgis) error = %v", err)
	}
	if shape.calls != 1 || pg.calls != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", shape.calls, pg.calls)
	}

	if _, err := r.Load(ctx, "/data/seoul/emd.gpkg", domain.LayerSpec{}); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("Load(gpkg) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := r.Load(ctx, "/data/seoul/emd.txt", domain.LayerSpec{}); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("Load(txt) error = %v, want ErrUnsupportedFormat", err)
	}
	if !r.Supports(domain.FormatPostGIS) || r.Supports(domain.FormatGeoJSON) {
		t.Error("Supports() mismatch")
	}
}
