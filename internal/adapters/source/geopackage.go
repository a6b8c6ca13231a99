package source

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

// wgs84SRID is the only spatial reference system accepted for region layers.
const wgs84SRID = 4326

var errBadGeoPackageBlob = errors.New("malformed geopackage geometry")

// GeoPackage reads polygon feature tables from a GeoPackage file.
type GeoPackage struct {
	builder *Builder
}

// NewGeoPackage creates a new GeoPackage source.
func NewGeoPackage(builder *Builder) *GeoPackage {
	return &GeoPackage{builder: builder}
}

// Supports implements output.LayerSource.
func (g *GeoPackage) Supports(format domain.LayerFormat) bool {
	return format == domain.FormatGeoPackage
}

// featureTable describes a feature table from gpkg_geometry_columns.
type featureTable struct {
	Name           string
	GeometryColumn string
	GeometryType   string
	SRID           int
}

// Load implements output.LayerSource. The table named like the layer is
// read; without such a table the first polygon table is used.
func (g *GeoPackage) Load(ctx context.Context, path string, spec domain.LayerSpec) (*output.LoadedLayer, error) {
	db, err := openGeoPackage(ctx, path)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	defer func() { _ = db.Close() }()

	tables, err := readFeatureTables(ctx, db)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: err}
	}
	table, ok := selectTable(tables, spec.Name)
	if !ok {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: fmt.Errorf("no polygon table: %w", domain.ErrLayerNotFound)}
	}
	if table.SRID != wgs84SRID {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: fmt.Errorf("table %s srs %d: %w", table.Name, table.SRID, domain.ErrUnsupported)}
	}

	features, err := readGeoPackageFeatures(ctx, db, table, spec)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Record: -1, Err: err}
	}
	return g.builder.Build(path, features)
}

// openGeoPackage opens the file read-only.
func openGeoPackage(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// readFeatureTables lists feature tables from gpkg_contents.
func readFeatureTables(ctx context.Context, db *sql.DB) ([]featureTable, error) {
	query := `
		SELECT c.table_name, g.column_name, g.geometry_type_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON c.table_name = g.table_name
		WHERE c.data_type = 'features'
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading feature tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []featureTable
	for rows.Next() {
		var t featureTable
		if err := rows.Scan(&t.Name, &t.GeometryColumn, &t.GeometryType, &t.SRID); err != nil {
			return nil, fmt.Errorf("scanning feature table: %w", err)
		}
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

func selectTable(tables []featureTable, name string) (featureTable, bool) {
	var fallback *featureTable
	for i := range tables {
		t := &tables[i]
		if !isPolygonType(t.GeometryType) {
			continue
		}
		if strings.EqualFold(t.Name, name) {
			return *t, true
		}
		if fallback == nil {
			fallback = t
		}
	}
	if fallback == nil {
		return featureTable{}, false
	}
	return *fallback, true
}

func isPolygonType(geometryType string) bool {
	switch strings.ToUpper(geometryType) {
	case "POLYGON", "MULTIPOLYGON", "GEOMETRY", "CURVEPOLYGON", "MULTISURFACE":
		return true
	}
	return false
}

// readGeoPackageFeatures reads geometry and attribute columns of a table.
func readGeoPackageFeatures(ctx context.Context, db *sql.DB, table featureTable, spec domain.LayerSpec) ([]domain.RegionFeature, error) {
	columns := []string{quoteIdent(table.GeometryColumn)}
	for _, name := range spec.Attributes {
		columns = append(columns, quoteIdent(name))
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), quoteIdent(table.Name)) //#nosec G201 -- identifiers quoted, names from configuration and gpkg_contents

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table.Name, err)
	}
	defer func() { _ = rows.Close() }()

	nameAttr := spec.RegionName()
	var features []domain.RegionFeature
	for record := 0; rows.Next(); record++ {
		var blob []byte
		values := make([]sql.NullString, len(spec.Attributes))
		dest := make([]interface{}, 0, len(values)+1)
		dest = append(dest, &blob)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning record %d: %w", record, err)
		}
		if blob == nil {
			continue
		}
		if srid := geoPackageSRID(blob); srid > 0 && srid != wgs84SRID {
			return nil, fmt.Errorf("record %d srs %d: %w", record, srid, domain.ErrUnsupported)
		}

		payload, err := geoPackageWKB(blob)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", record, err)
		}
		if payload == nil {
			continue
		}
		geom, err := wkb.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", record, err)
		}
		rings, err := ringsFromGeometry(geom)
		if err != nil {
			continue
		}

		attrs := make(map[string]string, len(spec.Attributes))
		for i, name := range spec.Attributes {
			attrs[name] = values[i].String
		}

		features = append(features, domain.RegionFeature{
			Record: record,
			Info: domain.RegionInfo{
				Level:      spec.Level,
				Name:       attrs[nameAttr],
				Attributes: attrs,
			},
			Rings: rings,
		})
	}

	return features, rows.Err()
}

// geoPackageWKB strips the GeoPackage binary header and returns the WKB
// payload. Empty geometries yield nil.
func geoPackageWKB(blob []byte) ([]byte, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, errBadGeoPackageBlob
	}

	flags := blob[3]
	if flags&0x10 != 0 {
		return nil, nil
	}

	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
		envelope = 0
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, fmt.Errorf("envelope indicator %d: %w", (flags>>1)&0x07, errBadGeoPackageBlob)
	}

	start := 8 + envelope
	if len(blob) <= start {
		return nil, errBadGeoPackageBlob
	}
	return blob[start:], nil
}

// geoPackageSRID returns the srs_id stored in the blob header.
func geoPackageSRID(blob []byte) int32 {
	if len(blob) < 8 {
		return 0
	}
	if blob[3]&0x01 != 0 {
		return int32(binary.LittleEndian.Uint32(blob[4:8])) //#nosec G115 -- srs ids are stored as int32
	}
	return int32(binary.BigEndian.Uint32(blob[4:8])) //#nosec G115 -- srs ids are stored as int32
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
