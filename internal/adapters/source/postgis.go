package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/tarantula/internal/domain"
	"github.com/jobrunner/tarantula/internal/ports/output"
)

// PostGISConfig holds settings for reading layers from PostGIS tables.
type PostGISConfig struct {
	DSN            string
	Schema         string
	GeometryColumn string
	DistrictColumn string
}

// PostGIS reads a layer from a table named like the layer, filtered by
// district. Layer paths have the form postgis://<table>/<district>.
type PostGIS struct {
	db      *sql.DB
	cfg     PostGISConfig
	builder *Builder
}

// NewPostGIS opens a connection pool for the configured database.
func NewPostGIS(cfg PostGISConfig, builder *Builder) (*PostGIS, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgis: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	return &PostGIS{db: db, cfg: cfg, builder: builder}, nil
}

// Close closes the connection pool.
func (p *PostGIS) Close() error {
	return p.db.Close()
}

// Supports implements output.LayerSource.
func (p *PostGIS) Supports(format domain.LayerFormat) bool {
	return format == domain.FormatPostGIS
}

// PostGISPath builds the layer path for a table and district.
func PostGISPath(table, district string) string {
	return domain.PostGISScheme + table + "/" + district
}

// ParsePostGISPath splits a layer path into table and district.
func ParsePostGISPath(path string) (table, district string, err error) {
	rest, ok := strings.CutPrefix(path, domain.PostGISScheme)
	if !ok {
		return "", "", fmt.Errorf("%s: %w", path, domain.ErrUnsupportedFormat)
	}
	table, district, _ = strings.Cut(rest, "/")
	if table == "" {
		return "", "", &domain.ValidationError{
			Field:      "path",
			Value:      path,
			Constraint: "postgis://<table>/<district>",
			Message:    "table name is required",
		}
	}
	return table, district, nil
}

// Load implements output.LayerSource.
func (p *PostGIS) Load(ctx context.Context, path string, spec domain.LayerSpec) (*output.LoadedLayer, error) {
	table, district, err := ParsePostGISPath(path)
	if err != nil {
		return nil, err
	}

	query, args := p.buildQuery(table, district, spec.Attributes)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Operation: "query", Key: path, Err: err}
	}
	defer func() { _ = rows.Close() }()

	nameAttr := spec.RegionName()
	var features []domain.RegionFeature
	for record := 0; rows.Next(); record++ {
		var geom []byte
		values := make([]sql.NullString, len(spec.Attributes))
		dest := make([]interface{}, 0, len(values)+1)
		dest = append(dest, &geom)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &domain.LoadError{Path: path, Record: record, Err: err}
		}

		g, err := wkb.Unmarshal(geom)
		if err != nil {
			return nil, &domain.LoadError{Path: path, Record: record, Err: err}
		}
		rings, err := ringsFromGeometry(g)
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
				District:   district,
				Level:      spec.Level,
				Name:       attrs[nameAttr],
				Attributes: attrs,
			},
			Rings: rings,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "query", Key: path, Err: err}
	}

	return p.builder.Build(path, features)
}

func (p *PostGIS) buildQuery(table, district string, attributes []string) (string, []interface{}) {
	geomColumn := p.cfg.GeometryColumn
	if geomColumn == "" {
		geomColumn = "geom"
	}

	columns := []string{fmt.Sprintf("ST_AsBinary(ST_Force2D(%s))", pq.QuoteIdentifier(geomColumn))}
	for _, a := range attributes {
		columns = append(columns, pq.QuoteIdentifier(a)+"::text")
	}

	from := pq.QuoteIdentifier(table)
	if p.cfg.Schema != "" {
		from = pq.QuoteIdentifier(p.cfg.Schema) + "." + from
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL",
		strings.Join(columns, ", "), from, pq.QuoteIdentifier(geomColumn)) //#nosec G201 -- identifiers quoted with pq.QuoteIdentifier
	var args []interface{}
	if p.cfg.DistrictColumn != "" && district != "" {
		query += fmt.Sprintf(" AND %s = $1", pq.QuoteIdentifier(p.cfg.DistrictColumn))
		args = append(args, district)
	}
	return query, args
}
