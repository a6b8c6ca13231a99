package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// LayerRole determines how a layer takes part in a hierarchical search.
type LayerRole string

const (
	// RoleHierarchy layers are searched for every query; a hit selects the
	// district whose own layers are searched next.
	RoleHierarchy LayerRole = "hierarchy"
	// RoleDistrict layers are searched within a matched district; every hit
	// is reported.
	RoleDistrict LayerRole = "district"
	// RoleDistrictAny layers are searched within a matched district until
	// the first hit, which is reported together with its boundary.
	RoleDistrictAny LayerRole = "district_any"
)

// LayerFormat identifies the source format of a layer.
type LayerFormat string

const (
	FormatShapefile  LayerFormat = "shapefile"
	FormatGeoJSON    LayerFormat = "geojson"
	FormatGeoPackage LayerFormat = "geopackage"
	FormatPostGIS    LayerFormat = "postgis"
)

// PostGISScheme prefixes layer paths that are read from a PostGIS table.
const PostGISScheme = "postgis://"

// FormatFromPath derives the layer format from a file extension or scheme.
func FormatFromPath(path string) (LayerFormat, error) {
	if strings.HasPrefix(path, PostGISScheme) {
		return FormatPostGIS, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return FormatShapefile, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".gpkg":
		return FormatGeoPackage, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// IsLayerFile reports whether the path names a primary layer file.
// Shapefile sidecars (.dbf, .shx, .prj, .cpg) are not layer files.
func IsLayerFile(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil && !strings.HasPrefix(path, PostGISScheme)
}

// ShapefileSidecars are the files that travel with a .shp file.
var ShapefileSidecars = []string{".dbf", ".shx", ".prj", ".cpg"}

// IsDatasetFile reports whether the path names a layer file or one of its
// shapefile sidecars.
func IsDatasetFile(path string) bool {
	if IsLayerFile(path) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range ShapefileSidecars {
		if ext == s {
			return true
		}
	}
	return false
}

// LayerSpec is the configured description of a named layer.
type LayerSpec struct {
	Name          string    // Layer name, e.g. "sido"
	Level         int       // Administrative level used for ordering results
	Role          LayerRole // Search role
	Attributes    []string  // Attribute fields copied into each region
	NameAttribute string    // Attribute holding the region name
	Encoding      string    // Character set of text attributes (e.g. "euc-kr")
}

// RegionName returns the attribute used as region name. Without an explicit
// NameAttribute the second configured attribute is used, falling back to the
// first.
func (s LayerSpec) RegionName() string {
	switch {
	case s.NameAttribute != "":
		return s.NameAttribute
	case len(s.Attributes) > 1:
		return s.Attributes[1]
	case len(s.Attributes) == 1:
		return s.Attributes[0]
	}
	return ""
}

// Layer represents a loaded region layer.
type Layer struct {
	ID       string      // Unique identifier: district/file stem
	Name     string      // Configured layer name
	District string      // District the layer belongs to
	Level    int         // Administrative level
	Role     LayerRole   // Search role
	Format   LayerFormat // Source format
	Path     string      // Local file path or PostGIS URL
	Size     int64       // File size in bytes
	Regions  int         // Number of committed regions
	Rejected int         // Number of rejected rings
	Extent   *Extent     // Bounding box of all regions (optional)
	Status   LayerStatus // Current status
	Error    string      // Last load error
	LoadedAt time.Time   // Load timestamp
}

// IsReady returns true if the layer can be searched.
func (l *Layer) IsReady() bool {
	return l.Status == StatusReady
}

// MayContain reports whether the coordinate falls within the layer extent.
// A layer without extent may contain any coordinate.
func (l *Layer) MayContain(c Coordinate) bool {
	if l.Extent == nil {
		return true
	}
	return l.Extent.Contains(c)
}

// LayerID builds the identifier for a layer file within a district.
func LayerID(district, path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if district == "" {
		return stem
	}
	return district + "/" + stem
}

// LayerStatus represents the status of a layer.
type LayerStatus string

const (
	StatusLoading   LayerStatus = "loading"
	StatusReady     LayerStatus = "ready"
	StatusError     LayerStatus = "error"
	StatusUnloading LayerStatus = "unloading"
)
