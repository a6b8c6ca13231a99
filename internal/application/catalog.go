package application

import (
	"path"
	"sort"
	"strings"

	"github.com/jobrunner/tarantula/internal/domain"
)

// Catalog maps districts and layer names onto storage keys.
//
// Every district has its own directory. Hierarchy and district layers are a
// single file named like the layer, district_any layers are every file whose
// name starts with the layer name:
//
//	seoul/sido.shp        hierarchy "sido"
//	seoul/sigungu.shp     district "sigungu"
//	seoul/dong_01.shp     district_any "dong"
//	seoul/dong_02.shp     district_any "dong"
type Catalog struct {
	Districts      []string
	Hierarchies    []string
	DistrictPar    []string
	DistrictParAny []string
	Layers         map[string]domain.LayerSpec // Layer specs by name
}

// CatalogEntry is a layer selected by the catalog.
type CatalogEntry struct {
	ID       string           // district/file stem
	District string           // Owning district
	Key      string           // Storage key or PostGIS path
	Spec     domain.LayerSpec // Layer spec with role set
}

// spec returns the configured spec for a layer name with the given role.
func (c *Catalog) spec(name string, role domain.LayerRole) domain.LayerSpec {
	spec := c.Layers[name]
	spec.Name = name
	spec.Role = role
	return spec
}

// Match selects the storage keys that belong to the catalog. Keys outside a
// configured district or not matching a layer name are ignored. Entries are
// ordered by district, role and id.
func (c *Catalog) Match(keys []string) []CatalogEntry {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var entries []CatalogEntry
	for _, district := range c.Districts {
		var matched []CatalogEntry
		for _, key := range sorted {
			if e, ok := c.matchKey(district, key); ok {
				matched = append(matched, e)
			}
		}
		sort.SliceStable(matched, func(i, j int) bool {
			return roleOrder(matched[i].Spec.Role) < roleOrder(matched[j].Spec.Role)
		})
		entries = append(entries, matched...)
	}
	return entries
}

// Lookup matches a single storage key.
func (c *Catalog) Lookup(key string) (CatalogEntry, bool) {
	for _, district := range c.Districts {
		if e, ok := c.matchKey(district, key); ok {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

func (c *Catalog) matchKey(district, key string) (CatalogEntry, bool) {
	dir, file := path.Split(key)
	if strings.TrimSuffix(dir, "/") != district || !domain.IsLayerFile(file) {
		return CatalogEntry{}, false
	}
	stem := strings.TrimSuffix(file, path.Ext(file))

	entry := CatalogEntry{
		ID:       domain.LayerID(district, file),
		District: district,
		Key:      key,
	}
	for _, name := range c.Hierarchies {
		if stem == name {
			entry.Spec = c.spec(name, domain.RoleHierarchy)
			return entry, true
		}
	}
	for _, name := range c.DistrictPar {
		if stem == name {
			entry.Spec = c.spec(name, domain.RoleDistrict)
			return entry, true
		}
	}
	for _, name := range c.DistrictParAny {
		if strings.HasPrefix(stem, name) {
			entry.Spec = c.spec(name, domain.RoleDistrictAny)
			return entry, true
		}
	}
	return CatalogEntry{}, false
}

// PostGISEntries lists one entry per district and layer name, reading each
// layer from the table named like the layer.
func (c *Catalog) PostGISEntries(pathFor func(table, district string) string) []CatalogEntry {
	var entries []CatalogEntry
	add := func(district string, names []string, role domain.LayerRole) {
		for _, name := range names {
			entries = append(entries, CatalogEntry{
				ID:       district + "/" + name,
				District: district,
				Key:      pathFor(name, district),
				Spec:     c.spec(name, role),
			})
		}
	}
	for _, district := range c.Districts {
		add(district, c.Hierarchies, domain.RoleHierarchy)
		add(district, c.DistrictPar, domain.RoleDistrict)
		add(district, c.DistrictParAny, domain.RoleDistrictAny)
	}
	return entries
}

// Sidecars returns the keys of the shapefile companion files for which
// has reports true. Upper case extensions are tried as well.
func Sidecars(key string, has func(string) bool) []string {
	if !strings.EqualFold(path.Ext(key), ".shp") {
		return nil
	}
	base := strings.TrimSuffix(key, path.Ext(key))

	var out []string
	for _, ext := range domain.ShapefileSidecars {
		for _, candidate := range []string{base + ext, base + strings.ToUpper(ext)} {
			if has(candidate) {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

func roleOrder(r domain.LayerRole) int {
	switch r {
	case domain.RoleHierarchy:
		return 0
	case domain.RoleDistrict:
		return 1
	default:
		return 2
	}
}
