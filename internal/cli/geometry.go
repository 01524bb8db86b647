package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom"
	geomjson "github.com/ctessum/geom/encoding/geojson"
	geojson "github.com/paulmach/go.geojson"
)

// readGeometry reads a GEOMETRY argument: inline GeoJSON, or @path naming
// a GeoJSON file.
func readGeometry(arg string) (geom.Geom, error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	return parseGeometry(data)
}

// parseGeometry decodes a GeoJSON geometry, feature or feature collection.
// The features of a collection are combined into one multipolygon when they
// are all polygonal, and into a geometry collection otherwise.
func parseGeometry(data []byte) (geom.Geom, error) {
	g, err := geomjson.Decode(data)
	if err == nil {
		return g, nil
	}
	var unsupported *geomjson.UnsupportedGeometryError
	if !errors.As(err, &unsupported) {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}

	switch unsupported.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse geometry: %w", err)
		}
		members := make([]geom.Geom, 0, len(fc.Features))
		for _, f := range fc.Features {
			g, err := convert(f.Geometry)
			if err != nil {
				return nil, err
			}
			members = append(members, g)
		}
		return combine(members)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parse geometry: %w", err)
		}
		return convert(f.Geometry)
	case "GeometryCollection":
		c, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parse geometry: %w", err)
		}
		return convert(c)
	default:
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
}

var errNoGeometry = errors.New("parse geometry: no geometry")

// convert re-encodes a decoded GeoJSON geometry and hands it to the geom
// decoder. Collections are converted member by member.
func convert(g *geojson.Geometry) (geom.Geom, error) {
	if g == nil {
		return nil, errNoGeometry
	}
	if g.IsCollection() {
		members := make(geom.GeometryCollection, 0, len(g.Geometries))
		for _, member := range g.Geometries {
			m, err := convert(member)
			if err != nil {
				return nil, err
			}
			members = append(members, m)
		}
		return members, nil
	}
	data, err := g.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %w", err)
	}
	out, err := geomjson.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse geometry: %s: %w", g.Type, err)
	}
	return out, nil
}

func combine(members []geom.Geom) (geom.Geom, error) {
	switch len(members) {
	case 0:
		return nil, errNoGeometry
	case 1:
		return members[0], nil
	}
	var polygons geom.MultiPolygon
	for _, m := range members {
		p, ok := m.(geom.Polygonal)
		if !ok {
			return geom.GeometryCollection(members), nil
		}
		polygons = append(polygons, p.Polygons()...)
	}
	return polygons, nil
}
