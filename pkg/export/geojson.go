// Package export writes the cell geometry of a convention as GeoJSON.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/klauspost/compress/zstd"
	geojson "github.com/paulmach/go.geojson"

	"github.com/Lachlan00/emsarray/pkg/grid"
)

// Feature property names.
const (
	LinearIndexProperty = "linear_index"
	IndexProperty       = "index"
	CentreProperty      = "centre"
)

// GeoJSON returns a feature collection with one polygon feature per cell
// of c. Cells without a polygon are skipped. Each feature carries the
// cell's linear index, its convention index and its centroid.
func GeoJSON(c grid.Convention) (*geojson.FeatureCollection, error) {
	index, err := c.SpatialIndex()
	if err != nil {
		return nil, err
	}
	centres, err := c.FaceCentres()
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, item := range index.Items() {
		f := geojson.NewPolygonFeature(coordinates(item.Polygon))
		f.SetProperty(LinearIndexProperty, item.LinearIndex)
		f.SetProperty(IndexProperty, map[string]interface{}{
			"kind":        string(item.Index.GridKind()),
			"coordinates": item.Index.Coordinates(),
		})
		centre := centres[item.LinearIndex]
		f.SetProperty(CentreProperty, []float64{centre.X, centre.Y})
		fc.AddFeature(f)
	}
	return fc, nil
}

func coordinates(p geom.Polygon) [][][]float64 {
	rings := make([][][]float64, len(p))
	for r, ring := range p {
		rings[r] = make([][]float64, len(ring))
		for k, pt := range ring {
			rings[r][k] = []float64{pt.X, pt.Y}
		}
	}
	return rings
}

// Write encodes the geometry of c to w.
func Write(w io.Writer, c grid.Convention) error {
	fc, err := GeoJSON(c)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes the geometry of c to path. Paths ending in .zst are
// zstd compressed.
func WriteFile(path string, c grid.Convention) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return Write(f, c)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := Write(enc, c); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
