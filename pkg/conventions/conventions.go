// Package conventions gathers the supported dataset conventions into a
// registry.
package conventions

import (
	"fmt"

	"github.com/Lachlan00/emsarray/pkg/conventions/arakawac"
	"github.com/Lachlan00/emsarray/pkg/conventions/cfgrid"
	"github.com/Lachlan00/emsarray/pkg/conventions/ugrid"
	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// Default returns a registry holding every built-in convention. UGRID and
// Arakawa C match specifically; CF grid is the fallback for any dataset
// with latitude and longitude coordinates.
func Default() *grid.Registry {
	return grid.NewRegistry(
		ugrid.Detector{},
		arakawac.Detector{},
		cfgrid.Detector{},
	)
}

// Open reads the netCDF file at path and binds the most specific
// convention from the default registry.
func Open(path string, opts ...grid.Option) (grid.Convention, error) {
	ds, err := dataset.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return Default().Open(ds, opts...)
}
