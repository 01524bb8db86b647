package conventions

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lachlan00/emsarray/pkg/conventions/arakawac"
	"github.com/Lachlan00/emsarray/pkg/conventions/cfgrid"
	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

func cfDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New()
	require.NoError(t, ds.AddVariable(&dataset.Variable{Name: "lat", Dims: []string{"lat"},
		Data: dataset.FromSlice([]float64{0.5, 1.5}, 2), Attrs: dataset.Attributes{"standard_name": "latitude"}}))
	require.NoError(t, ds.AddVariable(&dataset.Variable{Name: "lon", Dims: []string{"lon"},
		Data: dataset.FromSlice([]float64{0.5, 1.5, 2.5}, 3), Attrs: dataset.Attributes{"standard_name": "longitude"}}))
	require.NoError(t, ds.AddVariable(&dataset.Variable{Name: "eta", Dims: []string{"lat", "lon"},
		Data: dataset.Full(1, 2, 3)}))
	return ds
}

// addArakawaCoordinates adds staggered coordinates matching the default
// Arakawa C names, so the dataset matches both conventions.
func addArakawaCoordinates(t *testing.T, ds *dataset.Dataset) {
	t.Helper()
	add := func(name, j, i string, rows, cols int) {
		require.NoError(t, ds.AddVariable(&dataset.Variable{Name: name, Dims: []string{j, i},
			Data: dataset.Zeros(rows, cols)}))
	}
	for kind, names := range arakawac.DefaultCoordinateNames {
		rows, cols := 2, 3
		switch kind {
		case grid.Left:
			cols++
		case grid.Back:
			rows++
		case grid.Node:
			rows, cols = rows+1, cols+1
		}
		j, i := "j_"+string(kind), "i_"+string(kind)
		add(names.Latitude, j, i, rows, cols)
		add(names.Longitude, j, i, rows, cols)
	}
}

func TestDefaultRegistryOrder(t *testing.T) {
	var names []string
	for _, d := range Default().Detectors() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"UGRID", "ArakawaC", "CFGrid"}, names)
}

func TestGuessPrefersSpecificConvention(t *testing.T) {
	ds := cfDataset(t)
	d, err := Default().Guess(ds)
	require.NoError(t, err)
	assert.Equal(t, cfgrid.Name, d.Name())

	addArakawaCoordinates(t, ds)
	matches := Default().Match(ds)
	require.Len(t, matches, 2)
	assert.Equal(t, arakawac.Name, matches[0].Detector.Name())
	assert.Equal(t, grid.High, matches[0].Specificity)
	assert.Equal(t, cfgrid.Name, matches[1].Detector.Name())

	_, err = Default().Guess(dataset.New())
	assert.ErrorIs(t, err, grid.ErrNoConvention)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cf.nc")
	require.NoError(t, cfDataset(t).WriteFile(path))

	c, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, cfgrid.Name, c.Name())

	bound, ok := grid.Bound(c.Dataset())
	require.True(t, ok)
	assert.Same(t, c.(*cfgrid.Grid), bound.(*cfgrid.Grid))

	_, err = Open(filepath.Join(t.TempDir(), "missing.nc"))
	assert.Error(t, err)
}
