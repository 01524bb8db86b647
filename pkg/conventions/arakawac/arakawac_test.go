package arakawac

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// staggered builds a ny x nx Arakawa C grid of unit cells with the node
// (j, i) at x=i, y=j. eta lives on faces, u1 on left edges, u2 on back
// edges and temp on (time, k, face).
func staggered(t *testing.T, ny, nx int) *dataset.Dataset {
	t.Helper()
	ds := dataset.New()
	coords := func(rows, cols int, dx, dy float64) ([]float64, []float64) {
		xs := make([]float64, rows*cols)
		ys := make([]float64, rows*cols)
		for j := 0; j < rows; j++ {
			for i := 0; i < cols; i++ {
				xs[j*cols+i] = float64(i) + dx
				ys[j*cols+i] = float64(j) + dy
			}
		}
		return xs, ys
	}
	add := func(name string, dims []string, values []float64, shape ...int) {
		require.NoError(t, ds.AddVariable(&dataset.Variable{Name: name, Dims: dims, Data: dataset.FromSlice(values, shape...)}))
	}
	grids := []struct {
		kind       grid.GridKind
		jDim, iDim string
		rows, cols int
		dx, dy     float64
	}{
		{grid.Face, "j_centre", "i_centre", ny, nx, 0.5, 0.5},
		{grid.Left, "j_left", "i_left", ny, nx + 1, 0, 0.5},
		{grid.Back, "j_back", "i_back", ny + 1, nx, 0.5, 0},
		{grid.Node, "j_grid", "i_grid", ny + 1, nx + 1, 0, 0},
	}
	for _, g := range grids {
		xs, ys := coords(g.rows, g.cols, g.dx, g.dy)
		names := DefaultCoordinateNames[g.kind]
		add(names.Longitude, []string{g.jDim, g.iDim}, xs, g.rows, g.cols)
		add(names.Latitude, []string{g.jDim, g.iDim}, ys, g.rows, g.cols)
	}

	seq := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(i)
		}
		return out
	}
	add("eta", []string{"j_centre", "i_centre"}, seq(ny*nx), ny, nx)
	add("u1", []string{"j_left", "i_left"}, seq(ny*(nx+1)), ny, nx+1)
	add("u2", []string{"j_back", "i_back"}, seq((ny+1)*nx), ny+1, nx)
	add("temp", []string{"time", "k_centre", "j_centre", "i_centre"}, seq(2*2*ny*nx), 2, 2, ny, nx)
	return ds
}

func TestDetector(t *testing.T) {
	s, ok := Detector{}.CheckDataset(staggered(t, 3, 3))
	assert.True(t, ok)
	assert.Equal(t, grid.High, s)

	ds := staggered(t, 3, 3).DropVars("x_grid")
	_, ok = Detector{}.CheckDataset(ds)
	assert.False(t, ok)

	c, err := Detector{}.Open(staggered(t, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, Name, c.Name())
}

func TestNewRejectsInconsistentGrids(t *testing.T) {
	names := CoordinateNames{}
	for k, v := range DefaultCoordinateNames {
		names[k] = v
	}
	names[grid.Node] = DefaultCoordinateNames[grid.Left]

	_, err := New(staggered(t, 3, 3), names)
	var cfgErr *grid.ErrConfiguration
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, Name, cfgErr.Convention)
}

func TestIndexing(t *testing.T) {
	g, err := New(staggered(t, 3, 4), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"j_left", "i_left"}, g.GridDimensions(grid.Left))
	size, err := g.GridSize(grid.Node)
	require.NoError(t, err)
	assert.Equal(t, 20, size)

	for _, kind := range g.GridKinds() {
		n, err := g.GridSize(kind)
		require.NoError(t, err)
		for linear := 0; linear < n; linear++ {
			index, err := g.UnravelIndex(linear, kind)
			require.NoError(t, err)
			back, err := g.RavelIndex(index)
			require.NoError(t, err)
			assert.Equal(t, linear, back)
		}
	}

	index, err := g.UnravelIndex(6, grid.Left)
	require.NoError(t, err)
	assert.Equal(t, Index{Kind: grid.Left, J: 1, I: 1}, index)

	u1, _ := g.Dataset().Variable("u1")
	kind, n, err := g.GridKindAndSize(u1)
	require.NoError(t, err)
	assert.Equal(t, grid.Left, kind)
	assert.Equal(t, 15, n)

	_, err = g.RavelIndex(Index{Kind: grid.Face, J: 3, I: 0})
	var invalid *grid.ErrInvalidIndex
	assert.ErrorAs(t, err, &invalid)
}

func TestPolygonsFromNodes(t *testing.T) {
	g, err := New(staggered(t, 3, 3), nil)
	require.NoError(t, err)

	polygons, err := g.Polygons()
	require.NoError(t, err)
	require.Len(t, polygons, 9)

	b := grid.PolygonBounds(polygons[5]) // (j=1, i=2)
	assert.Equal(t, 2.0, b.Min.X)
	assert.Equal(t, 3.0, b.Max.X)
	assert.Equal(t, 1.0, b.Min.Y)
	assert.Equal(t, 2.0, b.Max.Y)

	item, err := g.IndexForPoint(geom.Point{X: 1.5, Y: 2.5})
	require.NoError(t, err)
	assert.Equal(t, Index{Kind: grid.Face, J: 2, I: 1}, item.Index)
}

func TestMissingNodeDropsFace(t *testing.T) {
	ds := staggered(t, 3, 3)
	x, _ := ds.Variable("x_grid")
	x.Data.Elements[0] = math.NaN()

	g, err := New(ds, nil)
	require.NoError(t, err)
	mask, err := g.Mask()
	require.NoError(t, err)
	assert.False(t, mask[0])
	assert.True(t, mask[1])
}

func TestSelectIndexDropsOtherGrids(t *testing.T) {
	g, err := New(staggered(t, 3, 3), nil)
	require.NoError(t, err)

	out, err := g.SelectIndex(Index{Kind: grid.Face, J: 1, I: 1})
	require.NoError(t, err)
	names := out.Names()
	assert.Contains(t, names, "eta")
	assert.Contains(t, names, "temp")
	assert.NotContains(t, names, "u1")
	assert.NotContains(t, names, "u2")
	assert.NotContains(t, names, "x_grid")

	temp, _ := out.Variable("temp")
	assert.Equal(t, []string{"time", "k_centre"}, temp.Dims)

	edge, err := g.SelectIndex(Index{Kind: grid.Left, J: 0, I: 3})
	require.NoError(t, err)
	u1, ok := edge.Variable("u1")
	require.True(t, ok)
	assert.Equal(t, 3.0, u1.At())
	assert.NotContains(t, edge.Names(), "eta")
}

func TestClipMaskDerivesEdgesAndNodes(t *testing.T) {
	g, err := New(staggered(t, 3, 3), nil)
	require.NoError(t, err)
	clip := geom.Polygon{{{X: 1.2, Y: 1.2}, {X: 1.8, Y: 1.2}, {X: 1.8, Y: 1.8}, {X: 1.2, Y: 1.8}}}

	mask, err := g.MakeClipMask(clip, 0)
	require.NoError(t, err)
	assert.Equal(t, "ArakawaC mask", mask.Type())
	assert.ElementsMatch(t, []grid.GridKind{grid.Face, grid.Left, grid.Back, grid.Node}, mask.Kinds())

	want := map[grid.GridKind][]int{
		grid.Face: {4},
		grid.Left: {5, 6},
		grid.Back: {4, 7},
		grid.Node: {5, 6, 9, 10},
	}
	for kind, cells := range want {
		retained, err := mask.Retained(kind)
		require.NoError(t, err)
		assert.Equal(t, cells, grid.Ints(retained), "%s", kind)
	}

	buffered, err := g.MakeClipMask(clip, 1)
	require.NoError(t, err)
	faces, _ := buffered.Retained(grid.Face)
	assert.EqualValues(t, 9, faces.GetCardinality())
	nodes, _ := buffered.Retained(grid.Node)
	assert.EqualValues(t, 16, nodes.GetCardinality())
}

func TestClip(t *testing.T) {
	ds := staggered(t, 3, 3)
	g, err := New(ds, nil)
	require.NoError(t, err)
	clip := geom.MultiPolygon{
		{{{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.8, Y: 0.8}, {X: 0.2, Y: 0.8}}},
		{{{X: 1.2, Y: 1.2}, {X: 1.8, Y: 1.2}, {X: 1.8, Y: 1.8}, {X: 1.2, Y: 1.8}}},
	}

	out, err := g.Clip(clip, t.TempDir(), 0)
	require.NoError(t, err)

	sizes := map[string]int{
		"j_centre": 2, "i_centre": 2,
		"j_left": 2, "i_left": 3,
		"j_back": 3, "i_back": 2,
		"j_grid": 3, "i_grid": 3,
	}
	for dim, want := range sizes {
		got, ok := out.DimSize(dim)
		require.True(t, ok, dim)
		assert.Equal(t, want, got, dim)
	}

	eta, _ := out.Variable("eta")
	assert.Equal(t, 0.0, eta.At(0, 0))
	assert.True(t, math.IsNaN(eta.At(0, 1)))
	assert.True(t, math.IsNaN(eta.At(1, 0)))
	assert.Equal(t, 4.0, eta.At(1, 1))

	u1, _ := out.Variable("u1")
	assert.True(t, math.IsNaN(u1.At(0, 2)))
	assert.Equal(t, 6.0, u1.At(1, 2))

	x, _ := out.Variable("x_grid")
	assert.False(t, math.IsNaN(x.At(0, 2)), "geometry is never masked")

	clipped, err := New(out, nil)
	require.NoError(t, err)
	polygons, err := clipped.Polygons()
	require.NoError(t, err)
	assert.Len(t, polygons, 4)
}
