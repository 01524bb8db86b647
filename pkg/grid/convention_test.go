package grid_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// cellIndex addresses one cell of a listConvention.
type cellIndex struct{ I int }

func (cellIndex) GridKind() grid.GridKind { return grid.Face }
func (c cellIndex) Coordinates() []int    { return []int{c.I} }

// listConvention is a minimal one dimensional convention whose polygons are
// supplied directly. Neighbouring cells are those with adjacent indices.
type listConvention struct {
	*grid.Base
	polygons []geom.Polygon
	builds   int
}

func newListConvention(ds *dataset.Dataset, polygons []geom.Polygon) *listConvention {
	c := &listConvention{polygons: polygons}
	c.Base = grid.NewBase(ds, c)
	return c
}

func (c *listConvention) Name() string                  { return "list" }
func (c *listConvention) GridKinds() []grid.GridKind    { return []grid.GridKind{grid.Face} }
func (c *listConvention) DefaultGridKind() grid.GridKind { return grid.Face }

func (c *listConvention) GridDimensions(kind grid.GridKind) []string {
	if kind == grid.Face {
		return []string{"cell"}
	}
	return nil
}

func (c *listConvention) RavelIndex(index grid.Index) (int, error) {
	ci, ok := index.(cellIndex)
	if !ok || ci.I < 0 || ci.I >= len(c.polygons) {
		return 0, grid.InvalidIndex(index, "out of range")
	}
	return ci.I, nil
}

func (c *listConvention) UnravelIndex(linear int, kind grid.GridKind) (grid.Index, error) {
	if kind != "" && kind != grid.Face {
		return nil, grid.UnknownKind(kind)
	}
	if linear < 0 || linear >= len(c.polygons) {
		return nil, grid.InvalidLinear(linear, grid.Face, len(c.polygons))
	}
	return cellIndex{I: linear}, nil
}

func (c *listConvention) BuildPolygons() ([]geom.Polygon, error) {
	c.builds++
	return c.polygons, nil
}

func (c *listConvention) DropGeometry() (*dataset.Dataset, error) {
	return c.Dataset().Copy(), nil
}

func (c *listConvention) MakeClipMask(clip geom.Geom, buffer int) (*grid.ClipMask, error) {
	cells, err := c.IntersectingCells(clip)
	if err != nil {
		return nil, err
	}
	n := len(c.polygons)
	cells = grid.Buffer(cells, buffer, func(i int) []int {
		var out []int
		if i > 0 {
			out = append(out, i-1)
		}
		if i < n-1 {
			out = append(out, i+1)
		}
		return out
	})
	mask := grid.NewClipMask(c.Name())
	if err := mask.Set(grid.Face, []string{"cell"}, []int{n}, cells); err != nil {
		return nil, err
	}
	return mask, nil
}

func (c *listConvention) ApplyClipMask(mask *grid.ClipMask, scratchDir string) (*dataset.Dataset, error) {
	return grid.ApplyGridMask(c.Dataset(), mask, scratchDir, grid.ApplyOptions{Logger: c.Logger()})
}

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}

// rowPolygons returns n unit squares laid side by side along the x axis.
func rowPolygons(n int) []geom.Polygon {
	polygons := make([]geom.Polygon, n)
	for i := range polygons {
		polygons[i] = square(float64(i), 0, float64(i+1), 1)
	}
	return polygons
}

// cellDataset holds a (time, cell) variable, a time coordinate and a
// variable on an unrelated edge dimension.
func cellDataset(t *testing.T, cells int) *dataset.Dataset {
	t.Helper()
	ds := dataset.New()
	values := make([]float64, 2*cells)
	for i := range values {
		values[i] = float64(i)
	}
	require.NoError(t, ds.AddVariable(&dataset.Variable{
		Name: "temp", Dims: []string{"time", "cell"}, Data: dataset.FromSlice(values, 2, cells),
	}))
	require.NoError(t, ds.AddVariable(&dataset.Variable{
		Name: "time", Dims: []string{"time"}, Data: dataset.FromSlice([]float64{0, 1}, 2),
		Attrs: dataset.Attributes{"standard_name": "time"},
	}))
	require.NoError(t, ds.AddVariable(&dataset.Variable{
		Name: "flux", Dims: []string{"edge"}, Data: dataset.Zeros(cells + 1),
	}))
	return ds
}

func TestIndexForPointTieBreak(t *testing.T) {
	polygons := make([]geom.Polygon, 10)
	for i := range polygons {
		polygons[i] = square(float64(i*10), 50, float64(i*10+1), 51)
	}
	polygons[3] = square(0, 0, 2, 2)
	polygons[7] = square(1, 1, 3, 3)

	c := newListConvention(cellDataset(t, 10), polygons)
	item, err := c.IndexForPoint(geom.Point{X: 1.5, Y: 1.5})
	require.NoError(t, err)
	assert.Equal(t, 3, item.LinearIndex)
	assert.Equal(t, cellIndex{I: 3}, item.Index)

	item, err = c.IndexForPoint(geom.Point{X: 2.5, Y: 2.5})
	require.NoError(t, err)
	assert.Equal(t, 7, item.LinearIndex)
}

func TestIndexForPointMiss(t *testing.T) {
	c := newListConvention(cellDataset(t, 4), rowPolygons(4))

	_, err := c.IndexForPoint(geom.Point{X: 100, Y: 100})
	assert.ErrorIs(t, err, grid.ErrNotFound)

	_, err = c.SelectPoint(geom.Point{X: -5, Y: 0.5})
	assert.ErrorIs(t, err, grid.ErrNotFound)
}

func TestMaskConsistency(t *testing.T) {
	polygons := rowPolygons(6)
	polygons[1] = nil
	polygons[4] = nil
	c := newListConvention(cellDataset(t, 6), polygons)

	mask, err := c.Mask()
	require.NoError(t, err)
	got, err := c.Polygons()
	require.NoError(t, err)
	require.Len(t, mask, len(got))
	for i := range mask {
		assert.Equal(t, got[i] != nil, mask[i], "cell %d", i)
	}

	index, err := c.SpatialIndex()
	require.NoError(t, err)
	assert.Equal(t, 4, index.Len())
	for _, item := range index.Items() {
		assert.NotContains(t, []int{1, 4}, item.LinearIndex)
	}

	// A point inside a cell without geometry is a miss.
	_, err = c.IndexForPoint(geom.Point{X: 1.5, Y: 0.5})
	assert.ErrorIs(t, err, grid.ErrNotFound)
}

func TestDerivedStateIsMemoised(t *testing.T) {
	c := newListConvention(cellDataset(t, 4), rowPolygons(4))
	for i := 0; i < 3; i++ {
		_, err := c.Polygons()
		require.NoError(t, err)
		_, err = c.Mask()
		require.NoError(t, err)
	}
	first, err := c.SpatialIndex()
	require.NoError(t, err)
	second, err := c.SpatialIndex()
	require.NoError(t, err)

	assert.Equal(t, 1, c.builds)
	assert.Same(t, first, second)
}

func TestSelectIndex(t *testing.T) {
	c := newListConvention(cellDataset(t, 4), rowPolygons(4))

	out, err := c.SelectIndex(cellIndex{I: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"temp"}, out.Names())

	temp, ok := out.Variable("temp")
	require.True(t, ok)
	assert.Equal(t, []string{"time"}, temp.Dims)
	assert.Equal(t, []float64{2, 6}, temp.Data.Elements)

	_, err = c.SelectIndex(cellIndex{I: 9})
	var invalid *grid.ErrInvalidIndex
	assert.ErrorAs(t, err, &invalid)
}

func TestSelectPoint(t *testing.T) {
	c := newListConvention(cellDataset(t, 4), rowPolygons(4))
	out, err := c.SelectPoint(geom.Point{X: 1.5, Y: 0.5})
	require.NoError(t, err)
	temp, _ := out.Variable("temp")
	assert.Equal(t, []float64{1, 5}, temp.Data.Elements)
}

func TestGridKindAndSize(t *testing.T) {
	ds := cellDataset(t, 4)
	c := newListConvention(ds, rowPolygons(4))

	temp, _ := ds.Variable("temp")
	kind, size, err := c.GridKindAndSize(temp)
	require.NoError(t, err)
	assert.Equal(t, grid.Face, kind)
	assert.Equal(t, 4, size)

	flux, _ := ds.Variable("flux")
	_, _, err = c.GridKindAndSize(flux)
	var notIndexable *grid.ErrNotIndexable
	require.ErrorAs(t, err, &notIndexable)
	assert.Equal(t, "flux", notIndexable.Variable)

	_, err = c.MakeLinear(flux)
	assert.ErrorAs(t, err, &notIndexable)

	flat, err := c.MakeLinear(temp)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", grid.LinearDim}, flat.Dims)
	assert.Equal(t, []int{2, 4}, flat.Shape())
}

func TestBind(t *testing.T) {
	ds := cellDataset(t, 4)
	c := newListConvention(ds, rowPolygons(4))
	require.NoError(t, c.Bind())

	bound, ok := grid.Bound(ds)
	require.True(t, ok)
	assert.Same(t, c, bound)

	other := newListConvention(ds, rowPolygons(4))
	err := other.Bind()
	assert.True(t, errors.Is(err, grid.ErrAlreadyBound))
}

func TestClipUsesScratchDir(t *testing.T) {
	ds := cellDataset(t, 8)
	c := newListConvention(ds, rowPolygons(8))
	scratch := t.TempDir()

	clip := square(2.2, 0.2, 2.8, 0.8)
	out, err := c.Clip(clip, scratch, 1)
	require.NoError(t, err)

	size, ok := out.DimSize("cell")
	require.True(t, ok)
	assert.Equal(t, 3, size)
	temp, _ := out.Variable("temp")
	assert.Equal(t, []float64{1, 2, 3, 9, 10, 11}, temp.Data.Elements)

	flux, ok := out.Variable("flux")
	require.True(t, ok)
	assert.Equal(t, []string{"edge"}, flux.Dims)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	// The input is untouched.
	n, _ := ds.DimSize("cell")
	assert.Equal(t, 8, n)
}

func TestClipIdempotence(t *testing.T) {
	a := newListConvention(cellDataset(t, 8), rowPolygons(8))
	b := newListConvention(cellDataset(t, 8), rowPolygons(8))
	clip := square(4.5, -1, 6.5, 2)

	ma, err := a.MakeClipMask(clip, 0)
	require.NoError(t, err)
	mb, err := b.MakeClipMask(clip, 0)
	require.NoError(t, err)
	assert.True(t, ma.Equal(mb))

	retained, err := ma.Retained(grid.Face)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, grid.Ints(retained))
}

func TestClipMaskBufferGrowth(t *testing.T) {
	c := newListConvention(cellDataset(t, 10), rowPolygons(10))
	clip := square(4.2, 0.2, 4.8, 0.8)

	m0, err := c.MakeClipMask(clip, 0)
	require.NoError(t, err)
	m1, err := c.MakeClipMask(clip, 1)
	require.NoError(t, err)

	r0, _ := m0.Retained(grid.Face)
	r1, _ := m1.Retained(grid.Face)
	assert.Equal(t, []int{4}, grid.Ints(r0))
	assert.Equal(t, []int{3, 4, 5}, grid.Ints(r1))
}

func TestClipMaskSaveLoad(t *testing.T) {
	c := newListConvention(cellDataset(t, 6), rowPolygons(6))
	mask, err := c.MakeClipMask(square(0.5, -1, 2.5, 2), 0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mask.nc")
	require.NoError(t, mask.Save(path))
	loaded, err := grid.LoadClipMask(path)
	require.NoError(t, err)

	assert.True(t, mask.Equal(loaded))
	assert.Equal(t, "list mask", loaded.Type())
	assert.Equal(t, []grid.GridKind{grid.Face}, loaded.Kinds())

	// A saved mask applies without the clip geometry.
	out, err := c.ApplyClipMask(loaded, t.TempDir())
	require.NoError(t, err)
	n, _ := out.DimSize("cell")
	assert.Equal(t, 3, n)
}

// gridPolygons returns side x side unit squares, row by row from the
// origin, so cell j*side+i spans [i, i+1] x [j, j+1].
func gridPolygons(side int) []geom.Polygon {
	polygons := make([]geom.Polygon, 0, side*side)
	for j := 0; j < side; j++ {
		for i := 0; i < side; i++ {
			polygons = append(polygons, square(float64(i), float64(j), float64(i+1), float64(j+1)))
		}
	}
	return polygons
}

func TestIntersectingCellsByGeometry(t *testing.T) {
	c := newListConvention(cellDataset(t, 25), gridPolygons(5))
	all := make([]int, 25)
	for i := range all {
		all[i] = i
	}

	tests := []struct {
		name string
		g    geom.Geom
		want []int
	}{
		{"polygon covering every cell", square(-1, -1, 6, 6), all},
		{"polygon with no vertex in any cell", geom.Polygon{{
			{X: 2.5, Y: -0.1}, {X: 5.1, Y: 2.5}, {X: 2.5, Y: 5.1}, {X: -0.1, Y: 2.5}, {X: 2.5, Y: -0.1},
		}}, []int{1, 2, 3, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 21, 22, 23}},
		{"line across a row", geom.LineString{{X: -1, Y: 2.5}, {X: 6, Y: 2.5}}, []int{10, 11, 12, 13, 14}},
		{"diagonal line", geom.LineString{{X: 0.5, Y: 0.5}, {X: 4.5, Y: 4.5}}, []int{0, 1, 5, 6, 7, 11, 12, 13, 17, 18, 19, 23, 24}},
		{"multipoint", geom.MultiPoint{{X: 0.5, Y: 0.5}, {X: 4.5, Y: 4.5}, {X: 9, Y: 9}}, []int{0, 24}},
		{"overlapping multipolygon", geom.MultiPolygon{square(-1, -1, 6, 6), square(-2, -2, 7, 7)}, all},
		{"empty multipolygon", geom.MultiPolygon{}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells, err := c.IntersectingCells(tt.g)
			require.NoError(t, err)
			assert.Equal(t, tt.want, grid.Ints(cells))
		})
	}
}

func TestIntersectingCellsRejectsUnknownGeometry(t *testing.T) {
	c := newListConvention(cellDataset(t, 4), rowPolygons(4))
	_, err := c.IntersectingCells(nil)
	assert.ErrorIs(t, err, grid.ErrUnsupportedGeometry)

	_, err = c.MakeClipMask(nil, 0)
	assert.ErrorIs(t, err, grid.ErrUnsupportedGeometry)
}

func TestIndexForPointOnSharedBoundary(t *testing.T) {
	c := newListConvention(cellDataset(t, 25), gridPolygons(5))

	tests := []struct {
		name string
		p    geom.Point
		want int
	}{
		{"interior", geom.Point{X: 3.5, Y: 1.5}, 8},
		{"edge between two cells", geom.Point{X: 2, Y: 2.5}, 11},
		{"edge between rows", geom.Point{X: 3.5, Y: 3}, 13},
		{"vertex of four cells", geom.Point{X: 2, Y: 2}, 6},
		{"outer corner", geom.Point{X: 5, Y: 5}, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := c.IndexForPoint(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, item.LinearIndex)
		})
	}
}

func TestFaceCentres(t *testing.T) {
	polygons := rowPolygons(4)
	polygons[2] = nil
	c := newListConvention(cellDataset(t, 4), polygons)

	centres, err := c.FaceCentres()
	require.NoError(t, err)
	require.Len(t, centres, 4)
	assert.InDelta(t, 0.5, centres[0].X, 1e-9)
	assert.InDelta(t, 0.5, centres[0].Y, 1e-9)
	assert.InDelta(t, 3.5, centres[3].X, 1e-9)
	assert.True(t, math.IsNaN(centres[2].X))
	assert.True(t, math.IsNaN(centres[2].Y))
}

func TestClipCopiesUngriddedVariables(t *testing.T) {
	ds := cellDataset(t, 8)
	c := newListConvention(ds, rowPolygons(8))

	out, err := c.Clip(square(2.2, 0.2, 2.8, 0.8), "", 0)
	require.NoError(t, err)
	flux, _ := out.Variable("flux")
	flux.Data.Elements[0] = 42
	flux.Attrs["units"] = "m3 s-1"
	timeVar, _ := out.Variable("time")
	timeVar.Data.Elements[1] = 42

	original, _ := ds.Variable("flux")
	assert.Equal(t, 0.0, original.Data.Elements[0])
	assert.NotContains(t, original.Attrs, "units")
	originalTime, _ := ds.Variable("time")
	assert.Equal(t, 1.0, originalTime.Data.Elements[1])
}
