// Package cfgrid implements the CF grid convention: a rectangular or
// curvilinear grid whose cells are located by latitude and longitude
// coordinates, either one dimensional (lat(y), lon(x)) or two dimensional
// (lat(y, x), lon(y, x)).
//
// Cell bounds are read from the variables named by the coordinates'
// bounds attribute, or derived from the cell centres when absent.
package cfgrid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// Name identifies the convention.
const Name = "CFGrid"

// Index addresses one cell by row and column.
type Index struct {
	Y, X int
}

// GridKind implements grid.Index.
func (Index) GridKind() grid.GridKind { return grid.Face }

// Coordinates implements grid.Index.
func (i Index) Coordinates() []int { return []int{i.Y, i.X} }

// Grid is a CF grid bound to a dataset.
type Grid struct {
	*grid.Base
	topology *Topology
	ny, nx   int
}

// New inspects ds and returns the CF grid it describes.
func New(ds *dataset.Dataset, opts ...grid.Option) (*Grid, error) {
	topology, err := DetectTopology(ds)
	if err != nil {
		return nil, err
	}
	g := &Grid{topology: topology}
	g.ny, _ = ds.DimSize(topology.YDim)
	g.nx, _ = ds.DimSize(topology.XDim)
	g.Base = grid.NewBase(ds, g, opts...)
	return g, nil
}

// Topology returns the coordinate layout of the grid.
func (g *Grid) Topology() *Topology { return g.topology }

func (g *Grid) Name() string                  { return Name }
func (g *Grid) GridKinds() []grid.GridKind    { return []grid.GridKind{grid.Face} }
func (g *Grid) DefaultGridKind() grid.GridKind { return grid.Face }

func (g *Grid) GridDimensions(kind grid.GridKind) []string {
	if kind != grid.Face {
		return nil
	}
	return []string{g.topology.YDim, g.topology.XDim}
}

func (g *Grid) shape() []int { return []int{g.ny, g.nx} }

func (g *Grid) RavelIndex(index grid.Index) (int, error) {
	ix, ok := index.(Index)
	if !ok {
		return 0, grid.InvalidIndex(index, "not a CF grid index")
	}
	linear, ok := grid.Ravel(ix.Coordinates(), g.shape())
	if !ok {
		return 0, grid.InvalidIndex(index, fmt.Sprintf("outside %d x %d grid", g.ny, g.nx))
	}
	return linear, nil
}

func (g *Grid) UnravelIndex(linear int, kind grid.GridKind) (grid.Index, error) {
	if kind != "" && kind != grid.Face {
		return nil, grid.UnknownKind(kind)
	}
	coords, ok := grid.Unravel(linear, g.shape())
	if !ok {
		return nil, grid.InvalidLinear(linear, grid.Face, g.ny*g.nx)
	}
	return Index{Y: coords[0], X: coords[1]}, nil
}

// BuildPolygons returns one quadrilateral per cell in row-major order.
func (g *Grid) BuildPolygons() ([]geom.Polygon, error) {
	if g.topology.LatitudeBounds != "" {
		return g.polygonsFromBounds()
	}
	if g.topology.TwoD {
		return g.polygonsFromCentres2D()
	}
	return g.polygonsFromCentres1D()
}

func (g *Grid) variable(name string) (*dataset.Variable, error) {
	v, ok := g.Dataset().Variable(name)
	if !ok {
		return nil, &grid.ErrConfiguration{Convention: Name, Reason: "missing variable " + name}
	}
	return v, nil
}

func (g *Grid) polygonsFromBounds() ([]geom.Polygon, error) {
	latB, err := g.variable(g.topology.LatitudeBounds)
	if err != nil {
		return nil, err
	}
	lonB, err := g.variable(g.topology.LongitudeBounds)
	if err != nil {
		return nil, err
	}

	polygons := make([]geom.Polygon, g.ny*g.nx)
	for j := 0; j < g.ny; j++ {
		for i := 0; i < g.nx; i++ {
			var vertices []geom.Point
			if g.topology.TwoD {
				vertices = make([]geom.Point, 4)
				for k := range vertices {
					vertices[k] = geom.Point{X: lonB.At(j, i, k), Y: latB.At(j, i, k)}
				}
			} else {
				x0, x1 := lonB.At(i, 0), lonB.At(i, 1)
				y0, y1 := latB.At(j, 0), latB.At(j, 1)
				vertices = []geom.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
			}
			polygons[j*g.nx+i] = grid.PolygonFromVertices(vertices)
		}
	}
	return polygons, nil
}

func (g *Grid) polygonsFromCentres1D() ([]geom.Polygon, error) {
	lat, err := g.variable(g.topology.Latitude)
	if err != nil {
		return nil, err
	}
	lon, err := g.variable(g.topology.Longitude)
	if err != nil {
		return nil, err
	}
	latEdges, err := edges(lat.Data.Elements)
	if err != nil {
		return nil, &grid.ErrConfiguration{Convention: Name, Reason: "latitude bounds", Err: err}
	}
	lonEdges, err := edges(lon.Data.Elements)
	if err != nil {
		return nil, &grid.ErrConfiguration{Convention: Name, Reason: "longitude bounds", Err: err}
	}

	polygons := make([]geom.Polygon, g.ny*g.nx)
	for j := 0; j < g.ny; j++ {
		for i := 0; i < g.nx; i++ {
			if math.IsNaN(lat.Data.Elements[j]) || math.IsNaN(lon.Data.Elements[i]) {
				continue
			}
			y0, y1 := latEdges[j], latEdges[j+1]
			x0, x1 := lonEdges[i], lonEdges[i+1]
			polygons[j*g.nx+i] = grid.PolygonFromVertices([]geom.Point{
				{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
			})
		}
	}
	return polygons, nil
}

func (g *Grid) polygonsFromCentres2D() ([]geom.Polygon, error) {
	lat, err := g.variable(g.topology.Latitude)
	if err != nil {
		return nil, err
	}
	lon, err := g.variable(g.topology.Longitude)
	if err != nil {
		return nil, err
	}
	latC := corners(lat.Data.Elements, g.ny, g.nx)
	lonC := corners(lon.Data.Elements, g.ny, g.nx)

	stride := g.nx + 1
	polygons := make([]geom.Polygon, g.ny*g.nx)
	for j := 0; j < g.ny; j++ {
		for i := 0; i < g.nx; i++ {
			c := j*g.nx + i
			if math.IsNaN(lat.Data.Elements[c]) || math.IsNaN(lon.Data.Elements[c]) {
				continue
			}
			corner := func(cj, ci int) geom.Point {
				return geom.Point{X: lonC[cj*stride+ci], Y: latC[cj*stride+ci]}
			}
			polygons[c] = grid.PolygonFromVertices([]geom.Point{
				corner(j, i), corner(j, i+1), corner(j+1, i+1), corner(j+1, i),
			})
		}
	}
	return polygons, nil
}

// DropGeometry removes the coordinate and bounds variables and the
// Conventions attribute.
func (g *Grid) DropGeometry() (*dataset.Dataset, error) {
	out := g.Dataset().DropVars(g.topology.GeometryVariables()...)
	delete(out.Attrs, "Conventions")
	return out, nil
}

// MakeClipMask marks every cell intersecting clip, grown by buffer rings of
// neighbouring cells.
func (g *Grid) MakeClipMask(clip geom.Geom, buffer int) (*grid.ClipMask, error) {
	cells, err := g.IntersectingCells(clip)
	if err != nil {
		return nil, err
	}
	intersecting := cells.GetCardinality()
	if buffer > 0 {
		cells = grid.Buffer(cells, buffer, grid.GridNeighbours(g.ny, g.nx))
	}
	g.Logger().LogClipMask(intersecting, cells.GetCardinality(), buffer)

	mask := grid.NewClipMask(Name)
	if err := mask.Set(grid.Face, g.GridDimensions(grid.Face), g.shape(), cells); err != nil {
		return nil, err
	}
	return mask, nil
}

// ApplyClipMask trims the dataset to the bounding box of the retained
// cells and fills data outside the mask with NaN.
func (g *Grid) ApplyClipMask(mask *grid.ClipMask, scratchDir string) (*dataset.Dataset, error) {
	return grid.ApplyGridMask(g.Dataset(), mask, scratchDir, grid.ApplyOptions{
		Geometry: g.topology.GeometryVariables(),
		Logger:   g.Logger(),
	})
}

// Detector recognises CF grid datasets.
type Detector struct{}

func (Detector) Name() string { return Name }

// CheckDataset matches any dataset with latitude and longitude
// coordinates. Other conventions describe such datasets more precisely,
// so the match is weak.
func (Detector) CheckDataset(ds *dataset.Dataset) (grid.Specificity, bool) {
	if _, err := DetectTopology(ds); err != nil {
		return 0, false
	}
	return grid.Low, true
}

func (Detector) Open(ds *dataset.Dataset, opts ...grid.Option) (grid.Convention, error) {
	g, err := New(ds, opts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}
