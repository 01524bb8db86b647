// Package arakawac implements the Arakawa C staggered grid convention.
//
// Four curvilinear grids share one model domain: cell centres (face),
// the left and back cell edges, and the cell corners (node). With ny x nx
// faces, the left grid is ny x (nx+1), the back grid (ny+1) x nx and the
// node grid (ny+1) x (nx+1). Face polygons are built from the node grid.
package arakawac

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// Name identifies the convention.
const Name = "ArakawaC"

var kinds = []grid.GridKind{grid.Face, grid.Left, grid.Back, grid.Node}

// Coordinates names the latitude and longitude variables of one grid.
type Coordinates struct {
	Latitude  string
	Longitude string
}

// CoordinateNames maps each grid kind to its coordinate variables.
type CoordinateNames map[grid.GridKind]Coordinates

// DefaultCoordinateNames are the names written by SHOC and other EMS
// models.
var DefaultCoordinateNames = CoordinateNames{
	grid.Face: {Latitude: "y_centre", Longitude: "x_centre"},
	grid.Left: {Latitude: "y_left", Longitude: "x_left"},
	grid.Back: {Latitude: "y_back", Longitude: "x_back"},
	grid.Node: {Latitude: "y_grid", Longitude: "x_grid"},
}

// Index addresses one element of one of the four grids.
type Index struct {
	Kind grid.GridKind
	J, I int
}

// GridKind implements grid.Index.
func (i Index) GridKind() grid.GridKind { return i.Kind }

// Coordinates implements grid.Index.
func (i Index) Coordinates() []int { return []int{i.J, i.I} }

type layout struct {
	dims  []string
	shape []int
}

// Grid is an Arakawa C grid bound to a dataset.
type Grid struct {
	*grid.Base
	names   CoordinateNames
	layouts map[grid.GridKind]layout
}

// New inspects ds using the given coordinate names, or
// DefaultCoordinateNames when names is nil.
func New(ds *dataset.Dataset, names CoordinateNames, opts ...grid.Option) (*Grid, error) {
	if names == nil {
		names = DefaultCoordinateNames
	}
	layouts := make(map[grid.GridKind]layout, len(kinds))
	for _, kind := range kinds {
		coords, ok := names[kind]
		if !ok {
			return nil, &grid.ErrConfiguration{Convention: Name, Reason: fmt.Sprintf("no coordinate names for %s grid", kind)}
		}
		lat, ok := ds.Variable(coords.Latitude)
		if !ok {
			return nil, &grid.ErrConfiguration{Convention: Name, Reason: "missing variable " + coords.Latitude}
		}
		lon, ok := ds.Variable(coords.Longitude)
		if !ok {
			return nil, &grid.ErrConfiguration{Convention: Name, Reason: "missing variable " + coords.Longitude}
		}
		if len(lat.Dims) != 2 || len(lon.Dims) != 2 || lat.Dims[0] != lon.Dims[0] || lat.Dims[1] != lon.Dims[1] {
			return nil, &grid.ErrConfiguration{
				Convention: Name,
				Reason:     fmt.Sprintf("%s grid coordinates must share two dimensions", kind),
			}
		}
		layouts[kind] = layout{
			dims:  append([]string(nil), lat.Dims...),
			shape: append([]int(nil), lat.Shape()...),
		}
	}

	face := layouts[grid.Face].shape
	want := map[grid.GridKind][]int{
		grid.Left: {face[0], face[1] + 1},
		grid.Back: {face[0] + 1, face[1]},
		grid.Node: {face[0] + 1, face[1] + 1},
	}
	for kind, shape := range want {
		got := layouts[kind].shape
		if got[0] != shape[0] || got[1] != shape[1] {
			return nil, &grid.ErrConfiguration{
				Convention: Name,
				Reason:     fmt.Sprintf("%s grid is %v, expected %v for %v faces", kind, got, shape, face),
			}
		}
	}

	g := &Grid{names: names, layouts: layouts}
	g.Base = grid.NewBase(ds, g, opts...)
	return g, nil
}

func (g *Grid) Name() string                  { return Name }
func (g *Grid) GridKinds() []grid.GridKind    { return append([]grid.GridKind(nil), kinds...) }
func (g *Grid) DefaultGridKind() grid.GridKind { return grid.Face }

func (g *Grid) GridDimensions(kind grid.GridKind) []string {
	l, ok := g.layouts[kind]
	if !ok {
		return nil
	}
	return l.dims
}

func (g *Grid) RavelIndex(index grid.Index) (int, error) {
	ix, ok := index.(Index)
	if !ok {
		return 0, grid.InvalidIndex(index, "not an Arakawa C index")
	}
	l, ok := g.layouts[ix.Kind]
	if !ok {
		return 0, grid.UnknownKind(ix.Kind)
	}
	linear, ok := grid.Ravel(ix.Coordinates(), l.shape)
	if !ok {
		return 0, grid.InvalidIndex(index, fmt.Sprintf("outside %v %s grid", l.shape, ix.Kind))
	}
	return linear, nil
}

func (g *Grid) UnravelIndex(linear int, kind grid.GridKind) (grid.Index, error) {
	if kind == "" {
		kind = grid.Face
	}
	l, ok := g.layouts[kind]
	if !ok {
		return nil, grid.UnknownKind(kind)
	}
	coords, ok := grid.Unravel(linear, l.shape)
	if !ok {
		return nil, grid.InvalidLinear(linear, kind, grid.Size(l.shape))
	}
	return Index{Kind: kind, J: coords[0], I: coords[1]}, nil
}

// BuildPolygons returns one polygon per face from its four corner nodes.
// A face with any missing corner has no polygon.
func (g *Grid) BuildPolygons() ([]geom.Polygon, error) {
	ds := g.Dataset()
	lat, _ := ds.Variable(g.names[grid.Node].Latitude)
	lon, _ := ds.Variable(g.names[grid.Node].Longitude)
	face := g.layouts[grid.Face].shape
	ny, nx := face[0], face[1]

	node := func(j, i int) geom.Point {
		return geom.Point{X: lon.At(j, i), Y: lat.At(j, i)}
	}
	polygons := make([]geom.Polygon, ny*nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			polygons[j*nx+i] = grid.PolygonFromVertices([]geom.Point{
				node(j, i), node(j, i+1), node(j+1, i+1), node(j+1, i),
			})
		}
	}
	return polygons, nil
}

func (g *Grid) geometryVariables() []string {
	var names []string
	for _, kind := range kinds {
		names = append(names, g.names[kind].Latitude, g.names[kind].Longitude)
	}
	return names
}

// DropGeometry removes the coordinates of all four grids.
func (g *Grid) DropGeometry() (*dataset.Dataset, error) {
	out := g.Dataset().DropVars(g.geometryVariables()...)
	delete(out.Attrs, "Conventions")
	return out, nil
}

// MakeClipMask marks the faces intersecting clip, grows them by buffer
// rings, and derives the edges and nodes bordering any retained face.
func (g *Grid) MakeClipMask(clip geom.Geom, buffer int) (*grid.ClipMask, error) {
	faces, err := g.IntersectingCells(clip)
	if err != nil {
		return nil, err
	}
	intersecting := faces.GetCardinality()
	shape := g.layouts[grid.Face].shape
	ny, nx := shape[0], shape[1]
	if buffer > 0 {
		faces = grid.Buffer(faces, buffer, grid.GridNeighbours(ny, nx))
	}
	g.Logger().LogClipMask(intersecting, faces.GetCardinality(), buffer)

	derived := map[grid.GridKind]*roaring.Bitmap{
		grid.Face: faces,
		grid.Left: grid.Smear(faces, ny, nx, 0, 1),
		grid.Back: grid.Smear(faces, ny, nx, 1, 0),
		grid.Node: grid.Smear(faces, ny, nx, 1, 1),
	}
	mask := grid.NewClipMask(Name)
	for _, kind := range kinds {
		l := g.layouts[kind]
		if err := mask.Set(kind, l.dims, l.shape, derived[kind]); err != nil {
			return nil, err
		}
	}
	return mask, nil
}

// ApplyClipMask trims every grid to the bounding box of its retained
// elements and fills data outside the mask with NaN.
func (g *Grid) ApplyClipMask(mask *grid.ClipMask, scratchDir string) (*dataset.Dataset, error) {
	return grid.ApplyGridMask(g.Dataset(), mask, scratchDir, grid.ApplyOptions{
		Geometry: g.geometryVariables(),
		Logger:   g.Logger(),
	})
}

// Detector recognises Arakawa C datasets by their coordinate names.
type Detector struct {
	// Names defaults to DefaultCoordinateNames.
	Names CoordinateNames
}

func (d Detector) Name() string { return Name }

// CheckDataset matches when every named coordinate variable exists.
func (d Detector) CheckDataset(ds *dataset.Dataset) (grid.Specificity, bool) {
	names := d.Names
	if names == nil {
		names = DefaultCoordinateNames
	}
	for _, kind := range kinds {
		coords, ok := names[kind]
		if !ok {
			return 0, false
		}
		for _, name := range []string{coords.Latitude, coords.Longitude} {
			if _, ok := ds.Variable(name); !ok {
				return 0, false
			}
		}
	}
	return grid.High, true
}

func (d Detector) Open(ds *dataset.Dataset, opts ...grid.Option) (grid.Convention, error) {
	g, err := New(ds, d.Names, opts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}
