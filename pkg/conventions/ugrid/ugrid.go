// Package ugrid implements the UGRID convention for two dimensional
// unstructured meshes.
//
// A mesh is a set of nodes joined into polygonal faces, optionally with
// the edges between them. Every grid is one dimensional: data variables
// are defined over the node, edge or face dimension named by the mesh
// topology variable.
//
// Clipping keeps exactly the retained faces together with their nodes and
// edges, then renumbers the connectivity variables to the new element
// positions. Data is copied one variable at a time through the scratch
// directory given to Clip or ApplyClipMask.
package ugrid

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// Name identifies the convention.
const Name = "UGRID"

// Index addresses one node, edge or face.
type Index struct {
	Kind grid.GridKind
	I    int
}

// GridKind implements grid.Index.
func (i Index) GridKind() grid.GridKind { return i.Kind }

// Coordinates implements grid.Index.
func (i Index) Coordinates() []int { return []int{i.I} }

// Mesh is a UGRID mesh bound to a dataset.
type Mesh struct {
	*grid.Base
	topology *Topology
	sizes    map[grid.GridKind]int
}

// New inspects ds and returns the mesh it describes.
func New(ds *dataset.Dataset, opts ...grid.Option) (*Mesh, error) {
	topology, err := DetectTopology(ds)
	if err != nil {
		return nil, err
	}
	m := &Mesh{topology: topology, sizes: make(map[grid.GridKind]int)}
	m.sizes[grid.Node], _ = ds.DimSize(topology.NodeDim)
	m.sizes[grid.Face] = topology.FaceNodes.Rows
	if topology.EdgeNodes != nil {
		m.sizes[grid.Edge] = topology.EdgeNodes.Rows
	}
	m.Base = grid.NewBase(ds, m, opts...)
	return m, nil
}

// Topology returns the mesh layout.
func (m *Mesh) Topology() *Topology { return m.topology }

func (m *Mesh) Name() string { return Name }

func (m *Mesh) GridKinds() []grid.GridKind {
	if m.topology.EdgeNodes != nil {
		return []grid.GridKind{grid.Face, grid.Edge, grid.Node}
	}
	return []grid.GridKind{grid.Face, grid.Node}
}

func (m *Mesh) DefaultGridKind() grid.GridKind { return grid.Face }

func (m *Mesh) dim(kind grid.GridKind) string {
	switch kind {
	case grid.Face:
		return m.topology.FaceDim
	case grid.Edge:
		return m.topology.EdgeDim
	case grid.Node:
		return m.topology.NodeDim
	}
	return ""
}

func (m *Mesh) GridDimensions(kind grid.GridKind) []string {
	if d := m.dim(kind); d != "" {
		return []string{d}
	}
	return nil
}

func (m *Mesh) RavelIndex(index grid.Index) (int, error) {
	ix, ok := index.(Index)
	if !ok {
		return 0, grid.InvalidIndex(index, "not a UGRID index")
	}
	size, ok := m.sizes[ix.Kind]
	if !ok {
		return 0, grid.UnknownKind(ix.Kind)
	}
	if ix.I < 0 || ix.I >= size {
		return 0, grid.InvalidLinear(ix.I, ix.Kind, size)
	}
	return ix.I, nil
}

func (m *Mesh) UnravelIndex(linear int, kind grid.GridKind) (grid.Index, error) {
	if kind == "" {
		kind = grid.Face
	}
	size, ok := m.sizes[kind]
	if !ok {
		return nil, grid.UnknownKind(kind)
	}
	if linear < 0 || linear >= size {
		return nil, grid.InvalidLinear(linear, kind, size)
	}
	return Index{Kind: kind, I: linear}, nil
}

// BuildPolygons returns one polygon per face, joining its nodes in
// connectivity order.
func (m *Mesh) BuildPolygons() ([]geom.Polygon, error) {
	ds := m.Dataset()
	x, _ := ds.Variable(m.topology.NodeX)
	y, _ := ds.Variable(m.topology.NodeY)
	faces := m.topology.FaceNodes

	polygons := make([]geom.Polygon, faces.Rows)
	for f := range polygons {
		row := faces.Row(f)
		vertices := make([]geom.Point, len(row))
		for k, n := range row {
			vertices[k] = geom.Point{X: x.Data.Elements[n], Y: y.Data.Elements[n]}
		}
		polygons[f] = grid.PolygonFromVertices(vertices)
	}
	return polygons, nil
}

// DropGeometry removes the mesh topology, node coordinates and
// connectivity variables.
func (m *Mesh) DropGeometry() (*dataset.Dataset, error) {
	ds := m.Dataset()
	out := ds.DropVars(m.topology.GeometryVariables(ds)...)
	delete(out.Attrs, "Conventions")
	return out, nil
}

// FaceNeighbours returns the neighbourhood of the mesh faces. Faces
// sharing at least one node are neighbours.
func (m *Mesh) FaceNeighbours() grid.Neighbours {
	faces := m.topology.FaceNodes
	nodeFaces := make([][]int, m.sizes[grid.Node])
	for f := 0; f < faces.Rows; f++ {
		for _, n := range faces.Row(f) {
			nodeFaces[n] = append(nodeFaces[n], f)
		}
	}
	return func(face int) []int {
		seen := roaring.New()
		for _, n := range faces.Row(face) {
			for _, other := range nodeFaces[n] {
				if other != face {
					seen.Add(uint32(other))
				}
			}
		}
		return grid.Ints(seen)
	}
}

// MakeClipMask marks the faces intersecting clip, grows them by buffer
// rings of node-sharing faces, and keeps the nodes and edges of every
// retained face.
func (m *Mesh) MakeClipMask(clip geom.Geom, buffer int) (*grid.ClipMask, error) {
	faces, err := m.IntersectingCells(clip)
	if err != nil {
		return nil, err
	}
	intersecting := faces.GetCardinality()
	if buffer > 0 {
		faces = grid.Buffer(faces, buffer, m.FaceNeighbours())
	}
	m.Logger().LogClipMask(intersecting, faces.GetCardinality(), buffer)

	faceNodes := m.topology.FaceNodes
	nodes := roaring.New()
	type pair struct{ a, b int }
	sides := make(map[pair]bool)
	it := faces.Iterator()
	for it.HasNext() {
		row := faceNodes.Row(int(it.Next()))
		for k, n := range row {
			nodes.Add(uint32(n))
			next := row[(k+1)%len(row)]
			sides[pair{min(n, next), max(n, next)}] = true
		}
	}

	mask := grid.NewClipMask(Name)
	if err := mask.Set(grid.Face, m.GridDimensions(grid.Face), []int{m.sizes[grid.Face]}, faces); err != nil {
		return nil, err
	}
	if edgeNodes := m.topology.EdgeNodes; edgeNodes != nil {
		edges := roaring.New()
		for e := 0; e < edgeNodes.Rows; e++ {
			row := edgeNodes.Row(e)
			if len(row) == 2 && sides[pair{min(row[0], row[1]), max(row[0], row[1])}] {
				edges.Add(uint32(e))
			}
		}
		if err := mask.Set(grid.Edge, m.GridDimensions(grid.Edge), []int{m.sizes[grid.Edge]}, edges); err != nil {
			return nil, err
		}
	}
	if err := mask.Set(grid.Node, m.GridDimensions(grid.Node), []int{m.sizes[grid.Node]}, nodes); err != nil {
		return nil, err
	}
	return mask, nil
}

// ApplyClipMask keeps exactly the retained elements of every grid and
// renumbers the connectivity variables to match.
func (m *Mesh) ApplyClipMask(mask *grid.ClipMask, scratchDir string) (*dataset.Dataset, error) {
	renumbered, err := m.renumber(mask)
	if err != nil {
		return nil, err
	}
	return grid.ApplyGridMask(renumbered, mask, scratchDir, grid.ApplyOptions{
		Geometry: m.topology.GeometryVariables(m.Dataset()),
		Logger:   m.Logger(),
	})
}

// renumber returns a dataset sharing the data of the bound dataset, with
// every connectivity variable rewritten so each entry refers to the
// position its element will have after clipping. Entries referring to
// dropped elements become the fill value.
func (m *Mesh) renumber(mask *grid.ClipMask) (*dataset.Dataset, error) {
	ds := m.Dataset()
	out := ds.Subset(func(*dataset.Variable) bool { return true })
	mesh, _ := ds.Variable(m.topology.Mesh)

	for _, c := range connectivities {
		name := mesh.Attrs.String(c.attr)
		if name == "" {
			continue
		}
		v, ok := ds.Variable(name)
		if !ok {
			continue
		}
		retained, err := mask.Retained(c.refersTo)
		if err != nil {
			// The mask does not cover the referenced grid; leave the
			// variable as it is.
			continue
		}

		start, _ := v.Attrs.Int("start_index")
		fill, hasFill := v.Attrs.Float("_FillValue")
		renumbered := v.Copy()
		if !hasFill {
			fill = -1
			renumbered.Attrs["_FillValue"] = -1
		}
		for i, e := range v.Data.Elements {
			if math.IsNaN(e) || (hasFill && e == fill) || int(e) < start {
				renumbered.Data.Elements[i] = fill
				continue
			}
			old := uint32(int(e) - start)
			if !retained.Contains(old) {
				renumbered.Data.Elements[i] = fill
				continue
			}
			renumbered.Data.Elements[i] = float64(int(retained.Rank(old)) - 1 + start)
		}
		if err := out.AddVariable(renumbered); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Detector recognises UGRID datasets.
type Detector struct{}

func (Detector) Name() string { return Name }

// CheckDataset matches datasets with a two dimensional mesh topology
// variable.
func (Detector) CheckDataset(ds *dataset.Dataset) (grid.Specificity, bool) {
	if _, ok := FindMesh(ds); !ok {
		return 0, false
	}
	return grid.High, true
}

func (Detector) Open(ds *dataset.Dataset, opts ...grid.Option) (grid.Convention, error) {
	m, err := New(ds, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}
