package ugrid

import (
	"fmt"
	"math"

	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// Connectivity attributes of the mesh topology variable, with the grid
// kind each one's rows run along and the kind its values refer to.
var connectivities = []struct {
	attr     string
	rows     grid.GridKind
	refersTo grid.GridKind
}{
	{"face_node_connectivity", grid.Face, grid.Node},
	{"edge_node_connectivity", grid.Edge, grid.Node},
	{"face_edge_connectivity", grid.Face, grid.Edge},
	{"face_face_connectivity", grid.Face, grid.Face},
	{"edge_face_connectivity", grid.Edge, grid.Face},
}

// Topology describes a two dimensional unstructured mesh.
type Topology struct {
	// Mesh is the name of the dummy variable holding the topology
	// attributes.
	Mesh string
	// NodeX and NodeY are the node longitude and latitude variables.
	NodeX, NodeY string
	NodeDim      string
	FaceDim      string
	// EdgeDim is empty when the mesh does not describe its edges.
	EdgeDim string
	// FaceNodes has shape (faces, max nodes per face).
	FaceNodes *Connectivity
	// EdgeNodes has shape (edges, 2) and is nil without edges.
	EdgeNodes *Connectivity
}

// Connectivity is an index table read from a connectivity variable,
// normalised to zero based indices with -1 for missing entries.
type Connectivity struct {
	Name  string
	Rows  int
	Width int
	// Values is row-major, Rows x Width.
	Values []int
}

// Row returns the valid entries of row r.
func (c *Connectivity) Row(r int) []int {
	row := c.Values[r*c.Width : (r+1)*c.Width]
	out := make([]int, 0, len(row))
	for _, v := range row {
		if v >= 0 {
			out = append(out, v)
		}
	}
	return out
}

// FindMesh returns the name of the first variable with cf_role
// mesh_topology and topology_dimension 2.
func FindMesh(ds *dataset.Dataset) (string, bool) {
	for _, name := range ds.FindByAttr("cf_role", "mesh_topology") {
		v, _ := ds.Variable(name)
		if dim, ok := v.Attrs.Int("topology_dimension"); ok && dim != 2 {
			continue
		}
		return name, true
	}
	return "", false
}

func configErr(format string, args ...interface{}) error {
	return &grid.ErrConfiguration{Convention: Name, Reason: fmt.Sprintf(format, args...)}
}

// DetectTopology reads the mesh topology of ds.
func DetectTopology(ds *dataset.Dataset) (*Topology, error) {
	mesh, ok := FindMesh(ds)
	if !ok {
		return nil, configErr("no mesh_topology variable")
	}
	meshVar, _ := ds.Variable(mesh)
	t := &Topology{Mesh: mesh}

	coords := meshVar.Attrs.Fields("node_coordinates")
	if len(coords) != 2 {
		return nil, configErr("%s: node_coordinates must name two variables, got %q",
			mesh, meshVar.Attrs.String("node_coordinates"))
	}
	t.NodeX, t.NodeY = coords[0], coords[1]
	x, ok := ds.Variable(t.NodeX)
	if !ok {
		return nil, configErr("missing node coordinate %s", t.NodeX)
	}
	y, ok := ds.Variable(t.NodeY)
	if !ok {
		return nil, configErr("missing node coordinate %s", t.NodeY)
	}
	if len(x.Dims) != 1 || len(y.Dims) != 1 || x.Dims[0] != y.Dims[0] {
		return nil, configErr("node coordinates must share one dimension")
	}
	t.NodeDim = x.Dims[0]

	faceNodes, faceDim, err := readConnectivity(ds, meshVar, "face_node_connectivity", "face_dimension")
	if err != nil {
		return nil, err
	}
	if faceNodes == nil {
		return nil, configErr("%s has no face_node_connectivity", mesh)
	}
	t.FaceNodes, t.FaceDim = faceNodes, faceDim

	edgeNodes, edgeDim, err := readConnectivity(ds, meshVar, "edge_node_connectivity", "edge_dimension")
	if err != nil {
		return nil, err
	}
	if edgeNodes != nil {
		if edgeNodes.Width != 2 {
			return nil, configErr("%s must have two nodes per edge", edgeNodes.Name)
		}
		t.EdgeNodes, t.EdgeDim = edgeNodes, edgeDim
	}

	nodes, _ := ds.DimSize(t.NodeDim)
	for _, c := range []*Connectivity{t.FaceNodes, t.EdgeNodes} {
		if c == nil {
			continue
		}
		for _, v := range c.Values {
			if v >= nodes {
				return nil, configErr("%s refers to node %d of %d", c.Name, v, nodes)
			}
		}
	}
	return t, nil
}

// readConnectivity loads the connectivity variable named by attr on the
// mesh variable. The row dimension is named by dimAttr when present and
// otherwise assumed to be the first dimension.
func readConnectivity(ds *dataset.Dataset, mesh *dataset.Variable, attr, dimAttr string) (*Connectivity, string, error) {
	name := mesh.Attrs.String(attr)
	if name == "" {
		return nil, "", nil
	}
	v, ok := ds.Variable(name)
	if !ok {
		return nil, "", configErr("missing connectivity variable %s", name)
	}
	if len(v.Dims) != 2 {
		return nil, "", configErr("%s must have two dimensions", name)
	}
	rowDim := v.Dims[0]
	if d := mesh.Attrs.String(dimAttr); d != "" {
		rowDim = d
	}
	if v.Dims[1] == rowDim {
		var err error
		if v, err = v.Transpose([]string{v.Dims[1], v.Dims[0]}); err != nil {
			return nil, "", err
		}
	} else if v.Dims[0] != rowDim {
		return nil, "", configErr("%s is not defined over %s", name, rowDim)
	}

	start, _ := v.Attrs.Int("start_index")
	fill, hasFill := v.Attrs.Float("_FillValue")
	shape := v.Shape()
	c := &Connectivity{Name: name, Rows: shape[0], Width: shape[1], Values: make([]int, len(v.Data.Elements))}
	for i, e := range v.Data.Elements {
		switch {
		case math.IsNaN(e), hasFill && e == fill, int(e) < start:
			c.Values[i] = -1
		default:
			c.Values[i] = int(e) - start
		}
	}
	return c, rowDim, nil
}

// GeometryVariables lists the variables describing the mesh.
func (t *Topology) GeometryVariables(ds *dataset.Dataset) []string {
	names := []string{t.Mesh, t.NodeX, t.NodeY}
	mesh, ok := ds.Variable(t.Mesh)
	if !ok {
		return names
	}
	for _, c := range connectivities {
		if name := mesh.Attrs.String(c.attr); name != "" {
			names = append(names, name)
		}
	}
	for _, attr := range []string{"face_coordinates", "edge_coordinates"} {
		names = append(names, mesh.Attrs.Fields(attr)...)
	}
	return names
}
