package cfgrid

import (
	"fmt"
	"math"

	"github.com/Lachlan00/emsarray/pkg/dataset"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

var (
	latitudeUnits  = []string{"degrees_north", "degree_north", "degree_N", "degrees_N", "degreeN", "degreesN"}
	longitudeUnits = []string{"degrees_east", "degree_east", "degree_E", "degrees_E", "degreeE", "degreesE"}
)

// Topology names the coordinate variables of a CF grid.
type Topology struct {
	Latitude  string
	Longitude string
	// YDim and XDim are the grid dimensions, in index order.
	YDim string
	XDim string
	// TwoD is true when the coordinates are defined over (y, x) rather
	// than one dimension each.
	TwoD bool
	// LatitudeBounds and LongitudeBounds name the cell bounds variables.
	// They are empty when bounds are synthesised from the cell centres.
	LatitudeBounds  string
	LongitudeBounds string
}

func isCoordinate(v *dataset.Variable, standardName, coordinateType string, units []string) bool {
	if v.Attrs.String("standard_name") == standardName || v.Attrs.String("coordinate_type") == coordinateType {
		return true
	}
	u := v.Attrs.String("units")
	for _, want := range units {
		if u == want {
			return true
		}
	}
	return false
}

func findCoordinate(ds *dataset.Dataset, standardName, coordinateType string, units []string) (*dataset.Variable, bool) {
	for _, v := range ds.Variables() {
		if len(v.Dims) == 0 || len(v.Dims) > 2 {
			continue
		}
		if isCoordinate(v, standardName, coordinateType, units) {
			return v, true
		}
	}
	return nil, false
}

// DetectTopology finds the latitude and longitude coordinates of ds.
func DetectTopology(ds *dataset.Dataset) (*Topology, error) {
	lat, ok := findCoordinate(ds, "latitude", "latitude", latitudeUnits)
	if !ok {
		return nil, &grid.ErrConfiguration{Convention: Name, Reason: "no latitude coordinate"}
	}
	lon, ok := findCoordinate(ds, "longitude", "longitude", longitudeUnits)
	if !ok {
		return nil, &grid.ErrConfiguration{Convention: Name, Reason: "no longitude coordinate"}
	}

	t := &Topology{Latitude: lat.Name, Longitude: lon.Name}
	switch {
	case len(lat.Dims) == 1 && len(lon.Dims) == 1 && lat.Dims[0] != lon.Dims[0]:
		t.YDim, t.XDim = lat.Dims[0], lon.Dims[0]
	case len(lat.Dims) == 2 && len(lon.Dims) == 2 && lat.Dims[0] == lon.Dims[0] && lat.Dims[1] == lon.Dims[1]:
		t.YDim, t.XDim = lat.Dims[0], lat.Dims[1]
		t.TwoD = true
	default:
		return nil, &grid.ErrConfiguration{
			Convention: Name,
			Reason: fmt.Sprintf("coordinates %s%v and %s%v do not describe a grid",
				lat.Name, lat.Dims, lon.Name, lon.Dims),
		}
	}

	t.LatitudeBounds = boundsVariable(ds, lat, t)
	t.LongitudeBounds = boundsVariable(ds, lon, t)
	if t.LatitudeBounds == "" || t.LongitudeBounds == "" {
		t.LatitudeBounds, t.LongitudeBounds = "", ""
	}
	return t, nil
}

// boundsVariable returns the bounds variable named by the bounds attribute
// of coord when it has the expected shape.
func boundsVariable(ds *dataset.Dataset, coord *dataset.Variable, t *Topology) string {
	name := coord.Attrs.String("bounds")
	if name == "" {
		return ""
	}
	b, ok := ds.Variable(name)
	if !ok {
		return ""
	}
	shape := b.Shape()
	if !t.TwoD && len(shape) == 2 && shape[1] == 2 && b.Dims[0] == coord.Dims[0] {
		return name
	}
	if t.TwoD && len(shape) == 3 && shape[2] == 4 && b.Dims[0] == t.YDim && b.Dims[1] == t.XDim {
		return name
	}
	return ""
}

// GeometryVariables lists the variables describing the grid geometry.
func (t *Topology) GeometryVariables() []string {
	names := []string{t.Latitude, t.Longitude}
	if t.LatitudeBounds != "" {
		names = append(names, t.LatitudeBounds, t.LongitudeBounds)
	}
	return names
}

// edges returns the n+1 cell edges around n cell centres. The outermost
// edges are extrapolated by half a cell.
func edges(centres []float64) ([]float64, error) {
	n := len(centres)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 cell centres to derive bounds, got %d", n)
	}
	out := make([]float64, n+1)
	for k := 1; k < n; k++ {
		out[k] = (centres[k-1] + centres[k]) / 2
	}
	out[0] = centres[0] - (centres[1]-centres[0])/2
	out[n] = centres[n-1] + (centres[n-1]-centres[n-2])/2
	return out, nil
}

// corners returns the (ny+1) x (nx+1) cell corners of a curvilinear grid.
// Each corner is the mean of the finite cell centres that touch it.
func corners(centres []float64, ny, nx int) []float64 {
	out := make([]float64, (ny+1)*(nx+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			sum, count := 0.0, 0
			for _, cj := range []int{j - 1, j} {
				for _, ci := range []int{i - 1, i} {
					if cj < 0 || cj >= ny || ci < 0 || ci >= nx {
						continue
					}
					if c := centres[cj*nx+ci]; !math.IsNaN(c) {
						sum += c
						count++
					}
				}
			}
			if count == 0 {
				out[j*(nx+1)+i] = math.NaN()
			} else {
				out[j*(nx+1)+i] = sum / float64(count)
			}
		}
	}
	return out
}
