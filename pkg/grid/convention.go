package grid

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/dataset"
)

// LinearDim is the dimension name MakeLinear gives the collapsed axis.
const LinearDim = "index"

// Implementation is the part of a convention that depends on its grid
// layout. Concrete conventions implement it and embed a *Base, which
// supplies the rest of Convention on top of these methods.
type Implementation interface {
	// Name identifies the convention in logs and clip masks.
	Name() string
	// GridKinds lists every grid kind, in a fixed order.
	GridKinds() []GridKind
	// DefaultGridKind is the kind polygons are defined on.
	DefaultGridKind() GridKind
	// GridDimensions returns the dataset dimensions that span kind, in
	// the order RavelIndex and UnravelIndex use them.
	GridDimensions(kind GridKind) []string
	RavelIndex(index Index) (int, error)
	// UnravelIndex converts linear into a native index of kind. An empty
	// kind means the default grid kind.
	UnravelIndex(linear int, kind GridKind) (Index, error)
	// BuildPolygons computes one polygon per default grid kind element.
	// Base memoises the result.
	BuildPolygons() ([]geom.Polygon, error)
	// DropGeometry returns a copy of the dataset without the variables
	// and attributes that describe grid geometry.
	DropGeometry() (*dataset.Dataset, error)
	MakeClipMask(clip geom.Geom, buffer int) (*ClipMask, error)
	ApplyClipMask(mask *ClipMask, scratchDir string) (*dataset.Dataset, error)
}

// Convention is the full contract every grid convention offers.
type Convention interface {
	Implementation

	Dataset() *dataset.Dataset
	Logger() *Logger
	GridSize(kind GridKind) (int, error)
	GridKindAndSize(v *dataset.Variable) (GridKind, int, error)
	MakeLinear(v *dataset.Variable) (*dataset.Variable, error)
	SelectorForIndex(index Index) (map[string]int, error)
	Polygons() ([]geom.Polygon, error)
	Mask() ([]bool, error)
	FaceCentres() ([]geom.Point, error)
	SpatialIndex() (*SpatialIndex, error)
	IndexForPoint(p geom.Point) (*Item, error)
	IntersectingCells(g geom.Geom) (*roaring.Bitmap, error)
	SelectIndex(index Index) (*dataset.Dataset, error)
	SelectPoint(p geom.Point) (*dataset.Dataset, error)
	Clip(clip geom.Geom, scratchDir string, buffer int) (*dataset.Dataset, error)
	Bind() error

	base() *Base
}

// Option configures a convention.
type Option func(*Base)

// WithLogger sets the logger a convention reports through.
func WithLogger(l *Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l
		}
	}
}

// Base holds the dataset and the lazily derived state shared by every
// convention: the polygon array, the mask and the spatial index. Each is
// computed once, on first use, and kept for the life of the convention.
type Base struct {
	ds     *dataset.Dataset
	impl   Implementation
	logger *Logger

	polygonsOnce sync.Once
	polygons     []geom.Polygon
	polygonsErr  error

	maskOnce sync.Once
	mask     []bool

	centresOnce sync.Once
	centres     []geom.Point

	indexOnce sync.Once
	index     *SpatialIndex
	indexErr  error
}

// NewBase returns the shared state for impl over ds. It is called from
// the constructor of a concrete convention, which passes itself as impl.
func NewBase(ds *dataset.Dataset, impl Implementation, opts ...Option) *Base {
	b := &Base{ds: ds, impl: impl, logger: NoopLogger()}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithConvention(impl.Name())
	return b
}

func (b *Base) base() *Base { return b }

// Dataset returns the dataset the convention describes.
func (b *Base) Dataset() *dataset.Dataset { return b.ds }

// Logger returns the convention logger.
func (b *Base) Logger() *Logger { return b.logger }

// GridSize returns the number of elements of kind.
func (b *Base) GridSize(kind GridKind) (int, error) {
	dims := b.impl.GridDimensions(kind)
	if dims == nil {
		return 0, UnknownKind(kind)
	}
	n := 1
	for _, dim := range dims {
		size, ok := b.ds.DimSize(dim)
		if !ok {
			return 0, &ErrConfiguration{
				Convention: b.impl.Name(),
				Reason:     fmt.Sprintf("dimension %q of %s grid is missing", dim, kind),
			}
		}
		n *= size
	}
	return n, nil
}

// GridKindAndSize reports which grid kind v is defined on and how many
// elements that grid has. The first kind, in GridKinds order, whose
// dimensions all appear on v wins.
func (b *Base) GridKindAndSize(v *dataset.Variable) (GridKind, int, error) {
	for _, kind := range b.impl.GridKinds() {
		dims := b.impl.GridDimensions(kind)
		if len(dims) == 0 || !hasAllDims(v, dims) {
			continue
		}
		size, err := b.GridSize(kind)
		if err != nil {
			return "", 0, err
		}
		return kind, size, nil
	}
	return "", 0, &ErrNotIndexable{Variable: v.Name, Dims: v.Dims}
}

func hasAllDims(v *dataset.Variable, dims []string) bool {
	for _, dim := range dims {
		if !v.HasDim(dim) {
			return false
		}
	}
	return true
}

// MakeLinear collapses the grid dimensions of v into one trailing
// dimension named LinearDim. Every other dimension is preserved.
func (b *Base) MakeLinear(v *dataset.Variable) (*dataset.Variable, error) {
	kind, _, err := b.GridKindAndSize(v)
	if err != nil {
		return nil, err
	}
	return v.Linearise(b.impl.GridDimensions(kind), LinearDim)
}

// SelectorForIndex maps the grid dimensions of the index kind to its
// coordinates.
func (b *Base) SelectorForIndex(index Index) (map[string]int, error) {
	if _, err := b.impl.RavelIndex(index); err != nil {
		return nil, err
	}
	dims := b.impl.GridDimensions(index.GridKind())
	coords := index.Coordinates()
	if len(dims) != len(coords) {
		return nil, InvalidIndex(index, fmt.Sprintf("expected %d coordinates", len(dims)))
	}
	sel := make(map[string]int, len(dims))
	for i, dim := range dims {
		sel[dim] = coords[i]
	}
	return sel, nil
}

// Polygons returns one polygon per element of the default grid kind,
// indexed by linear index. Elements without valid geometry are nil.
func (b *Base) Polygons() ([]geom.Polygon, error) {
	b.polygonsOnce.Do(func() {
		b.polygons, b.polygonsErr = b.impl.BuildPolygons()
		if b.polygonsErr != nil {
			b.polygonsErr = fmt.Errorf("build polygons: %w", b.polygonsErr)
		}
	})
	return b.polygons, b.polygonsErr
}

// Mask reports, for each linear index, whether the element has a polygon.
func (b *Base) Mask() ([]bool, error) {
	polygons, err := b.Polygons()
	if err != nil {
		return nil, err
	}
	b.maskOnce.Do(func() {
		b.mask = make([]bool, len(polygons))
		for i, p := range polygons {
			b.mask[i] = p != nil
		}
	})
	return b.mask, nil
}

// FaceCentres returns the centroid of every polygon, indexed by linear
// index. Elements without a polygon have a NaN centre.
func (b *Base) FaceCentres() ([]geom.Point, error) {
	polygons, err := b.Polygons()
	if err != nil {
		return nil, err
	}
	b.centresOnce.Do(func() {
		b.centres = make([]geom.Point, len(polygons))
		for i, p := range polygons {
			if p == nil {
				b.centres[i] = geom.Point{X: math.NaN(), Y: math.NaN()}
				continue
			}
			b.centres[i] = p.Centroid()
		}
	})
	return b.centres, nil
}

// SpatialIndex returns the spatial index over all polygons, building it
// on first use.
func (b *Base) SpatialIndex() (*SpatialIndex, error) {
	b.indexOnce.Do(func() {
		polygons, err := b.Polygons()
		if err != nil {
			b.indexErr = err
			return
		}
		b.logger.Info("building spatial index", "polygons", len(polygons))
		start := time.Now()
		kind := b.impl.DefaultGridKind()
		b.index, b.indexErr = NewSpatialIndex(polygons, func(linear int) (Index, error) {
			return b.impl.UnravelIndex(linear, kind)
		})
		if b.indexErr == nil {
			b.logger.LogIndexBuilt(b.index.Len(), len(polygons)-b.index.Len(), time.Since(start))
		}
	})
	return b.index, b.indexErr
}

// IndexForPoint returns the cell containing p. A point on a shared edge or
// vertex resolves to the cell with the lowest linear index. ErrNotFound is
// returned when no cell contains p.
func (b *Base) IndexForPoint(p geom.Point) (*Item, error) {
	index, err := b.SpatialIndex()
	if err != nil {
		return nil, err
	}
	item, ok := index.Lookup(p)
	if !ok {
		return nil, fmt.Errorf("%w: (%g, %g)", ErrNotFound, p.X, p.Y)
	}
	return item, nil
}

// IntersectingCells returns the linear indices of every default grid kind
// element whose polygon intersects g.
func (b *Base) IntersectingCells(g geom.Geom) (*roaring.Bitmap, error) {
	index, err := b.SpatialIndex()
	if err != nil {
		return nil, err
	}
	items, err := index.Intersecting(g)
	if err != nil {
		return nil, err
	}
	cells := roaring.New()
	for _, item := range items {
		cells.Add(uint32(item.LinearIndex))
	}
	return cells, nil
}

// SelectIndex extracts the data at a single grid element. Only variables
// laid out over at least one dimension of the index kind are kept, so
// variables defined on other grid kinds are dropped. Non-grid dimensions
// such as time or depth are preserved.
func (b *Base) SelectIndex(index Index) (*dataset.Dataset, error) {
	sel, err := b.SelectorForIndex(index)
	if err != nil {
		return nil, err
	}
	dims := make([]string, 0, len(sel))
	for dim := range sel {
		dims = append(dims, dim)
	}
	subset := b.ds.ExtractVars(b.ds.VariablesWithDims(dims...)...)
	out, err := subset.Isel(sel)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", FormatIndex(index), err)
	}
	return out, nil
}

// SelectPoint extracts the data at the cell containing p.
func (b *Base) SelectPoint(p geom.Point) (*dataset.Dataset, error) {
	item, err := b.IndexForPoint(p)
	if err != nil {
		return nil, err
	}
	return b.SelectIndex(item.Index)
}

// Clip makes a clip mask from the clip geometry and applies it.
func (b *Base) Clip(clip geom.Geom, scratchDir string, buffer int) (*dataset.Dataset, error) {
	mask, err := b.impl.MakeClipMask(clip, buffer)
	if err != nil {
		return nil, fmt.Errorf("make clip mask: %w", err)
	}
	out, err := b.impl.ApplyClipMask(mask, scratchDir)
	if err != nil {
		return nil, fmt.Errorf("apply clip mask: %w", err)
	}
	return out, nil
}

// Bind attaches the convention to its dataset. A dataset can be bound
// once; later attempts fail with ErrAlreadyBound.
func (b *Base) Bind() error {
	if err := b.ds.Bind(b.impl); err != nil {
		return fmt.Errorf("bind %s: %w", b.impl.Name(), err)
	}
	return nil
}

// Bound returns the convention bound to ds, if any.
func Bound(ds *dataset.Dataset) (Convention, bool) {
	c, ok := ds.Bound().(Convention)
	return c, ok
}
