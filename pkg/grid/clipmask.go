package grid

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Lachlan00/emsarray/pkg/dataset"
)

// Attribute names used by clip mask datasets.
const (
	MaskTypeAttr = "type"
	GridKindAttr = "grid_kind"
)

// ClipMask records which elements of each grid kind survive a clip. It is
// a self-describing dataset holding one short integer variable per grid
// kind, so it can be saved and applied later to any dataset sharing the
// same grid layout without the original clip geometry.
type ClipMask struct {
	ds *dataset.Dataset
}

// NewClipMask returns an empty clip mask produced by the named convention.
func NewClipMask(convention string) *ClipMask {
	ds := dataset.New()
	ds.Attrs[MaskTypeAttr] = convention + " mask"
	return &ClipMask{ds: ds}
}

// ClipMaskFromDataset wraps a dataset read back from disk.
func ClipMaskFromDataset(ds *dataset.Dataset) (*ClipMask, error) {
	m := &ClipMask{ds: ds}
	if len(m.Kinds()) == 0 {
		return nil, fmt.Errorf("dataset has no variable with a %q attribute", GridKindAttr)
	}
	return m, nil
}

// LoadClipMask reads a clip mask saved with Save.
func LoadClipMask(path string) (*ClipMask, error) {
	ds, err := dataset.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load clip mask: %w", err)
	}
	return ClipMaskFromDataset(ds)
}

// Save writes the clip mask as a netCDF file.
func (m *ClipMask) Save(path string) error {
	if err := m.ds.WriteFile(path); err != nil {
		return fmt.Errorf("save clip mask: %w", err)
	}
	return nil
}

// Dataset returns the dataset backing the mask.
func (m *ClipMask) Dataset() *dataset.Dataset {
	return m.ds
}

// Type returns the description of the producing convention.
func (m *ClipMask) Type() string {
	return m.ds.Attrs.String(MaskTypeAttr)
}

func maskVariable(kind GridKind) string {
	return string(kind) + "_mask"
}

// Set records the retained elements of kind. dims and shape describe the
// grid of kind; cells holds row-major linear indices on that grid.
func (m *ClipMask) Set(kind GridKind, dims []string, shape []int, cells *roaring.Bitmap) error {
	if len(dims) != len(shape) {
		return fmt.Errorf("mask for %s grid: %d dimensions but %d sizes", kind, len(dims), len(shape))
	}
	data := dataset.Zeros(shape...)
	it := cells.Iterator()
	for it.HasNext() {
		c := int(it.Next())
		if c >= len(data.Elements) {
			return InvalidLinear(c, kind, len(data.Elements))
		}
		data.Elements[c] = 1
	}
	return m.ds.AddVariable(&dataset.Variable{
		Name:  maskVariable(kind),
		Dims:  append([]string(nil), dims...),
		Type:  dataset.Int16,
		Attrs: dataset.Attributes{GridKindAttr: string(kind)},
		Data:  data,
	})
}

// Kinds returns the grid kinds the mask covers, in the order they were set.
func (m *ClipMask) Kinds() []GridKind {
	var kinds []GridKind
	for _, v := range m.ds.Variables() {
		if k := v.Attrs.String(GridKindAttr); k != "" {
			kinds = append(kinds, GridKind(k))
		}
	}
	return kinds
}

func (m *ClipMask) variable(kind GridKind) (*dataset.Variable, error) {
	for _, v := range m.ds.Variables() {
		if v.Attrs.String(GridKindAttr) == string(kind) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("clip mask has no %s grid: %w", kind, UnknownKind(kind))
}

// Dims returns the dimensions of the grid of kind.
func (m *ClipMask) Dims(kind GridKind) ([]string, error) {
	v, err := m.variable(kind)
	if err != nil {
		return nil, err
	}
	return v.Dims, nil
}

// Shape returns the size of each dimension of the grid of kind.
func (m *ClipMask) Shape(kind GridKind) ([]int, error) {
	v, err := m.variable(kind)
	if err != nil {
		return nil, err
	}
	return v.Shape(), nil
}

// Retained returns the linear indices of the kept elements of kind.
func (m *ClipMask) Retained(kind GridKind) (*roaring.Bitmap, error) {
	v, err := m.variable(kind)
	if err != nil {
		return nil, err
	}
	cells := roaring.New()
	for i, e := range v.Data.Elements {
		if e != 0 {
			cells.Add(uint32(i))
		}
	}
	return cells, nil
}

// Equal reports whether both masks cover the same kinds, dimensions and
// retained elements.
func (m *ClipMask) Equal(other *ClipMask) bool {
	kinds := m.Kinds()
	if len(kinds) != len(other.Kinds()) {
		return false
	}
	for _, kind := range kinds {
		a, err := m.variable(kind)
		if err != nil {
			return false
		}
		b, err := other.variable(kind)
		if err != nil {
			return false
		}
		if !slices.Equal(a.Dims, b.Dims) || !slices.Equal(a.Shape(), b.Shape()) {
			return false
		}
		ra, _ := m.Retained(kind)
		rb, _ := other.Retained(kind)
		if !ra.Equals(rb) {
			return false
		}
	}
	return true
}
