package grid

import (
	"fmt"
	"math"
	"path/filepath"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/Lachlan00/emsarray/pkg/dataset"
)

// ApplyOptions controls ApplyGridMask.
type ApplyOptions struct {
	// Geometry names variables that describe the grid itself. They are
	// trimmed like every other variable but never filled with NaN, so
	// the clipped dataset keeps valid geometry.
	Geometry []string
	Logger   *Logger
}

// ApplyGridMask restricts ds to the elements retained by mask.
//
// For two dimensional grids each pair of dimensions is cut to the
// bounding box of the retained elements, and floating point variables on
// that grid are filled with NaN outside the mask. For one dimensional
// grids the dimension is restricted to exactly the retained elements;
// variables on it are written one per file into scratchDir and read back
// from there. scratchDir must exist when any one dimensional grid loses
// elements; it is never created or removed here. ds is not modified.
func ApplyGridMask(ds *dataset.Dataset, mask *ClipMask, scratchDir string, opts ApplyOptions) (*dataset.Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}

	out := ds
	for _, kind := range mask.Kinds() {
		dims, _ := mask.Dims(kind)
		shape, _ := mask.Shape(kind)
		for i, dim := range dims {
			size, ok := ds.DimSize(dim)
			if !ok {
				continue
			}
			if size != shape[i] {
				return nil, &ErrConfiguration{
					Convention: mask.Type(),
					Reason: fmt.Sprintf("mask dimension %q has size %d but the dataset has %d",
						dim, shape[i], size),
				}
			}
		}
		cells, err := mask.Retained(kind)
		if err != nil {
			return nil, err
		}

		switch len(dims) {
		case 2:
			out, err = applyStructured(out, dims, shape, cells, opts.Geometry)
		case 1:
			out, err = applyUnstructured(out, dims[0], cells, scratchDir)
		default:
			err = fmt.Errorf("%s grid has %d dimensions, only 1 or 2 are supported", kind, len(dims))
		}
		if err != nil {
			return nil, fmt.Errorf("apply %s mask: %w", kind, err)
		}
		logger.LogApply(kind, Size(shape), int(cells.GetCardinality()), len(dims) == 1 && scratchDir != "")
	}
	if out == ds {
		out = ds.Copy()
	}
	return out, nil
}

func applyStructured(ds *dataset.Dataset, dims []string, shape []int, cells *roaring.Bitmap, geometry []string) (*dataset.Dataset, error) {
	rows, cols := shape[0], shape[1]
	jDim, iDim := dims[0], dims[1]
	if _, ok := ds.DimSize(jDim); !ok {
		return ds, nil
	}

	out := dataset.New()
	out.Attrs = ds.Attrs.Clone()
	for _, v := range ds.Variables() {
		if !v.HasDim(jDim) || !v.HasDim(iDim) || slices.Contains(geometry, v.Name) || !isFloat(v.Type) {
			if err := out.AddVariable(v); err != nil {
				return nil, err
			}
			continue
		}
		if err := out.AddVariable(maskOutside(v, jDim, iDim, cols, cells)); err != nil {
			return nil, err
		}
	}

	if cells.IsEmpty() {
		trimmed, err := out.Slice(jDim, 0, 0)
		if err != nil {
			return nil, err
		}
		return trimmed.Slice(iDim, 0, 0)
	}

	minJ, maxJ, minI, maxI := rows, -1, cols, -1
	it := cells.Iterator()
	for it.HasNext() {
		c := int(it.Next())
		j, i := c/cols, c%cols
		minJ, maxJ = min(minJ, j), max(maxJ, j)
		minI, maxI = min(minI, i), max(maxI, i)
	}
	trimmed, err := out.Slice(jDim, minJ, maxJ+1)
	if err != nil {
		return nil, err
	}
	return trimmed.Slice(iDim, minI, maxI+1)
}

func isFloat(t dataset.Type) bool {
	return t == dataset.Float64 || t == dataset.Float32
}

// maskOutside returns a copy of v with NaN at every element whose (j, i)
// position is not in cells.
func maskOutside(v *dataset.Variable, jDim, iDim string, cols int, cells *roaring.Bitmap) *dataset.Variable {
	out := v.Copy()
	shape := v.Shape()
	var jAxis, iAxis int
	for axis, dim := range v.Dims {
		switch dim {
		case jDim:
			jAxis = axis
		case iDim:
			iAxis = axis
		}
	}

	counter := make([]int, len(shape))
	for n := range out.Data.Elements {
		c := counter[jAxis]*cols + counter[iAxis]
		if !cells.Contains(uint32(c)) {
			out.Data.Elements[n] = math.NaN()
		}
		for axis := len(counter) - 1; axis >= 0; axis-- {
			counter[axis]++
			if counter[axis] < shape[axis] {
				break
			}
			counter[axis] = 0
		}
	}
	return out
}

func applyUnstructured(ds *dataset.Dataset, dim string, cells *roaring.Bitmap, scratchDir string) (*dataset.Dataset, error) {
	size, ok := ds.DimSize(dim)
	if !ok {
		return ds, nil
	}
	if int(cells.GetCardinality()) == size {
		return ds, nil
	}
	indices := Ints(cells)

	out := dataset.New()
	out.Attrs = ds.Attrs.Clone()
	for _, v := range ds.Variables() {
		if !v.HasDim(dim) {
			if err := out.AddVariable(v.Copy()); err != nil {
				return nil, err
			}
			continue
		}
		taken, err := v.Take(dim, indices)
		if err != nil {
			return nil, err
		}
		if scratchDir != "" && len(indices) > 0 {
			if taken, err = materialise(taken, scratchDir); err != nil {
				return nil, err
			}
		}
		if err := out.AddVariable(taken); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// materialise writes v to its own file in scratchDir and reads it back
// through a memory map, so only one clipped variable is held in working
// buffers at a time.
func materialise(v *dataset.Variable, scratchDir string) (*dataset.Variable, error) {
	path := filepath.Join(scratchDir, uuid.NewString()+".nc")
	single := dataset.New()
	if err := single.AddVariable(v); err != nil {
		return nil, err
	}
	if err := single.WriteFile(path); err != nil {
		return nil, fmt.Errorf("write scratch file for %s: %w", v.Name, err)
	}
	back, err := dataset.OpenMapped(path)
	if err != nil {
		return nil, fmt.Errorf("read scratch file for %s: %w", v.Name, err)
	}
	restored, ok := back.Variable(v.Name)
	if !ok {
		return nil, fmt.Errorf("scratch file %s: %w: %s", path, dataset.ErrUnknownVariable, v.Name)
	}
	return restored, nil
}
