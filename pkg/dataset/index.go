package dataset

import (
	"fmt"
	"sort"

	"github.com/ctessum/sparse"
)

// strides returns the row-major element stride of each axis.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	n := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = n
		n *= shape[i]
	}
	return s
}

func offset(shape, index []int) int {
	st := strides(shape)
	o := 0
	for i, ix := range index {
		o += ix * st[i]
	}
	return o
}

// gather builds a new array taking, along each axis of src, the positions
// listed in take. Axes flagged in drop hold exactly one position and are
// removed from the result.
func gather(src *sparse.DenseArray, take [][]int, drop []bool) *sparse.DenseArray {
	var shape []int
	total := 1
	for i, t := range take {
		total *= len(t)
		if !drop[i] {
			shape = append(shape, len(t))
		}
	}
	out := Zeros(shape...)
	if total == 0 {
		return out
	}

	st := strides(src.Shape)
	counter := make([]int, len(take))
	for n := 0; n < total; n++ {
		o := 0
		for axis, c := range counter {
			o += take[axis][c] * st[axis]
		}
		out.Elements[n] = src.Elements[o]

		for axis := len(counter) - 1; axis >= 0; axis-- {
			counter[axis]++
			if counter[axis] < len(take[axis]) {
				break
			}
			counter[axis] = 0
		}
	}
	return out
}

func identity(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}

// Isel selects a single position along each dimension in sel. Selected
// dimensions are removed from every variable that uses them; variables
// that use none of them are carried over unchanged.
func (d *Dataset) Isel(sel map[string]int) (*Dataset, error) {
	for dim, ix := range sel {
		size, ok := d.sizes[dim]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
		}
		if ix < 0 || ix >= size {
			return nil, &ErrIndexOutOfRange{Dim: dim, Index: ix, Size: size}
		}
	}

	out := New()
	out.Attrs = d.Attrs.Clone()
	for _, v := range d.vars {
		take := make([][]int, len(v.Dims))
		drop := make([]bool, len(v.Dims))
		var dims []string
		for axis, dim := range v.Dims {
			if ix, ok := sel[dim]; ok {
				take[axis] = []int{ix}
				drop[axis] = true
				continue
			}
			take[axis] = identity(v.Data.Shape[axis])
			dims = append(dims, dim)
		}
		nv := &Variable{Name: v.Name, Dims: dims, Type: v.Type, Attrs: v.Attrs.Clone()}
		nv.Data = gather(v.Data, take, drop)
		if err := out.AddVariable(nv); err != nil {
			return nil, fmt.Errorf("select variable %s: %w", v.Name, err)
		}
	}
	return out, nil
}

// Take restricts dim to the given positions, in the order given.
func (d *Dataset) Take(dim string, indices []int) (*Dataset, error) {
	size, ok := d.sizes[dim]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
	for _, ix := range indices {
		if ix < 0 || ix >= size {
			return nil, &ErrIndexOutOfRange{Dim: dim, Index: ix, Size: size}
		}
	}

	out := New()
	out.Attrs = d.Attrs.Clone()
	for _, v := range d.vars {
		nv, err := v.Take(dim, indices)
		if err != nil {
			return nil, err
		}
		if err := out.AddVariable(nv); err != nil {
			return nil, fmt.Errorf("take variable %s: %w", v.Name, err)
		}
	}
	return out, nil
}

// Slice restricts dim to the half-open range [start, stop).
func (d *Dataset) Slice(dim string, start, stop int) (*Dataset, error) {
	if stop < start {
		return nil, &ErrIndexOutOfRange{Dim: dim, Index: stop, Size: start}
	}
	indices := make([]int, 0, stop-start)
	for i := start; i < stop; i++ {
		indices = append(indices, i)
	}
	return d.Take(dim, indices)
}

// Take returns a copy of v restricted to the given positions along dim.
// A variable that does not use dim is returned as a copy.
func (v *Variable) Take(dim string, indices []int) (*Variable, error) {
	axis := v.axis(dim)
	if axis < 0 {
		return v.Copy(), nil
	}
	size := v.Data.Shape[axis]
	take := make([][]int, len(v.Dims))
	for i := range v.Dims {
		take[i] = identity(v.Data.Shape[i])
	}
	for _, ix := range indices {
		if ix < 0 || ix >= size {
			return nil, &ErrIndexOutOfRange{Dim: dim, Index: ix, Size: size}
		}
	}
	take[axis] = indices
	return &Variable{
		Name:  v.Name,
		Dims:  append([]string(nil), v.Dims...),
		Type:  v.Type,
		Attrs: v.Attrs.Clone(),
		Data:  gather(v.Data, take, make([]bool, len(v.Dims))),
	}, nil
}

// Transpose returns a copy of v with its dimensions reordered.
func (v *Variable) Transpose(dims []string) (*Variable, error) {
	if len(dims) != len(v.Dims) {
		return nil, fmt.Errorf("transpose %s: want %d dimensions, got %d", v.Name, len(v.Dims), len(dims))
	}
	perm := make([]int, len(dims))
	for i, dim := range dims {
		axis := v.axis(dim)
		if axis < 0 {
			return nil, fmt.Errorf("transpose %s: %w: %q", v.Name, ErrUnknownDimension, dim)
		}
		perm[i] = axis
	}

	shape := make([]int, len(perm))
	for i, axis := range perm {
		shape[i] = v.Data.Shape[axis]
	}
	out := Zeros(shape...)
	srcStrides := strides(v.Data.Shape)
	counter := make([]int, len(perm))
	for n := range out.Elements {
		o := 0
		for i, c := range counter {
			o += c * srcStrides[perm[i]]
		}
		out.Elements[n] = v.Data.Elements[o]
		for i := len(counter) - 1; i >= 0; i-- {
			counter[i]++
			if counter[i] < shape[i] {
				break
			}
			counter[i] = 0
		}
	}
	return &Variable{
		Name:  v.Name,
		Dims:  append([]string(nil), dims...),
		Type:  v.Type,
		Attrs: v.Attrs.Clone(),
		Data:  out,
	}, nil
}

// Linearise collapses dims into a single trailing dimension named name.
// The remaining dimensions keep their relative order and come first. The
// collapsed axis is indexed row-major over dims in the order given.
func (v *Variable) Linearise(dims []string, name string) (*Variable, error) {
	collapse := make(map[string]bool, len(dims))
	for _, dim := range dims {
		if !v.HasDim(dim) {
			return nil, fmt.Errorf("linearise %s: %w: %q", v.Name, ErrUnknownDimension, dim)
		}
		collapse[dim] = true
	}
	var order []string
	var shape []int
	for i, dim := range v.Dims {
		if !collapse[dim] {
			order = append(order, dim)
			shape = append(shape, v.Data.Shape[i])
		}
	}
	order = append(order, dims...)

	t, err := v.Transpose(order)
	if err != nil {
		return nil, err
	}
	n := 1
	for _, dim := range dims {
		n *= v.Data.Shape[v.axis(dim)]
	}
	shape = append(shape, n)
	t.Dims = append(order[:len(order)-len(dims)], name)
	t.Data = FromSlice(t.Data.Elements, shape...)
	return t, nil
}

// SortedUnique returns the distinct values of indices in ascending order.
func SortedUnique(indices []int) []int {
	out := append([]int(nil), indices...)
	sort.Ints(out)
	j := 0
	for i, v := range out {
		if i == 0 || v != out[j-1] {
			out[j] = v
			j++
		}
	}
	return out[:j]
}
