// Package dataset provides a small in-memory model of a self-describing
// gridded dataset: named dimensions, variables laid out over those
// dimensions, and attributes on both.
//
// Variable data is held in row-major sparse.DenseArray values regardless of
// the storage type recorded for the variable. Datasets are read from and
// written to netCDF classic files.
//
// Example:
//
//	ds := dataset.New()
//	err := ds.AddVariable(&dataset.Variable{
//	    Name: "temp",
//	    Dims: []string{"time", "y", "x"},
//	    Data: dataset.Zeros(4, 10, 20),
//	})
//	point, err := ds.Isel(map[string]int{"y": 3, "x": 7})
package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
)

// Type is the storage type of a variable when written to disk.
type Type int

const (
	Float64 Type = iota
	Float32
	Int32
	Int16
)

// String returns the netCDF name of the type.
func (t Type) String() string {
	switch t {
	case Float64:
		return "double"
	case Float32:
		return "float"
	case Int32:
		return "int"
	case Int16:
		return "short"
	default:
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
}

// Attributes holds variable or global attributes. Values are strings,
// float64, int, or slices of numeric values as read from netCDF.
type Attributes map[string]interface{}

// String returns the attribute as a string, or "" when absent or not text.
func (a Attributes) String(name string) string {
	s, _ := a[name].(string)
	return strings.TrimRight(s, "\x00")
}

// Float returns the first numeric value of the attribute.
func (a Attributes) Float(name string) (float64, bool) {
	switch v := a[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

// Int returns the first numeric value of the attribute truncated to int.
func (a Attributes) Int(name string) (int, bool) {
	f, ok := a.Float(name)
	return int(f), ok
}

// Fields splits a whitespace separated text attribute.
func (a Attributes) Fields(name string) []string {
	return strings.Fields(a.String(name))
}

// Clone returns a shallow copy of the attributes.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Variable is a named array laid out over an ordered list of dimensions.
type Variable struct {
	Name  string
	Dims  []string
	Type  Type
	Attrs Attributes
	Data  *sparse.DenseArray
}

// Shape returns the length of each dimension of v.
func (v *Variable) Shape() []int {
	return v.Data.Shape
}

// Size returns the number of elements in v.
func (v *Variable) Size() int {
	return len(v.Data.Elements)
}

// HasDim reports whether v is laid out over dim.
func (v *Variable) HasDim(dim string) bool {
	return v.axis(dim) >= 0
}

func (v *Variable) axis(dim string) int {
	for i, d := range v.Dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// At returns the element at the given position.
func (v *Variable) At(index ...int) float64 {
	return v.Data.Elements[offset(v.Data.Shape, index)]
}

// Copy returns a deep copy of v.
func (v *Variable) Copy() *Variable {
	return &Variable{
		Name:  v.Name,
		Dims:  append([]string(nil), v.Dims...),
		Type:  v.Type,
		Attrs: v.Attrs.Clone(),
		Data:  copyArray(v.Data),
	}
}

// Dataset is an ordered collection of variables sharing named dimensions.
//
// Dimensions are implied by the variables: the dataset records each
// dimension the first time a variable uses it and rejects variables that
// disagree on its size.
type Dataset struct {
	Attrs Attributes

	dims   []string
	sizes  map[string]int
	vars   []*Variable
	byName map[string]*Variable

	binding interface{}
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{
		Attrs:  Attributes{},
		sizes:  make(map[string]int),
		byName: make(map[string]*Variable),
	}
}

// AddVariable adds v to the dataset, replacing any variable with the same
// name in place.
func (d *Dataset) AddVariable(v *Variable) error {
	if v.Data == nil {
		return &ErrShapeMismatch{Variable: v.Name}
	}
	if len(v.Dims) != len(v.Data.Shape) {
		return &ErrShapeMismatch{Variable: v.Name, Want: len(v.Dims), Got: len(v.Data.Shape)}
	}
	if n := product(v.Data.Shape); n != len(v.Data.Elements) {
		return &ErrShapeMismatch{Variable: v.Name, Want: n, Got: len(v.Data.Elements)}
	}
	for i, dim := range v.Dims {
		size, ok := d.sizes[dim]
		if !ok {
			continue
		}
		if _, replacing := d.byName[v.Name]; replacing && d.onlyUser(dim, v.Name) {
			continue
		}
		if size != v.Data.Shape[i] {
			return &ErrShapeMismatch{Variable: v.Name, Dim: dim, Want: size, Got: v.Data.Shape[i]}
		}
	}
	if v.Attrs == nil {
		v.Attrs = Attributes{}
	}

	if _, ok := d.byName[v.Name]; ok {
		for i, old := range d.vars {
			if old.Name == v.Name {
				d.vars[i] = v
			}
		}
	} else {
		d.vars = append(d.vars, v)
	}
	d.byName[v.Name] = v
	d.rebuildDims()
	return nil
}

// onlyUser reports whether the named variable is the only one using dim.
func (d *Dataset) onlyUser(dim, name string) bool {
	for _, v := range d.vars {
		if v.Name != name && v.HasDim(dim) {
			return false
		}
	}
	return true
}

func (d *Dataset) rebuildDims() {
	d.dims = d.dims[:0]
	d.sizes = make(map[string]int)
	for _, v := range d.vars {
		for i, dim := range v.Dims {
			if _, ok := d.sizes[dim]; !ok {
				d.dims = append(d.dims, dim)
				d.sizes[dim] = v.Data.Shape[i]
			}
		}
	}
}

// Dims returns the dimension names in the order they were first used.
func (d *Dataset) Dims() []string {
	return append([]string(nil), d.dims...)
}

// DimSize returns the length of dim.
func (d *Dataset) DimSize(dim string) (int, bool) {
	n, ok := d.sizes[dim]
	return n, ok
}

// Variable returns the named variable.
func (d *Dataset) Variable(name string) (*Variable, bool) {
	v, ok := d.byName[name]
	return v, ok
}

// Variables returns every variable in insertion order.
func (d *Dataset) Variables() []*Variable {
	return append([]*Variable(nil), d.vars...)
}

// Names returns every variable name in insertion order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.vars))
	for i, v := range d.vars {
		names[i] = v.Name
	}
	return names
}

// Copy returns a deep copy of the dataset. The binding is not copied.
func (d *Dataset) Copy() *Dataset {
	out := New()
	out.Attrs = d.Attrs.Clone()
	for _, v := range d.vars {
		_ = out.AddVariable(v.Copy())
	}
	return out
}

// Subset returns a dataset holding the variables for which keep returns
// true. Variable data is shared with d; attributes are copied.
func (d *Dataset) Subset(keep func(*Variable) bool) *Dataset {
	out := New()
	out.Attrs = d.Attrs.Clone()
	for _, v := range d.vars {
		if !keep(v) {
			continue
		}
		_ = out.AddVariable(&Variable{
			Name:  v.Name,
			Dims:  v.Dims,
			Type:  v.Type,
			Attrs: v.Attrs.Clone(),
			Data:  v.Data,
		})
	}
	return out
}

// ExtractVars returns a dataset holding only the named variables.
func (d *Dataset) ExtractVars(names ...string) *Dataset {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	return d.Subset(func(v *Variable) bool { return want[v.Name] })
}

// DropVars returns a dataset without the named variables. Names that do not
// exist are ignored.
func (d *Dataset) DropVars(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	return d.Subset(func(v *Variable) bool { return !drop[v.Name] })
}

// VariablesWithDims returns the names of variables using any of dims, in
// insertion order.
func (d *Dataset) VariablesWithDims(dims ...string) []string {
	var names []string
	for _, v := range d.vars {
		for _, dim := range dims {
			if v.HasDim(dim) {
				names = append(names, v.Name)
				break
			}
		}
	}
	return names
}

// FindByAttr returns the names of variables whose attribute equals value,
// sorted for deterministic lookups.
func (d *Dataset) FindByAttr(attr, value string) []string {
	var names []string
	for _, v := range d.vars {
		if v.Attrs.String(attr) == value {
			names = append(names, v.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Bind attaches owner to the dataset. A dataset holds at most one binding
// for its lifetime.
func (d *Dataset) Bind(owner interface{}) error {
	if d.binding != nil {
		return ErrAlreadyBound
	}
	d.binding = owner
	return nil
}

// Bound returns the value attached with Bind, or nil.
func (d *Dataset) Bound() interface{} {
	return d.binding
}

// Zeros returns a zero-filled array with the given shape. An empty shape
// yields a scalar holding one element.
func Zeros(shape ...int) *sparse.DenseArray {
	if len(shape) == 0 {
		return &sparse.DenseArray{Shape: []int{}, Elements: make([]float64, 1)}
	}
	return sparse.ZerosDense(shape...)
}

// Full returns an array with the given shape filled with value.
func Full(value float64, shape ...int) *sparse.DenseArray {
	a := Zeros(shape...)
	for i := range a.Elements {
		a.Elements[i] = value
	}
	return a
}

// FromSlice wraps values in an array with the given shape. values is used
// directly, not copied.
func FromSlice(values []float64, shape ...int) *sparse.DenseArray {
	a := Zeros(shape...)
	a.Elements = values
	return a
}

// NaN is the fill value used for masked or missing floating point data.
var NaN = math.NaN()

func copyArray(a *sparse.DenseArray) *sparse.DenseArray {
	out := Zeros(a.Shape...)
	copy(out.Elements, a.Elements)
	return out
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
