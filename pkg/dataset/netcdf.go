package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/edsrzf/mmap-go"
)

// Write encodes the dataset as a netCDF classic file into w.
func (d *Dataset) Write(w cdf.ReaderWriterAt) error {
	lengths := make([]int, len(d.dims))
	for i, dim := range d.dims {
		lengths[i] = d.sizes[dim]
		if lengths[i] == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyDimension, dim)
		}
	}
	h := cdf.NewHeader(d.dims, lengths)

	for _, name := range sortedKeys(d.Attrs) {
		if val, ok := encodeAttr(d.Attrs[name]); ok {
			h.AddAttribute("", name, val)
		}
	}
	for _, v := range d.vars {
		h.AddVariable(v.Name, v.Dims, template(v.Type))
		for _, name := range sortedKeys(v.Attrs) {
			if val, ok := encodeAttr(v.Attrs[name]); ok {
				h.AddAttribute(v.Name, name, val)
			}
		}
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("create netcdf header: %w", err)
	}
	for _, v := range d.vars {
		if err := writeVariable(f, v); err != nil {
			return fmt.Errorf("write variable %s: %w", v.Name, err)
		}
	}
	if f, ok := w.(*os.File); ok {
		return cdf.UpdateNumRecs(f)
	}
	return nil
}

// WriteFile writes the dataset to a new netCDF file at path.
func (d *Dataset) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a netCDF classic file. Floating point values equal to a
// variable's _FillValue are replaced with NaN.
func Read(r cdf.ReaderWriterAt) (*Dataset, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open netcdf: %w", err)
	}

	d := New()
	for _, name := range f.Header.Attributes("") {
		d.Attrs[name] = decodeAttr(f.Header.GetAttribute("", name))
	}
	for _, name := range f.Header.Variables() {
		v, err := readVariable(f, name)
		if err != nil {
			return nil, fmt.Errorf("read variable %s: %w", name, err)
		}
		if err := d.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Open reads the netCDF file at path.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(readOnly{f})
}

// OpenMapped reads the netCDF file at path through a read-only memory map.
// All data is copied out before the mapping is released.
func OpenMapped(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	defer m.Unmap()

	return Read(mappedFile(m))
}

var errReadOnly = errors.New("dataset: file opened read-only")

type readOnly struct{ f *os.File }

func (r readOnly) ReadAt(p []byte, off int64) (int, error) { return r.f.ReadAt(p, off) }
func (readOnly) WriteAt([]byte, int64) (int, error)         { return 0, errReadOnly }

// mappedFile adapts a memory map to cdf.ReaderWriterAt.
type mappedFile mmap.MMap

func (m mappedFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m)) {
		return 0, fmt.Errorf("read at %d: offset outside mapping of %d bytes", off, len(m))
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, errShortRead
	}
	return n, nil
}

func (mappedFile) WriteAt([]byte, int64) (int, error) { return 0, errReadOnly }

var errShortRead = errors.New("dataset: read past end of mapping")

func template(t Type) interface{} {
	switch t {
	case Float32:
		return []float32{0}
	case Int32:
		return []int32{0}
	case Int16:
		return []int16{0}
	default:
		return []float64{0}
	}
}

func writeVariable(f *cdf.File, v *Variable) error {
	end := f.Header.Lengths(v.Name)
	start := make([]int, len(end))
	w := f.Writer(v.Name, start, end)

	var buf interface{}
	switch v.Type {
	case Float32:
		out := make([]float32, len(v.Data.Elements))
		for i, e := range v.Data.Elements {
			out[i] = float32(e)
		}
		buf = out
	case Int32:
		out := make([]int32, len(v.Data.Elements))
		for i, e := range v.Data.Elements {
			out[i] = int32(e)
		}
		buf = out
	case Int16:
		out := make([]int16, len(v.Data.Elements))
		for i, e := range v.Data.Elements {
			out[i] = int16(e)
		}
		buf = out
	default:
		buf = v.Data.Elements
	}
	_, err := w.Write(buf)
	return err
}

func readVariable(f *cdf.File, name string) (*Variable, error) {
	shape := f.Header.Lengths(name)
	v := &Variable{
		Name:  name,
		Dims:  f.Header.Dimensions(name),
		Attrs: Attributes{},
		Data:  Zeros(shape...),
	}
	for _, a := range f.Header.Attributes(name) {
		v.Attrs[a] = decodeAttr(f.Header.GetAttribute(name, a))
	}

	r := f.Reader(name, nil, nil)
	buf := r.Zero(len(v.Data.Elements))
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}

	fill, hasFill := v.Attrs.Float("_FillValue")
	switch vals := buf.(type) {
	case []float64:
		v.Type = Float64
		copy(v.Data.Elements, vals)
	case []float32:
		v.Type = Float32
		for i, e := range vals {
			v.Data.Elements[i] = float64(e)
		}
	case []int32:
		v.Type = Int32
		for i, e := range vals {
			v.Data.Elements[i] = float64(e)
		}
		hasFill = false
	case []int16:
		v.Type = Int16
		for i, e := range vals {
			v.Data.Elements[i] = float64(e)
		}
		hasFill = false
	default:
		return nil, fmt.Errorf("unsupported storage type %T", buf)
	}
	if hasFill {
		for i, e := range v.Data.Elements {
			if e == fill || (v.Type == Float32 && float32(e) == float32(fill)) {
				v.Data.Elements[i] = math.NaN()
			}
		}
	}
	return v, nil
}

func encodeAttr(val interface{}) (interface{}, bool) {
	switch v := val.(type) {
	case string, []float64, []float32, []int32, []int16:
		return v, true
	case float64:
		return []float64{v}, true
	case float32:
		return []float32{v}, true
	case int:
		return []int32{int32(v)}, true
	case int32:
		return []int32{v}, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	}
	return nil, false
}

// decodeAttr unwraps single-element numeric attributes so they compare
// naturally with values set in code.
func decodeAttr(val interface{}) interface{} {
	switch v := val.(type) {
	case []float64:
		if len(v) == 1 {
			return v[0]
		}
	case []int32:
		if len(v) == 1 {
			return int(v[0])
		}
	case []int16:
		if len(v) == 1 {
			return int(v[0])
		}
	}
	return val
}

func sortedKeys(a Attributes) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
