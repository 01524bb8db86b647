package dataset

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns an array of the given shape holding 0, 1, 2, ...
func sequence(shape ...int) []float64 {
	n := product(shape)
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func sampleDataset(t *testing.T) *Dataset {
	t.Helper()
	ds := New()
	ds.Attrs["title"] = "sample"
	require.NoError(t, ds.AddVariable(&Variable{
		Name: "temp",
		Dims: []string{"time", "y", "x"},
		Data: FromSlice(sequence(2, 3, 4), 2, 3, 4),
	}))
	require.NoError(t, ds.AddVariable(&Variable{
		Name:  "lat",
		Dims:  []string{"y"},
		Data:  FromSlice([]float64{10, 11, 12}, 3),
		Attrs: Attributes{"units": "degrees_north"},
	}))
	require.NoError(t, ds.AddVariable(&Variable{
		Name: "time",
		Dims: []string{"time"},
		Data: FromSlice([]float64{0, 1}, 2),
		Type: Int32,
	}))
	return ds
}

func TestAddVariableShapeMismatch(t *testing.T) {
	ds := sampleDataset(t)

	err := ds.AddVariable(&Variable{Name: "bad", Dims: []string{"y"}, Data: Zeros(5)})
	var shapeErr *ErrShapeMismatch
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "y", shapeErr.Dim)
	assert.Equal(t, 3, shapeErr.Want)

	err = ds.AddVariable(&Variable{Name: "bad", Dims: []string{"y", "x"}, Data: Zeros(3)})
	require.ErrorAs(t, err, &shapeErr)
}

func TestDims(t *testing.T) {
	ds := sampleDataset(t)
	assert.Equal(t, []string{"time", "y", "x"}, ds.Dims())
	n, ok := ds.DimSize("x")
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	dropped := ds.DropVars("temp")
	assert.Equal(t, []string{"y", "time"}, dropped.Dims())
	_, ok = dropped.DimSize("x")
	assert.False(t, ok)
}

func TestIsel(t *testing.T) {
	ds := sampleDataset(t)

	out, err := ds.Isel(map[string]int{"y": 1, "x": 2})
	require.NoError(t, err)

	temp, ok := out.Variable("temp")
	require.True(t, ok)
	assert.Equal(t, []string{"time"}, temp.Dims)
	assert.Equal(t, []float64{6, 18}, temp.Data.Elements)

	lat, ok := out.Variable("lat")
	require.True(t, ok)
	assert.Empty(t, lat.Dims)
	assert.Equal(t, 11.0, lat.At())

	tm, ok := out.Variable("time")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1}, tm.Data.Elements)
	assert.Equal(t, "sample", out.Attrs.String("title"))
}

func TestIselErrors(t *testing.T) {
	ds := sampleDataset(t)

	_, err := ds.Isel(map[string]int{"z": 0})
	assert.ErrorIs(t, err, ErrUnknownDimension)

	_, err = ds.Isel(map[string]int{"x": 4})
	var rangeErr *ErrIndexOutOfRange
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "x", rangeErr.Dim)
}

func TestTake(t *testing.T) {
	ds := sampleDataset(t)

	out, err := ds.Take("x", []int{0, 3})
	require.NoError(t, err)
	temp, _ := out.Variable("temp")
	assert.Equal(t, []int{2, 3, 2}, temp.Shape())
	assert.Equal(t, []float64{0, 3, 4, 7, 8, 11, 12, 15, 16, 19, 20, 23}, temp.Data.Elements)

	sliced, err := ds.Slice("y", 1, 3)
	require.NoError(t, err)
	lat, _ := sliced.Variable("lat")
	assert.Equal(t, []float64{11, 12}, lat.Data.Elements)
}

func TestLinearise(t *testing.T) {
	ds := New()
	require.NoError(t, ds.AddVariable(&Variable{
		Name: "temp",
		Dims: []string{"y", "time", "x", "depth"},
		Data: FromSlice(sequence(2, 3, 2, 4), 2, 3, 2, 4),
	}))
	temp, _ := ds.Variable("temp")

	flat, err := temp.Linearise([]string{"y", "x"}, "index")
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "depth", "index"}, flat.Dims)
	assert.Equal(t, []int{3, 4, 4}, flat.Shape())

	for ti := 0; ti < 3; ti++ {
		for d := 0; d < 4; d++ {
			for y := 0; y < 2; y++ {
				for x := 0; x < 2; x++ {
					assert.Equal(t, temp.At(y, ti, x, d), flat.At(ti, d, y*2+x))
				}
			}
		}
	}

	_, err = temp.Linearise([]string{"z"}, "index")
	assert.ErrorIs(t, err, ErrUnknownDimension)
}

func TestTranspose(t *testing.T) {
	v := &Variable{Name: "v", Dims: []string{"a", "b"}, Data: FromSlice(sequence(2, 3), 2, 3)}
	tr, err := v.Transpose([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, tr.Data.Elements)
}

func TestBind(t *testing.T) {
	ds := sampleDataset(t)
	require.NoError(t, ds.Bind("first"))
	assert.ErrorIs(t, ds.Bind("second"), ErrAlreadyBound)
	assert.Equal(t, "first", ds.Bound())
	assert.Nil(t, ds.Copy().Bound())
}

func TestNetCDFRoundTrip(t *testing.T) {
	ds := sampleDataset(t)
	temp, _ := ds.Variable("temp")
	temp.Type = Float32
	temp.Attrs["_FillValue"] = float32(-999)
	temp.Data.Elements[5] = -999

	path := filepath.Join(t.TempDir(), "sample.nc")
	require.NoError(t, ds.WriteFile(path))

	for name, open := range map[string]func(string) (*Dataset, error){
		"file":   Open,
		"mapped": OpenMapped,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := open(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"temp", "lat", "time"}, got.Names())
			assert.Equal(t, "sample", got.Attrs.String("title"))

			gt, ok := got.Variable("temp")
			require.True(t, ok)
			assert.Equal(t, Float32, gt.Type)
			assert.Equal(t, []string{"time", "y", "x"}, gt.Dims)
			assert.True(t, math.IsNaN(gt.Data.Elements[5]))
			assert.Equal(t, 23.0, gt.Data.Elements[23])

			lat, _ := got.Variable("lat")
			assert.Equal(t, "degrees_north", lat.Attrs.String("units"))
			assert.Equal(t, []float64{10, 11, 12}, lat.Data.Elements)

			tm, _ := got.Variable("time")
			assert.Equal(t, Int32, tm.Type)
		})
	}
}

func TestWriteRejectsEmptyDimension(t *testing.T) {
	ds := New()
	require.NoError(t, ds.AddVariable(&Variable{Name: "v", Dims: []string{"n"}, Data: Zeros(0)}))
	err := ds.WriteFile(filepath.Join(t.TempDir(), "empty.nc"))
	assert.ErrorIs(t, err, ErrEmptyDimension)
}

func TestSortedUnique(t *testing.T) {
	assert.Equal(t, []int{1, 2, 5}, SortedUnique([]int{5, 1, 2, 5, 1}))
	assert.Empty(t, SortedUnique(nil))
}
