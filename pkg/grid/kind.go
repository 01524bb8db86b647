package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// GridKind names a category of addressable grid element.
type GridKind string

// Grid kinds shared by the bundled conventions.
const (
	Face GridKind = "face"
	Edge GridKind = "edge"
	Node GridKind = "node"
	Left GridKind = "left"
	Back GridKind = "back"
)

// Index is the native address of one grid element. Implementations are
// small comparable structs, so two indices can be compared with ==.
type Index interface {
	GridKind() GridKind
	// Coordinates returns the positional coordinates of the element
	// along the dimensions of its grid kind.
	Coordinates() []int
}

// FormatIndex renders an index as kind(c0, c1, ...).
func FormatIndex(index Index) string {
	if index == nil {
		return "<nil>"
	}
	coords := index.Coordinates()
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	return fmt.Sprintf("%s(%s)", index.GridKind(), strings.Join(parts, ", "))
}

// Ravel converts coordinates on a row-major grid of the given shape into a
// linear index. It reports false when any coordinate is out of range.
func Ravel(coords, shape []int) (int, bool) {
	if len(coords) != len(shape) {
		return 0, false
	}
	linear := 0
	for i, c := range coords {
		if c < 0 || c >= shape[i] {
			return 0, false
		}
		linear = linear*shape[i] + c
	}
	return linear, true
}

// Unravel converts a linear index into row-major coordinates on a grid of
// the given shape. It reports false when linear is out of range.
func Unravel(linear int, shape []int) ([]int, bool) {
	size := 1
	for _, s := range shape {
		size *= s
	}
	if linear < 0 || linear >= size {
		return nil, false
	}
	coords := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		coords[i] = linear % shape[i]
		linear /= shape[i]
	}
	return coords, true
}

// Size returns the number of elements on a grid of the given shape.
func Size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
