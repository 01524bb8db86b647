package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lachlan00/emsarray/pkg/dataset"
)

var (
	// ErrNotFound is returned when a point does not intersect any cell.
	ErrNotFound = errors.New("grid: point does not intersect any cell")
	// ErrAlreadyBound is returned when binding a convention to a dataset
	// that already has one.
	ErrAlreadyBound = dataset.ErrAlreadyBound
	// ErrNoConvention is returned when no registered convention matches a
	// dataset.
	ErrNoConvention = errors.New("grid: no convention matches the dataset")
	// ErrUnsupportedGeometry is returned for clip geometries that cannot be
	// tested against cell polygons.
	ErrUnsupportedGeometry = errors.New("grid: unsupported geometry")
)

// ErrConfiguration indicates a dataset that is missing variables,
// dimensions or attributes a convention requires.
type ErrConfiguration struct {
	Convention string
	Reason     string
	Err        error
}

func (e *ErrConfiguration) Error() string {
	msg := fmt.Sprintf("%s: dataset is not valid: %s", e.Convention, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ErrConfiguration) Unwrap() error { return e.Err }

// ErrNotIndexable indicates a variable that is not laid out over any grid
// kind of the convention.
type ErrNotIndexable struct {
	Variable string
	Dims     []string
}

func (e *ErrNotIndexable) Error() string {
	return fmt.Sprintf("variable %q with dimensions (%s) is not defined on any grid",
		e.Variable, strings.Join(e.Dims, ", "))
}

// ErrInvalidIndex indicates a linear or native index outside the valid
// range, or of a grid kind the convention does not have.
type ErrInvalidIndex struct {
	Index  string
	Reason string
}

func (e *ErrInvalidIndex) Error() string {
	return fmt.Sprintf("invalid index %s: %s", e.Index, e.Reason)
}

// InvalidLinear reports a linear index outside [0, size) of kind.
func InvalidLinear(linear int, kind GridKind, size int) error {
	return &ErrInvalidIndex{
		Index:  fmt.Sprintf("%d", linear),
		Reason: fmt.Sprintf("%s grid has %d elements", kind, size),
	}
}

// UnknownKind reports a grid kind the convention does not have.
func UnknownKind(kind GridKind) error {
	return &ErrInvalidIndex{Index: string(kind), Reason: "unknown grid kind"}
}

// InvalidIndex reports a native index outside its grid.
func InvalidIndex(index Index, reason string) error {
	return &ErrInvalidIndex{Index: FormatIndex(index), Reason: reason}
}
