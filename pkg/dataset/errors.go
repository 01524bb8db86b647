package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDimension is returned when a selector names a dimension that
	// no variable in the dataset uses.
	ErrUnknownDimension = errors.New("dataset: unknown dimension")
	// ErrUnknownVariable is returned when a named variable does not exist.
	ErrUnknownVariable = errors.New("dataset: unknown variable")
	// ErrAlreadyBound is returned by Bind when a convention is already
	// attached to the dataset.
	ErrAlreadyBound = errors.New("dataset: a convention is already bound")
	// ErrEmptyDimension is returned when writing a dimension of length zero,
	// which netCDF classic would treat as the record dimension.
	ErrEmptyDimension = errors.New("dataset: zero-length dimension cannot be written")
)

// ErrShapeMismatch indicates a variable whose data does not agree with the
// dimension sizes already registered in the dataset.
type ErrShapeMismatch struct {
	Variable string
	Dim      string
	Want     int
	Got      int
}

func (e *ErrShapeMismatch) Error() string {
	if e.Dim == "" {
		return fmt.Sprintf("variable %q: expected %d elements, got %d", e.Variable, e.Want, e.Got)
	}
	return fmt.Sprintf("variable %q: dimension %q has size %d, got %d",
		e.Variable, e.Dim, e.Want, e.Got)
}

// ErrIndexOutOfRange indicates a positional index outside a dimension.
type ErrIndexOutOfRange struct {
	Dim   string
	Index int
	Size  int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range for dimension %q of size %d", e.Index, e.Dim, e.Size)
}
