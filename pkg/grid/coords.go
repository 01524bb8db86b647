package grid

import (
	"errors"

	"github.com/Lachlan00/emsarray/pkg/dataset"
)

// DepthNames returns the depth coordinate variables of c. A depth
// coordinate is flagged as a vertical axis through its axis, positive or
// standard_name attribute and is not itself defined on a grid.
func DepthNames(c Convention) []string {
	var names []string
	for _, v := range c.Dataset().Variables() {
		if !isDepth(v) {
			continue
		}
		var notIndexable *ErrNotIndexable
		if _, _, err := c.GridKindAndSize(v); errors.As(err, &notIndexable) {
			names = append(names, v.Name)
		}
	}
	return names
}

func isDepth(v *dataset.Variable) bool {
	if v.Attrs.String("axis") == "Z" {
		return true
	}
	switch v.Attrs.String("positive") {
	case "up", "down":
		return true
	}
	switch v.Attrs.String("standard_name") {
	case "depth", "height", "altitude":
		return true
	}
	return false
}

// TimeName returns the name of the time coordinate of ds.
func TimeName(ds *dataset.Dataset) (string, bool) {
	for _, v := range ds.Variables() {
		if v.Attrs.String("standard_name") == "time" || v.Attrs.String("axis") == "T" {
			return v.Name, true
		}
	}
	return "", false
}
