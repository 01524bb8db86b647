// Package grid defines the contract shared by every grid convention and
// the machinery built on it: the spatial index, point and index
// selection, and clip masks.
//
// # Grid kinds and indices
//
// A convention addresses its elements (faces, edges, nodes) through native
// indices, which are small comparable structs implementing Index. Every
// grid kind also has a flat linear index space [0, N). RavelIndex and
// UnravelIndex convert between the two and are exact inverses.
//
// # Polygons and the spatial index
//
// Each element of the default grid kind has one polygon, or nil when the
// element has no valid geometry. Polygons, the mask derived from them, and
// the R-tree spatial index are built once on first use and cached for the
// life of the convention.
//
// Example:
//
//	c, err := conventions.Default().Open(ds)
//	if err != nil {
//	    return err
//	}
//	item, err := c.IndexForPoint(geom.Point{X: 151.2, Y: -33.8})
//	if errors.Is(err, grid.ErrNotFound) {
//	    // point is outside the grid
//	}
//	fmt.Println(item.LinearIndex, grid.FormatIndex(item.Index))
//
// # Clipping
//
// MakeClipMask finds the cells intersecting a geometry, optionally grows
// the selection by rings of neighbouring cells, and derives which elements
// of the other grid kinds survive. The result is a ClipMask, itself a
// small dataset that can be saved and applied later:
//
//	mask, err := c.MakeClipMask(region, 1)
//	err = mask.Save("mask.nc")
//	clipped, err := c.ApplyClipMask(mask, scratchDir)
//
// The scratch directory passed to ApplyClipMask and Clip belongs to the
// caller: the convention may write files into it but never removes them.
//
// # Concurrency
//
// A convention is meant to be used from one goroutine. The lazily built
// state is guarded so that concurrent first use is still safe.
package grid
