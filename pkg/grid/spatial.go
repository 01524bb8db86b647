package grid

import (
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/dhconnelly/rtreego"
)

// envelopeEpsilon pads envelopes so that rtreego, which only reports
// overlapping rectangles, also reports envelopes that merely touch.
const envelopeEpsilon = 1e-9

// Item is one entry in a SpatialIndex: a cell polygon together with its
// linear and native index. Items are immutable once built.
type Item struct {
	LinearIndex int
	Index       Index
	Polygon     geom.Polygon

	bounds *geom.Bounds
}

// Bounds implements rtreego.Spatial interface.
func (it *Item) Bounds() rtreego.Rect {
	return rect(it.bounds, 0)
}

// Envelope returns the bounding box of the item polygon.
func (it *Item) Envelope() *geom.Bounds {
	return it.bounds
}

func rect(b *geom.Bounds, pad float64) rtreego.Rect {
	point := rtreego.Point{b.Min.X - pad, b.Min.Y - pad}

	// R-tree requires non-zero dimensions
	xLength := b.Max.X - b.Min.X + 2*pad
	yLength := b.Max.Y - b.Min.Y + 2*pad
	if xLength < envelopeEpsilon {
		xLength = envelopeEpsilon
	}
	if yLength < envelopeEpsilon {
		yLength = envelopeEpsilon
	}

	r, _ := rtreego.NewRect(point, []float64{xLength, yLength})
	return r
}

// SpatialIndex answers envelope and intersection queries over the cell
// polygons of a convention. Cells without a polygon are not indexed.
type SpatialIndex struct {
	rtree *rtreego.Rtree // R-tree for fast spatial queries
	items []*Item        // every item ordered by linear index
}

// NewSpatialIndex indexes every non-nil polygon. unravel converts a linear
// index into the native index stored on each item.
func NewSpatialIndex(polygons []geom.Polygon, unravel func(int) (Index, error)) (*SpatialIndex, error) {
	items := make([]*Item, 0, len(polygons))
	spatials := make([]rtreego.Spatial, 0, len(polygons))
	for linear, poly := range polygons {
		if poly == nil {
			continue
		}
		index, err := unravel(linear)
		if err != nil {
			return nil, fmt.Errorf("index cell %d: %w", linear, err)
		}
		item := &Item{
			LinearIndex: linear,
			Index:       index,
			Polygon:     poly,
			bounds:      PolygonBounds(poly),
		}
		items = append(items, item)
		spatials = append(spatials, item)
	}

	// Create R-tree (2D, min=25 children, max=50 children), bulk loaded.
	s := &SpatialIndex{items: items}
	if len(spatials) > 0 {
		s.rtree = rtreego.NewTree(2, 25, 50, spatials...)
	}
	return s, nil
}

// Len returns the number of indexed cells.
func (s *SpatialIndex) Len() int {
	return len(s.items)
}

// Items returns every indexed item ordered by linear index.
func (s *SpatialIndex) Items() []*Item {
	return s.items
}

// Candidates returns the items whose envelope touches the envelope of g.
// The result can contain items that do not intersect g.
func (s *SpatialIndex) Candidates(g geom.Geom) []*Item {
	bounds := g.Bounds()
	if s.rtree == nil {
		return s.candidatesLinear(bounds)
	}

	spatials := s.rtree.SearchIntersect(rect(bounds, envelopeEpsilon))
	result := make([]*Item, 0, len(spatials))
	for _, spatial := range spatials {
		result = append(result, spatial.(*Item))
	}
	return result
}

// candidatesLinear performs a linear scan. Used when the tree is empty
// and by benchmarks.
func (s *SpatialIndex) candidatesLinear(bounds *geom.Bounds) []*Item {
	var result []*Item
	for _, item := range s.items {
		if boundsOverlap(item.bounds, bounds) {
			result = append(result, item)
		}
	}
	return result
}

// Intersecting returns the items whose polygon intersects g, ordered by
// linear index.
func (s *SpatialIndex) Intersecting(g geom.Geom) ([]*Item, error) {
	if err := CheckGeometry(g); err != nil {
		return nil, err
	}
	if g.Len() == 0 {
		return nil, nil
	}
	candidates := s.Candidates(g)
	result := candidates[:0]
	for _, item := range candidates {
		ok, err := Intersects(item.Polygon, g)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LinearIndex < result[j].LinearIndex
	})
	return result, nil
}

// Lookup returns the item whose polygon contains p. When several cells
// contain the point, as happens on shared edges and vertices, the one with
// the lowest linear index wins.
func (s *SpatialIndex) Lookup(p geom.Point) (*Item, bool) {
	hits, _ := s.Intersecting(p)
	if len(hits) == 0 {
		return nil, false
	}
	return hits[0], true
}
