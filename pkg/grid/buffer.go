package grid

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Neighbours returns the linear indices of the cells adjacent to a cell.
type Neighbours func(linear int) []int

// Buffer grows cells by rings topological steps. Each step adds every
// neighbour of the cells added by the previous step. cells is not
// modified.
func Buffer(cells *roaring.Bitmap, rings int, neighbours Neighbours) *roaring.Bitmap {
	out := cells.Clone()
	frontier := cells
	for ring := 0; ring < rings && !frontier.IsEmpty(); ring++ {
		next := roaring.New()
		it := frontier.Iterator()
		for it.HasNext() {
			for _, n := range neighbours(int(it.Next())) {
				if !out.Contains(uint32(n)) {
					next.Add(uint32(n))
				}
			}
		}
		out.Or(next)
		frontier = next
	}
	return out
}

// GridNeighbours returns the neighbourhood of a row-major rows x cols grid.
// Cells sharing an edge or a vertex are neighbours.
func GridNeighbours(rows, cols int) Neighbours {
	return func(linear int) []int {
		j, i := linear/cols, linear%cols
		out := make([]int, 0, 8)
		for dj := -1; dj <= 1; dj++ {
			for di := -1; di <= 1; di++ {
				if dj == 0 && di == 0 {
					continue
				}
				nj, ni := j+dj, i+di
				if nj < 0 || nj >= rows || ni < 0 || ni >= cols {
					continue
				}
				out = append(out, nj*cols+ni)
			}
		}
		return out
	}
}

// Smear maps cells on a rows x cols grid onto a grid of
// (rows+dRows) x (cols+dCols), where every output cell (j, i) is set when
// any input cell (j-a, i-b) with 0 <= a <= dRows and 0 <= b <= dCols is
// set. With (0, 1) this derives the cells on either side of every face,
// with (1, 1) the four corners of every face.
func Smear(cells *roaring.Bitmap, rows, cols, dRows, dCols int) *roaring.Bitmap {
	outCols := cols + dCols
	out := roaring.New()
	it := cells.Iterator()
	for it.HasNext() {
		linear := int(it.Next())
		j, i := linear/cols, linear%cols
		for a := 0; a <= dRows; a++ {
			for b := 0; b <= dCols; b++ {
				out.Add(uint32((j+a)*outCols + i + b))
			}
		}
	}
	return out
}

// BitmapFromInts returns a bitmap holding every value of ints.
func BitmapFromInts(ints []int) *roaring.Bitmap {
	b := roaring.New()
	for _, v := range ints {
		b.Add(uint32(v))
	}
	return b
}

// Ints returns the members of b in ascending order.
func Ints(b *roaring.Bitmap) []int {
	out := make([]int, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
