package main

import (
	"fmt"
	"log"

	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

func main() {
	c, err := conventions.Open("shoc_standard.nc")
	if err != nil {
		log.Fatal(err)
	}

	// Find the cell containing a point (Moreton Bay)
	item, err := c.IndexForPoint(geom.Point{X: 153.25, Y: -27.3})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Cell: %s (linear %d)\n", grid.FormatIndex(item.Index), item.LinearIndex)

	// Extract the time series at that cell
	point, err := c.SelectIndex(item.Index)
	if err != nil {
		log.Fatal(err)
	}
	for _, v := range point.Variables() {
		fmt.Printf("  %s %v\n", v.Name, v.Dims)
	}

	// Every cell intersecting a viewport, backed by the R-tree index
	viewport := &geom.Bounds{
		Min: geom.Point{X: 153.0, Y: -27.5},
		Max: geom.Point{X: 153.5, Y: -27.0},
	}
	cells, err := c.IntersectingCells(viewport)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Cells in viewport: %d\n", cells.GetCardinality())
}
