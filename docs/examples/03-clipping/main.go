package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/export"
)

func main() {
	c, err := conventions.Open("shoc_standard.nc")
	if err != nil {
		log.Fatal(err)
	}

	// Clip region
	clip := geom.Polygon{{
		{X: 153.0, Y: -27.5},
		{X: 153.5, Y: -27.5},
		{X: 153.5, Y: -27.0},
		{X: 153.0, Y: -27.0},
	}}

	// Scratch files are written here while clipping
	scratch, err := os.MkdirTemp("", "clip-")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(scratch)

	// Keep one extra ring of cells around the region
	clipped, err := c.Clip(clip, scratch, 1)
	if err != nil {
		log.Fatal(err)
	}
	if err := clipped.WriteFile("moreton_bay.nc"); err != nil {
		log.Fatal(err)
	}

	for _, dim := range clipped.Dims() {
		size, _ := clipped.DimSize(dim)
		fmt.Printf("  %s: %d\n", dim, size)
	}

	// Export the clipped geometry for inspection in a GIS
	small, err := conventions.Open("moreton_bay.nc")
	if err != nil {
		log.Fatal(err)
	}
	if err := export.WriteFile("moreton_bay.geojson", small); err != nil {
		log.Fatal(err)
	}
}
