package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

func main() {
	// Build the mask once from the first file of a model run
	c, err := conventions.Open("run/out_2024-01.nc")
	if err != nil {
		log.Fatal(err)
	}
	clip := geom.Polygon{{
		{X: 153.0, Y: -27.5},
		{X: 153.5, Y: -27.5},
		{X: 153.5, Y: -27.0},
		{X: 153.0, Y: -27.0},
	}}
	mask, err := c.MakeClipMask(clip, 0)
	if err != nil {
		log.Fatal(err)
	}
	if err := mask.Save("moreton_bay_mask.nc"); err != nil {
		log.Fatal(err)
	}

	// Apply it to the rest of the run without the clip geometry
	saved, err := grid.LoadClipMask("moreton_bay_mask.nc")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Mask type: %s, kinds: %v\n", saved.Type(), saved.Kinds())

	scratch, err := os.MkdirTemp("", "clip-")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(scratch)

	for _, month := range []string{"2024-02", "2024-03"} {
		next, err := conventions.Open("run/out_" + month + ".nc")
		if err != nil {
			log.Fatal(err)
		}
		clipped, err := next.ApplyClipMask(saved, scratch)
		if err != nil {
			log.Fatal(err)
		}
		if err := clipped.WriteFile("moreton_bay_" + month + ".nc"); err != nil {
			log.Fatal(err)
		}
	}
}
