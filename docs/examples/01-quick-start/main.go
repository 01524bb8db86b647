package main

import (
	"fmt"
	"log"

	"github.com/Lachlan00/emsarray/pkg/conventions"
)

func main() {
	// Open dataset and detect its convention
	c, err := conventions.Open("shoc_standard.nc")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Convention: %s\n", c.Name())

	// Print every grid and its size
	for _, kind := range c.GridKinds() {
		size, err := c.GridSize(kind)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  %-5s %v: %d\n", kind, c.GridDimensions(kind), size)
	}

	// Cells without coordinates have no polygon
	mask, err := c.Mask()
	if err != nil {
		log.Fatal(err)
	}
	valid := 0
	for _, ok := range mask {
		if ok {
			valid++
		}
	}
	fmt.Printf("Cells with geometry: %d of %d\n", valid, len(mask))
}
