package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/ctessum/geom"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

func main() {
	c, err := conventions.Open("shoc_standard.nc")
	var cfgErr *grid.ErrConfiguration
	switch {
	case errors.Is(err, grid.ErrNoConvention):
		log.Fatal("dataset follows no supported convention")
	case errors.As(err, &cfgErr):
		log.Fatalf("%s dataset is malformed: %s", cfgErr.Convention, cfgErr.Reason)
	case err != nil:
		log.Fatal(err)
	}

	// A point outside the model domain
	_, err = c.SelectPoint(geom.Point{X: 0, Y: 0})
	if errors.Is(err, grid.ErrNotFound) {
		fmt.Println("Point is outside every cell")
	}

	// Variables not laid out on any grid
	for _, v := range c.Dataset().Variables() {
		_, _, err := c.GridKindAndSize(v)
		var notIndexable *grid.ErrNotIndexable
		if errors.As(err, &notIndexable) {
			fmt.Printf("Not on a grid: %s %v\n", v.Name, v.Dims)
		}
	}

	// Binding a dataset twice is refused
	if err := c.Bind(); errors.Is(err, grid.ErrAlreadyBound) {
		fmt.Println("Dataset already bound")
	}
}
