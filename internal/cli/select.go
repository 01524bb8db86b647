package cli

import (
	"fmt"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/spf13/cobra"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

func newSelectPointCommand(c *Command) *cobra.Command {
	return &cobra.Command{
		Use:   "select-point INPUT LON LAT OUTPUT",
		Short: "Extract the data at the cell containing a point.",
		Long: `
Finds the cell of INPUT containing (LON, LAT) and writes every variable
defined on that cell's grid to OUTPUT, with the grid dimensions removed.
The index of the cell is printed to stdout.
`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q: %w", args[1], err)
			}
			lat, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q: %w", args[2], err)
			}

			conv, err := conventions.Open(args[0], grid.WithLogger(c.Logger()))
			if err != nil {
				return err
			}
			item, err := conv.IndexForPoint(geom.Point{X: lon, Y: lat})
			if err != nil {
				return err
			}
			out, err := conv.SelectIndex(item.Index)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Stdout, "%s linear=%d\n", grid.FormatIndex(item.Index), item.LinearIndex)
			return out.WriteFile(args[3])
		},
	}
}
