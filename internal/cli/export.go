package cli

import (
	"github.com/spf13/cobra"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/export"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

func newExportGeometryCommand(c *Command) *cobra.Command {
	return &cobra.Command{
		Use:   "export-geometry INPUT OUTPUT",
		Short: "Export the cell polygons of a dataset as GeoJSON.",
		Long: `
Writes one GeoJSON polygon feature per cell of INPUT to OUTPUT. Features
carry the linear_index and index of their cell. OUTPUT is zstd compressed
when its name ends in .zst.
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := conventions.Open(args[0], grid.WithLogger(c.Logger()))
			if err != nil {
				return err
			}
			return export.WriteFile(args[1], conv)
		},
	}
}
