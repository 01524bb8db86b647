package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// ClipCommand clips a dataset to a geometry.
type ClipCommand struct {
	*Command
	Buffer     int
	ScratchDir string
}

func newClipCommand(c *Command) *cobra.Command {
	clip := &ClipCommand{Command: c}
	cmd := &cobra.Command{
		Use:   "clip INPUT GEOMETRY OUTPUT",
		Short: "Clip a dataset to the cells intersecting a geometry.",
		Long: `
Writes the part of INPUT that intersects GEOMETRY to OUTPUT. Structured
grids are cut to the bounding box of the intersecting cells, with data
outside the geometry filled with NaN. Unstructured meshes keep exactly the
intersecting faces.
`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return clip.Run(args[0], args[1], args[2])
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&clip.Buffer, "buffer", "b", 0, "Number of rings of neighbouring cells to add around the clip.")
	flags.StringVar(&clip.ScratchDir, "scratch-dir", "", "Parent directory for temporary files - default system temp dir")
	return cmd
}

// Run executes the clip.
func (c *ClipCommand) Run(input, geometry, output string) error {
	clip, err := readGeometry(geometry)
	if err != nil {
		return err
	}
	conv, err := conventions.Open(input, grid.WithLogger(c.Logger()))
	if err != nil {
		return err
	}
	return withScratchDir(c.ScratchDir, func(scratch string) error {
		out, err := conv.Clip(clip, scratch, c.Buffer)
		if err != nil {
			return fmt.Errorf("clip %s: %w", input, err)
		}
		return out.WriteFile(output)
	})
}

// withScratchDir runs fn with a fresh temporary directory under parent,
// removing it afterwards.
func withScratchDir(parent string, fn func(dir string) error) error {
	dir, err := os.MkdirTemp(parent, "emsarray-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}
