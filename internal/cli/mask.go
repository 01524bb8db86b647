package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Lachlan00/emsarray/pkg/conventions"
	"github.com/Lachlan00/emsarray/pkg/grid"
)

// MakeClipMaskCommand writes the clip mask of a geometry without applying
// it.
type MakeClipMaskCommand struct {
	*Command
	Buffer int
}

func newMakeClipMaskCommand(c *Command) *cobra.Command {
	mk := &MakeClipMaskCommand{Command: c}
	cmd := &cobra.Command{
		Use:   "make-clip-mask INPUT GEOMETRY MASK",
		Short: "Compute a reusable clip mask.",
		Long: `
Computes the cells of INPUT intersecting GEOMETRY and writes the result to
MASK as a netCDF file. The mask can be applied with apply-clip-mask to any
dataset on the same grid.
`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mk.Run(args[0], args[1], args[2])
		},
	}
	cmd.Flags().IntVarP(&mk.Buffer, "buffer", "b", 0, "Number of rings of neighbouring cells to add around the clip.")
	return cmd
}

// Run computes and saves the mask.
func (c *MakeClipMaskCommand) Run(input, geometry, output string) error {
	clip, err := readGeometry(geometry)
	if err != nil {
		return err
	}
	conv, err := conventions.Open(input, grid.WithLogger(c.Logger()))
	if err != nil {
		return err
	}
	mask, err := conv.MakeClipMask(clip, c.Buffer)
	if err != nil {
		return fmt.Errorf("make clip mask: %w", err)
	}
	return mask.Save(output)
}

// ApplyClipMaskCommand applies a saved clip mask to many datasets.
type ApplyClipMaskCommand struct {
	*Command

	// Workers is the number of datasets clipped at once. If 0, defaults
	// to runtime.NumCPU().
	Workers int

	// SkipErrors continues with the remaining datasets when one fails.
	// Failures are logged and reported together at the end.
	SkipErrors bool

	ScratchDir string

	// Progress is called after each dataset completes, successfully or
	// not.
	Progress func(done, total int)
}

func newApplyClipMaskCommand(c *Command) *cobra.Command {
	apply := &ApplyClipMaskCommand{Command: c}
	cmd := &cobra.Command{
		Use:   "apply-clip-mask MASK OUTDIR INPUT...",
		Short: "Apply a saved clip mask to one or more datasets.",
		Long: `
Clips every INPUT with the mask in MASK, writing each result to OUTDIR under
its original file name. Inputs are processed concurrently, each with its own
scratch directory.
`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apply.Run(cmd.Context(), args[0], args[1], args[2:])
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&apply.Workers, "workers", "w", runtime.NumCPU(), "Number of datasets to clip concurrently.")
	flags.BoolVar(&apply.SkipErrors, "skip-errors", false, "Continue when a dataset fails to clip.")
	flags.StringVar(&apply.ScratchDir, "scratch-dir", "", "Parent directory for temporary files - default system temp dir")
	return cmd
}

// Run applies the mask to every input.
func (c *ApplyClipMaskCommand) Run(ctx context.Context, maskPath, outDir string, inputs []string) error {
	mask, err := grid.LoadClipMask(maskPath)
	if err != nil {
		return err
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	errs := make([]error, len(inputs))
	var done atomic.Int64
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := c.applyOne(mask, input, filepath.Join(outDir, filepath.Base(input)))
			if c.Progress != nil {
				c.Progress(int(done.Add(1)), len(inputs))
			}
			if err == nil {
				return nil
			}
			err = fmt.Errorf("%s: %w", input, err)
			if !c.SkipErrors {
				return err
			}
			c.Logger().Error("apply clip mask failed", "input", input, "error", err)
			errs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d datasets failed", failed, len(inputs))
	}
	return nil
}

func (c *ApplyClipMaskCommand) applyOne(mask *grid.ClipMask, input, output string) error {
	conv, err := conventions.Open(input, grid.WithLogger(c.Logger()))
	if err != nil {
		return err
	}
	return withScratchDir(c.ScratchDir, func(scratch string) error {
		out, err := conv.ApplyClipMask(mask, scratch)
		if err != nil {
			return err
		}
		return out.WriteFile(output)
	})
}
