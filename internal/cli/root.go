// Package cli implements the emsarray command line tool.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Lachlan00/emsarray/pkg/grid"
)

const envPrefix = "EMSARRAY"

// Command holds the state shared by every subcommand.
type Command struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	LogLevel  string
	LogFormat string

	logger *grid.Logger
}

// NewRootCommand returns the emsarray command with every subcommand
// attached.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &Command{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	rc := &cobra.Command{
		Use:   "emsarray",
		Short: "Inspect, clip and export gridded ocean model datasets.",
		Long: `emsarray works with netCDF datasets laid out on CF grids, Arakawa C
staggered grids and UGRID unstructured meshes.

The dataset convention is detected automatically. Geometry arguments take
inline GeoJSON or @path to read GeoJSON from a file.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setAllConfig(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			logger, err := newLogger(c.Stderr, c.LogLevel, c.LogFormat)
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
	}
	flags := rc.PersistentFlags()
	flags.StringP("config", "c", "", "Configuration file to read from.")
	flags.StringVar(&c.LogLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	flags.StringVar(&c.LogFormat, "log-format", "text", "Log format: text or json.")

	rc.AddCommand(newClipCommand(c))
	rc.AddCommand(newMakeClipMaskCommand(c))
	rc.AddCommand(newApplyClipMaskCommand(c))
	rc.AddCommand(newExportGeometryCommand(c))
	rc.AddCommand(newSelectPointCommand(c))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// Logger returns the logger configured by the persistent flags.
func (c *Command) Logger() *grid.Logger {
	if c.logger == nil {
		return grid.NoopLogger()
	}
	return c.logger
}

func newLogger(w io.Writer, level, format string) (*grid.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: l}
	switch strings.ToLower(format) {
	case "text", "":
		return grid.NewLogger(slog.NewTextHandler(w, opts)), nil
	case "json":
		return grid.NewLogger(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// setAllConfig applies configuration to every flag in flags, taking in
// priority order the command line, EMSARRAY_ environment variables and
// the file named by the config flag. Environment variables are the flag
// names upper cased with dashes replaced by underscores.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validTags := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validTags[f.Name] = true
	})

	if path := v.GetString("config"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("reading configuration file '%s': %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading configuration file '%s': %w", path, err)
		}
		for _, key := range v.AllKeys() {
			if !validTags[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		flagErr = f.Value.Set(v.GetString(f.Name))
	})
	return flagErr
}
