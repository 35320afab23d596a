// Package cli implements the gridmaker command line: evaluating a shard of the
// grid, merging shard databases, inspecting them, and moving them through
// blob storage.
package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mirofedurco/EB-gridmaker/internal/config"
	"github.com/mirofedurco/EB-gridmaker/internal/engine"
	"github.com/mirofedurco/EB-gridmaker/internal/shardsync"
	"github.com/mirofedurco/EB-gridmaker/internal/simulator"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a YAML config file; built-in defaults when empty

	// Simulator overrides the configured external simulator (for testing).
	Simulator simulator.Simulator
	// RunIDs overrides the run id generator (for testing).
	RunIDs engine.RunIDGenerator
	// Blobs overrides the Azure blob client (for testing).
	Blobs shardsync.Blobs

	started bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gridmaker CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gridmaker",
		Short: "Eclipsing binary light curve grid generator",
		Long: `Generate a database of synthetic eclipsing-binary light curves.

Every combination of mass ratio, component radii, effective temperatures and
inclination is numbered, shuffled with a fixed seed and split into shards.
Each shard is evaluated into its own SQLite database, which can be resumed
after interruption and merged with the other shards afterwards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a YAML configuration file")

	// Add subcommands
	cmd.AddCommand(NewEvaluateCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewCheckIDsCommand(opts))
	cmd.AddCommand(NewEstimateCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are rendered on stdout in JSON mode and on stderr in text mode.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return (&RootOptions{}).execute(ctx, args, stdout, stderr)
}

func (o *RootOptions) execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o.started = false
	cmd := newRootCommand(o)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	code := GetExitCode(err)
	if code == ExitFailure && !o.started {
		// cobra rejected arguments or required flags before the command ran.
		code = ExitCommandError
		err = WrapExitError(code, "invalid command", err)
	}

	out := &OutputFormatter{Format: o.Format, Writer: stderr, Verbose: o.Verbose}
	if o.Format == "json" {
		out.Writer = stdout
	}
	_ = out.Error(errorCode(err), err.Error(), nil)
	return code
}

// run marks the command as started, so later errors keep their own exit code.
func (o *RootOptions) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		o.started = true
		return fn(cmd, args)
	}
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger builds a JSON production logger at info level, or a console
// development logger at debug level with --verbose. Logs go to w.
func (o *RootOptions) logger(w io.Writer) *zap.Logger {
	if o.Verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel), zap.AddCaller())
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.InfoLevel))
}

// loadFile reads the configuration named by --config.
func (o *RootOptions) loadFile() (config.File, error) {
	f, err := config.LoadFile(o.Config)
	if err != nil {
		return config.File{}, Fail("failed to load configuration", err)
	}
	return f, nil
}

// load reads and resolves the configuration named by --config.
func (o *RootOptions) load() (*config.Config, error) {
	f, err := o.loadFile()
	if err != nil {
		return nil, err
	}
	return resolve(f)
}

func resolve(f config.File) (*config.Config, error) {
	c, err := config.Resolve(f)
	if err != nil {
		return nil, Fail("invalid configuration", err)
	}
	return c, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
