package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mirofedurco/EB-gridmaker/internal/store"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Output string
	Driver string
}

// MergeResult reports a finished merge.
type MergeResult struct {
	Output  string   `json:"output"`
	Sources []string `json:"sources"`
}

func (r MergeResult) String() string {
	return fmt.Sprintf("Merged %d databases into %s:\n  %s", len(r.Sources), r.Output, strings.Join(r.Sources, "\n  "))
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge --output DST SRC SRC...",
		Short: "Merge shard databases into one",
		Long: `Merge the databases of disjoint shards of the same grid into a new file.

The output must not exist. Sources must record the same grid and must not
share any node; otherwise the merge fails and no output is left behind.
The merged database carries no resume marker.

Example:
  gridmaker merge --output atlas.db shard-0.db shard-1.db shard-2.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args, cmd)
		}),
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "path of the merged database (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().StringVar(&opts.Driver, "driver", store.DriverCGO, "sqlite3 (cgo) or sqlite (pure Go)")

	return cmd
}

func runMerge(opts *MergeOptions, sources []string, cmd *cobra.Command) error {
	log := opts.logger(cmd.ErrOrStderr())
	defer func() { _ = log.Sync() }()

	err := store.Merge(cmd.Context(), sources, opts.Output,
		store.WithDriver(opts.Driver), store.WithLogger(log))
	if err != nil {
		return Fail("merge failed", err)
	}
	return opts.formatter(cmd).Success(MergeResult{Output: opts.Output, Sources: sources})
}
