package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// StatusResult describes the progress recorded in a shard database.
type StatusResult struct {
	Database      string `json:"database"`
	Parameters    int64  `json:"parameters"`
	Curves        int64  `json:"curves"`
	LastIndex     *int64 `json:"last_index"`
	Fingerprint   string `json:"fingerprint,omitempty"`
	GridSize      int64  `json:"grid_size,omitempty"`
	ChunkSize     int    `json:"chunk_size,omitempty"`
	MatchesConfig bool   `json:"matches_config"`
}

func (r StatusResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database:    %s\n", r.Database)
	fmt.Fprintf(&b, "Parameters:  %d\n", r.Parameters)
	fmt.Fprintf(&b, "Curves:      %d\n", r.Curves)
	if r.LastIndex != nil {
		fmt.Fprintf(&b, "Last index:  %d\n", *r.LastIndex)
	} else {
		b.WriteString("Last index:  none\n")
	}
	if r.Fingerprint == "" {
		b.WriteString("Grid:        not bound")
		return b.String()
	}
	fmt.Fprintf(&b, "Grid:        %s (%d nodes, chunk size %d)\n", r.Fingerprint, r.GridSize, r.ChunkSize)
	if r.MatchesConfig {
		b.WriteString("Config:      matches")
	} else {
		b.WriteString("Config:      differs from the recorded grid")
	}
	return b.String()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status --db PATH",
		Short: "Show the progress recorded in a database",
		Long: `Show the row counts, resume marker and grid recorded in a shard database,
and whether the recorded grid matches the current configuration.

Example:
  gridmaker status --db shard-0.db
  gridmaker status --db shard-0.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		}),
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if _, err := os.Stat(opts.Database); err != nil {
		return Fail("database not found", model.Configf("%v", err))
	}

	st, err := store.Open(opts.Database, cfg.Layout, cfg.StoreOptions()...)
	if err != nil {
		return Fail("failed to open database", err)
	}
	defer st.Close()

	res := StatusResult{Database: opts.Database}
	if res.Parameters, res.Curves, err = st.Counts(ctx); err != nil {
		return Fail("failed to count rows", err)
	}
	last, ok, err := st.LastIndex(ctx)
	if err != nil {
		return Fail("failed to read resume marker", err)
	}
	if ok {
		res.LastIndex = &last
	}

	meta, err := st.Meta(ctx)
	if err != nil {
		return Fail("failed to read grid", err)
	}
	if meta.Order != nil {
		res.Fingerprint = meta.Fingerprint
		res.GridSize = meta.Order.Size()
		res.ChunkSize = meta.ChunkSize
		res.MatchesConfig = meta.Order.Equal(cfg.Order) || cfg.Order.PreservesIDs(*meta.Order) == nil
	}

	return opts.formatter(cmd).Success(res)
}
