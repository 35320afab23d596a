package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirofedurco/EB-gridmaker/internal/config"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/shardsync"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
)

// SyncOptions holds flags for the push and pull commands.
type SyncOptions struct {
	*RootOptions
	Database  string
	Container string
	Blob      string
}

// SyncResult reports a transferred shard file.
type SyncResult struct {
	Database  string `json:"database"`
	Container string `json:"container"`
	Blob      string `json:"blob"`
	URL       string `json:"url,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push --db PATH --container C [--blob NAME]",
		Short: "Upload a snapshot of a shard database to Azure Blob Storage",
		Long: `Upload a consistent snapshot of a shard database to an Azure Blob Storage
container. The connection string is read from AZURE_STORAGE_CONNECTION_STRING.
The blob name defaults to the database file name.

Example:
  gridmaker push --db shard-0.db --container atlas`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			return runPush(opts, cmd)
		}),
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Container, "container", "", "blob container (default from config storage.container)")
	cmd.Flags().StringVar(&opts.Blob, "blob", "", "blob name (default from config storage.blob, else the file name)")

	return cmd
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull --container C --blob NAME --db PATH",
		Short: "Download a shard database from Azure Blob Storage",
		Long: `Download a shard database from an Azure Blob Storage container to a new
local file. The connection string is read from AZURE_STORAGE_CONNECTION_STRING.

Example:
  gridmaker pull --container atlas --blob shard-0.db --db shard-0.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			return runPull(opts, cmd)
		}),
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "destination path (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Container, "container", "", "blob container (default from config storage.container)")
	cmd.Flags().StringVar(&opts.Blob, "blob", "", "blob name (default from config storage.blob)")

	return cmd
}

// syncer resolves the container and blob name and builds the Syncer.
func (o *SyncOptions) syncer(cmd *cobra.Command, cfg *config.Config) (*shardsync.Syncer, error) {
	if o.Container == "" {
		o.Container = cfg.Storage.Container
	}
	if o.Blob == "" {
		o.Blob = cfg.Storage.Blob
	}

	log := o.logger(cmd.ErrOrStderr())
	blobs := o.Blobs
	if blobs == nil {
		if cfg.ConnectionString == "" {
			return nil, Fail("no storage credentials",
				model.Configf("%s is not set", config.EnvConnectionString))
		}
		azure, err := shardsync.NewAzureBlobs(cfg.ConnectionString, log)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid storage credentials", err)
		}
		blobs = azure
	}

	y, err := shardsync.New(blobs, o.Container, log)
	if err != nil {
		return nil, Fail("invalid storage target", err)
	}
	return y, nil
}

func runPush(opts *SyncOptions, cmd *cobra.Command) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	y, err := opts.syncer(cmd, cfg)
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

	blob := opts.Blob
	if blob == "" {
		blob = shardsync.BlobName(opts.Database)
	}
	url, err := y.Push(cmd.Context(), st, blob)
	if err != nil {
		return Fail("push failed", err)
	}
	return opts.formatter(cmd).Success(SyncResult{
		Database:  opts.Database,
		Container: opts.Container,
		Blob:      blob,
		URL:       url,
	})
}

func runPull(opts *SyncOptions, cmd *cobra.Command) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	y, err := opts.syncer(cmd, cfg)
	if err != nil {
		return err
	}

	n, err := y.Pull(cmd.Context(), opts.Blob, opts.Database)
	if err != nil {
		return Fail("pull failed", err)
	}
	return opts.formatter(cmd).Success(SyncResult{
		Database:  opts.Database,
		Container: opts.Container,
		Blob:      opts.Blob,
		Bytes:     n,
	})
}

func (r SyncResult) String() string {
	if r.URL != "" {
		return fmt.Sprintf("Pushed %s to %s", r.Database, r.URL)
	}
	return fmt.Sprintf("Pulled %s/%s to %s (%d bytes)", r.Container, r.Blob, r.Database, r.Bytes)
}
