package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mirofedurco/EB-gridmaker/internal/config"
	"github.com/mirofedurco/EB-gridmaker/internal/engine"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
)

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	*RootOptions
	Database    string
	Bottom      float64
	Top         float64
	Morphology  string
	Processes   int
	ChunkSize   int
	Resume      string
	Driver      string
	MetricsAddr string
}

// EvaluateResult is the outcome of one evaluate invocation.
type EvaluateResult struct {
	Database    string       `json:"database"`
	Bottom      float64      `json:"bottom"`
	Top         float64      `json:"top"`
	Stats       engine.Stats `json:"stats"`
	Interrupted bool         `json:"interrupted"`
}

func (r EvaluateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shard [%g, %g) of %s", r.Bottom, r.Top, r.Database)
	if r.Interrupted {
		b.WriteString(" interrupted; rerun the same command to resume")
	} else {
		b.WriteString(" finished")
	}
	s := r.Stats
	fmt.Fprintf(&b, "\n  committed:    %d\n  already done: %d\n  invalid:      %d\n  filtered:     %d\n  skipped:      %d\n  failed:       %d",
		s.Committed, s.AlreadyDone, s.Invalid, s.Filtered, s.Skipped, s.Failed)
	return b.String()
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evaluate --db PATH [flags] [-- simulator command...]",
		Short: "Evaluate one shard of the grid into a database",
		Long: `Evaluate the nodes of one shard of the shuffled grid and store the light
curves of every valid node in a SQLite database.

The shard is the slice [bottom, top) of the shuffled node order. Running the
same command again on the same database resumes after the last committed
chunk. Arguments after "--" replace the configured simulator command.

Example:
  gridmaker evaluate --db shard-0.db --bottom 0 --top 0.25 -- ./simulate
  gridmaker evaluate --config atlas.yaml --db atlas.db --morphology detached`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: rootOpts.run(func(cmd *cobra.Command, args []string) error {
			return runEvaluate(opts, args, cmd)
		}),
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Float64Var(&opts.Bottom, "bottom", 0, "lower shard boundary as a fraction of the grid")
	cmd.Flags().Float64Var(&opts.Top, "top", 1, "upper shard boundary as a fraction of the grid")
	cmd.Flags().StringVar(&opts.Morphology, "morphology", "", "all|detached|overcontact")
	cmd.Flags().IntVar(&opts.Processes, "processes", 0, "number of parallel simulations")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "nodes per chunk between barriers")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "window|marker")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "sqlite3 (cgo) or sqlite (pure Go)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

// applyFlags overrides the configuration with explicitly set flags.
func (o *EvaluateOptions) applyFlags(cmd *cobra.Command, f *config.File, args []string) {
	f.Database = o.Database
	flags := cmd.Flags()
	if flags.Changed("bottom") {
		f.Shard.Bottom = o.Bottom
	}
	if flags.Changed("top") {
		f.Shard.Top = o.Top
	}
	if flags.Changed("morphology") {
		f.Morphology = o.Morphology
	}
	if flags.Changed("processes") {
		f.Processes = o.Processes
	}
	if flags.Changed("chunk-size") {
		f.ChunkSize = o.ChunkSize
	}
	if flags.Changed("resume") {
		f.Resume = o.Resume
	}
	if flags.Changed("driver") {
		f.Driver = o.Driver
	}
	if len(args) > 0 {
		f.Simulator.Command = args
	}
}

func runEvaluate(opts *EvaluateOptions, args []string, cmd *cobra.Command) error {
	log := opts.logger(cmd.ErrOrStderr())
	defer func() { _ = log.Sync() }()

	f, err := opts.loadFile()
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, &f, args)
	cfg, err := resolve(f)
	if err != nil {
		return err
	}

	sim := opts.Simulator
	if sim == nil {
		if sim, err = cfg.NewSimulator(); err != nil {
			return Fail("no simulator", err)
		}
	}

	log.Info("opening database", zap.String("path", cfg.Database), zap.String("driver", cfg.Driver))
	st, err := store.Open(cfg.Database, cfg.Layout, append(cfg.StoreOptions(), store.WithLogger(log))...)
	if err != nil {
		return Fail("failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", zap.Error(closeErr))
		}
	}()

	reg := prometheus.NewRegistry()
	engOpts := []engine.Option{engine.WithLogger(log), engine.WithRegisterer(reg)}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng, err := engine.New(st, sim, cfg.Engine(), engOpts...)
	if err != nil {
		return Fail("failed to create engine", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, finishing in-flight nodes", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, reg, log)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	stats, err := eng.Run(ctx)
	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if err != nil && !interrupted {
		return Fail("evaluation failed", err)
	}

	return opts.formatter(cmd).Success(EvaluateResult{
		Database:    cfg.Database,
		Bottom:      cfg.Shard.Bottom,
		Top:         cfg.Shard.Top,
		Stats:       stats,
		Interrupted: interrupted,
	})
}

// serveMetrics exposes reg on addr under /metrics until the returned stop
// function is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
