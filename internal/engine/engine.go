package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/simulator"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
	"github.com/mirofedurco/EB-gridmaker/internal/validity"
)

// Defaults for Config fields left zero.
const (
	DefaultChunkSize          = 1000
	DefaultMinimumInclination = 10.0
)

// ResumePolicy decides where an interrupted shard restarts.
type ResumePolicy string

const (
	// ResumeWindow restarts one chunk before the resume marker and skips
	// every node already stored, so nodes that were in flight when the
	// previous run stopped are evaluated again.
	ResumeWindow ResumePolicy = "window"

	// ResumeMarker restarts right after the resume marker.
	ResumeMarker ResumePolicy = "marker"
)

// ParseResumePolicy parses a resume policy name.
func ParseResumePolicy(s string) (ResumePolicy, error) {
	switch p := ResumePolicy(s); p {
	case ResumeWindow, ResumeMarker:
		return p, nil
	default:
		return "", model.Configf("invalid resume policy %q: use %q or %q", s, ResumeWindow, ResumeMarker)
	}
}

// Config is the immutable description of one evaluation run.
type Config struct {
	// Order is the binary sampling order: mass ratio, primary radius,
	// secondary radius, primary T_eff, secondary T_eff, inclination step.
	Order grid.Order

	// Bottom and Top select the shard [Bottom*N, Top*N) of the permutation.
	Bottom, Top float64

	Morphology validity.Morphology
	Limits     validity.Limits

	// Seed of the node permutation. Zero means DefaultSeed.
	Seed uint64

	// Parallelism bounds concurrent node evaluations. Zero means GOMAXPROCS.
	Parallelism int

	// ChunkSize is the number of nodes dispatched between barriers.
	ChunkSize int

	Resume ResumePolicy

	// Phases at which every curve is sampled.
	Phases []float64

	// Passbands requested from the simulator, in curves-table order.
	Passbands []string

	// MinimumInclination in degrees, used as given (zero included); config
	// defaults it to DefaultMinimumInclination. OverCritical selects eclipsing
	// inclinations (above critical) or non-eclipsing ones.
	MinimumInclination float64
	OverCritical       bool

	// NodeTimeout bounds one simulator call. Zero means no limit.
	NodeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.GOMAXPROCS(0)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Resume == "" {
		c.Resume = ResumeWindow
	}
	if c.Morphology == "" {
		c.Morphology = validity.MorphologyAll
	}
	if c.Limits == (validity.Limits{}) {
		c.Limits = validity.DefaultLimits()
	}
	return c
}

func (c Config) validate() error {
	if c.Order.Len() != grid.BinaryArity {
		return model.Configf("binary sampling order needs %d dimensions, got %d", grid.BinaryArity, c.Order.Len())
	}
	t1 := c.Order.Dimension(grid.AxisPrimaryTeff)
	t2 := c.Order.Dimension(grid.AxisSecondaryTeff)
	if t1.Name != t2.Name || !slices.Equal(t1.Values, t2.Values) {
		return model.Configf("both temperature slots must use one dimension array, got %q and %q", t1.Name, t2.Name)
	}
	if c.Bottom < 0 || c.Top > 1 || c.Bottom > c.Top {
		return model.Configf("invalid shard boundaries [%v, %v): need 0 <= bottom <= top <= 1", c.Bottom, c.Top)
	}
	if _, err := validity.ParseMorphology(string(c.Morphology)); err != nil {
		return err
	}
	if _, err := ParseResumePolicy(string(c.Resume)); err != nil {
		return err
	}
	if len(c.Phases) == 0 {
		return model.Configf("at least one phase is required")
	}
	if len(c.Passbands) == 0 {
		return model.Configf("at least one passband is required")
	}
	return nil
}

// State is the lifecycle stage of a run.
type State int32

const (
	StateInitialized State = iota
	StatePermuted
	StateResumed
	StateDispatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StatePermuted:
		return "permuted"
	case StateResumed:
		return "resumed"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Stats counts node outcomes of one run.
type Stats struct {
	// Invalid nodes failed the validity rules.
	Invalid int64 `json:"invalid"`
	// Filtered nodes were valid but excluded by the morphology filter.
	Filtered int64 `json:"filtered"`
	// Skipped nodes lie outside the simulator's atmosphere or limb-darkening coverage.
	Skipped int64 `json:"skipped"`
	// Failed nodes exhausted their transient retries or timed out.
	Failed int64 `json:"failed"`
	// Committed nodes were stored by this run.
	Committed int64 `json:"committed"`
	// AlreadyDone nodes were stored by an earlier run.
	AlreadyDone int64 `json:"already_done"`
}

// Total returns the number of nodes dispatched.
func (s Stats) Total() int64 {
	return s.Invalid + s.Filtered + s.Skipped + s.Failed + s.Committed + s.AlreadyDone
}

type counters struct {
	invalid, filtered, skipped, failed, committed, alreadyDone atomic.Int64
}

func (c *counters) add(outcome string) {
	switch outcome {
	case outcomeInvalid:
		c.invalid.Add(1)
	case outcomeFiltered:
		c.filtered.Add(1)
	case outcomeSkipped:
		c.skipped.Add(1)
	case outcomeFailed:
		c.failed.Add(1)
	case outcomeCommitted:
		c.committed.Add(1)
	case outcomeAlreadyDone:
		c.alreadyDone.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Invalid:     c.invalid.Load(),
		Filtered:    c.filtered.Load(),
		Skipped:     c.skipped.Load(),
		Failed:      c.failed.Load(),
		Committed:   c.committed.Load(),
		AlreadyDone: c.alreadyDone.Load(),
	}
}

// Progress reports how far a run has got through its shard.
type Progress struct {
	RunID string
	// Position counts the shard's nodes dispatched so far, including those
	// before the resume point.
	Position int
	// Total is the shard size.
	Total int
}

// Fraction returns Position/Total, or 1 for an empty shard.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Position) / float64(p.Total)
}

// ProgressFunc receives progress after every node. It is called from worker
// goroutines and must be safe for concurrent use.
type ProgressFunc func(Progress)

// LogProgress returns a ProgressFunc that logs at most once per interval.
func LogProgress(log *zap.Logger, interval time.Duration) ProgressFunc {
	s := &rate.Sometimes{First: 1, Interval: interval}
	return func(p Progress) {
		s.Do(func() {
			log.Info("processing node",
				zap.String("run_id", p.RunID),
				zap.Int("position", p.Position),
				zap.Int("total", p.Total),
				zap.String("percent", fmt.Sprintf("%.2f", 100*p.Fraction())))
		})
	}
}

// Engine evaluates one shard of a binary grid into a store.
//
// Thread-safety model:
//   - Run(): one call at a time per Engine
//   - State(): safe from any goroutine
//
// Workers share only read-only state (order, Aux, Config) and the store,
// which serializes writers.
type Engine struct {
	store *store.Store
	sim   simulator.Simulator
	cfg   Config
	aux   Aux

	log      *zap.Logger
	reg      prometheus.Registerer
	metrics  *metrics
	runIDs   RunIDGenerator
	progress ProgressFunc

	state atomic.Int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRegisterer registers the engine metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.reg = reg }
}

// WithProgress replaces the default throttled progress log.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithRunIDGenerator sets the run id source (default UUIDv7Generator).
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// New validates cfg and precomputes the auxiliary tables.
func New(s *store.Store, sim simulator.Simulator, cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !slices.Equal(cfg.Passbands, s.Layout().PassbandNames()) {
		return nil, model.Configf("passbands %v do not match the database layout %v",
			cfg.Passbands, s.Layout().PassbandNames())
	}

	e := &Engine{
		store:  s,
		sim:    sim,
		cfg:    cfg,
		log:    zap.NewNop(),
		runIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reg == nil {
		e.reg = prometheus.NewRegistry()
	}
	if e.progress == nil {
		e.progress = LogProgress(e.log, 10*time.Second)
	}
	e.metrics = newMetrics(e.reg)
	e.aux = BuildAux(cfg.Order)
	return e, nil
}

// State returns the current lifecycle stage.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(log *zap.Logger, s State) {
	e.state.Store(int32(s))
	log.Debug("state changed", zap.Stringer("state", s))
}

// Run evaluates every remaining node of the configured shard and returns the
// outcome counts. Cancelling ctx stops dispatch; Run then returns the counts
// so far together with the context error.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	var c counters
	runID := e.runIDs.Generate()
	log := e.log.With(zap.String("run_id", runID))
	e.setState(log, StateInitialized)

	binding, err := e.store.BindGrid(ctx, e.cfg.Order, e.cfg.ChunkSize)
	if err != nil {
		return Stats{}, err
	}
	if binding.Grown {
		log.Info("grid grew since the last run, restarting the shard from its first node")
	}

	shard, err := Shard(Permutation(e.cfg.Order.Size(), e.cfg.Seed), e.cfg.Bottom, e.cfg.Top)
	if err != nil {
		return Stats{}, err
	}
	e.setState(log, StatePermuted)

	pos, err := e.store.SearchForBreakpoint(ctx, shard)
	if err != nil {
		return Stats{}, err
	}
	start := resumeStart(pos, e.cfg.Resume, max(binding.PreviousChunkSize, e.cfg.ChunkSize))
	committed, err := e.store.CommittedIDs(ctx)
	if err != nil {
		return Stats{}, err
	}
	e.setState(log, StateResumed)
	log.Info("breakpoint found",
		zap.Int("marker_position", pos),
		zap.Int("start", start),
		zap.Int("total", len(shard)),
		zap.String("percent", fmt.Sprintf("%.2f", 100*Progress{Position: start, Total: len(shard)}.Fraction())),
		zap.Uint64("stored", committed.GetCardinality()))

	e.setState(log, StateDispatching)
	var position atomic.Int64
	position.Store(int64(start))
	advance := func(outcome string) {
		c.add(outcome)
		e.metrics.nodes.WithLabelValues(outcome).Inc()
		p := int(position.Add(1))
		e.metrics.position.Set(float64(p))
		e.metrics.remaining.Set(float64(len(shard) - p))
		e.progress(Progress{RunID: runID, Position: p, Total: len(shard)})
	}

	for _, chunk := range chunks(shard[start:], e.cfg.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return c.snapshot(), err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Parallelism)
		for _, id := range chunk {
			if committed.Contains(uint64(id)) {
				advance(outcomeAlreadyDone)
				continue
			}
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				outcome, err := e.evaluate(gctx, log, id)
				if err != nil {
					return err
				}
				advance(outcome)
				return nil
			})
		}
		// Barrier: the next chunk starts only when this one is finished.
		if err := g.Wait(); err != nil {
			return c.snapshot(), err
		}
		if err := ctx.Err(); err != nil {
			return c.snapshot(), err
		}
	}

	e.setState(log, StateDone)
	stats := c.snapshot()
	log.Info("shard finished",
		zap.Int64("committed", stats.Committed),
		zap.Int64("invalid", stats.Invalid),
		zap.Int64("filtered", stats.Filtered),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("failed", stats.Failed),
		zap.Int64("already_done", stats.AlreadyDone))
	return stats, nil
}

// resumeStart returns the shard position dispatch starts from given the
// position of the resume marker (-1 if none).
//
// Every node in flight when a run stopped lies in the chunk holding the
// marker (or in the one after it, if that chunk had committed nothing), so
// restarting window positions before the marker and skipping stored nodes
// loses none of them.
func resumeStart(pos int, policy ResumePolicy, window int) int {
	if pos < 0 {
		return 0
	}
	if policy == ResumeMarker {
		return pos + 1
	}
	return max(0, pos+1-window)
}

// evaluate processes one node and returns its outcome. Only fatal conditions
// are returned as errors.
func (e *Engine) evaluate(ctx context.Context, log *zap.Logger, id int64) (string, error) {
	node, err := e.cfg.Order.Decode(id)
	if err != nil {
		return "", &NodeError{Code: ErrCodeDecode, NodeID: id, Err: err}
	}

	pot, crit := e.aux.lookup(node)
	verdict := validity.Evaluate(node, pot, crit, e.cfg.Limits)
	if !verdict.Valid {
		return outcomeInvalid, nil
	}
	if !e.cfg.Morphology.Accepts(verdict.Class) {
		return outcomeFiltered, nil
	}

	req := simulator.Request{
		NodeID:    id,
		System:    e.system(node, pot, crit, verdict.Class),
		Phases:    e.cfg.Phases,
		Passbands: e.cfg.Passbands,
	}

	nctx := ctx
	if e.cfg.NodeTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, e.cfg.NodeTimeout)
		defer cancel()
	}

	began := time.Now()
	res, err := e.sim.Simulate(nctx, req)
	e.metrics.simulate.Observe(time.Since(began).Seconds())
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", ctx.Err()
	case simulator.IsOutOfCoverage(err):
		log.Debug("node outside model coverage", zap.Int64("node", id), zap.Error(err))
		return outcomeSkipped, nil
	case simulator.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		log.Warn("node failed", zap.Int64("node", id), zap.Float64s("values", node.Values), zap.Error(err))
		return outcomeFailed, nil
	default:
		return "", &NodeError{Code: ErrCodeSimulate, NodeID: id, Values: node.Values, Err: err}
	}
	if err := simulator.Check(req, res); err != nil {
		return "", &NodeError{Code: ErrCodeSimulate, NodeID: id, Values: node.Values, Err: err}
	}

	obs := model.Observation{ID: id, System: req.System, Derived: res.Derived, Fluxes: res.Fluxes}
	if err := e.store.InsertObservation(ctx, obs); err != nil {
		return "", &NodeError{Code: ErrCodeStore, NodeID: id, Values: node.Values, Err: err}
	}
	return outcomeCommitted, nil
}
