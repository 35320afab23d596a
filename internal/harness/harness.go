package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mirofedurco/EB-gridmaker/internal/config"
	"github.com/mirofedurco/EB-gridmaker/internal/engine"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/simulator"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
	"github.com/mirofedurco/EB-gridmaker/internal/testutil"
)

// Harness executes one scenario in a private directory.
type Harness struct {
	dir    string
	file   config.File
	base   *config.Config
	log    *zap.Logger
	runIDs *engine.FixedGenerator
	paths  map[string]string
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load the scenario's config file
//  2. Execute each run against its database, scripting the simulator
//  3. Merge databases if the scenario asks for it
//  4. Read back every database and evaluate the assertions
//
// An error is returned only when the scenario cannot be executed (bad config,
// unusable database); failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zap.NewNop())
}

// RunWithLogger is Run with engine and store logs sent to log.
func RunWithLogger(scenario *Scenario, log *zap.Logger) (*Result, error) {
	dir, err := os.MkdirTemp("", "gridmaker-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	file, err := config.LoadFile(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	base, err := config.Resolve(file)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}

	ids := make([]string, len(scenario.Runs))
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-run-%d", scenario.Name, i+1)
	}
	h := &Harness{
		dir:    dir,
		file:   file,
		base:   base,
		log:    log,
		runIDs: engine.NewFixedGenerator(ids...),
		paths:  make(map[string]string),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Runs {
		outcome, err := h.run(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		result.Runs = append(result.Runs, outcome)
		for _, msg := range checkExpect(step.Expect, outcome) {
			result.AddError(fmt.Sprintf("runs[%d]: %s", i, msg))
		}
		result.Database = step.Database
	}

	if m := scenario.Merge; m != nil {
		if err := h.merge(ctx, m); err != nil {
			return nil, err
		}
		result.Database = m.Output
	}

	for name, path := range h.paths {
		state, err := h.readState(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		result.databases[name] = state
	}

	for _, msg := range EvaluateAssertions(result, scenario) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) path(database string) string {
	p, ok := h.paths[database]
	if !ok {
		p = filepath.Join(h.dir, database+".db")
		h.paths[database] = p
	}
	return p
}

// run executes one evaluate invocation.
func (h *Harness) run(ctx context.Context, step RunStep) (RunOutcome, error) {
	f := h.file
	if step.Bottom != nil {
		f.Shard.Bottom = *step.Bottom
	}
	if step.Top != nil {
		f.Shard.Top = *step.Top
	}
	if step.Parallelism > 0 {
		f.Processes = step.Parallelism
	}
	if step.ChunkSize > 0 {
		f.ChunkSize = step.ChunkSize
	}
	if step.Resume != "" {
		f.Resume = step.Resume
	}
	if step.Morphology != "" {
		f.Morphology = step.Morphology
	}
	cfg, err := config.Resolve(f)
	if err != nil {
		return RunOutcome{}, err
	}

	st, err := store.Open(h.path(step.Database), cfg.Layout,
		append(cfg.StoreOptions(), store.WithLogger(h.log))...)
	if err != nil {
		return RunOutcome{}, err
	}
	defer st.Close()

	before, err := st.CommittedIDs(ctx)
	if err != nil {
		return RunOutcome{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sim := &testutil.FakeSimulator{Errors: faultErrors(step.Faults)}
	if step.StopAfter > 0 {
		var calls atomic.Int64
		limit := int64(step.StopAfter)
		sim.Before = func(context.Context, simulator.Request) error {
			if calls.Add(1) > limit {
				cancel()
				return context.Canceled
			}
			return nil
		}
	}

	eng, err := engine.New(st, sim, cfg.Engine(),
		engine.WithLogger(h.log), engine.WithRunIDGenerator(h.runIDs))
	if err != nil {
		return RunOutcome{}, err
	}
	stats, runErr := eng.Run(runCtx)

	after, err := st.CommittedIDs(ctx)
	if err != nil {
		return RunOutcome{}, err
	}
	after.AndNot(before)

	outcome := RunOutcome{
		Database:  step.Database,
		Stats:     stats,
		Simulated: sim.Calls(),
		Committed: toInt64s(after.ToArray()),
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			outcome.Interrupted = true
		} else {
			outcome.Error = errorCode(runErr)
		}
	}
	return outcome, nil
}

func (h *Harness) merge(ctx context.Context, m *MergeStep) error {
	sources := make([]string, len(m.Sources))
	for i, name := range m.Sources {
		sources[i] = h.path(name)
	}
	err := store.Merge(ctx, sources, h.path(m.Output),
		store.WithDriver(h.base.Driver), store.WithLogger(h.log))
	if err != nil {
		delete(h.paths, m.Output)
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}

// readState reads back the final content of a database.
func (h *Harness) readState(ctx context.Context, path string) (*DatabaseState, error) {
	st, err := store.Open(path, h.base.Layout, h.base.StoreOptions()...)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	state := &DatabaseState{Path: path}
	bm, err := st.CommittedIDs(ctx)
	if err != nil {
		return nil, err
	}
	state.IDs = toInt64s(bm.ToArray())
	if state.Parameters, state.Curves, err = st.Counts(ctx); err != nil {
		return nil, err
	}
	last, ok, err := st.LastIndex(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		state.Marker = &last
	}

	rows, err := st.DB().QueryContext(ctx, `SELECT id, overcontact FROM parameters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id          int64
			overcontact int64
		)
		if err := rows.Scan(&id, &overcontact); err != nil {
			return nil, fmt.Errorf("scan parameters: %w", err)
		}
		state.Nodes = append(state.Nodes, NodeRow{ID: id, Overcontact: overcontact != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}

	for i := range state.Nodes {
		curves, err := st.Curves(ctx, state.Nodes[i].ID)
		if err != nil {
			return nil, err
		}
		points := make(map[string]int, len(curves))
		for pb, flux := range curves {
			points[pb] = len(flux)
		}
		state.Nodes[i].Points = points
	}
	return state, nil
}

func faultErrors(faults []Fault) map[int64]error {
	if len(faults) == 0 {
		return nil
	}
	out := make(map[int64]error, len(faults))
	for _, f := range faults {
		switch f.Kind {
		case FaultOutOfCoverage:
			out[f.Node] = simulator.OutOfCoverage(fmt.Sprintf("node %d: atmosphere table exceeded", f.Node))
		case FaultTransient:
			out[f.Node] = simulator.Transient(fmt.Sprintf("node %d: worker restarted", f.Node), nil)
		case FaultFatal:
			out[f.Node] = fmt.Errorf("node %d: simulator crashed", f.Node)
		}
	}
	return out
}

// errorCode classifies a failed run for expect clauses and snapshots.
func errorCode(err error) string {
	var ne *engine.NodeError
	if errors.As(err, &ne) {
		return string(ne.Code)
	}
	if kind := model.KindOf(err); kind != "" {
		return string(kind)
	}
	return "FAILURE"
}

// checkExpect compares a run outcome with its expect clause.
func checkExpect(expect *ExpectClause, got RunOutcome) []string {
	if expect == nil {
		return nil
	}
	var errs []string
	if expect.Interrupted != got.Interrupted {
		errs = append(errs, fmt.Sprintf("interrupted: expected %v, got %v", expect.Interrupted, got.Interrupted))
	}
	if expect.Error != got.Error {
		errs = append(errs, fmt.Sprintf("error: expected %q, got %q", expect.Error, got.Error))
	}
	if len(expect.Stats) > 0 {
		actual := statsMap(got.Stats)
		keys := make([]string, 0, len(expect.Stats))
		for k := range expect.Stats {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			v, ok := actual[k]
			if !ok {
				errs = append(errs, fmt.Sprintf("stats: unknown counter %q", k))
				continue
			}
			if v != expect.Stats[k] {
				errs = append(errs, fmt.Sprintf("stats.%s: expected %d, got %d", k, expect.Stats[k], v))
			}
		}
	}
	return errs
}

// statsMap keys the counters by their JSON names.
func statsMap(s engine.Stats) map[string]int64 {
	data, _ := json.Marshal(s)
	var m map[string]int64
	_ = json.Unmarshal(data, &m)
	return m
}

func toInt64s(ids []uint64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
