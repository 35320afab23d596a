package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/simulator"
)

// FakeSimulator is an in-process simulator with deterministic output.
//
// Thread-safety: Simulate is safe for concurrent use. Errors and Before must
// be set before the first call.
type FakeSimulator struct {
	// Errors maps node ids to the error their evaluation returns.
	Errors map[int64]error

	// Before, if set, runs at the start of every call; a non-nil error is
	// returned in place of a result.
	Before func(ctx context.Context, req simulator.Request) error

	mu    sync.Mutex
	calls []simulator.Request
}

// Simulate implements simulator.Simulator.
func (f *FakeSimulator) Simulate(ctx context.Context, req simulator.Request) (*simulator.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.Before != nil {
		if err := f.Before(ctx, req); err != nil {
			return nil, err
		}
	}
	if err, ok := f.Errors[req.NodeID]; ok {
		return nil, err
	}
	return FakeResult(req), nil
}

// Calls returns the node ids simulated so far, ascending.
func (f *FakeSimulator) Calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, len(f.calls))
	for i, r := range f.calls {
		ids[i] = r.NodeID
	}
	slices.Sort(ids)
	return ids
}

// Requests returns a copy of every request received, in arrival order.
func (f *FakeSimulator) Requests() []simulator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// FakeResult is the result FakeSimulator returns for req: a curve per
// passband whose depth encodes the node id.
func FakeResult(req simulator.Request) *simulator.Result {
	res := &simulator.Result{
		Fluxes: make(map[string][]float64, len(req.Passbands)),
		Derived: model.Derived{
			PrimaryEquivalentRadius:   0.1,
			SecondaryEquivalentRadius: 0.05,
			PrimaryFillingFactor:      -0.5,
			SecondaryFillingFactor:    -0.7,
		},
	}
	depth := 0.01 * float64(req.NodeID+1)
	for _, pb := range req.Passbands {
		flux := make([]float64, len(req.Phases))
		for k, ph := range req.Phases {
			flux[k] = 1 - depth*ph
		}
		res.Fluxes[pb] = flux
	}
	return res
}
