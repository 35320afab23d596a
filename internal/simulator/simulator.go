package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// Request asks for the light curves of one system.
type Request struct {
	NodeID    int64        `json:"node_id"`
	System    model.System `json:"system"`
	Phases    []float64    `json:"phases"`
	Passbands []string     `json:"passbands"`
}

// Result holds normalized fluxes per passband, one value per requested phase,
// plus the quantities the simulator derived from the system.
type Result struct {
	Fluxes  map[string][]float64 `json:"fluxes"`
	Derived model.Derived        `json:"derived"`
}

// Simulator computes synthetic light curves.
//
// Implementations report recoverable conditions with *Error; any other error
// aborts the run.
type Simulator interface {
	Simulate(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a function to the Simulator interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Simulate calls f.
func (f Func) Simulate(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}

// ErrorKind classifies simulator failures.
type ErrorKind string

const (
	// KindOutOfCoverage means the system lies outside the atmosphere or
	// limb-darkening tables. The node is skipped and never retried.
	KindOutOfCoverage ErrorKind = "out_of_coverage"

	// KindTransient means the evaluation may succeed if repeated.
	KindTransient ErrorKind = "transient"
)

// Error is a recoverable simulator failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simulator %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("simulator %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OutOfCoverage creates an out-of-coverage error.
func OutOfCoverage(message string) *Error {
	return &Error{Kind: KindOutOfCoverage, Message: message}
}

// Transient creates a transient error.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// IsOutOfCoverage reports whether err is an out-of-coverage error.
func IsOutOfCoverage(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindOutOfCoverage
}

// IsTransient reports whether err is a transient error.
func IsTransient(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindTransient
}

// Retrying returns a Simulator that repeats transient failures up to retries
// more times. Out-of-coverage and fatal errors are returned at once.
func Retrying(sim Simulator, retries int) Simulator {
	if retries <= 0 {
		return sim
	}
	return Func(func(ctx context.Context, req Request) (*Result, error) {
		var err error
		for attempt := 0; attempt <= retries; attempt++ {
			var res *Result
			res, err = sim.Simulate(ctx, req)
			if err == nil || !IsTransient(err) {
				return res, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		return nil, err
	})
}

// Phases returns n phases evenly spaced over [0, 1), endpoint excluded.
func Phases(n int) []float64 {
	out := make([]float64, n)
	for k := range out {
		out[k] = float64(k) / float64(n)
	}
	return out
}

// Check verifies that res has one curve of len(req.Phases) points for every
// requested passband.
func Check(req Request, res *Result) error {
	if res == nil {
		return fmt.Errorf("simulator returned no result for node %d", req.NodeID)
	}
	for _, pb := range req.Passbands {
		flux, ok := res.Fluxes[pb]
		if !ok {
			return fmt.Errorf("simulator result for node %d lacks passband %q", req.NodeID, pb)
		}
		if len(flux) != len(req.Phases) {
			return fmt.Errorf("simulator result for node %d passband %q has %d points, want %d",
				req.NodeID, pb, len(flux), len(req.Phases))
		}
	}
	return nil
}
