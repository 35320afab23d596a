package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the scheduling-independent part of a scenario result, compared
// against golden files.
type Snapshot struct {
	Scenario string        `json:"scenario"`
	Runs     []RunSnapshot `json:"runs"`
	Database string        `json:"database"`
	Marker   bool          `json:"marker"`
	Nodes    []NodeRow     `json:"nodes"`
}

// RunSnapshot is the scheduling-independent outcome of one run.
type RunSnapshot struct {
	Database    string `json:"database"`
	Interrupted bool   `json:"interrupted"`
	Error       string `json:"error,omitempty"`
}

// NewSnapshot builds the snapshot of result.
func NewSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{
		Scenario: name,
		Runs:     make([]RunSnapshot, len(result.Runs)),
		Database: result.Database,
		Nodes:    []NodeRow{},
	}
	for i, r := range result.Runs {
		snap.Runs[i] = RunSnapshot{Database: r.Database, Interrupted: r.Interrupted, Error: r.Error}
	}
	if state := result.State(result.Database); state != nil {
		snap.Marker = state.Marker != nil
		if state.Nodes != nil {
			snap.Nodes = state.Nodes
		}
	}
	return snap
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result for further checks, or an error if the scenario could
// not be executed.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the snapshot of an existing result against the
// golden file named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := json.MarshalIndent(NewSnapshot(scenarioName, result), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
