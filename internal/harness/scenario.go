package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mirofedurco/EB-gridmaker/internal/engine"
	"github.com/mirofedurco/EB-gridmaker/internal/validity"
)

// DefaultDatabase is the logical database of runs that name none.
const DefaultDatabase = "main"

// Scenario defines a sequence of shard evaluations and the state they must
// leave behind.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the gridmaker configuration file the runs start from.
	// Relative paths are resolved against the scenario file.
	Config string `yaml:"config"`

	// Runs are executed in order; each one opens its database afresh.
	Runs []RunStep `yaml:"runs"`

	// Merge, if set, merges databases after the runs.
	Merge *MergeStep `yaml:"merge,omitempty"`

	// Assertions validate the final databases.
	Assertions []Assertion `yaml:"assertions"`
}

// RunStep is one evaluate invocation. Unset fields keep their configured values.
type RunStep struct {
	Database    string   `yaml:"database,omitempty"`
	Bottom      *float64 `yaml:"bottom,omitempty"`
	Top         *float64 `yaml:"top,omitempty"`
	Parallelism int      `yaml:"parallelism,omitempty"`
	ChunkSize   int      `yaml:"chunk_size,omitempty"`
	Resume      string   `yaml:"resume,omitempty"`
	Morphology  string   `yaml:"morphology,omitempty"`

	// StopAfter cancels the run when the simulator is called for the
	// (StopAfter+1)-th time. Zero means run to the end.
	StopAfter int `yaml:"stop_after,omitempty"`

	// Faults script simulator failures per node.
	Faults []Fault `yaml:"faults,omitempty"`

	// Expect, if set, is checked against the run's outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Fault makes the simulator fail on one node.
type Fault struct {
	Node int64  `yaml:"node"`
	Kind string `yaml:"kind"`
}

// Fault kinds.
const (
	FaultOutOfCoverage = "out_of_coverage"
	FaultTransient     = "transient"
	FaultFatal         = "fatal"
)

// ExpectClause specifies the expected outcome of a run.
type ExpectClause struct {
	Interrupted bool   `yaml:"interrupted,omitempty"`
	Error       string `yaml:"error,omitempty"`

	// Stats is a subset match on the run's counters, keyed by their JSON names.
	Stats map[string]int64 `yaml:"stats,omitempty"`
}

// MergeStep merges logical databases into a new one.
type MergeStep struct {
	Sources []string `yaml:"sources"`
	Output  string   `yaml:"output"`
}

// Assertion validates a final database.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Database names the logical database; empty means the default.
	Database string `yaml:"database,omitempty"`

	// IDs are the expected node ids (committed_ids, marker).
	IDs []int64 `yaml:"ids,omitempty"`

	// Count is the expected row count (row_count).
	Count int64 `yaml:"count,omitempty"`

	// Present is whether a resume marker is expected (marker).
	Present bool `yaml:"present,omitempty"`
}

// Assertion type constants.
const (
	AssertCommittedIDs     = "committed_ids"
	AssertRowCount         = "row_count"
	AssertMarker           = "marker"
	AssertNeverResimulated = "never_resimulated"
	AssertConserved        = "conserved"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(filepath.Dir(path), scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Config == "" {
		return fmt.Errorf("config is required")
	}
	if _, err := os.Stat(s.Config); err != nil {
		return fmt.Errorf("config file not found: %s", s.Config)
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("runs list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	known := make(map[string]bool)
	for i := range s.Runs {
		step := &s.Runs[i]
		if step.Database == "" {
			step.Database = DefaultDatabase
		}
		known[step.Database] = true
		if step.StopAfter < 0 {
			return fmt.Errorf("runs[%d]: stop_after must be non-negative", i)
		}
		if step.Resume != "" {
			if _, err := engine.ParseResumePolicy(step.Resume); err != nil {
				return fmt.Errorf("runs[%d]: %w", i, err)
			}
		}
		if step.Morphology != "" {
			if _, err := validity.ParseMorphology(step.Morphology); err != nil {
				return fmt.Errorf("runs[%d]: %w", i, err)
			}
		}
		for j, f := range step.Faults {
			switch f.Kind {
			case FaultOutOfCoverage, FaultTransient, FaultFatal:
			default:
				return fmt.Errorf("runs[%d].faults[%d]: unknown fault kind %q", i, j, f.Kind)
			}
		}
	}

	if m := s.Merge; m != nil {
		if len(m.Sources) < 2 {
			return fmt.Errorf("merge: at least two sources are required")
		}
		for _, src := range m.Sources {
			if !known[src] {
				return fmt.Errorf("merge: source %q is not written by any run", src)
			}
		}
		if m.Output == "" || known[m.Output] {
			return fmt.Errorf("merge: output must name a new database")
		}
		known[m.Output] = true
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, known); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, known map[string]bool) error {
	if a.Database != "" && !known[a.Database] {
		return fmt.Errorf("assertions[%d]: unknown database %q", index, a.Database)
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCommittedIDs:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for committed_ids (use [] for none)", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertMarker, AssertNeverResimulated, AssertConserved:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
