package harness

import "github.com/mirofedurco/EB-gridmaker/internal/engine"

// RunOutcome records one evaluation run of a scenario.
type RunOutcome struct {
	Database    string       `json:"database"`
	Stats       engine.Stats `json:"stats"`
	Interrupted bool         `json:"interrupted"`
	// Error is the code of a run that failed: a node error code (SIMULATE,
	// STORE, DECODE), an error kind (CONFIG, RANGE, STORAGE) or FAILURE.
	Error string `json:"error,omitempty"`
	// Simulated lists every node passed to the simulator, ascending.
	Simulated []int64 `json:"simulated"`
	// Committed lists the nodes this run stored, ascending.
	Committed []int64 `json:"committed"`
}

// NodeRow is one stored node of the final database.
type NodeRow struct {
	ID          int64          `json:"id"`
	Overcontact bool           `json:"overcontact"`
	Points      map[string]int `json:"points"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	Runs []RunOutcome `json:"runs"`

	// Database is the logical name the assertions default to.
	Database string `json:"database"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// databases holds the final state of every logical database.
	databases map[string]*DatabaseState
}

// DatabaseState is the final content of one logical database.
type DatabaseState struct {
	Path       string
	IDs        []int64
	Parameters int64
	Curves     int64
	Marker     *int64
	Nodes      []NodeRow
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Runs:      []RunOutcome{},
		Errors:    []string{},
		databases: make(map[string]*DatabaseState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// State returns the final state of the named database, or nil.
func (r *Result) State(database string) *DatabaseState {
	return r.databases[database]
}
