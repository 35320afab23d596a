package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the database content to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Database string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s on %s\n", e.Type, e.Database)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion of s against result and returns
// the failure messages.
func EvaluateAssertions(result *Result, s *Scenario) []string {
	var errs []string
	for i, a := range s.Assertions {
		if err := evaluateAssertion(result, s, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, s *Scenario, a Assertion) error {
	database := a.Database
	if database == "" {
		database = result.Database
	}
	state := result.State(database)
	if state == nil {
		return fmt.Errorf("database %q was never written", database)
	}

	switch a.Type {
	case AssertCommittedIDs:
		return assertCommittedIDs(database, state, a)
	case AssertRowCount:
		return assertRowCount(database, state, a)
	case AssertMarker:
		return assertMarker(database, state, a)
	case AssertNeverResimulated:
		return assertNeverResimulated(database, result.Runs)
	case AssertConserved:
		return assertConserved(database, state, result.Runs, sourcesOf(s, database))
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertCommittedIDs(database string, state *DatabaseState, a Assertion) error {
	want := slices.Clone(a.IDs)
	slices.Sort(want)
	if slices.Equal(want, state.IDs) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCommittedIDs,
		Database: database,
		Expected: fmt.Sprint(want),
		Actual:   fmt.Sprint(state.IDs),
	}
}

// assertRowCount checks both tables: every parameters row must have its curves row.
func assertRowCount(database string, state *DatabaseState, a Assertion) error {
	if state.Parameters == a.Count && state.Curves == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Database: database,
		Expected: fmt.Sprintf("%d parameters and %d curves rows", a.Count, a.Count),
		Actual:   fmt.Sprintf("%d parameters and %d curves rows", state.Parameters, state.Curves),
	}
}

func assertMarker(database string, state *DatabaseState, a Assertion) error {
	actual := "no marker"
	if state.Marker != nil {
		actual = fmt.Sprintf("marker %d", *state.Marker)
	}
	switch {
	case !a.Present && state.Marker == nil:
		return nil
	case a.Present && state.Marker != nil:
		if len(a.IDs) == 0 || slices.Contains(a.IDs, *state.Marker) {
			return nil
		}
	}

	expected := "no marker"
	if a.Present {
		expected = "a marker"
		if len(a.IDs) > 0 {
			expected = fmt.Sprintf("a marker in %v", a.IDs)
		}
	}
	return &AssertionError{Type: AssertMarker, Database: database, Expected: expected, Actual: actual}
}

// assertNeverResimulated checks that resuming never repeats stored work.
func assertNeverResimulated(database string, runs []RunOutcome) error {
	done := make(map[int64]int)
	for i, run := range runs {
		if run.Database != database {
			continue
		}
		for _, id := range run.Simulated {
			if first, ok := done[id]; ok {
				return &AssertionError{
					Type:     AssertNeverResimulated,
					Database: database,
					Expected: fmt.Sprintf("node %d, committed by run %d, is not simulated again", id, first),
					Actual:   fmt.Sprintf("run %d simulated it", i),
				}
			}
		}
		for _, id := range run.Committed {
			done[id] = i
		}
	}
	return nil
}

// assertConserved checks that no committed node was lost or duplicated
// between the runs and the stored rows.
func assertConserved(database string, state *DatabaseState, runs []RunOutcome, sources []string) error {
	var committed int64
	for i, run := range runs {
		if !slices.Contains(sources, run.Database) {
			continue
		}
		if run.Stats.Committed != int64(len(run.Committed)) {
			return &AssertionError{
				Type:     AssertConserved,
				Database: database,
				Expected: fmt.Sprintf("run %d stored as many nodes as it counted (%d)", i, run.Stats.Committed),
				Actual:   fmt.Sprintf("%d new nodes stored", len(run.Committed)),
			}
		}
		committed += run.Stats.Committed
	}
	if committed != state.Parameters {
		return &AssertionError{
			Type:     AssertConserved,
			Database: database,
			Expected: fmt.Sprintf("%d rows committed by runs", committed),
			Actual:   fmt.Sprintf("%d parameters rows", state.Parameters),
		}
	}
	return nil
}

// sourcesOf returns the run databases whose rows end up in database.
func sourcesOf(s *Scenario, database string) []string {
	if m := s.Merge; m != nil && m.Output == database {
		return m.Sources
	}
	return []string{database}
}
