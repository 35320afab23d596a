// Package harness runs end-to-end grid scenarios: sequences of shard
// evaluations, interruptions and merges against real shard databases, with an
// in-process simulator whose failures are scripted per node.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config: ../toy.yaml            # gridmaker config, relative to the scenario
//	runs:
//	  - database: lower            # logical database name (default "main")
//	    bottom: 0
//	    top: 0.5
//	    parallelism: 1
//	    chunk_size: 2
//	    resume: window
//	    morphology: all
//	    stop_after: 2              # cancel the run on the 3rd simulator call
//	    faults:
//	      - node: 4
//	        kind: out_of_coverage  # out_of_coverage | transient | fatal
//	    expect:
//	      interrupted: true
//	      error: SIMULATE
//	      stats: { committed: 2 }
//	merge:
//	  sources: [lower, upper]
//	  output: atlas
//	assertions:
//	  - type: committed_ids
//	    ids: [0, 1, 4, 5, 8]
//	  - type: row_count
//	    count: 5
//	  - type: marker
//	    present: true
//	  - type: never_resimulated
//	  - type: conserved
//
// # Assertion Types
//
//   - committed_ids: the node ids stored in the database, exactly
//   - row_count: parameters and curves rows both equal count
//   - marker: whether a resume marker is present, optionally that it is one of ids
//   - never_resimulated: no node committed by a run was simulated by a later run
//   - conserved: the committed counts of all runs on the database sum to its rows
//
// Assertions apply to the merge output when the scenario merges, otherwise to
// the database of the last run, unless they name a database.
//
// # Deterministic Testing
//
// Every scenario runs in a fresh temporary directory with fixed run ids. The
// snapshot compared against golden files holds only what does not depend on
// scheduling: run outcomes and the final table contents.
package harness
