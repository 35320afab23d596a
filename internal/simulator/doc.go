// Package simulator defines the light-curve simulator the grid runner calls
// for every admissible node, and an adapter for simulators running as
// external processes.
//
// Failures come in three flavours:
//   - out of coverage: the system cannot be modelled; skip the node
//   - transient: retry, then count the node as failed and move on
//   - anything else: stop the run
package simulator
