// Package engine evaluates a shard of the binary grid: it permutes the node
// ids, finds where an earlier run stopped, and dispatches the remaining nodes
// to a bounded pool of workers that write results through the store.
//
// ARCHITECTURE:
//
// Lifecycle:
// Initialized -> Permuted -> Resumed -> Dispatching -> Done
//
// 1. The sampling order is bound to the database (append-only growth only)
// 2. ids 0..N-1 are shuffled with a seeded PCG generator and sliced to the shard
// 3. The resume marker is located in the shard; dispatch restarts before it
// 4. Remaining ids are split into chunks; each chunk fans out to at most
//    Parallelism workers and must finish before the next one starts
// 5. A worker decodes its id, applies the validity rules and the morphology
//    filter, resolves the system, calls the simulator and commits the result
//
// Determinism:
// The permutation depends only on N and the seed, so every machine derives
// the same order and disjoint shards without coordination. The order in which
// nodes finish within a chunk is not deterministic; the chunk barrier bounds
// how far the resume marker can lag behind work in flight.
//
// Outcomes:
// Invalid, filtered, out-of-coverage and exhausted-retry nodes are counted
// and dropped. Fatal simulator errors and storage errors abort the run with
// a *NodeError.
package engine
