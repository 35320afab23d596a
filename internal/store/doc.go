// Package store provides SQLite-backed durable storage for evaluated grid nodes.
//
// A grid database holds:
//   - parameters: one row per committed node, keyed by node id
//   - curves: one row per committed node, one little-endian float64 BLOB per passband
//   - auxiliary: the resume marker, the id of the most recently committed node
//   - grid_meta: the sampling order the ids refer to and its fingerprint
//
// # Commit Atomicity
//
// A node's parameters row, curves row and the resume marker are written in one
// transaction. A reader never sees a marker pointing at a node whose rows are
// missing, and a crash never leaves half a node behind.
//
// # Shards
//
// Runs over disjoint fractions of the same grid write separate files. Merge
// unions them after checking that they record the same grid and hold disjoint
// node ids.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Either github.com/mattn/go-sqlite3 (default) or the pure-Go modernc.org/sqlite
// driver can be selected with WithDriver.
package store
