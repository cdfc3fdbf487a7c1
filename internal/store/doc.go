// Package store provides SQLite-backed storage for discovery runs.
//
// A run is persisted as:
//   - runs: one row per run, with the configuration as JSON and the stop reason
//   - iterations: one row per completed iteration (candidate and diagnostics)
//   - terms: the ordered terms and coefficients of the model fitted in
//     that iteration
//
// # Ordering
//
// Runs are ordered by created_seq, a logical counter assigned on insert,
// never by wall-clock time. Iterations are ordered by iteration and terms by
// position, so reads are identical across processes.
//
// # Idempotency
//
// CreateRun and WriteIteration ignore rows that already exist, so a
// recorder may be replayed safely.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Non-finite diagnostics are stored as NULL and read back as NaN.
package store
