// Package harness runs end-to-end discovery scenarios.
//
// A scenario builds a dataset, either fits a fixed list of terms or runs a
// full hybrid discovery, persists the run to an in-memory store and checks
// assertions against the recorded iterations and the store tables.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	dataset:
//	  synthetic: { nx: 32, ny: 32, batch: 4, seed: 2024 }
//	  derived:
//	    target: "add(mul(mul(inputs, inputs), 1e+07), ddx(laplacian(inputs)))"
//	config:                 # discovery scenario; same keys as a run config file
//	  target: target
//	  max_iters: 2
//	  residual_tolerance: 1.0e-12
//	  search: { base_features: [inputs], seed: 7 }
//	assertions:
//	  - type: min_correlation
//	    iteration: 1
//	    value: 0.95
//	  - type: final_state
//	    table: runs
//	    expect: { stop_reason: max_iters }
//
// A fit scenario replaces config with target, terms and optionally intercept.
// Derived fields are evaluated in name order, so a later name may refer to
// an earlier one.
//
// # Assertion Types
//
//   - stop_reason: the run stopped for the given reason
//   - iteration_count: exact count, or at most max iterations
//   - min_correlation: fit correlation of an iteration (0 means last) is at least value
//   - max_residual_norm: relative residual norm of an iteration is at most value
//   - term_present: the final model contains expression
//   - term_order: the final model contains expressions in this relative order
//   - operator_used: some final term applies operator
//   - coefficient: the final coefficient of expression is within tolerance of value
//   - final_state: a store table row matching where has the expected columns
//
// # Determinism
//
// Run ids are fixed per scenario and every search seed comes from the
// configuration, so a scenario produces the same records on every run and
// its snapshot can be compared against a golden file.
package harness
