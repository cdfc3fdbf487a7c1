// Package hybrid runs the residual-refinement discovery loop.
//
// Each iteration searches for one expression that correlates with the
// current residual, appends it to the discovered terms, re-fits linear
// coefficients for all terms against the original target, and stores the
// new residual as the next iteration's search target:
//
//	residual₀ = target
//	candidateᵢ = search(residualᵢ₋₁)
//	modelᵢ     = fit(terms₁..ᵢ, target)
//	residualᵢ  = target − modelᵢ(dataset)
//
// The loop stops after MaxIters iterations, when the relative residual norm
// falls to ResidualTolerance, when the search finds nothing correlated with
// the residual, or when retries for a degenerate or singular iteration run
// out. Every completed iteration is kept as an IterationRecord and handed
// to the configured Recorder before the next one starts.
package hybrid
