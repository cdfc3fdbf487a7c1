// Package search finds a single expression that best correlates with a
// target field, using tree-based genetic programming.
//
// A search evolves a Population of expressions drawn from a closed
// vocabulary: the configured dataset fields as terminals (plus optional
// random constants), arithmetic functions, and spatial functions. Each
// generation is scored in parallel, then the next generation is bred by
// tournament selection followed by one of crossover, subtree mutation,
// hoist mutation, point mutation or reproduction. The best individual of
// every generation survives unchanged.
//
// Fitness is |Pearson(candidate, target)| minus ParsimonyCoefficient times
// the candidate's node count. Candidates that evaluate to a constant or to
// any non-finite value have zero correlation.
//
// Determinism: the generator is seeded from Config.Seed and only used by
// the goroutine that runs Search. Parallel scoring writes into per-index
// slots, so the order in which workers finish never changes the outcome.
package search
