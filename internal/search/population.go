package search

import (
	"math/rand/v2"

	"github.com/roach88/hybridsr/internal/expr"
)

// Population is one generation of candidate expressions.
type Population []expr.Expr

// Strings returns the canonical text of every member.
func (p Population) Strings() []string {
	out := make([]string, len(p))
	for i, e := range p {
		out[i] = e.String()
	}
	return out
}

// terminal returns a random leaf: a feature, or a constant with probability
// 1/(len(features)+1) when constants are enabled.
func (v *vocabulary) terminal(rng *rand.Rand) expr.Expr {
	n := len(v.features)
	if v.constRange != nil {
		n++
	}
	i := rng.IntN(n)
	if i < len(v.features) {
		return expr.Ref(v.features[i])
	}
	lo, hi := v.constRange[0], v.constRange[1]
	return expr.Lit(lo + (hi-lo)*rng.Float64())
}

// build grows a random tree no deeper than maxDepth. With full set every
// branch reaches maxDepth; otherwise leaves may appear early, chosen with
// probability proportional to the number of terminals.
func (v *vocabulary) build(rng *rand.Rand, maxDepth int, full bool) expr.Expr {
	return v.buildAt(rng, 0, maxDepth, full)
}

func (v *vocabulary) buildAt(rng *rand.Rand, depth, maxDepth int, full bool) expr.Expr {
	if depth >= maxDepth || len(v.funcs) == 0 {
		return v.terminal(rng)
	}
	if !full && depth > 0 {
		nterm := len(v.features)
		if v.constRange != nil {
			nterm++
		}
		if rng.IntN(nterm+len(v.funcs)) < nterm {
			return v.terminal(rng)
		}
	}
	op := v.funcs[rng.IntN(len(v.funcs))]
	args := make([]expr.Expr, op.Arity())
	for i := range args {
		args[i] = v.buildAt(rng, depth+1, maxDepth, full)
	}
	e, err := expr.Apply(op, args...)
	if err != nil {
		panic(err) // vocabulary only holds valid operators
	}
	return e
}

// initial builds a ramped half-and-half population.
func (v *vocabulary) initial(rng *rand.Rand, cfg Config) Population {
	lo, hi := cfg.InitDepth[0], cfg.InitDepth[1]
	pop := make(Population, cfg.PopulationSize)
	for i := range pop {
		depth := lo + rng.IntN(hi-lo+1)
		pop[i] = v.build(rng, depth, i%2 == 0)
	}
	return pop
}

// pickNode selects a pre-order node index, favouring operators over leaves
// 9 to 1 so that genetic operators exchange meaningful subtrees.
func pickNode(rng *rand.Rand, e expr.Expr) int {
	nodes := expr.Nodes(e)
	if len(nodes) == 1 {
		return 0
	}
	weights := make([]float64, len(nodes))
	total := 0.0
	for i, n := range nodes {
		w := 0.1
		if len(expr.Children(n)) > 0 {
			w = 0.9
		}
		weights[i] = w
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(nodes) - 1
}

func subtree(rng *rand.Rand, e expr.Expr) (int, expr.Expr) {
	i := pickNode(rng, e)
	n, err := expr.At(e, i)
	if err != nil {
		panic(err)
	}
	return i, n
}

func graft(e expr.Expr, i int, sub expr.Expr) expr.Expr {
	out, err := expr.Replace(e, i, sub)
	if err != nil {
		panic(err)
	}
	return out
}

// crossover replaces a random subtree of parent with a random subtree of donor.
func crossover(rng *rand.Rand, parent, donor expr.Expr) expr.Expr {
	i, _ := subtree(rng, parent)
	_, sub := subtree(rng, donor)
	return graft(parent, i, sub)
}

// subtreeMutation is crossover against a freshly grown tree.
func (v *vocabulary) subtreeMutation(rng *rand.Rand, parent expr.Expr, cfg Config) expr.Expr {
	depth := cfg.InitDepth[0] + rng.IntN(cfg.InitDepth[1]-cfg.InitDepth[0]+1)
	return crossover(rng, parent, v.build(rng, depth, false))
}

// hoistMutation replaces a random subtree with one of its own subtrees,
// shrinking the program.
func hoistMutation(rng *rand.Rand, parent expr.Expr) expr.Expr {
	i, sub := subtree(rng, parent)
	_, inner := subtree(rng, sub)
	return graft(parent, i, inner)
}

// pointMutation replaces each node with probability p by a random node of
// the same arity: operators by operators, leaves by leaves.
func (v *vocabulary) pointMutation(rng *rand.Rand, e expr.Expr, p float64) expr.Expr {
	switch n := e.(type) {
	case expr.Unary:
		op := n.Op
		if rng.Float64() < p {
			op = v.sameArity(rng, op)
		}
		return expr.Unary{Op: op, X: v.pointMutation(rng, n.X, p)}
	case expr.Binary:
		op := n.Op
		if rng.Float64() < p {
			op = v.sameArity(rng, op)
		}
		return expr.Binary{Op: op, L: v.pointMutation(rng, n.L, p), R: v.pointMutation(rng, n.R, p)}
	default:
		if rng.Float64() < p {
			return v.terminal(rng)
		}
		return e
	}
}

func (v *vocabulary) sameArity(rng *rand.Rand, op expr.Op) expr.Op {
	ops := v.byArity[op.Arity()]
	if len(ops) == 0 {
		return op
	}
	return ops[rng.IntN(len(ops))]
}

// tournament returns the index of the fittest of k random members. Ties go
// to the lower index.
func tournament(rng *rand.Rand, scores []score, k int) int {
	best := -1
	for range k {
		i := rng.IntN(len(scores))
		if best < 0 || scores[i].fitness > scores[best].fitness ||
			(scores[i].fitness == scores[best].fitness && i < best) {
			best = i
		}
	}
	return best
}

// evolve breeds the next generation from pop. The fittest member is carried
// over unchanged at index 0; every other slot is filled by one genetic
// operator applied to a tournament winner. Offspring deeper than
// cfg.MaxDepth are replaced by the parent.
func (v *vocabulary) evolve(rng *rand.Rand, pop Population, scores []score, cfg Config) Population {
	next := make(Population, len(pop))
	next[0] = pop[best(scores)]

	cx := cfg.PCrossover
	sub := cx + cfg.PSubtreeMutation
	hoist := sub + cfg.PHoistMutation
	point := hoist + cfg.PPointMutation

	for i := 1; i < len(next); i++ {
		parent := pop[tournament(rng, scores, cfg.TournamentSize)]
		var child expr.Expr
		switch r := rng.Float64(); {
		case r < cx:
			donor := pop[tournament(rng, scores, cfg.TournamentSize)]
			child = crossover(rng, parent, donor)
		case r < sub:
			child = v.subtreeMutation(rng, parent, cfg)
		case r < hoist:
			child = hoistMutation(rng, parent)
		case r < point:
			child = v.pointMutation(rng, parent, cfg.PPointReplace)
		default:
			child = parent
		}
		if expr.Depth(child) > cfg.MaxDepth {
			child = parent
		}
		next[i] = child
	}
	return next
}
