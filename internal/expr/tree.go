package expr

import (
	"fmt"
	"slices"
)

// Children returns the direct operands of e in argument order.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case Unary:
		return []Expr{n.X}
	case Binary:
		return []Expr{n.L, n.R}
	}
	return nil
}

// Nodes returns every node of e in pre-order. Index 0 is e itself.
func Nodes(e Expr) []Expr {
	var out []Expr
	var walk func(Expr)
	walk = func(n Expr) {
		out = append(out, n)
		for _, c := range Children(n) {
			walk(c)
		}
	}
	walk(e)
	return out
}

// Size returns the number of nodes in e.
func Size(e Expr) int {
	n := 1
	for _, c := range Children(e) {
		n += Size(c)
	}
	return n
}

// Depth returns the length of the longest root-to-leaf path; a leaf has depth 0.
func Depth(e Expr) int {
	d := 0
	for _, c := range Children(e) {
		d = max(d, Depth(c)+1)
	}
	return d
}

// At returns the i-th node of e in pre-order.
func At(e Expr, i int) (Expr, error) {
	if i < 0 {
		return nil, fmt.Errorf("expr: node index %d out of range", i)
	}
	n, rest := at(e, i)
	if rest >= 0 {
		return nil, fmt.Errorf("expr: node index %d out of range (size %d)", i, Size(e))
	}
	return n, nil
}

// at walks in pre-order, returning the node once i reaches 0 and -1 as the
// remaining count. Otherwise it returns the count left after this subtree.
func at(e Expr, i int) (Expr, int) {
	if i == 0 {
		return e, -1
	}
	i--
	for _, c := range Children(e) {
		n, rest := at(c, i)
		if rest < 0 {
			return n, -1
		}
		i = rest
	}
	return nil, i
}

// Replace returns a copy of e in which the i-th pre-order node is sub.
// The receiver is unchanged.
func Replace(e Expr, i int, sub Expr) (Expr, error) {
	if i < 0 {
		return nil, fmt.Errorf("expr: node index %d out of range", i)
	}
	out, rest := replace(e, i, sub)
	if rest >= 0 {
		return nil, fmt.Errorf("expr: node index %d out of range (size %d)", i, Size(e))
	}
	return out, nil
}

func replace(e Expr, i int, sub Expr) (Expr, int) {
	if i == 0 {
		return sub, -1
	}
	i--
	switch n := e.(type) {
	case Unary:
		x, rest := replace(n.X, i, sub)
		if rest < 0 {
			return Unary{Op: n.Op, X: x}, -1
		}
		return e, rest
	case Binary:
		l, rest := replace(n.L, i, sub)
		if rest < 0 {
			return Binary{Op: n.Op, L: l, R: n.R}, -1
		}
		r, rest := replace(n.R, rest, sub)
		if rest < 0 {
			return Binary{Op: n.Op, L: n.L, R: r}, -1
		}
		return e, rest
	}
	return e, i
}

// Fields returns the distinct field names referenced by e, sorted.
func Fields(e Expr) []string {
	var names []string
	for _, n := range Nodes(e) {
		if f, ok := n.(FieldRef); ok && !slices.Contains(names, f.Name) {
			names = append(names, f.Name)
		}
	}
	slices.Sort(names)
	return names
}

// Uses reports whether op appears anywhere in e.
func Uses(e Expr, op Op) bool {
	for _, n := range Nodes(e) {
		switch x := n.(type) {
		case Unary:
			if x.Op == op {
				return true
			}
		case Binary:
			if x.Op == op {
				return true
			}
		}
	}
	return false
}
