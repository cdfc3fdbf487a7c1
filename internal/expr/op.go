package expr

import "fmt"

// Op is an operator in the closed vocabulary.
type Op uint8

const (
	OpInvalid Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpDdx
	OpDdy
	OpLaplacian
	OpAdvected
	numOps
)

// Kind classifies operators.
type Kind uint8

const (
	// KindArithmetic operators act pointwise.
	KindArithmetic Kind = iota + 1
	// KindSpatial operators are evaluated in spectral space.
	KindSpatial
)

type opInfo struct {
	name  string
	arity int
	kind  Kind
}

var opTable = [numOps]opInfo{
	OpInvalid:   {name: "invalid"},
	OpAdd:       {name: "add", arity: 2, kind: KindArithmetic},
	OpSub:       {name: "sub", arity: 2, kind: KindArithmetic},
	OpMul:       {name: "mul", arity: 2, kind: KindArithmetic},
	OpDiv:       {name: "div", arity: 2, kind: KindArithmetic},
	OpNeg:       {name: "neg", arity: 1, kind: KindArithmetic},
	OpDdx:       {name: "ddx", arity: 1, kind: KindSpatial},
	OpDdy:       {name: "ddy", arity: 1, kind: KindSpatial},
	OpLaplacian: {name: "laplacian", arity: 1, kind: KindSpatial},
	OpAdvected:  {name: "advected", arity: 1, kind: KindSpatial},
}

var opByName = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for op := OpAdd; op < numOps; op++ {
		m[opTable[op].name] = op
	}
	return m
}()

// LookupOp returns the operator with the given name.
func LookupOp(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}

// ParseOps resolves a list of operator names, failing on the first unknown one.
func ParseOps(names []string) ([]Op, error) {
	ops := make([]Op, 0, len(names))
	for _, n := range names {
		op, ok := LookupOp(n)
		if !ok {
			return nil, &UnsupportedOperatorError{Name: n, Pos: -1}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Ops returns every valid operator in declaration order.
func Ops() []Op {
	ops := make([]Op, 0, numOps-1)
	for op := OpAdd; op < numOps; op++ {
		ops = append(ops, op)
	}
	return ops
}

func (o Op) valid() bool { return o > OpInvalid && o < numOps }

// String returns the operator's name in the text grammar.
func (o Op) String() string {
	if o >= numOps {
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
	return opTable[o].name
}

// Arity returns the number of operands.
func (o Op) Arity() int {
	if !o.valid() {
		return 0
	}
	return opTable[o].arity
}

// Kind returns the operator class.
func (o Op) Kind() Kind {
	if !o.valid() {
		return 0
	}
	return opTable[o].kind
}

// IsSpatial reports whether o is a differential operator.
func (o Op) IsSpatial() bool { return o.Kind() == KindSpatial }
