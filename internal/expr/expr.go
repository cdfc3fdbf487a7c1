package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Expr is a sealed interface implemented by Literal, FieldRef, Unary and Binary.
type Expr interface {
	// String returns the canonical text form.
	String() string
	exprNode()
}

// Literal is a finite scalar constant, broadcast against fields.
type Literal struct {
	Value float64
}

// FieldRef names a field of the dataset.
type FieldRef struct {
	Name string
}

// Unary applies a one-operand operator.
type Unary struct {
	Op Op
	X  Expr
}

// Binary applies a two-operand operator.
type Binary struct {
	Op   Op
	L, R Expr
}

func (Literal) exprNode()  {}
func (FieldRef) exprNode() {}
func (Unary) exprNode()    {}
func (Binary) exprNode()   {}

// Lit returns a Literal. It panics on NaN or infinite values, which have no
// text form.
func Lit(v float64) Expr {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		panic(fmt.Sprintf("expr: non-finite literal %v", v))
	}
	return Literal{Value: v}
}

// Ref returns a FieldRef.
func Ref(name string) Expr { return FieldRef{Name: name} }

// Apply builds the node for op over args, checking arity.
func Apply(op Op, args ...Expr) (Expr, error) {
	if !op.valid() {
		return nil, &UnsupportedOperatorError{Name: op.String(), Pos: -1}
	}
	if len(args) != op.Arity() {
		return nil, fmt.Errorf("expr: %s takes %d argument(s), got %d", op, op.Arity(), len(args))
	}
	for i, a := range args {
		if a == nil {
			return nil, fmt.Errorf("expr: %s argument %d is nil", op, i)
		}
	}
	if op.Arity() == 1 {
		return Unary{Op: op, X: args[0]}, nil
	}
	return Binary{Op: op, L: args[0], R: args[1]}, nil
}

func Add(a, b Expr) Expr    { return Binary{Op: OpAdd, L: a, R: b} }
func Sub(a, b Expr) Expr    { return Binary{Op: OpSub, L: a, R: b} }
func Mul(a, b Expr) Expr    { return Binary{Op: OpMul, L: a, R: b} }
func Div(a, b Expr) Expr    { return Binary{Op: OpDiv, L: a, R: b} }
func Neg(a Expr) Expr       { return Unary{Op: OpNeg, X: a} }
func Ddx(a Expr) Expr       { return Unary{Op: OpDdx, X: a} }
func Ddy(a Expr) Expr       { return Unary{Op: OpDdy, X: a} }
func Laplacian(a Expr) Expr { return Unary{Op: OpLaplacian, X: a} }
func Advected(a Expr) Expr  { return Unary{Op: OpAdvected, X: a} }

func (l Literal) String() string { return strconv.FormatFloat(l.Value, 'g', -1, 64) }

func (f FieldRef) String() string { return f.Name }

func (u Unary) String() string {
	var b strings.Builder
	writeTo(&b, u)
	return b.String()
}

func (n Binary) String() string {
	var b strings.Builder
	writeTo(&b, n)
	return b.String()
}

func writeTo(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case Literal:
		b.WriteString(n.String())
	case FieldRef:
		b.WriteString(n.Name)
	case Unary:
		b.WriteString(n.Op.String())
		b.WriteByte('(')
		writeTo(b, n.X)
		b.WriteByte(')')
	case Binary:
		b.WriteString(n.Op.String())
		b.WriteByte('(')
		writeTo(b, n.L)
		b.WriteString(", ")
		writeTo(b, n.R)
		b.WriteByte(')')
	}
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case Literal:
		y, ok := b.(Literal)
		return ok && x.Value == y.Value
	case FieldRef:
		y, ok := b.(FieldRef)
		return ok && x.Name == y.Name
	case Unary:
		y, ok := b.(Unary)
		return ok && x.Op == y.Op && Equal(x.X, y.X)
	case Binary:
		y, ok := b.(Binary)
		return ok && x.Op == y.Op && Equal(x.L, y.L) && Equal(x.R, y.R)
	}
	return false
}
