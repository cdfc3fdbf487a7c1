// Package expr defines the expression trees evaluated over gridded data.
//
// An expression is an immutable tree of four node kinds: Literal, FieldRef,
// Unary and Binary. Operators come from a closed enumeration (Op); unknown
// operator names are rejected when parsing, never at evaluation time.
//
// The text form is a flat function-call grammar,
//
//	add(mul(inputs, inputs), ddx(laplacian(inputs)))
//
// where leaves are field names or finite numeric literals. String is the
// canonical serialization and Parse(e.String()) is structurally equal to e
// for every tree built from supported operators. ID hashes the canonical
// form for content-addressed identity.
//
// This package imports nothing internal; the evaluator lives in package eval.
package expr
