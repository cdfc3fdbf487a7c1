package eval

import (
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
)

// Re-exported so callers of Evaluate can classify failures without
// importing grid and expr.
var (
	IsUnknownField        = grid.IsUnknownField
	IsShapeMismatch       = grid.IsShapeMismatch
	IsSyntax              = expr.IsSyntax
	IsUnsupportedOperator = expr.IsUnsupportedOperator
)
