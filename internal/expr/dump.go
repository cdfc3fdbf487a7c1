package expr

import (
	"strings"
)

// Dump renders e as an indented tree, one node per line, for debugging
// and snapshot tests. The output has no trailing newline.
func Dump(e Expr) string {
	var b strings.Builder
	dump(&b, e, 0)
	return strings.TrimSuffix(b.String(), "\n")
}

func dump(b *strings.Builder, e Expr, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	switch n := e.(type) {
	case Literal:
		b.WriteString("lit ")
		b.WriteString(n.String())
	case FieldRef:
		b.WriteString("field ")
		b.WriteString(n.Name)
	case Unary:
		b.WriteString(n.Op.String())
	case Binary:
		b.WriteString(n.Op.String())
	}
	b.WriteByte('\n')
	for _, c := range Children(e) {
		dump(b, c, depth+1)
	}
}
