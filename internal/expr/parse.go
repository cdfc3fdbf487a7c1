package expr

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokLParen:
		return `"("`
	case tokRParen:
		return `")"`
	case tokComma:
		return `","`
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// parser is a recursive-descent parser over a pre-lexed token stream.
type parser struct {
	input  string
	tokens []token
	i      int
}

// Parse parses expression text. Identifiers are NFC-normalized so that
// visually identical field names compare equal.
//
// Errors are *SyntaxError for malformed text (bad tokens, unbalanced
// parentheses, wrong arity, trailing input, an operator name used as a leaf)
// and *UnsupportedOperatorError for an unknown function name.
func Parse(text string) (Expr, error) {
	input := norm.NFC.String(text)
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t.pos, "unexpected %s after expression", t.kind)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(text string) Expr {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) peek() token { return p.tokens[p.i] }

func (p *parser) next() token {
	t := p.tokens[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Input: p.input, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parseExpr() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, p.errorf(t.pos, "invalid numeric literal %q", t.text)
		}
		return Literal{Value: v}, nil

	case tokIdent:
		if p.peek().kind != tokLParen {
			if _, isOp := LookupOp(t.text); isOp {
				return nil, p.errorf(t.pos, "operator %q requires arguments", t.text)
			}
			return FieldRef{Name: t.text}, nil
		}
		op, ok := LookupOp(t.text)
		if !ok {
			return nil, &UnsupportedOperatorError{Name: t.text, Pos: t.pos}
		}
		p.next() // (
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != op.Arity() {
			return nil, p.errorf(t.pos, "%s takes %d argument(s), got %d", op, op.Arity(), len(args))
		}
		if op.Arity() == 1 {
			return Unary{Op: op, X: args[0]}, nil
		}
		return Binary{Op: op, L: args[0], R: args[1]}, nil

	default:
		return nil, p.errorf(t.pos, "unexpected %s", t.kind)
	}
}

// parseArgs parses a comma separated list up to and including ")".
func (p *parser) parseArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		case tokEOF:
			return nil, p.errorf(t.pos, "missing closing parenthesis")
		default:
			return nil, p.errorf(t.pos, "expected \",\" or \")\", got %s", t.kind)
		}
	}
}

// lex splits input into tokens, always ending with tokEOF.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		r, w := utf8.DecodeRuneInString(input[i:])
		switch {
		case r == utf8.RuneError && w == 1:
			return nil, &SyntaxError{Input: input, Pos: i, Message: "invalid UTF-8"}
		case unicode.IsSpace(r):
			i += w
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(input) {
				r, w := utf8.DecodeRuneInString(input[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += w
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:i], pos: start})
		case isNumberStart(input, i):
			start := i
			i = scanNumber(input, i)
			tokens = append(tokens, token{kind: tokNumber, text: input[start:i], pos: start})
		default:
			return nil, &SyntaxError{Input: input, Pos: i, Message: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNumberStart(s string, i int) bool {
	c := s[i]
	if isDigit(c) {
		return true
	}
	if c == '-' || c == '+' {
		i++
		if i >= len(s) {
			return false
		}
		c = s[i]
		if isDigit(c) {
			return true
		}
	}
	return c == '.' && i+1 < len(s) && isDigit(s[i+1])
}

// scanNumber consumes [sign] digits [. digits] [(e|E) [sign] digits].
func scanNumber(s string, i int) int {
	if s[i] == '-' || s[i] == '+' {
		i++
	}
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '-' || s[j] == '+') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}
