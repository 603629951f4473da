package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrSyntax         = errors.New("syntax error")
	ErrDivisionByZero = errors.New("division by zero")
	ErrUnknownFunc    = errors.New("unknown function")
)

// Evaluate computes an arithmetic expression. It supports + - * / % ^,
// parentheses, unary signs and calls into funcs. Identifiers other than
// function names are rejected, so variables must be substituted first.
func Evaluate(expr string, funcs map[string]Func) (float64, error) {
	p := &exprParser{src: []rune(expr), funcs: funcs}
	p.next()
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, fmt.Errorf("%w: unexpected %q", ErrSyntax, p.tok.text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not finite", ErrSyntax)
	}
	return v, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
}

type exprParser struct {
	src   []rune
	pos   int
	tok   token
	err   error
	funcs map[string]Func
}

func (p *exprParser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF}
		return
	}

	c := p.src[p.pos]
	switch {
	case unicode.IsDigit(c) || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
			p.pos++
		}
		// exponent only when digits follow, so "2e" stays an error
		if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
			j := p.pos + 1
			if j < len(p.src) && (p.src[j] == '+' || p.src[j] == '-') {
				j++
			}
			if j < len(p.src) && unicode.IsDigit(p.src[j]) {
				for j < len(p.src) && unicode.IsDigit(p.src[j]) {
					j++
				}
				p.pos = j
			}
		}
		text := string(p.src[start:p.pos])
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.err = fmt.Errorf("%w: bad number %q", ErrSyntax, text)
			p.tok = token{kind: tokEOF}
			return
		}
		p.tok = token{kind: tokNum, text: text, num: n}
	case unicode.IsLetter(c) || c == '_':
		start := p.pos
		for p.pos < len(p.src) && (unicode.IsLetter(p.src[p.pos]) || unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '_') {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: strings.ToLower(string(p.src[start:p.pos]))}
	case strings.ContainsRune("+-*/%^", c):
		p.pos++
		p.tok = token{kind: tokOp, text: string(c)}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "("}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")"}
	case c == ',':
		p.pos++
		p.tok = token{kind: tokComma, text: ","}
	default:
		p.err = fmt.Errorf("%w: unexpected character %q", ErrSyntax, c)
		p.tok = token{kind: tokEOF}
	}
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, p.err
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/" || p.tok.text == "%") {
		op := p.tok.text
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left = math.Mod(left, right)
		}
	}
	return left, p.err
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "+") {
		neg := p.tok.text == "-"
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if neg {
			v = -v
		}
		return v, nil
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.tok.kind == tokOp && p.tok.text == "^" {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	switch p.tok.kind {
	case tokNum:
		v := p.tok.num
		p.next()
		return v, p.err
	case tokLParen:
		p.next()
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, fmt.Errorf("%w: missing )", ErrSyntax)
		}
		p.next()
		return v, p.err
	case tokIdent:
		name := p.tok.text
		fn, ok := p.funcs[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownFunc, name)
		}
		p.next()
		if p.tok.kind != tokLParen {
			return 0, fmt.Errorf("%w: %s needs arguments", ErrSyntax, name)
		}
		p.next()
		var args []float64
		for p.tok.kind != tokRParen {
			v, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.tok.kind == tokComma {
				p.next()
				continue
			}
			if p.tok.kind != tokRParen {
				return 0, fmt.Errorf("%w: expected , or )", ErrSyntax)
			}
		}
		p.next()
		return fn(args...)
	default:
		return 0, fmt.Errorf("%w: unexpected %q", ErrSyntax, p.tok.text)
	}
}

// FormatNumber renders v rounded to ten decimals without trailing zeros.
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 10, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
