// Package lexer implements the single-pass BCPL-style token scanner
// (spec §4.1). A Lexer is restartable: Reset discards all positional
// state and begins scanning a new source string.
package lexer

import (
	"strconv"
	"strings"

	"github.com/albanread/RevivalBCPL-sub000/internal/diag"
	"github.com/albanread/RevivalBCPL-sub000/internal/token"
)

// Lexer scans UTF-8 source text into a stream of token.Token values,
// one per call to Next.
type Lexer struct {
	src        []rune
	pos        int
	line, col  int
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	l := &Lexer{}
	l.Reset(src)
	return l
}

// Reset restarts scanning over a new source string, discarding all
// positional state.
func (l *Lexer) Reset(src string) {
	l.src = []rune(src)
	l.pos = 0
	l.line = 1
	l.col = 1
}

func (l *Lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) cur() rune  { return l.peekAt(0) }
func (l *Lexer) next() rune { return l.peekAt(1) }
func (l *Lexer) next2() rune { return l.peekAt(2) }

func (l *Lexer) advance() rune {
	r := l.cur()
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
func isAlpha(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
func isAlnum(r rune) bool { return isAlpha(r) || isDigit(r) }

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch {
		case l.cur() == ' ' || l.cur() == '\t' || l.cur() == '\r' || l.cur() == '\n':
			l.advance()
		case l.cur() == '/' && l.next() == '/':
			for l.cur() != 0 && l.cur() != '\n' {
				l.advance()
			}
		case l.cur() == '/' && l.next() == '*':
			startLine := l.line
			l.advance()
			l.advance()
			closed := false
			for l.cur() != 0 {
				if l.cur() == '*' && l.next() == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return diag.At(diag.Lexical, startLine, 0, "unterminated block comment")
			}
		default:
			return nil
		}
	}
}

// Next scans and returns the next token in the stream.
func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}
	line, col := l.line, l.col
	r := l.cur()
	if r == 0 {
		return token.Token{Kind: token.EOF, Line: line, Column: col}, nil
	}

	switch {
	case isAlpha(r):
		return l.lexIdent(line, col), nil
	case isDigit(r), r == '#':
		return l.lexNumber(line, col)
	case r == '.' && isDigit(l.next()):
		return l.lexNumber(line, col)
	case r == '"':
		return l.lexString(line, col)
	case r == '\'':
		return l.lexChar(line, col)
	default:
		return l.lexOperator(line, col)
	}
}

func (l *Lexer) lexIdent(line, col int) token.Token {
	var b strings.Builder
	for isAlnum(l.cur()) {
		b.WriteRune(l.advance())
	}
	text := b.String()
	if kind, ok := token.Lookup(text); ok {
		return token.Token{Kind: kind, Text: text, Line: line, Column: col}
	}
	return token.Token{Kind: token.Ident, Text: text, Line: line, Column: col}
}

// lexNumber handles decimal, #octal, #Xhex, and float (with optional
// exponent) literals per spec §4.1.
func (l *Lexer) lexNumber(line, col int) (token.Token, error) {
	var b strings.Builder

	if l.cur() == '#' {
		l.advance() // consume '#'
		if l.cur() == 'X' || l.cur() == 'x' {
			l.advance()
			var hx strings.Builder
			for isHexDigit(l.cur()) {
				hx.WriteRune(l.advance())
			}
			if hx.Len() == 0 {
				return token.Token{}, diag.At(diag.Lexical, line, col, "malformed hex literal")
			}
			v, err := strconv.ParseInt(hx.String(), 16, 64)
			if err != nil {
				return token.Token{}, diag.Wrap(err, diag.Lexical, line, "malformed hex literal %q", hx.String())
			}
			return token.Token{Kind: token.IntLiteral, Text: "#X" + hx.String(), IntValue: v, Line: line, Column: col}, nil
		}
		var oc strings.Builder
		for l.cur() >= '0' && l.cur() <= '7' {
			oc.WriteRune(l.advance())
		}
		if oc.Len() == 0 {
			return token.Token{}, diag.At(diag.Lexical, line, col, "malformed octal literal")
		}
		v, err := strconv.ParseInt(oc.String(), 8, 64)
		if err != nil {
			return token.Token{}, diag.Wrap(err, diag.Lexical, line, "malformed octal literal %q", oc.String())
		}
		return token.Token{Kind: token.IntLiteral, Text: "#" + oc.String(), IntValue: v, Line: line, Column: col}, nil
	}

	for isDigit(l.cur()) {
		b.WriteRune(l.advance())
	}

	isFloat := false
	if l.cur() == '.' && isDigit(l.next()) {
		isFloat = true
		b.WriteRune(l.advance())
		for isDigit(l.cur()) {
			b.WriteRune(l.advance())
		}
	}
	if l.cur() == 'E' || l.cur() == 'e' {
		save := l.pos
		var exp strings.Builder
		exp.WriteRune(l.advance())
		if l.cur() == '+' || l.cur() == '-' {
			exp.WriteRune(l.advance())
		}
		if isDigit(l.cur()) {
			isFloat = true
			for isDigit(l.cur()) {
				exp.WriteRune(l.advance())
			}
			b.WriteString(exp.String())
		} else {
			l.pos = save // not an exponent after all; rewind
		}
	}

	text := b.String()
	if isFloat {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token.Token{}, diag.Wrap(err, diag.Lexical, line, "malformed float literal %q", text)
		}
		return token.Token{Kind: token.FloatLiteral, Text: text, FloatValue: v, Line: line, Column: col}, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token.Token{}, diag.Wrap(err, diag.Lexical, line, "malformed integer literal %q", text)
	}
	return token.Token{Kind: token.IntLiteral, Text: text, IntValue: v, Line: line, Column: col}, nil
}

// escapeRune maps a BCPL `*x` string/char escape to its code point, or
// ok=false if literal (unknown escapes pass the character through
// unchanged per spec §4.1).
func escapeRune(x rune) (rune, bool) {
	switch x {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 's':
		return ' ', true
	case 'b':
		return '\b', true
	case 'p':
		return '\f', true
	case 'c':
		return '\r', true
	case '"':
		return '"', true
	case '*':
		return '*', true
	default:
		return x, false
	}
}

func (l *Lexer) lexString(line, col int) (token.Token, error) {
	l.advance() // consume opening quote
	var b strings.Builder
	for {
		r := l.cur()
		if r == 0 || r == '\n' {
			return token.Token{}, diag.At(diag.Lexical, line, col, "unterminated string literal")
		}
		if r == '"' {
			l.advance()
			break
		}
		if r == '*' {
			l.advance()
			x := l.advance()
			mapped, _ := escapeRune(x)
			b.WriteRune(mapped)
			continue
		}
		b.WriteRune(l.advance())
	}
	return token.Token{Kind: token.StringLiteral, Text: b.String(), Line: line, Column: col}, nil
}

func (l *Lexer) lexChar(line, col int) (token.Token, error) {
	l.advance() // opening quote
	r := l.cur()
	if r == 0 {
		return token.Token{}, diag.At(diag.Lexical, line, col, "unterminated character literal")
	}
	var value rune
	if r == '*' {
		l.advance()
		x := l.advance()
		mapped, _ := escapeRune(x)
		value = mapped
	} else {
		value = l.advance()
	}
	if l.cur() != '\'' {
		return token.Token{}, diag.At(diag.Lexical, line, col, "unterminated character literal")
	}
	l.advance()
	return token.Token{Kind: token.CharLiteral, Text: string(value), IntValue: int64(value), Line: line, Column: col}, nil
}

// twoCharOps and threeCharOps implement maximal-munch operator
// lexing: a longer match is always preferred over its prefix.
var threeCharOps = map[string]token.Kind{
	"<=.": token.LeF,
	">=.": token.GeF,
	"~=.": token.NeF,
}

var twoCharOps = map[string]token.Kind{
	":=": token.Assign,
	"->": token.Arrow,
	"<<": token.LShift,
	">>": token.RShift,
	"$(": token.LBrace,
	"$)": token.RBrace,
	".%": token.PctFloat,
	"+.": token.PlusF,
	"-.": token.MinusF,
	"*.": token.StarF,
	"/.": token.SlashF,
	"=.": token.EqF,
	"<.": token.LtF,
	">.": token.GtF,
	"<=": token.Le,
	">=": token.Ge,
	"~=": token.Ne,
}

var oneCharOps = map[rune]token.Kind{
	'+': token.Plus, '-': token.Minus, '*': token.Star, '/': token.Slash,
	'=': token.Eq, '<': token.Lt, '>': token.Gt,
	'&': token.And, '|': token.Or, '~': token.Not,
	'@': token.AddrOf, '!': token.Indirect, '%': token.PctChar,
	',': token.Comma, ':': token.Colon, ';': token.Semicolon,
	'(': token.LParen, ')': token.RParen,
}

func (l *Lexer) lexOperator(line, col int) (token.Token, error) {
	three := string([]rune{l.cur(), l.next(), l.next2()})
	if kind, ok := threeCharOps[three]; ok {
		l.advance()
		l.advance()
		l.advance()
		return token.Token{Kind: kind, Text: three, Line: line, Column: col}, nil
	}
	two := string([]rune{l.cur(), l.next()})
	if kind, ok := twoCharOps[two]; ok {
		l.advance()
		l.advance()
		return token.Token{Kind: kind, Text: two, Line: line, Column: col}, nil
	}
	r := l.cur()
	if kind, ok := oneCharOps[r]; ok {
		l.advance()
		return token.Token{Kind: kind, Text: string(r), Line: line, Column: col}, nil
	}
	l.advance()
	return token.Token{}, diag.At(diag.Lexical, line, col, "illegal character %q", r)
}
