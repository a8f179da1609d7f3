// Package parser implements the recursive-descent / precedence-climbing
// parser described in spec §4.2. Parse builds a *ast.Program from
// source text using a two-token lookahead lexer.
package parser

import (
	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/diag"
	"github.com/albanread/RevivalBCPL-sub000/internal/lexer"
	"github.com/albanread/RevivalBCPL-sub000/internal/token"
)

// Parse builds a program from source. Any syntactic error aborts the
// parse with a single diagnostic carrying a line number (spec §4.2
// "Errors are fatal").
func Parse(source string) (*ast.Program, error) {
	p := &parser{lex: lexer.New(source)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseProgram()
}

type parser struct {
	lex     *lexer.Lexer
	current token.Token
	peek    token.Token
}

func (p *parser) advance() error {
	p.current = p.peek
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *parser) at(k token.Kind) bool     { return p.current.Kind == k }
func (p *parser) peekAt(k token.Kind) bool { return p.peek.Kind == k }

func (p *parser) errf(format string, args ...interface{}) error {
	return diag.At(diag.Syntactic, p.current.Line, p.current.Column, format, args...)
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, p.errf("expected %s, got %s", k, p.current.Kind)
	}
	t := p.current
	if err := p.advance(); err != nil {
		return token.Token{}, err
	}
	return t, nil
}

func (p *parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.at(token.EOF) {
		d, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		prog.Declarations = append(prog.Declarations, d)
		// A trailing ';' between top-level declarations is tolerated.
		if p.at(token.Semicolon) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return prog, nil
}

func (p *parser) parseDeclaration() (ast.Declaration, error) {
	switch p.current.Kind {
	case token.LET:
		return p.parseLetOrFunction()
	case token.MANIFEST:
		return p.parseManifest()
	case token.GLOBAL:
		return p.parseGlobal()
	case token.Ident:
		if p.current.Text == "GET" && p.peekAt(token.StringLiteral) {
			line := p.current.Line
			if err := p.advance(); err != nil {
				return nil, err
			}
			path := p.current.Text
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &ast.GetDirective{Path: path, Line: line}, nil
		}
		return nil, p.errf("expected a declaration, got %s", p.current.Kind)
	default:
		return nil, p.errf("expected a declaration, got %s", p.current.Kind)
	}
}

func (p *parser) parseLetOrFunction() (ast.Declaration, error) {
	line := p.current.Line
	if _, err := p.expect(token.LET); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	name := nameTok.Text

	if p.at(token.LParen) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		var params []string
		for !p.at(token.RParen) {
			pt, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			params = append(params, pt.Text)
			if p.at(token.Comma) {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		switch p.current.Kind {
		case token.Eq:
			if err := p.advance(); err != nil {
				return nil, err
			}
			expr, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			return &ast.FunctionDeclaration{Name: name, Params: params, ExprBody: expr, Line: line}, nil
		case token.BE:
			if err := p.advance(); err != nil {
				return nil, err
			}
			body, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			return &ast.FunctionDeclaration{Name: name, Params: params, StmtBody: body, Line: line}, nil
		default:
			return nil, p.errf("expected '=' or BE after function parameter list, got %s", p.current.Kind)
		}
	}

	if _, err := p.expect(token.Eq); err != nil {
		return nil, err
	}
	init, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	inits := []ast.LetInitPair{{Name: name, Init: init}}
	for p.at(token.AND) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		nt, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Eq); err != nil {
			return nil, err
		}
		e, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		inits = append(inits, ast.LetInitPair{Name: nt.Text, Init: e})
	}
	return &ast.LetDeclaration{Inits: inits, Line: line}, nil
}

func (p *parser) parseSeparator() error {
	if p.at(token.Comma) || p.at(token.Semicolon) {
		return p.advance()
	}
	return nil
}

func (p *parser) parseManifest() (ast.Declaration, error) {
	line := p.current.Line
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var bindings []ast.ManifestBinding
	for !p.at(token.RBrace) {
		nt, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Eq); err != nil {
			return nil, err
		}
		v, err := p.parseSignedInt()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.ManifestBinding{Name: nt.Text, Value: v})
		if err := p.parseSeparator(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.ManifestDeclaration{Bindings: bindings, Line: line}, nil
}

func (p *parser) parseGlobal() (ast.Declaration, error) {
	line := p.current.Line
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var bindings []ast.GlobalBinding
	for !p.at(token.RBrace) {
		nt, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		v, err := p.parseSignedInt()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ast.GlobalBinding{Name: nt.Text, Slot: v})
		if err := p.parseSeparator(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.GlobalDeclaration{Bindings: bindings, Line: line}, nil
}

func (p *parser) parseSignedInt() (int64, error) {
	neg := false
	if p.at(token.Minus) {
		neg = true
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	t, err := p.expect(token.IntLiteral)
	if err != nil {
		return 0, err
	}
	if neg {
		return -t.IntValue, nil
	}
	return t.IntValue, nil
}

// ---- Statements ----

// parseStatement implements the two-layer decomposition mandated by
// spec §4.2: a simple statement is parsed first, then checked for a
// trailing REPEAT / REPEATWHILE / REPEATUNTIL modifier. This ordering
// is mandatory so that compound statements do not swallow the
// modifier.
func (p *parser) parseStatement() (ast.Statement, error) {
	simple, err := p.parseSimpleStatement()
	if err != nil {
		return nil, err
	}
	line := p.current.Line
	switch p.current.Kind {
	case token.REPEAT:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.RepeatStatement{Body: simple, Kind: ast.RepeatUnconditional, Line: line}, nil
	case token.REPEATWHILE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		return &ast.RepeatStatement{Body: simple, Cond: cond, Kind: ast.RepeatWhile, Line: line}, nil
	case token.REPEATUNTIL:
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		return &ast.RepeatStatement{Body: simple, Cond: cond, Kind: ast.RepeatUntil, Line: line}, nil
	default:
		return simple, nil
	}
}

func (p *parser) parseSimpleStatement() (ast.Statement, error) {
	line := p.current.Line
	switch p.current.Kind {
	case token.Ident:
		if p.peekAt(token.Colon) {
			name := p.current.Text
			if err := p.advance(); err != nil { // consume ident
				return nil, err
			}
			if err := p.advance(); err != nil { // consume ':'
				return nil, err
			}
			body, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			return &ast.LabeledStatement{Name: name, Wrapped: body, Line: line}, nil
		}
		return p.parseExprStatement()
	case token.LBrace:
		return p.parseCompound()
	case token.IF:
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		then, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &ast.IfStatement{Cond: cond, Then: then, Line: line}, nil
	case token.UNLESS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		then, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		negated := &ast.UnaryOp{Op: token.Not, Child: cond, Line: line}
		return &ast.IfStatement{Cond: negated, Then: then, Line: line}, nil
	case token.TEST:
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		thenStmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		var elseStmt ast.Statement
		if p.at(token.OR) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			elseStmt, err = p.parseStatement()
			if err != nil {
				return nil, err
			}
		}
		return &ast.TestStatement{Cond: cond, Then: thenStmt, Else: elseStmt, Line: line}, nil
	case token.WHILE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.DO); err != nil {
			return nil, err
		}
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &ast.WhileStatement{Cond: cond, Body: body, Line: line}, nil
	case token.FOR:
		return p.parseFor()
	case token.SWITCHON:
		return p.parseSwitchon()
	case token.BREAK:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BreakStatement{Line: line}, nil
	case token.LOOP:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.LoopStatement{Line: line}, nil
	case token.ENDCASE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.EndcaseStatement{Line: line}, nil
	case token.FINISH:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.FinishStatement{Line: line}, nil
	case token.RETURN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.ReturnStatement{Line: line}, nil
	case token.RESULTIS:
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		return &ast.ResultisStatement{Value: val, Line: line}, nil
	case token.GOTO:
		if err := p.advance(); err != nil {
			return nil, err
		}
		lbl, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		return &ast.GotoStatement{Label: lbl, Line: line}, nil
	case token.LET, token.MANIFEST, token.GLOBAL:
		d, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		return &ast.DeclarationStatement{Decl: d, Line: line}, nil
	default:
		return p.parseExprStatement()
	}
}

// parseExprStatement parses either an assignment (one or more LHS
// targets, ':=', one or more RHS values) or a bare routine call.
func (p *parser) parseExprStatement() (ast.Statement, error) {
	line := p.current.Line
	first, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	lhs := []ast.Expression{first}
	for p.at(token.Comma) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		lhs = append(lhs, e)
	}
	if p.at(token.Assign) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs := []ast.Expression{}
		for {
			e, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			rhs = append(rhs, e)
			if !p.at(token.Comma) {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return &ast.Assignment{LHS: lhs, RHS: rhs, Line: line}, nil
	}
	if len(lhs) != 1 {
		return nil, p.errf("unexpected ',' in statement")
	}
	if _, ok := lhs[0].(*ast.FunctionCall); !ok {
		return nil, p.errf("expected ':=' or a routine call")
	}
	return &ast.RoutineCall{Call: lhs[0], Line: line}, nil
}

func (p *parser) parseCompound() (ast.Statement, error) {
	line := p.current.Line
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var children []ast.Statement
	for !p.at(token.RBrace) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		children = append(children, s)
		if p.at(token.Semicolon) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.CompoundStatement{Children: children, Line: line}, nil
}

func (p *parser) parseFor() (ast.Statement, error) {
	line := p.current.Line
	if err := p.advance(); err != nil {
		return nil, err
	}
	vt, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Eq); err != nil {
		return nil, err
	}
	from, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TO); err != nil {
		return nil, err
	}
	to, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	var by ast.Expression
	if p.at(token.BY) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		by, err = p.parseExpression(0)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.DO); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.ForStatement{Var: vt.Text, From: from, To: to, By: by, Body: body, Line: line}, nil
}

func (p *parser) parseSwitchon() (ast.Statement, error) {
	line := p.current.Line
	if err := p.advance(); err != nil {
		return nil, err
	}
	disc, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.INTO); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var cases []ast.SwitchCase
	var def ast.Statement
	for !p.at(token.RBrace) {
		switch p.current.Kind {
		case token.CASE:
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.parseSignedInt()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}
			body, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			cases = append(cases, ast.SwitchCase{Key: key, Body: body})
		case token.DEFAULT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon); err != nil {
				return nil, err
			}
			body, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			def = body
		default:
			return nil, p.errf("expected CASE or DEFAULT in SWITCHON body, got %s", p.current.Kind)
		}
		if p.at(token.Semicolon) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return &ast.SwitchonStatement{Discriminant: disc, Cases: cases, Default: def, Line: line}, nil
}

// ---- Expressions ----

// precedence returns the binding power of a binary operator token, or
// 0 if the token is not a binary operator (spec §4.2 precedence
// table, low to high: 1 disjunction/equivalence, 2 conjunction,
// 3 relational, 4 shifts, 5 additive, 6 multiplicative, 7 call/subscript).
func precedence(k token.Kind) int {
	switch k {
	case token.Or, token.Eqv, token.Neqv:
		return 1
	case token.And:
		return 2
	case token.Eq, token.Ne, token.Lt, token.Le, token.Gt, token.Ge,
		token.EqF, token.NeF, token.LtF, token.LeF, token.GtF, token.GeF:
		return 3
	case token.LShift, token.RShift:
		return 4
	case token.Plus, token.Minus, token.PlusF, token.MinusF:
		return 5
	case token.Star, token.Slash, token.Rem, token.StarF, token.SlashF:
		return 6
	default:
		return 0
	}
}

func (p *parser) parseExpression(minPrec int) (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	left, err = p.parsePostfix(left)
	if err != nil {
		return nil, err
	}

	for {
		if p.at(token.Arrow) && minPrec == 0 {
			line := p.current.Line
			if err := p.advance(); err != nil {
				return nil, err
			}
			then, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
			elseE, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			left = &ast.ConditionalExpression{Cond: left, Then: then, Else: elseE, Line: line}
			continue
		}
		prec := precedence(p.current.Kind)
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		op := p.current.Kind
		line := p.current.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right, Line: line}
	}
}

// parseUnary handles the right-recursive highest-precedence unary
// operators @, ~, -, ! (spec §4.2).
func (p *parser) parseUnary() (ast.Expression, error) {
	line := p.current.Line
	switch p.current.Kind {
	case token.AddrOf, token.Not, token.Minus, token.Indirect:
		op := p.current.Kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		child, err = p.parsePostfix(child)
		if err != nil {
			return nil, err
		}
		if op == token.Indirect {
			return &ast.DereferenceExpr{Ptr: child, Line: line}, nil
		}
		return &ast.UnaryOp{Op: op, Child: child, Line: line}, nil
	default:
		return p.parsePrimary()
	}
}

// parsePostfix handles call/subscript forms that bind tighter than
// any binary operator: f(args), v!i, s%i.
func (p *parser) parsePostfix(e ast.Expression) (ast.Expression, error) {
	for {
		line := p.current.Line
		switch p.current.Kind {
		case token.LParen:
			if err := p.advance(); err != nil {
				return nil, err
			}
			var args []ast.Expression
			for !p.at(token.RParen) {
				a, err := p.parseExpression(0)
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(token.Comma) {
					if err := p.advance(); err != nil {
						return nil, err
					}
				}
			}
			if _, err := p.expect(token.RParen); err != nil {
				return nil, err
			}
			e = &ast.FunctionCall{Callee: e, Args: args, Line: line}
		case token.Indirect:
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			e = &ast.VectorAccess{Vec: e, Index: idx, Line: line}
		case token.PctChar:
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			e = &ast.CharacterAccess{Str: e, Index: idx, Line: line}
		default:
			return e, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Expression, error) {
	line := p.current.Line
	switch p.current.Kind {
	case token.IntLiteral:
		v := p.current.IntValue
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NumberLiteral{Value: v, Line: line}, nil
	case token.FloatLiteral:
		v := p.current.FloatValue
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.FloatLiteral{Value: v, Line: line}, nil
	case token.StringLiteral:
		v := p.current.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StringLiteral{Value: v, Line: line}, nil
	case token.CharLiteral:
		v := p.current.IntValue
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.CharLiteral{Value: v, Line: line}, nil
	case token.TRUE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NumberLiteral{Value: -1, Line: line}, nil
	case token.FALSE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NumberLiteral{Value: 0, Line: line}, nil
	case token.Ident:
		v := p.current.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.VariableAccess{Name: v, Line: line}, nil
	case token.LParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return e, nil
	case token.VALOF:
		if err := p.advance(); err != nil {
			return nil, err
		}
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &ast.Valof{Body: body, Line: line}, nil
	case token.VEC:
		if err := p.advance(); err != nil {
			return nil, err
		}
		size, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		return &ast.VectorConstructor{Size: size, Line: line}, nil
	case token.LBrace:
		if err := p.advance(); err != nil {
			return nil, err
		}
		var elems []ast.Expression
		for !p.at(token.RBrace) {
			e, err := p.parseExpression(0)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.at(token.Comma) {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return &ast.TableConstructor{Elements: elems, Line: line}, nil
	default:
		return nil, p.errf("unexpected token %s in expression", p.current.Kind)
	}
}
