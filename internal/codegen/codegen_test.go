package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/codegen"
	"github.com/albanread/RevivalBCPL-sub000/internal/token"
)

func mnemonics(s *codegen.Stream) []string {
	out := make([]string, len(s.Instrs))
	for i, in := range s.Instrs {
		out[i] = in.Mnemonic
	}
	return out
}

func countMnemonic(s *codegen.Stream, m string) int {
	n := 0
	for _, in := range s.Instrs {
		if in.Mnemonic == m {
			n++
		}
	}
	return n
}

func externalSymbols(s *codegen.Stream) []string {
	out := make([]string, len(s.ExternalCalls))
	for i, c := range s.ExternalCalls {
		out[i] = c.Symbol
	}
	return out
}

// E1: a routine that prints a greeting and halts.
func TestGenerateHelloCallsWritesAndFinish(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.FunctionDeclaration{
			Name: "START",
			StmtBody: &ast.CompoundStatement{Children: []ast.Statement{
				&ast.RoutineCall{Call: &ast.FunctionCall{
					Callee: &ast.VariableAccess{Name: "WRITES"},
					Args:   []ast.Expression{&ast.StringLiteral{Value: "Hello"}},
				}},
				&ast.FinishStatement{},
			}},
		},
	}}
	g := codegen.NewGenerator()
	stream, err := g.GenerateProgram(prog)
	require.NoError(t, err)
	require.Contains(t, externalSymbols(stream), "writes")
	require.Contains(t, externalSymbols(stream), "finish")
	require.Contains(t, mnemonics(stream), "RET")
}

// E2: an iterative factorial driven by a FOR loop.
func TestGenerateIterativeFactorial(t *testing.T) {
	body := &ast.CompoundStatement{Children: []ast.Statement{
		&ast.DeclarationStatement{Decl: &ast.LetDeclaration{
			Inits: []ast.LetInitPair{{Name: "R", Init: &ast.NumberLiteral{Value: 1}}},
		}},
		&ast.ForStatement{
			Var:  "I",
			From: &ast.NumberLiteral{Value: 1},
			To:   &ast.VariableAccess{Name: "N"},
			Body: &ast.Assignment{
				LHS: []ast.Expression{&ast.VariableAccess{Name: "R"}},
				RHS: []ast.Expression{&ast.BinaryOp{
					Op:    token.Star,
					Left:  &ast.VariableAccess{Name: "R"},
					Right: &ast.VariableAccess{Name: "I"},
				}},
			},
		},
		&ast.ResultisStatement{Value: &ast.VariableAccess{Name: "R"}},
	}}
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.FunctionDeclaration{
			Name:     "FACT",
			Params:   []string{"N"},
			ExprBody: &ast.Valof{Body: body},
		},
	}}
	g := codegen.NewGenerator()
	stream, err := g.GenerateProgram(prog)
	require.NoError(t, err)
	require.Greater(t, countMnemonic(stream, "MUL"), 0)
	require.Greater(t, countMnemonic(stream, "B."+"GT"), 0, "FOR loop must emit a bound check")
}

// E3: a tail-recursive factorial whose RESULTIS calls itself directly.
func TestGenerateTailRecursiveFactorialBranchesToEntry(t *testing.T) {
	cond := &ast.BinaryOp{Op: token.Eq, Left: &ast.VariableAccess{Name: "N"}, Right: &ast.NumberLiteral{Value: 0}}
	recurse := &ast.FunctionCall{
		Callee: &ast.VariableAccess{Name: "FACT2"},
		Args: []ast.Expression{
			&ast.BinaryOp{Op: token.Minus, Left: &ast.VariableAccess{Name: "N"}, Right: &ast.NumberLiteral{Value: 1}},
			&ast.BinaryOp{Op: token.Star, Left: &ast.VariableAccess{Name: "N"}, Right: &ast.VariableAccess{Name: "ACC"}},
		},
	}
	body := &ast.TestStatement{
		Cond: cond,
		Then: &ast.ResultisStatement{Value: &ast.VariableAccess{Name: "ACC"}},
		Else: &ast.ResultisStatement{Value: recurse},
	}
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.FunctionDeclaration{
			Name:     "FACT2",
			Params:   []string{"N", "ACC"},
			ExprBody: &ast.Valof{Body: body},
		},
	}}
	g := codegen.NewGenerator()
	stream, err := g.GenerateProgram(prog)
	require.NoError(t, err)

	var entry int
	for _, in := range stream.Instrs {
		if in.Label != "" {
			entry = in.Address
			break
		}
	}
	found := false
	for _, in := range stream.Instrs {
		if in.Mnemonic == "B" && in.Address != 0 {
			// A resolved unconditional B whose target is the function
			// entry is the tail-call branch; B's word encodes the
			// word-scaled displacement back to address 0 (the entry).
			delta := int32(in.Word<<6) >> 6 // sign-extend the 26-bit field
			if in.Address+int(delta)*4 == entry {
				found = true
			}
		}
	}
	require.True(t, found, "tail call must branch back to the function entry instead of BL+return")
}

// E6: SWITCHON over a small contiguous range picks the dense jump-table
// strategy, and a sparse one falls back to binary search.
func TestGenerateSwitchonDenseUsesJumpTable(t *testing.T) {
	sw := &ast.SwitchonStatement{
		Discriminant: &ast.VariableAccess{Name: "N"},
		Cases: []ast.SwitchCase{
			{Key: 0, Body: &ast.ResultisStatement{Value: &ast.NumberLiteral{Value: 10}}},
			{Key: 1, Body: &ast.ResultisStatement{Value: &ast.NumberLiteral{Value: 20}}},
			{Key: 2, Body: &ast.ResultisStatement{Value: &ast.NumberLiteral{Value: 30}}},
		},
		Default: &ast.ResultisStatement{Value: &ast.NumberLiteral{Value: 0}},
	}
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.FunctionDeclaration{Name: "CLASSIFY", Params: []string{"N"}, ExprBody: &ast.Valof{Body: sw}},
	}}
	g := codegen.NewGenerator()
	stream, err := g.GenerateProgram(prog)
	require.NoError(t, err)
	require.Contains(t, mnemonics(stream), "BR")
	require.Contains(t, mnemonics(stream), "ADR")
}

func TestGenerateSwitchonSparseUsesBinarySearch(t *testing.T) {
	sw := &ast.SwitchonStatement{
		Discriminant: &ast.VariableAccess{Name: "N"},
		Cases: []ast.SwitchCase{
			{Key: 1, Body: &ast.ResultisStatement{Value: &ast.NumberLiteral{Value: 10}}},
			{Key: 1000, Body: &ast.ResultisStatement{Value: &ast.NumberLiteral{Value: 20}}},
			{Key: 9000, Body: &ast.ResultisStatement{Value: &ast.NumberLiteral{Value: 30}}},
		},
	}
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.FunctionDeclaration{Name: "CLASSIFY2", Params: []string{"N"}, ExprBody: &ast.Valof{Body: sw}},
	}}
	g := codegen.NewGenerator()
	stream, err := g.GenerateProgram(prog)
	require.NoError(t, err)
	require.NotContains(t, mnemonics(stream), "BR")
}

// Assignment to a manifest constant is one of spec §4.11's named
// failure modes.
func TestGenerateAssignmentToManifestFails(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.ManifestDeclaration{Bindings: []ast.ManifestBinding{{Name: "MAX", Value: 100}}},
		&ast.FunctionDeclaration{
			Name: "BAD",
			StmtBody: &ast.Assignment{
				LHS: []ast.Expression{&ast.VariableAccess{Name: "MAX"}},
				RHS: []ast.Expression{&ast.NumberLiteral{Value: 1}},
			},
		},
	}}
	g := codegen.NewGenerator()
	_, err := g.GenerateProgram(prog)
	require.Error(t, err)
}

// Calling an undeclared routine is another named failure mode.
func TestGenerateCallToUnknownRoutineFails(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.FunctionDeclaration{
			Name: "START",
			StmtBody: &ast.RoutineCall{Call: &ast.FunctionCall{
				Callee: &ast.VariableAccess{Name: "NOSUCHROUTINE"},
			}},
		},
	}}
	g := codegen.NewGenerator()
	_, err := g.GenerateProgram(prog)
	require.Error(t, err)
}

// An unresolved GOTO label surfaces as a branch-resolution failure.
func TestGenerateUnresolvedGotoFails(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		&ast.FunctionDeclaration{
			Name: "START",
			StmtBody: &ast.GotoStatement{Label: &ast.VariableAccess{Name: "NOWHERE"}},
		},
	}}
	g := codegen.NewGenerator()
	_, err := g.GenerateProgram(prog)
	require.Error(t, err)
}
