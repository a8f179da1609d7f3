package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/diag"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
)

const scenarios = `
LET START() BE $( WRITES("HI"); NEWLINE() $)
`

func TestParseHello(t *testing.T) {
	prog, err := parser.Parse(scenarios)
	require.NoError(t, err)
	require.Len(t, prog.Declarations, 1)
	fn := prog.Declarations[0].(*ast.FunctionDeclaration)
	require.Equal(t, "START", fn.Name)
	require.NotNil(t, fn.StmtBody)
	require.Nil(t, fn.ExprBody)
}

func TestParseFactorialIterative(t *testing.T) {
	src := `
LET FACT(N) = VALOF $( LET R = 1; FOR I = 2 TO N DO R := R * I; RESULTIS R $)
LET START() BE WRITEN(FACT(6))
`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Declarations, 2)
	fact := prog.Declarations[0].(*ast.FunctionDeclaration)
	require.Equal(t, []string{"N"}, fact.Params)
	valof, ok := fact.ExprBody.(*ast.Valof)
	require.True(t, ok)
	compound := valof.Body.(*ast.CompoundStatement)
	require.Len(t, compound.Children, 3)
}

func TestParseTailRecursiveFactorial(t *testing.T) {
	src := `LET FACT_TAIL(N, A) = VALOF $( TEST N = 0 THEN RESULTIS A OR RESULTIS FACT_TAIL(N-1, N*A) $)`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	fn := prog.Declarations[0].(*ast.FunctionDeclaration)
	require.Equal(t, []string{"N", "A"}, fn.Params)
	valof := fn.ExprBody.(*ast.Valof)
	compound := valof.Body.(*ast.CompoundStatement)
	test := compound.Children[0].(*ast.TestStatement)
	require.NotNil(t, test.Else)
}

func TestParseSwitchon(t *testing.T) {
	src := `LET F(N) = VALOF SWITCHON N INTO $( CASE 1: RESULTIS 10; CASE 2: RESULTIS 20; DEFAULT: RESULTIS 0 $)`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	fn := prog.Declarations[0].(*ast.FunctionDeclaration)
	valof := fn.ExprBody.(*ast.Valof)
	sw := valof.Body.(*ast.SwitchonStatement)
	require.Len(t, sw.Cases, 2)
	require.NotNil(t, sw.Default)
}

func TestParseRepeatModifiers(t *testing.T) {
	src := `LET START() BE $( X := X + 1 $) REPEATUNTIL X = 10`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	fn := prog.Declarations[0].(*ast.FunctionDeclaration)
	rep, ok := fn.StmtBody.(*ast.RepeatStatement)
	require.True(t, ok)
	require.Equal(t, ast.RepeatUntil, rep.Kind)
}

func TestParseManifestAndGlobal(t *testing.T) {
	src := `
MANIFEST $( MAX = 100; MIN = 0 $)
GLOBAL $( COUNTER:1 $)
LET START() BE FINISH
`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	man := prog.Declarations[0].(*ast.ManifestDeclaration)
	require.Equal(t, int64(100), man.Bindings[0].Value)
	glob := prog.Declarations[1].(*ast.GlobalDeclaration)
	require.Equal(t, "COUNTER", glob.Bindings[0].Name)
}

func TestParseRoundTripClone(t *testing.T) {
	src := `
LET FACT(N) = VALOF $( LET R = 1; FOR I = 2 TO N DO R := R * I; RESULTIS R $)
LET START() BE WRITEN(FACT(6))
`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	clone := ast.CloneProgram(prog)
	require.Equal(t, prog, clone)
}

func TestParseConditionalExpression(t *testing.T) {
	src := `LET START() BE X := A = B -> 1, 0`
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	fn := prog.Declarations[0].(*ast.FunctionDeclaration)
	assign := fn.StmtBody.(*ast.Assignment)
	_, ok := assign.RHS[0].(*ast.ConditionalExpression)
	require.True(t, ok)
}

func TestParseSyntaxErrorHasLine(t *testing.T) {
	_, err := parser.Parse("LET START() BE $( X := $)")
	require.Error(t, err)
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	require.Positive(t, de.Line)
}
