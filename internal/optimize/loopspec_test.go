package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/optimize"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
)

func TestSpecializeLoopsRepeatUntilTrue(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE WRITES("HI") REPEATUNTIL TRUE`)
	require.NoError(t, err)
	out := optimize.SpecializeLoops(prog)
	body := out.Declarations[0].(*ast.FunctionDeclaration).StmtBody
	_, isRepeat := body.(*ast.RepeatStatement)
	require.False(t, isRepeat, "... REPEATUNTIL TRUE should specialize to its body")
}

func TestSpecializeLoopsRepeatUntilFalse(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE WRITES("HI") REPEATUNTIL FALSE`)
	require.NoError(t, err)
	out := optimize.SpecializeLoops(prog)
	body := out.Declarations[0].(*ast.FunctionDeclaration).StmtBody
	while, ok := body.(*ast.WhileStatement)
	require.True(t, ok, "... REPEATUNTIL FALSE should specialize to an unconditional WHILE TRUE")
	lit, ok := while.Cond.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, int64(-1), lit.Value)
}

func TestSpecializeLoopsWhileFalse(t *testing.T) {
	prog, err := parser.Parse(`LET START() BE WHILE FALSE DO WRITES("HI")`)
	require.NoError(t, err)
	out := optimize.SpecializeLoops(prog)
	body := out.Declarations[0].(*ast.FunctionDeclaration).StmtBody
	compound, ok := body.(*ast.CompoundStatement)
	require.True(t, ok)
	require.Empty(t, compound.Children)
}
