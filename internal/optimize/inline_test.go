package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/ast"
	"github.com/albanread/RevivalBCPL-sub000/internal/optimize"
	"github.com/albanread/RevivalBCPL-sub000/internal/parser"
)

func TestInlineFunctionsSubstitutesCall(t *testing.T) {
	prog, err := parser.Parse(`
LET SQUARE(X) = X*X
LET START() BE WRITEN(SQUARE(5))
`)
	require.NoError(t, err)
	inlined := optimize.InlineFunctions(prog)
	start := inlined.Declarations[1].(*ast.FunctionDeclaration)
	rc := start.StmtBody.(*ast.RoutineCall)
	call := rc.Call.(*ast.FunctionCall)
	_, stillSquare := call.Callee.(*ast.VariableAccess)
	if stillSquare {
		require.NotEqual(t, "SQUARE", call.Callee.(*ast.VariableAccess).Name)
	}
	_, isValof := call.Args[0].(*ast.Valof)
	require.True(t, isValof, "the SQUARE call argument should now be an inlined VALOF")
}

func TestInlineFunctionsSkipsSelfRecursive(t *testing.T) {
	prog, err := parser.Parse(`
LET FACT(N) = N = 0 -> 1, N * FACT(N - 1)
LET START() BE WRITEN(FACT(5))
`)
	require.NoError(t, err)
	inlined := optimize.InlineFunctions(prog)
	start := inlined.Declarations[1].(*ast.FunctionDeclaration)
	rc := start.StmtBody.(*ast.RoutineCall)
	call := rc.Call.(*ast.FunctionCall)
	callee, ok := call.Args[0].(*ast.FunctionCall).Callee.(*ast.VariableAccess)
	require.True(t, ok)
	require.Equal(t, "FACT", callee.Name, "a self-recursive function must never be inlined")
}
