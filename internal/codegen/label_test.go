package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/codegen"
)

func TestLabelManagerFunctionScopeReturnTarget(t *testing.T) {
	lm := codegen.NewLabelManager()
	ret := lm.EnterFunction("START")
	got, err := lm.ReturnTarget()
	require.NoError(t, err)
	require.Equal(t, ret, got)
	lm.Exit()
	_, err = lm.ReturnTarget()
	require.Error(t, err)
}

func TestLabelManagerLoopTargetsNestInnermostFirst(t *testing.T) {
	lm := codegen.NewLabelManager()
	lm.EnterFunction("START")
	_, outerExit := lm.EnterLoop()
	_, innerExit := lm.EnterLoop()
	got, err := lm.BreakTarget()
	require.NoError(t, err)
	require.Equal(t, innerExit, got)
	lm.Exit()
	got, err = lm.BreakTarget()
	require.NoError(t, err)
	require.Equal(t, outerExit, got)
}

func TestLabelManagerDuplicateLocalDefinitionFails(t *testing.T) {
	lm := codegen.NewLabelManager()
	lm.EnterFunction("START")
	require.NoError(t, lm.DefineLocal("L", "Lfoo_1"))
	require.Error(t, lm.DefineLocal("L", "Lfoo_2"))
}

func TestLabelManagerDuplicateGlobalDefinitionFails(t *testing.T) {
	lm := codegen.NewLabelManager()
	require.NoError(t, lm.DefineGlobal("START", "Lstart_1"))
	require.Error(t, lm.DefineGlobal("START", "Lstart_2"))
}

func TestLabelManagerResultisOutsideValofFails(t *testing.T) {
	lm := codegen.NewLabelManager()
	lm.EnterFunction("START")
	_, err := lm.ResultisTarget()
	require.Error(t, err)
}
