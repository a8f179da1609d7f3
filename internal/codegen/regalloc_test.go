package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/codegen"
)

func TestRegisterManagerAcquireBindsFreeRegister(t *testing.T) {
	s := codegen.NewStream()
	rm := codegen.NewRegisterManager(s)
	reg, err := rm.AcquireForInit("X", 0)
	require.NoError(t, err)
	got, ok := rm.RegOf("X")
	require.True(t, ok)
	require.Equal(t, reg, got)
}

func TestRegisterManagerSpillsWhenPoolExhausted(t *testing.T) {
	s := codegen.NewStream()
	rm := codegen.NewRegisterManager(s)
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}
	for i, n := range names {
		_, err := rm.AcquireForInit(n, int64(i*8))
		require.NoError(t, err)
		rm.MarkDirty(n)
	}
	before := len(s.Instrs)
	_, err := rm.AcquireForInit("J", 72)
	require.NoError(t, err)
	require.Greater(t, len(s.Instrs), before, "spilling a dirty victim must emit a store")
}

func TestRegisterManagerReleaseFreesRegister(t *testing.T) {
	s := codegen.NewStream()
	rm := codegen.NewRegisterManager(s)
	_, err := rm.AcquireForInit("X", 0)
	require.NoError(t, err)
	rm.ReleaseWithoutSpill("X")
	_, ok := rm.RegOf("X")
	require.False(t, ok)
}
