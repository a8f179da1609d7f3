package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/codegen"
)

func TestScratchAllocatorLIFOAndExhaustion(t *testing.T) {
	s := codegen.NewScratchAllocator()
	var acquired []int
	for {
		reg, err := s.Acquire()
		if err != nil {
			break
		}
		acquired = append(acquired, reg)
	}
	require.Len(t, acquired, 7)
	require.False(t, s.Balanced())
	for _, r := range acquired {
		s.Release(r)
	}
	require.True(t, s.Balanced())
}

func TestScratchAllocatorExhaustionIsFatal(t *testing.T) {
	s := codegen.NewScratchAllocator()
	for i := 0; i < 7; i++ {
		_, err := s.Acquire()
		require.NoError(t, err)
	}
	_, err := s.Acquire()
	require.Error(t, err)
}
