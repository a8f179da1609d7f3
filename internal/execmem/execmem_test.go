package execmem_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/execmem"
)

func TestAllocateRoundsUpAndIsWritable(t *testing.T) {
	r, err := execmem.Allocate(1)
	require.NoError(t, err)
	buf, err := r.Bytes()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(buf), 1)
	require.NoError(t, r.Release())
}

func TestMakeExecutableThenWritableRoundTrips(t *testing.T) {
	r, err := execmem.Allocate(64)
	require.NoError(t, err)
	buf, err := r.Bytes()
	require.NoError(t, err)
	buf[0] = 0xD6 // AArch64 RET's low byte, just to exercise the write path

	require.NoError(t, r.MakeExecutable())
	_, err = r.Bytes()
	require.Error(t, err, "the region must not be writable while executable")

	_, err = r.EntryPoint()
	require.NoError(t, err)

	require.NoError(t, r.MakeWritable())
	buf, err = r.Bytes()
	require.NoError(t, err)
	require.Equal(t, byte(0xD6), buf[0])

	require.NoError(t, r.Release())
}

func TestDoubleReleaseIsAnError(t *testing.T) {
	r, err := execmem.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, r.Release())
	require.Error(t, r.Release())
}

func TestOperationsAfterReleaseAreErrors(t *testing.T) {
	r, err := execmem.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, r.Release())
	_, err = r.Bytes()
	require.Error(t, err)
	require.Error(t, r.MakeExecutable())
}

func TestEntryPointRequiresExecutableState(t *testing.T) {
	r, err := execmem.Allocate(16)
	require.NoError(t, err)
	_, err = r.EntryPoint()
	require.Error(t, err, "entry point is undefined before the region is made executable")
	require.NoError(t, r.Release())
}
