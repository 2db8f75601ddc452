package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWarmUniqueness(t *testing.T) {
	r := New()
	r.AddChild(100)
	require.Equal(t, int32(100), r.Warm())

	require.NoError(t, r.Adopt(100, 4242, mustTempFile(t)))
	require.Equal(t, int32(0), r.Warm(), "adopted booster must leave the warm slot")

	r.AddChild(200)
	require.Equal(t, int32(200), r.Warm())
}

func TestAdoptUnknownPIDFails(t *testing.T) {
	r := New()
	err := r.Adopt(999, 1, mustTempFile(t))
	require.Error(t, err)
}

func TestReapClearsAllTables(t *testing.T) {
	r := New()
	r.AddChild(100)
	f := mustTempFile(t)
	require.NoError(t, r.Adopt(100, 4242, f))

	invokerPID, fd, adopted := r.Reap(100)
	require.True(t, adopted)
	require.Equal(t, int32(4242), invokerPID)
	require.Equal(t, f, fd)
	require.False(t, r.IsLive(100))

	_, ok := r.InvokerOf(100)
	require.False(t, ok)
}

func TestCloseFDIsIdempotent(t *testing.T) {
	r := New()
	r.AddChild(100)
	require.NoError(t, r.Adopt(100, 4242, mustTempFile(t)))

	require.NoError(t, r.CloseFD(100))
	require.NoError(t, r.CloseFD(100), "closing twice must be a no-op, not an error")
}

func mustTempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "fd")
	require.NoError(t, err)
	return f
}
