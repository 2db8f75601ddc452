package signalfunnel

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalArrivesAsSingleByte(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	waitReadable(t, f.ReadFD())
	b, err := f.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(syscall.SIGUSR1), b)
}

func waitReadable(t *testing.T, fd int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fds := []int{fd}
		n, err := pollReadable(fds, 50)
		if err == nil && n > 0 {
			return
		}
	}
	t.Fatalf("fd %d never became readable", fd)
}
