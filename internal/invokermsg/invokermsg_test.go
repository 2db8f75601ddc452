package invokermsg

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendExitWritesTaggedLittleEndianWords(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, SendExit(w, 17))
	w.Close()

	buf := make([]byte, 8)
	_, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, ExitCode, binary.LittleEndian.Uint32(buf[0:4]))
	require.Equal(t, uint32(17), binary.LittleEndian.Uint32(buf[4:8]))
}

func TestSendExitOnClosedFileFails(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	r.Close()
	w.Close()

	require.Error(t, SendExit(w, 1))
}
