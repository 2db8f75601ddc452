package handoff

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendRecvRoundTrip(t *testing.T) {
	daemonEnd, boosterFile, err := NewPair()
	require.NoError(t, err)
	defer daemonEnd.Close()
	defer boosterFile.Close()

	boosterConn, err := pairToUnixConn(boosterFile)
	require.NoError(t, err)
	defer boosterConn.Close()

	carried, err := os.CreateTemp(t.TempDir(), "carried-fd")
	require.NoError(t, err)
	defer carried.Close()

	want := Record{InvokerPID: 4242, RespawnDelay: 1}
	require.NoError(t, Send(boosterConn, want, int(carried.Fd())))

	got, fd, err := Recv(daemonEnd)
	require.NoError(t, err)
	require.NotEqual(t, -1, fd)
	defer unixClose(fd)
	require.Equal(t, want, got)
}

func TestRecvNoAncillaryFD(t *testing.T) {
	daemonEnd, boosterFile, err := NewPair()
	require.NoError(t, err)
	defer daemonEnd.Close()
	defer boosterFile.Close()

	boosterConn, err := pairToUnixConn(boosterFile)
	require.NoError(t, err)
	defer boosterConn.Close()

	want := Record{InvokerPID: 0, RespawnDelay: 2}
	data := encode(want)
	_, err = boosterConn.Write(data)
	require.NoError(t, err)

	got, fd, err := Recv(daemonEnd)
	require.NoError(t, err)
	require.Equal(t, -1, fd)
	require.Equal(t, want, got)
}
