package forkexec

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/nemomobile/boosterd/internal/registry"
)

func testEngine(t *testing.T, bootMode bool) *Engine {
	t.Helper()
	devNull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { devNull.Close() })

	log := logrus.New()
	log.SetOutput(nopWriter{})

	return New(Config{
		Log:         log,
		Registry:    registry.New(),
		Executable:  "/usr/bin/boosterd",
		BoosterType: "generic",
		BootMode:    func() bool { return bootMode },
		HandoffEnd:  devNull,
		ListenFile:  devNull,
	})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestBuildCmdCarriesDelayAndType(t *testing.T) {
	e := testEngine(t, false)
	cmd := e.buildCmd(7)

	require.Equal(t, "/usr/bin/boosterd", cmd.Path)
	require.Contains(t, cmd.Args, "booster-child")
	require.Contains(t, cmd.Args, "--type")
	require.Contains(t, cmd.Args, "generic")
	require.Contains(t, cmd.Args, "--delay-seconds")
	require.Contains(t, cmd.Args, "7")
	require.NotContains(t, cmd.Args, "--boot-mode")
	require.Len(t, cmd.ExtraFiles, 2)
	require.NotNil(t, cmd.SysProcAttr)
}

func TestBuildCmdAppendsBootModeFlag(t *testing.T) {
	e := testEngine(t, true)
	cmd := e.buildCmd(0)
	require.Contains(t, cmd.Args, "--boot-mode")
}

func TestBuildCmdAppendsSingleInstanceFlag(t *testing.T) {
	e := testEngine(t, false)
	e.singlePlugin = "/opt/single.so"
	cmd := e.buildCmd(0)
	require.Contains(t, cmd.Args, "--single-instance-plugin")
	require.Contains(t, cmd.Args, "/opt/single.so")
}

func TestIsTransientForkErrorUnwrapsExecErrors(t *testing.T) {
	require.True(t, isTransientForkError(&exec.Error{Name: "x", Err: unix.EAGAIN}))
	require.True(t, isTransientForkError(&os.PathError{Op: "fork", Path: "x", Err: unix.ENOMEM}))
	require.False(t, isTransientForkError(errors.New("permission denied")))
}
