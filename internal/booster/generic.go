package booster

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/nemomobile/boosterd/internal/handoff"
	"github.com/nemomobile/boosterd/internal/singleinstance"
	"github.com/nemomobile/boosterd/internal/socketmanager"
)

// Generic is the minimal concrete Booster: it accepts exactly one invoker
// connection on its listening socket, reads a fixed-layout launch request
// (invoker PID, command line, one ancillary FD) from it, reports the
// hand-off over ipc so the daemon can refill the warm slot, then execs the
// requested program in place of itself, adopting the invoker's identity.
// It is not a faithful preload engine — real booster-type bootstrap is out
// of scope.
type Generic struct {
	log      *logrus.Logger
	ipc      *net.UnixConn
	single   singleinstance.Plugin
	listener *net.UnixListener
}

var _ Booster = (*Generic)(nil)
var _ AdoptionReporter = (*Generic)(nil)

// NewGeneric constructs an uninitialized Generic booster.
func NewGeneric(log *logrus.Logger) *Generic {
	return &Generic{log: log}
}

// Type implements Booster.
func (g *Generic) Type() string { return "generic" }

// Initialize implements Booster. listenFD is the daemon's long-lived
// invoker-facing listening socket, donated across every re-exec at a fixed
// FD (spec.md's SocketManager delegation, made concrete — see
// internal/socketmanager); Generic wraps it once here rather than binding
// its own, so the same socket path stays accept()-able across every
// booster generation.
func (g *Generic) Initialize(_ context.Context, _ []string, ipcConn *net.UnixConn, listenFD int, single singleinstance.Plugin, bootMode bool) error {
	g.ipc = ipcConn
	g.single = single

	f := os.NewFile(uintptr(listenFD), "booster-listen")
	ln, err := net.FileListener(f)
	if err != nil {
		return fmt.Errorf("wrap donated listening socket: %w", err)
	}
	uln, ok := ln.(*net.UnixListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("donated listening socket is %T, not a Unix listener", ln)
	}
	g.listener = uln

	g.log.WithField("boot_mode", bootMode).Debug("generic booster initialized")
	return nil
}

// Dispose implements Booster.
func (g *Generic) Dispose() {
	if g.listener != nil {
		g.listener.Close()
	}
}

// Run implements Booster. It accepts a single invoker connection, reads the
// command to launch, reports the hand-off over ipc, and execs the requested
// program. If Accept fails (for example because the listener was closed),
// Run logs the error and returns 0. sm is unused by Generic: the
// listening socket was already bound once by the daemon and donated via
// Initialize, not rebound per booster generation.
func (g *Generic) Run(_ *socketmanager.Manager) int {
	conn, err := g.listener.Accept()
	if err != nil {
		g.log.WithError(err).Warn("generic booster accept failed")
		return 0
	}
	defer conn.Close()

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		g.log.Error("generic booster accepted a non-Unix connection")
		return 1
	}

	cmdLine, invokerFD, invokerPID, err := readLaunchRequest(uc)
	if err != nil {
		g.log.WithError(err).Warn("generic booster failed to read launch request")
		return 1
	}

	rec := handoff.Record{InvokerPID: invokerPID, RespawnDelay: 0}
	if err := g.ReportHandoff(g.ipc, rec, invokerFD); err != nil {
		g.log.WithError(err).Warn("generic booster failed to report hand-off")
	}

	if len(cmdLine) == 0 {
		return 0
	}
	if err := syscall.Exec(cmdLine[0], cmdLine, nil); err != nil {
		g.log.WithError(err).WithField("argv0", cmdLine[0]).Error("generic booster exec failed")
		return 1
	}
	return 0 // unreachable on success
}

// ReportHandoff implements AdoptionReporter.
func (g *Generic) ReportHandoff(conn *net.UnixConn, rec handoff.Record, fd int) error {
	if conn == nil {
		return fmt.Errorf("no ipc connection to report hand-off on")
	}
	return handoff.Send(conn, rec, fd)
}

// launchRequestHeaderSize is the fixed-layout prefix of a launch request:
// invoker_pid (int32) followed by the length, in bytes, of the
// space-separated command line that follows it. An ancillary SCM_RIGHTS
// payload carries exactly one file descriptor — the invoker's end of its
// own notification channel, kept by the daemon for P4 exit/signal
// forwarding (spec.md §3's hand-off FD, supplied here by the invoker
// rather than by a preload engine, since the invoker-side wire protocol
// itself is out of spec.md's scope — see spec.md §1 Non-goals).
const launchRequestHeaderSize = 8

func readLaunchRequest(conn *net.UnixConn) (argv []string, fd int, invokerPID int32, err error) {
	buf := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, -1, 0, fmt.Errorf("read launch request: %w", err)
	}
	if n < launchRequestHeaderSize {
		return nil, -1, 0, fmt.Errorf("short launch request: got %d bytes, want at least %d", n, launchRequestHeaderSize)
	}

	invokerPID = int32(binary.LittleEndian.Uint32(buf[0:4]))
	cmdLen := int(binary.LittleEndian.Uint32(buf[4:8]))
	if launchRequestHeaderSize+cmdLen > n {
		return nil, -1, 0, fmt.Errorf("launch request command line truncated: declared %d bytes, got %d", cmdLen, n-launchRequestHeaderSize)
	}
	cmdLine := string(buf[launchRequestHeaderSize : launchRequestHeaderSize+cmdLen])
	argv = strings.Fields(cmdLine)

	fd = -1
	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return nil, -1, 0, fmt.Errorf("parse launch request control message: %w", err)
		}
		for _, scm := range scms {
			fds, err := unix.ParseUnixRights(&scm)
			if err != nil {
				continue
			}
			if len(fds) > 0 {
				fd = fds[0]
				// Only one invoker FD is ever expected; close any extras
				// rather than silently leak them.
				for _, extra := range fds[1:] {
					unix.Close(extra)
				}
				break
			}
		}
	}
	return argv, fd, invokerPID, nil
}
