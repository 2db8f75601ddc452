// Package supervisor implements the Supervisor Loop (spec.md §4.4): the
// single cooperative loop that blocks on a readiness multiplexer over the
// signal funnel and the booster hand-off socket, and dispatches hand-off and
// reap/mode-change work (spec.md §5: single-threaded cooperative, no
// application-level threads).
package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/nemomobile/boosterd/internal/forkexec"
	"github.com/nemomobile/boosterd/internal/handoff"
	"github.com/nemomobile/boosterd/internal/invokermsg"
	"github.com/nemomobile/boosterd/internal/mode"
	"github.com/nemomobile/boosterd/internal/registry"
	"github.com/nemomobile/boosterd/internal/signalfunnel"
)

// Loop owns every piece the supervisor coordinates.
type Loop struct {
	log         *logrus.Logger
	funnel      *signalfunnel.Funnel
	conn        *net.UnixConn
	reg         *registry.Registry
	engine      *forkexec.Engine
	modeCtl     *mode.Controller
	pidFilePath string
}

// Config bundles Loop's collaborators.
type Config struct {
	Log         *logrus.Logger
	Funnel      *signalfunnel.Funnel
	Conn        *net.UnixConn
	Registry    *registry.Registry
	Engine      *forkexec.Engine
	Mode        *mode.Controller
	PIDFilePath string
}

// New builds a Loop from cfg.
func New(cfg Config) *Loop {
	return &Loop{
		log:         cfg.Log,
		funnel:      cfg.Funnel,
		conn:        cfg.Conn,
		reg:         cfg.Registry,
		engine:      cfg.Engine,
		modeCtl:     cfg.Mode,
		pidFilePath: cfg.PIDFilePath,
	}
}

// Run blocks until a SIGTERM-driven shutdown completes (nil return) or a
// fatal condition occurs (spec.md §7: fork failure, hand-off receive
// failure, and similar unwind to this single top-level return).
func (l *Loop) Run(ctx context.Context) error {
	handoffFD, err := connFD(l.conn)
	if err != nil {
		return fmt.Errorf("resolve booster socket fd: %w", err)
	}
	signalFD := l.funnel.ReadFD()

	for {
		pollFds := []unix.PollFd{
			{Fd: int32(signalFD), Events: unix.POLLIN},
			{Fd: int32(handoffFD), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pollFds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll supervisor multiplexer: %w", err)
		}

		// Hand-off path is handled before the signal path when both fire
		// in the same wakeup (spec.md §4.4 "Ordering & tie-breaks").
		if pollFds[1].Revents&unix.POLLIN != 0 {
			if err := l.handleHandoff(ctx); err != nil {
				return err
			}
		}
		if pollFds[0].Revents&unix.POLLIN != 0 {
			shutdown, err := l.handleSignals(ctx, signalFD)
			if err != nil {
				return err
			}
			if shutdown {
				return nil
			}
		}
	}
}

func (l *Loop) handleHandoff(ctx context.Context) error {
	rec, fd, err := handoff.Recv(l.conn)
	if err != nil {
		// "On receive error the daemon aborts with failure — this is
		// treated as a fatal communication breakdown" (spec.md §4.4).
		return fmt.Errorf("booster hand-off receive failed: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"invoker_pid":   rec.InvokerPID,
		"respawn_delay": rec.RespawnDelay,
	}).Info("booster hand-off received")

	warm := l.reg.Warm()
	if rec.InvokerPID != 0 && warm != 0 && fd >= 0 {
		invokerFile := os.NewFile(uintptr(fd), "invoker-fd")
		if err := l.reg.Adopt(warm, rec.InvokerPID, invokerFile); err != nil {
			l.log.WithError(err).Warn("failed to record booster adoption")
		}
	} else if fd >= 0 {
		// Nothing will ever close this FD through the registry; don't
		// leak it.
		unix.Close(fd)
	}

	// "Regardless of whether mappings were recorded, fork a fresh warm
	// booster with the reported respawn_delay" (spec.md §4.4).
	if err := l.engine.Fork(ctx, rec.RespawnDelay); err != nil {
		return fmt.Errorf("fork replacement booster after hand-off: %w", err)
	}
	return nil
}

func (l *Loop) handleSignals(ctx context.Context, signalFD int) (shutdown bool, err error) {
	for {
		b, err := l.funnel.ReadByte()
		if err != nil {
			return false, fmt.Errorf("read signal funnel: %w", err)
		}

		switch unix.Signal(b) {
		case unix.SIGCHLD:
			if err := l.reapAll(ctx); err != nil {
				l.log.WithError(err).Warn("errors while reaping children")
			}
		case unix.SIGTERM:
			l.shutdownPIDFile()
			return true, nil
		case unix.SIGUSR1:
			if err := l.modeCtl.Enter(mode.Normal); err != nil {
				l.log.WithError(err).Warn("enter normal mode failed")
			}
		case unix.SIGUSR2:
			if err := l.modeCtl.Enter(mode.Boot); err != nil {
				l.log.WithError(err).Warn("enter boot mode failed")
			}
		case unix.SIGPIPE:
			l.log.Debug("SIGPIPE received; logged no-op")
		case unix.SIGHUP:
			l.log.Debug("SIGHUP received; reserved for re-exec, treated as no-op")
		default:
			// Silent per spec.md §7.
		}

		more, err := pollOnce(signalFD)
		if err != nil {
			return false, fmt.Errorf("poll signal funnel for drain: %w", err)
		}
		if !more {
			return false, nil
		}
	}
}

// reapAll drains every terminated child in one SIGCHLD wakeup, in
// PID-iteration order (spec.md §4.4 "Reaping" / §5 "Ordering guarantees").
func (l *Loop) reapAll(ctx context.Context) error {
	var result *multierror.Error

	for _, pid := range l.reg.LiveChildren() {
		var status unix.WaitStatus
		gotPID, err := unix.Wait4(int(pid), &status, unix.WNOHANG, nil)
		if err != nil {
			if err == unix.ECHILD {
				continue
			}
			result = multierror.Append(result, fmt.Errorf("wait4(%d): %w", pid, err))
			continue
		}
		if gotPID == 0 {
			continue // still alive
		}

		if err := l.reapOne(ctx, pid, status); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (l *Loop) reapOne(ctx context.Context, pid int32, status unix.WaitStatus) error {
	wasWarm := pid == l.reg.Warm()
	invokerPID, fd, adopted := l.reg.Reap(pid)

	if adopted {
		if status.Signaled() {
			sig := status.Signal()
			if fd != nil {
				fd.Close()
			}
			// "the invoker is a thin stub that must appear to die the
			// same way its boosted child did" (spec.md §4.4).
			if err := unix.Kill(int(invokerPID), sig); err != nil {
				return fmt.Errorf("forward signal %v to invoker %d: %w", sig, invokerPID, err)
			}
		} else {
			code := int32(status.ExitStatus())
			if fd != nil {
				if err := invokermsg.SendExit(fd, code); err != nil {
					l.log.WithError(err).WithField("invoker_pid", invokerPID).Warn("exit notification failed; invoker may have died")
				}
				fd.Close()
			}
		}
	}

	if wasWarm {
		if err := l.engine.Fork(ctx, int32(forkexec.DefaultWarmUpDelay.Seconds())); err != nil {
			return fmt.Errorf("refill warm slot after reap: %w", err)
		}
	}
	return nil
}

// shutdownPIDFile implements spec.md §4.4's guarded removal: "remove the
// PID file ... only if its contents equal the current PID" (spec.md §8 P5).
func (l *Loop) shutdownPIDFile() {
	data, err := os.ReadFile(l.pidFilePath)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.WithError(err).Warn("read PID file during shutdown")
		}
		return
	}
	filePID, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		l.log.WithError(err).Warn("parse PID file during shutdown")
		return
	}
	if filePID != os.Getpid() {
		l.log.WithField("pid_in_file", filePID).Info("PID file belongs to a different process; not removing")
		return
	}
	if err := os.Remove(l.pidFilePath); err != nil {
		l.log.WithError(err).Warn("remove PID file during shutdown")
	}
}

func connFD(c *net.UnixConn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	ctrlErr := raw.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}

func pollOnce(fd int) (bool, error) {
	pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pollFds, 0)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}
