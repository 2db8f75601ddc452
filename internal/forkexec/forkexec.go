// Package forkexec implements the Fork/Exec Engine (spec.md §4.5).
//
// spec.md describes a real fork(2) whose child continues straight into
// booster.Initialize/Run without an intervening exec. Go's runtime is not
// safe to fork without an immediate exec (goroutine scheduler, GC, and
// standard-library global state all assume a single running image), so the
// child branch here is a re-exec of the daemon binary itself into a hidden
// "booster-child" subcommand — see SPEC_FULL.md module C5 for the full
// numbered-step mapping.
package forkexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/nemomobile/boosterd/internal/cgroupacct"
	"github.com/nemomobile/boosterd/internal/registry"
	"github.com/nemomobile/boosterd/internal/throttle"
)

// DefaultWarmUpDelay is spec.md §4.4's "default warm-up delay (2 seconds)"
// used when a reaped warm booster is replaced outside of a hand-off.
const DefaultWarmUpDelay = 2 * time.Second

// Engine forks (re-execs) booster children and tracks them in a Registry.
type Engine struct {
	log *logrus.Logger
	reg *registry.Registry

	executable  string
	boosterType string
	bootMode    func() bool // polled at fork time; mode can change between forks

	handoffEnd *os.File
	listenFile *os.File

	limiter *throttle.ForkLimiter
	acct    *cgroupacct.Accountant

	sighupWasIgnored bool
	singlePlugin     string
}

// Config bundles Engine's fixed inputs.
type Config struct {
	Log              *logrus.Logger
	Registry         *registry.Registry
	Executable       string
	BoosterType      string
	BootMode         func() bool
	HandoffEnd       *os.File
	ListenFile       *os.File
	Accountant       *cgroupacct.Accountant
	SIGHUPWasIgnored bool
	SingleInstance   string
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{
		log:              cfg.Log,
		reg:              cfg.Registry,
		executable:       cfg.Executable,
		boosterType:      cfg.BoosterType,
		bootMode:         cfg.BootMode,
		handoffEnd:       cfg.HandoffEnd,
		listenFile:       cfg.ListenFile,
		limiter:          throttle.NewForkLimiter(200*time.Millisecond, 5),
		acct:             cfg.Accountant,
		sighupWasIgnored: cfg.SIGHUPWasIgnored,
		singlePlugin:     cfg.SingleInstance,
	}
}

// Fork implements spec.md §4.5's fork_booster(delay): it clears the warm
// slot, forks (re-execs) a fresh booster child carrying delaySeconds
// (subject to the boot-mode override below), and on success records the new
// PID as both a live child and the warm booster.
//
// Any failure here is fatal per spec.md §7 ("fork failure").
func (e *Engine) Fork(ctx context.Context, delaySeconds int32) error {
	e.reg.ClearWarm()

	effectiveDelay := delaySeconds
	if e.bootMode() {
		// "Boot mode forces zero delay even if a non-zero delay was
		// requested." (spec.md §4.5 step 8)
		effectiveDelay = 0
	}

	if waited, err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("fork throttle: %w", err)
	} else if waited {
		e.log.WithField("booster_type", e.boosterType).Warn("fork rate-limited; a booster may be crash-looping")
	}

	var started *exec.Cmd
	attempt := func() error {
		cmd := e.buildCmd(effectiveDelay)
		if err := cmd.Start(); err != nil {
			if isTransientForkError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		started = cmd
		return nil
	}
	if err := throttle.RetryFork(attempt); err != nil {
		return fmt.Errorf("fork booster child: %w", err)
	}

	pid := int32(started.Process.Pid)
	e.reg.AddChild(pid)
	e.acct.Add(started.Process.Pid)
	e.log.WithFields(logrus.Fields{
		"pid":           pid,
		"booster_type":  e.boosterType,
		"respawn_delay": effectiveDelay,
	}).Info("forked replacement warm booster")

	// The Cmd's underlying process is now detached from us (we never call
	// Wait — reaping happens through SIGCHLD + the supervisor loop, per
	// spec.md §4.4). Release it so the standard library's internal process
	// bookkeeping doesn't hold it open waiting for a Wait that will never
	// come from this object.
	return started.Process.Release()
}

func (e *Engine) buildCmd(delaySeconds int32) *exec.Cmd {
	args := []string{
		"booster-child",
		"--type", e.boosterType,
		"--delay-seconds", strconv.Itoa(int(delaySeconds)),
	}
	if e.bootMode() {
		args = append(args, "--boot-mode")
	}
	if e.sighupWasIgnored {
		args = append(args, "--sighup-was-ignored")
	}
	if e.singlePlugin != "" {
		args = append(args, "--single-instance-plugin", e.singlePlugin)
	}

	cmd := exec.Command(e.executable, args...)
	// Donated at fixed indices (os/exec convention: ExtraFiles[i] lands at
	// FD 3+i in the child) — the only file descriptors this child ever
	// receives. Everything else, including any invoker FD kept in the
	// registry, is excluded by construction: Go marks files it opens
	// close-on-exec by default, so spec.md §4.5 step 6 ("close every FD in
	// adopted_to_invoker_fd") is satisfied without touching those
	// descriptors at all.
	cmd.ExtraFiles = []*os.File{e.handoffEnd, e.listenFile}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.SysProcAttr = &unix.SysProcAttr{
		Setsid:    true,
		Pdeathsig: unix.SIGHUP,
	}
	return cmd
}

func isTransientForkError(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOMEM)
}
