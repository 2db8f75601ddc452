package cli

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/syndtr/gocapability/capability"

	"github.com/nemomobile/boosterd/internal/booster"
	"github.com/nemomobile/boosterd/internal/singleinstance"
)

// handoffFD and listenFD are the fixed os/exec ExtraFiles indices
// internal/forkexec donates a booster child's two descriptors at (spec.md
// §4.5 step 2 / SPEC_FULL.md C5).
const (
	handoffFD = 3
	listenFD  = 4
)

// boosterChildCommand is the hidden re-exec target internal/forkexec
// launches a fresh booster into (spec.md §4.5 C5 child branch). It is never
// invoked directly by an operator.
type boosterChildCommand struct {
	boosterType      string
	delaySeconds     int
	bootMode         bool
	sighupWasIgnored bool
	singlePlugin     string
}

func (*boosterChildCommand) Name() string     { return "booster-child" }
func (*boosterChildCommand) Synopsis() string { return "internal: runs a single booster generation" }
func (*boosterChildCommand) Usage() string {
	return "booster-child -type <type> -delay-seconds <n> [-boot-mode] [-sighup-was-ignored]\n"
}

func (c *boosterChildCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.boosterType, "type", "", "booster type tag")
	f.IntVar(&c.delaySeconds, "delay-seconds", 0, "seconds to sleep before Initialize")
	f.BoolVar(&c.bootMode, "boot-mode", false, "run this generation under boot mode")
	f.BoolVar(&c.sighupWasIgnored, "sighup-was-ignored", false, "daemon had SIGHUP ignored at startup")
	f.StringVar(&c.singlePlugin, "single-instance-plugin", "", "path to an optional single-instance shared object")
}

// Execute implements the re-exec'd child branch of spec.md §4.5 step 4.
func (c *boosterChildCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := newLogger(false)

	// Undoes the one disposition exec does not reset for us (spec.md
	// §4.1's SIGHUP special case) — see internal/signalfunnel.
	if c.sighupWasIgnored {
		signal.Reset(syscall.SIGHUP)
	}

	if c.delaySeconds > 0 {
		time.Sleep(time.Duration(c.delaySeconds) * time.Second)
	}

	ipcFile := os.NewFile(uintptr(handoffFD), "booster-handoff")
	ipcConn, err := net.FileConn(ipcFile)
	if err != nil {
		log.WithError(err).Fatal("wrap donated hand-off descriptor")
	}
	uc, ok := ipcConn.(*net.UnixConn)
	if !ok {
		log.Fatal("donated hand-off descriptor is not a Unix datagram socket")
	}

	b := booster.NewGeneric(log)
	single := singleinstance.Load(c.singlePlugin, log)
	if err := singleinstance.Validate(single); err != nil {
		log.WithError(err).Warn("single-instance plugin failed validation; continuing without it")
		single = nil
	}

	if err := b.Initialize(ctx, os.Args, uc, listenFD, single, c.bootMode); err != nil {
		log.WithError(err).Error("booster initialization failed")
		b.Dispose()
		os.Exit(1)
	}

	// capability.CAPS clears the process to the empty set (spec.md §4.5
	// step 11); failure is logged and ignored, matching the teacher's own
	// best-effort sandbox hardening in sandbox.go.
	if caps, err := capability.NewPid(0); err != nil {
		log.WithError(err).Warn("capability.NewPid failed; continuing with inherited capabilities")
	} else {
		caps.Clear(capability.CAPS)
		if err := caps.Apply(capability.CAPS); err != nil {
			log.WithError(err).Warn("failed to drop capabilities")
		}
	}

	code := b.Run(nil)
	os.Exit(code)
	return subcommands.ExitSuccess // unreachable
}
