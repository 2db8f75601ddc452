// Package booster defines the abstract Booster capability (spec.md §1/§3):
// the core supervisor only needs a type tag plus Initialize/Run. The
// booster-type-specific preload and application bootstrap are explicitly out
// of scope (spec.md §1 Non-goals); Generic below is a minimal, clearly
// labelled stand-in sufficient to exercise the lifecycle end to end.
package booster

import (
	"context"
	"net"

	"github.com/nemomobile/boosterd/internal/handoff"
	"github.com/nemomobile/boosterd/internal/singleinstance"
	"github.com/nemomobile/boosterd/internal/socketmanager"
)

// Booster is the capability the fork/exec engine (internal/forkexec) drives
// polymorphically, by type tag (spec.md §3).
type Booster interface {
	// Type returns the short type tag, e.g. "qt" or "generic".
	Type() string

	// Initialize performs booster-type-specific setup. args are the
	// original daemon argv (unused by Generic, present for real boosters
	// that need it to decide what to preload). ipcConn is the booster end
	// of the hand-off channel to the daemon; listenFD is the booster's own
	// listening socket for invoker connections; single is the loaded
	// single-instance plugin reference (may be nil); bootMode mirrors
	// spec.md's reduced-initialization mode.
	Initialize(ctx context.Context, args []string, ipcConn *net.UnixConn, listenFD int, single singleinstance.Plugin, bootMode bool) error

	// Run blocks serving invoker launches through sm until the booster
	// itself decides to exit (by adopting an invoker, per spec.md §1), and
	// returns the process exit status.
	Run(sm *socketmanager.Manager) int

	// Dispose releases any resources acquired by Initialize. Called when
	// Initialize fails (spec.md §4.5 step 9).
	Dispose()
}

// AdoptionReporter is implemented by boosters that can report a hand-off
// back to the daemon (spec.md §3: "booster hand-off datagrams"). Generic
// implements it directly; real preload-heavy boosters would do the same
// after executing the requested application.
type AdoptionReporter interface {
	ReportHandoff(conn *net.UnixConn, rec handoff.Record, fd int) error
}
