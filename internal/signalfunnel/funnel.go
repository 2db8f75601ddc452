// Package signalfunnel turns the six asynchronous Unix signals spec.md §4.1
// cares about into single-byte writes on a readable file descriptor, so the
// supervisor loop (spec.md §4.4) can multiplex over it alongside the booster
// socket with a single poll(2) call.
//
// Go's os/signal package already implements the self-pipe pattern inside the
// runtime (signal delivery is funneled through a lock-free ring buffer into
// a channel send, with no user code ever running inside a real signal
// handler) — Funnel simply exposes that as a raw, poll-able file descriptor
// instead of a channel, to keep spec.md's architecture intact: "all wakeups
// become byte arrivals on a readable FD" (spec.md §9).
package signalfunnel

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Signals is the fixed set of signals spec.md §4.1 intercepts.
var Signals = []os.Signal{
	syscall.SIGCHLD,
	syscall.SIGTERM,
	syscall.SIGUSR1,
	syscall.SIGUSR2,
	syscall.SIGPIPE,
	syscall.SIGHUP,
}

// Funnel owns the self-pipe and the forwarding goroutine.
type Funnel struct {
	readFile  *os.File
	writeFile *os.File
	sigCh     chan os.Signal
	done      chan struct{}

	// sighupWasIgnored records whether SIGHUP's disposition was SIG_IGN at
	// the moment the funnel was installed. spec.md §4.1's special rule: a
	// re-exec'd booster child must see SIGHUP at its default disposition
	// even though the daemon inherited it ignored, because the daemon
	// itself was re-exec'd with SIGHUP ignored but wants its children to
	// receive the default behaviour.
	sighupWasIgnored bool
}

// New creates the self-pipe, remembers whether SIGHUP was inherited ignored,
// and starts funneling the signals in Signals into it. A failure to create
// the pipe is fatal per spec.md §7 ("inability to create ... the self-pipe
// at startup").
func New() (*Funnel, error) {
	ignoredHUP := signal.Ignored(syscall.SIGHUP)

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create signal self-pipe: %w", err)
	}

	f := &Funnel{
		readFile:         r,
		writeFile:        w,
		sigCh:            make(chan os.Signal, 64),
		done:             make(chan struct{}),
		sighupWasIgnored: ignoredHUP,
	}

	signal.Notify(f.sigCh, Signals...)
	go f.forward()
	return f, nil
}

func (f *Funnel) forward() {
	for {
		select {
		case sig, ok := <-f.sigCh:
			if !ok {
				return
			}
			b := byte(signalNumber(sig))
			if _, err := f.writeFile.Write([]byte{b}); err != nil {
				// spec.md §4.1: "If that write fails the process terminates
				// immediately ... a broken self-pipe is unrecoverable."
				fmt.Fprintf(os.Stderr, "signalfunnel: write to self-pipe failed: %v\n", err)
				os.Exit(1)
			}
		case <-f.done:
			return
		}
	}
}

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}

// ReadFD is the file descriptor the supervisor loop polls for readability.
func (f *Funnel) ReadFD() int {
	return int(f.readFile.Fd())
}

// ReadByte reads exactly one pending signal byte (spec.md §4.4: "Read
// exactly one byte and dispatch").
func (f *Funnel) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := f.readFile.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("read signal self-pipe: %w", err)
	}
	return buf[0], nil
}

// SIGHUPWasIgnored reports the disposition SIGHUP had when New was called.
// Consulted by internal/forkexec when preparing a booster child.
func (f *Funnel) SIGHUPWasIgnored() bool {
	return f.sighupWasIgnored
}

// Close stops signal delivery and closes both pipe ends.
func (f *Funnel) Close() {
	signal.Stop(f.sigCh)
	close(f.done)
	f.readFile.Close()
	f.writeFile.Close()
}
