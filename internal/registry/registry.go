// Package registry implements the Child Registry (spec.md §3/§4.3): the
// in-memory bookkeeping tying live child PIDs to adopted invokers. It is
// mutated exclusively from the supervisor goroutine (spec.md §5), so no
// locking is used.
package registry

import (
	"fmt"
	"os"
)

// Registry tracks every child ever forked by the daemon that has not yet
// been reaped, plus the adoption state of each.
type Registry struct {
	live    []int32
	invoker map[int32]int32
	fds     map[int32]*os.File
	warm    int32
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		invoker: make(map[int32]int32),
		fds:     make(map[int32]*os.File),
	}
}

// AddChild records a freshly forked PID and marks it the warm booster
// (spec.md §4.5 parent branch: "append the new PID to live_children, set
// warm_booster_pid := new_pid").
func (r *Registry) AddChild(pid int32) {
	r.live = append(r.live, pid)
	r.warm = pid
}

// ClearWarm clears the warm slot without removing the PID from live_children
// (spec.md §4.5: "First, clear warm_booster_pid := 0" happens before the
// fork attempt itself, independent of reaping).
func (r *Registry) ClearWarm() {
	r.warm = 0
}

// Warm returns the PID of the current warm booster, or 0 if none.
func (r *Registry) Warm() int32 {
	return r.warm
}

// IsLive reports whether pid is still tracked as a live child.
func (r *Registry) IsLive(pid int32) bool {
	for _, p := range r.live {
		if p == pid {
			return true
		}
	}
	return false
}

// LiveChildren returns a snapshot of every tracked PID, in fork order.
func (r *Registry) LiveChildren() []int32 {
	out := make([]int32, len(r.live))
	copy(out, r.live)
	return out
}

// Adopt records that pid (which must be the current warm booster) has been
// adopted by invokerPID, keeping fd for later notification delivery
// (spec.md §4.4 hand-off path). It clears the warm slot, since an adopted
// booster is by definition no longer warm (spec.md §3 invariant).
func (r *Registry) Adopt(pid int32, invokerPID int32, fd *os.File) error {
	if !r.IsLive(pid) {
		return fmt.Errorf("adopt: pid %d is not a live child", pid)
	}
	r.invoker[pid] = invokerPID
	r.fds[pid] = fd
	if r.warm == pid {
		r.warm = 0
	}
	return nil
}

// InvokerOf returns the invoker PID adopted-to pid, and whether pid is
// adopted at all.
func (r *Registry) InvokerOf(pid int32) (int32, bool) {
	v, ok := r.invoker[pid]
	return v, ok
}

// FDOf returns the kept invoker FD for pid, and whether one is held.
func (r *Registry) FDOf(pid int32) (*os.File, bool) {
	f, ok := r.fds[pid]
	return f, ok
}

// CloseFD closes and forgets the kept invoker FD for pid, if any. Safe to
// call more than once (spec.md §3 invariant: "each FD in
// adopted_to_invoker_fd is closed exactly once"); the second and later calls
// are no-ops because the map entry is removed on the first.
func (r *Registry) CloseFD(pid int32) error {
	f, ok := r.fds[pid]
	if !ok {
		return nil
	}
	delete(r.fds, pid)
	return f.Close()
}

// Reap removes pid from every table (spec.md §4.4 reap step 1/2: "Remove it
// from live_children" ... "Remove the PID from both adoption maps"). The FD,
// if still held, is returned to the caller rather than closed here, since
// the caller (the supervisor loop) must decide between a normal-exit
// notification and a signal-forward before the FD is closed (spec.md §4.4
// step 2).
func (r *Registry) Reap(pid int32) (invokerPID int32, fd *os.File, adopted bool) {
	for i, p := range r.live {
		if p == pid {
			r.live = append(r.live[:i], r.live[i+1:]...)
			break
		}
	}
	invokerPID, adopted = r.invoker[pid]
	fd = r.fds[pid]
	delete(r.invoker, pid)
	delete(r.fds, pid)
	return invokerPID, fd, adopted
}
