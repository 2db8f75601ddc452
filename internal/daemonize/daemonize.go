// Package daemonize implements Daemonisation (spec.md §4.7): a detached,
// session-leader process with a PID file guaranteed on disk before the
// original invocation returns.
//
// spec.md's original double-fork is, like C5, translated into a re-exec of
// the daemon binary rather than a raw fork(2) (Go is not fork-without-exec
// safe). Stage 0 (this invocation) re-execs stage 1 detached; an errgroup
// waits on stage 1 signalling "PID file written" through a pipe donated via
// ExtraFiles, racing a deadline, before stage 0 returns — preserving
// spec.md's documented ordering contract.
//
// There is deliberately no cross-process exclusivity check here: spec.md §8
// scenario 5 documents a second daemonized instance of the same booster type
// starting and overwriting the PID file outright, with the first instance's
// own SIGTERM handler declining to remove it once its contents no longer
// match (see internal/supervisor's guarded PID-file removal). The original
// C++ rejected a second instance via an in-process singleton
// (Daemon::m_instance), which spec.md asks implementers to drop rather than
// reintroduce as a cross-process mutex.
package daemonize

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Stage1Timeout bounds how long stage 0 waits for stage 1 to confirm its PID
// file is written.
const Stage1Timeout = 5 * time.Second

// Daemonize re-execs the current process (argv[0] plus the same arguments,
// with an internal marker flag prepended) as a detached session leader and
// waits for it to report its PID file is durably written. It returns once
// that has happened; the caller (stage 0) should exit 0 immediately
// afterwards.
func Daemonize(executable string, args []string, pidFilePath string) error {
	readyR, readyW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create daemonize ready-pipe: %w", err)
	}

	// The marker flag is prepended, not appended: flag.Parse stops
	// consuming flags at the first positional argument (the booster
	// type), so appending it after args would strand it unparsed in
	// flag.Args() instead of flipping *stage1 in the re-exec'd process.
	stage1Args := append([]string{"--internal-daemon-stage1"}, args...)
	cmd := exec.Command(executable, stage1Args...)
	cmd.ExtraFiles = []*os.File{readyW}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	cmd.SysProcAttr = &unix.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		readyR.Close()
		readyW.Close()
		return fmt.Errorf("start detached daemon process: %w", err)
	}
	readyW.Close() // stage 0's copy; stage 1 closes its own copy to signal readiness

	var g errgroup.Group
	done := make(chan struct{})
	g.Go(func() error {
		buf := make([]byte, 1)
		_, err := readyR.Read(buf)
		close(done)
		return err
	})

	select {
	case <-done:
	case <-time.After(Stage1Timeout):
		return fmt.Errorf("daemonize: stage 1 did not confirm PID file within %s", Stage1Timeout)
	}
	_ = g.Wait()
	readyR.Close()
	return nil
}

// Stage1 runs inside the re-exec'd detached process: it sets umask(0),
// creates a new session, changes directory to "/", redirects stdio to
// /dev/null, writes the PID file — overwriting whatever, if anything, is
// already there (spec.md §8 scenario 5) — then signals readiness by closing
// the ready-pipe write end inherited at FD 3 (spec.md §4.7: "writes
// <socket_root>/<booster_type>.pid containing the grandchild PID").
func Stage1(pidFilePath string) error {
	unix.Umask(0)
	if _, err := unix.Setsid(); err != nil && err != unix.EPERM {
		return fmt.Errorf("setsid: %w", err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}
	if err := redirectStdioToDevNull(); err != nil {
		return fmt.Errorf("redirect stdio: %w", err)
	}

	if err := os.WriteFile(pidFilePath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	readyW := os.NewFile(3, "ready-pipe-write")
	if err := readyW.Close(); err != nil {
		return err
	}
	return nil
}

func redirectStdioToDevNull() error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devNull.Close()

	for _, f := range []*os.File{os.Stdin, os.Stdout, os.Stderr} {
		if err := unix.Dup2(int(devNull.Fd()), int(f.Fd())); err != nil {
			return err
		}
	}
	return nil
}
