package daemonize

// Daemonize re-execs a real process and Stage1 mutates real process state
// (setsid, chdir, stdio redirection) that must not run inside a shared test
// binary, so this package has no safe unit-level surface of its own left to
// exercise; the PID-file overwrite semantics it relies on (spec.md §8
// scenario 5) are covered by internal/supervisor's guarded-removal tests.
