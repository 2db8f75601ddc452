// Package config holds the daemon's flat configuration and the flag
// registration for it, grounded on the teacher's RegisterFlags-onto-a-
// shared-FlagSet pattern (runsc/config/flags.go).
package config

import "flag"

// Config is populated from command-line flags (spec.md §6).
type Config struct {
	// BoosterType is the short type tag (e.g. "qt", "generic") this daemon
	// instance supervises. Not a flag in spec.md's table, but required by
	// every socket/PID-file path in spec.md §6 — passed as a positional
	// argument.
	BoosterType string
	// SocketRoot is the directory under which <booster_type>.pid and the
	// booster listening socket live (delegated to SocketManager per
	// spec.md §1, but the root itself must come from somewhere).
	SocketRoot string

	BootMode  bool
	Daemonize bool
	Debug     bool
	Systemd   bool
}

// RegisterFlags registers the daemon's flags onto fs. Short and long spellings
// of the same flag share a destination, the way the teacher's cli/main.go
// registers aliases onto one backing variable.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.BootMode, "b", false, "start in boot mode (zero respawn delay, caches not pre-warmed)")
	fs.BoolVar(&cfg.BootMode, "boot-mode", false, "start in boot mode (zero respawn delay, caches not pre-warmed)")

	fs.BoolVar(&cfg.Daemonize, "d", false, "daemonise (double-fork, detach, write PID file)")
	fs.BoolVar(&cfg.Daemonize, "daemon", false, "daemonise (double-fork, detach, write PID file)")

	fs.BoolVar(&cfg.Debug, "debug", false, "enable verbose logging to stdout")

	fs.BoolVar(&cfg.Systemd, "systemd", false, "emit sd_notify(READY=1) after the first warm booster is forked")

	fs.StringVar(&cfg.SocketRoot, "socket-root", "/run/boosterd", "directory holding the PID file and booster listening socket")
}
