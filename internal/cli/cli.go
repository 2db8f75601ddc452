// Package cli is boosterd's entrypoint, grounded on the teacher's
// runsc/cli.Main: register subcommands, register the root command's flags
// onto the same global FlagSet, parse once, dispatch.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/nemomobile/boosterd/internal/cgroupacct"
	"github.com/nemomobile/boosterd/internal/config"
	"github.com/nemomobile/boosterd/internal/daemonize"
	"github.com/nemomobile/boosterd/internal/forkexec"
	"github.com/nemomobile/boosterd/internal/handoff"
	"github.com/nemomobile/boosterd/internal/mode"
	"github.com/nemomobile/boosterd/internal/registry"
	"github.com/nemomobile/boosterd/internal/signalfunnel"
	"github.com/nemomobile/boosterd/internal/socketmanager"
	"github.com/nemomobile/boosterd/internal/supervisor"
)

// Main is boosterd's single entrypoint, invoked from cmd/boosterd.
func Main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(boosterChildCommand), "internal use only")

	var cfg config.Config
	config.RegisterFlags(flag.CommandLine, &cfg)
	stage1 := flag.Bool("internal-daemon-stage1", false, "internal: daemonize re-exec target, do not use directly")
	singlePlugin := flag.String("single-instance-plugin", "", "path to an optional single-instance shared object")

	// spec.md §6: unknown flags exit with failure and usage to stdout. The
	// stdlib's own -h/unknown-flag handling inside flag.Parse writes through
	// this same CommandLine's output, so it must be redirected before
	// parsing, not only in the "missing booster type" branch below.
	flag.CommandLine.SetOutput(os.Stdout)
	flag.Parse()

	if flag.Arg(0) == "booster-child" {
		os.Exit(int(subcommands.Execute(context.Background())))
	}

	if flag.Arg(0) != "" {
		cfg.BoosterType = flag.Arg(0)
	}
	if cfg.BoosterType == "" {
		fmt.Fprintln(os.Stdout, "usage: boosterd [flags] <booster-type>")
		flag.Usage()
		os.Exit(1)
	}

	log := newLogger(cfg.Debug)
	sm := socketmanager.New(cfg.SocketRoot)
	pidFilePath := sm.PIDFilePath(cfg.BoosterType)

	if *stage1 {
		if err := daemonize.Stage1(pidFilePath); err != nil {
			log.WithError(err).Fatal("daemonize stage 1 failed")
		}
		runDaemon(log, cfg, sm, *singlePlugin)
		return
	}

	if cfg.Daemonize {
		executable, err := os.Executable()
		if err != nil {
			log.WithError(err).Fatal("resolve executable path for daemonize")
		}
		if err := daemonize.Daemonize(executable, os.Args[1:], pidFilePath); err != nil {
			log.WithError(err).Fatal("daemonize failed")
		}
		log.Info("daemonized successfully")
		return
	}

	runDaemon(log, cfg, sm, *singlePlugin)
}

// runDaemon wires every C1-C7 collaborator and blocks in the supervisor
// loop until shutdown.
func runDaemon(log *logrus.Logger, cfg config.Config, sm *socketmanager.Manager, singlePlugin string) {
	ctx := context.Background()

	funnel, err := signalfunnel.New()
	if err != nil {
		log.WithError(err).Fatal("create signal funnel")
	}
	defer funnel.Close()

	daemonEnd, boosterEnd, err := handoff.NewPair()
	if err != nil {
		log.WithError(err).Fatal("create booster hand-off socket pair")
	}

	ln, err := sm.Listen(cfg.BoosterType)
	if err != nil {
		log.WithError(err).Fatal("bind booster listening socket")
	}
	listenFile, err := ln.File()
	if err != nil {
		log.WithError(err).Fatal("dup booster listening socket for donation")
	}
	// Keep the socket path on disk: the donated duplicate is still listening
	// on it for every booster generation.
	ln.SetUnlinkOnClose(false)
	ln.Close()

	reg := registry.New()
	modeCtl := mode.New(startMode(cfg.BootMode), reg, log)

	acct, err := cgroupacct.New(cfg.BoosterType, log)
	if err != nil {
		log.WithError(err).Warn("cgroup accounting unavailable; continuing without it")
		acct = nil
	}

	executable, err := os.Executable()
	if err != nil {
		log.WithError(err).Fatal("resolve executable path for fork engine")
	}

	engine := forkexec.New(forkexec.Config{
		Log:              log,
		Registry:         reg,
		Executable:       executable,
		BoosterType:      cfg.BoosterType,
		BootMode:         func() bool { return modeCtl.Current() == mode.Boot },
		HandoffEnd:       boosterEnd,
		ListenFile:       listenFile,
		Accountant:       acct,
		SIGHUPWasIgnored: funnel.SIGHUPWasIgnored(),
		SingleInstance:   singlePlugin,
	})

	if err := engine.Fork(ctx, 0); err != nil {
		log.WithError(err).Fatal("failed to fork initial warm booster")
	}

	if cfg.Systemd {
		if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			log.WithError(err).Warn("sd_notify(READY=1) failed")
		} else if !sent {
			log.Debug("sd_notify not supported (NOTIFY_SOCKET unset); skipping")
		}
	}

	loop := supervisor.New(supervisor.Config{
		Log:         log,
		Funnel:      funnel,
		Conn:        daemonEnd,
		Registry:    reg,
		Engine:      engine,
		Mode:        modeCtl,
		PIDFilePath: pidFilePath,
	})

	log.WithField("booster_type", cfg.BoosterType).Info("boosterd supervisor loop starting")
	if err := loop.Run(ctx); err != nil {
		log.WithError(err).Fatal("supervisor loop exited with an error")
	}
	log.Info("boosterd shut down cleanly")
}

func startMode(bootMode bool) mode.Mode {
	if bootMode {
		return mode.Boot
	}
	return mode.Normal
}

func newLogger(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
