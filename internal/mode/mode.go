// Package mode implements the Mode & Shutdown Controller (spec.md §4.6):
// boot/normal mode transitions, idempotent, that kill the current warm
// booster so the supervisor loop's reap-and-respawn path naturally forks a
// replacement under the new mode.
package mode

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/nemomobile/boosterd/internal/registry"
)

// Mode is one of the two daemon-wide modes spec.md §4.6 defines.
type Mode int

const (
	Normal Mode = iota
	Boot
)

func (m Mode) String() string {
	if m == Boot {
		return "boot"
	}
	return "normal"
}

// Controller owns the current mode flag.
type Controller struct {
	log     *logrus.Logger
	reg     *registry.Registry
	current Mode
}

// New creates a Controller starting in startMode (spec.md §6: "-b/--boot-mode"
// determines the starting mode).
func New(startMode Mode, reg *registry.Registry, log *logrus.Logger) *Controller {
	return &Controller{log: log, reg: reg, current: startMode}
}

// Current returns the active mode.
func (c *Controller) Current() Mode {
	return c.current
}

// Enter transitions to m. A redundant transition (m == c.current) logs and
// returns without touching the warm booster (spec.md §8 P3). A real
// transition flips the mode flag first, then sends SIGTERM to the current
// warm booster — crucially, warm_booster_pid is NOT cleared here; only the
// supervisor's reap path clears it, which is what prevents a hand-off
// arriving in the meantime from being attributed to a booster that has
// already been told to die (spec.md §4.6).
func (c *Controller) Enter(m Mode) error {
	if m == c.current {
		c.log.WithField("mode", m).Debug("mode transition requested but already active; no-op")
		return nil
	}

	c.current = m
	c.log.WithField("mode", m).Info("entering mode")

	warm := c.reg.Warm()
	if warm == 0 {
		return nil
	}
	if err := unix.Kill(int(warm), unix.SIGTERM); err != nil {
		return err
	}
	return nil
}
