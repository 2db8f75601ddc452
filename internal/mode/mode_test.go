package mode

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/nemomobile/boosterd/internal/registry"
)

func newTestController() *Controller {
	log := logrus.New()
	log.SetOutput(nopWriter{})
	return New(Normal, registry.New(), log)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestReenteringCurrentModeIsNoop(t *testing.T) {
	c := newTestController()
	require.Equal(t, Normal, c.Current())

	require.NoError(t, c.Enter(Normal))
	require.Equal(t, Normal, c.Current())
}

func TestModeRoundTrip(t *testing.T) {
	c := newTestController()

	require.NoError(t, c.Enter(Boot))
	require.Equal(t, Boot, c.Current())

	require.NoError(t, c.Enter(Normal))
	require.Equal(t, Normal, c.Current())
}
