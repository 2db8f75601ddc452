package config

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShortAndLongFlagsShareDestination(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs, &cfg)

	require.NoError(t, fs.Parse([]string{"-b"}))
	require.True(t, cfg.BootMode)

	cfg = Config{}
	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--boot-mode"}))
	require.True(t, cfg.BootMode)
}

func TestSocketRootDefault(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs, &cfg)
	require.NoError(t, fs.Parse(nil))
	require.Equal(t, "/run/boosterd", cfg.SocketRoot)
}
