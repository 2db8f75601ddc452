package singleinstance

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func nopLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(nopWriter{})
	return log
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestLoadEmptyPathReturnsNil(t *testing.T) {
	require.Nil(t, Load("", nopLogger()))
}

func TestLoadNonexistentPathReturnsNilNotPanic(t *testing.T) {
	require.Nil(t, Load("/nonexistent/single.so", nopLogger()))
}

func TestValidateNilPluginIsNoop(t *testing.T) {
	require.NoError(t, Validate(nil))
}
