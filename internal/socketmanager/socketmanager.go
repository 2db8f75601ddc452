// Package socketmanager is the concrete (if minimal) implementation of the
// SocketManager collaborator spec.md §1 delegates: resolving the listening
// socket path for a booster type and binding it. Grounded on the
// nydus-snapshotter supervisor's net.Listen("unix", path) plus
// stale-socket-file cleanup pattern.
package socketmanager

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Manager resolves and binds the booster-type-keyed listening socket under a
// socket root directory.
type Manager struct {
	root string
}

// New returns a Manager rooted at root (spec.md's <socket_root>).
func New(root string) *Manager {
	return &Manager{root: root}
}

// Root returns the socket root directory.
func (m *Manager) Root() string {
	return m.root
}

// SocketPath returns the listening socket path for boosterType.
func (m *Manager) SocketPath(boosterType string) string {
	return filepath.Join(m.root, boosterType+".socket")
}

// PIDFilePath returns the guarded PID-file path for boosterType (spec.md §6:
// "<socket_root>/<booster_type>.pid").
func (m *Manager) PIDFilePath(boosterType string) string {
	return filepath.Join(m.root, boosterType+".pid")
}

// Listen creates (or recreates) the booster's listening Unix socket. A stale
// socket file left behind by a previous instance is removed first, the same
// defensive cleanup the nydus-snapshotter supervisor performs before
// net.Listen.
func (m *Manager) Listen(boosterType string) (*net.UnixListener, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("create socket root %q: %w", m.root, err)
	}

	path := m.SocketPath(boosterType)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket %q: %w", path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", path, err)
	}
	return ln.(*net.UnixListener), nil
}
