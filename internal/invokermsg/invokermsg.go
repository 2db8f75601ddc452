// Package invokermsg encodes the tiny notification written to an invoker's
// kept file descriptor when its adopted booster exits normally.
package invokermsg

import (
	"encoding/binary"
	"fmt"
	"os"
)

// ExitCode is the message type tag sent over an invoker FD, followed by the
// boosted process's exit code. Signal-terminated children never see this
// message: the invoker is killed with the same signal instead (spec.md §6).
const ExitCode uint32 = 1

// SendExit writes {ExitCode, code} as two little-endian 32-bit words to f and
// leaves f open; the caller is responsible for closing it afterwards
// (internal/supervisor closes it once internal/registry's Reap hands it over).
func SendExit(f *os.File, code int32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], ExitCode)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(code))
	n, err := f.Write(buf[:])
	if err != nil {
		return fmt.Errorf("write exit notification: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("short write of exit notification: %d of %d bytes", n, len(buf))
	}
	return nil
}
