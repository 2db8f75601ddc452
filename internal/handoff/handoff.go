// Package handoff implements the datagram channel between the daemon and a
// booster (spec.md §3/§4.2): a Unix domain SOCK_DGRAM socketpair carrying a
// fixed two-scalar record plus exactly one ancillary file descriptor.
package handoff

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Record is the fixed-layout hand-off message (spec.md §3).
type Record struct {
	// InvokerPID is the process id of the invoker, or 0 to mean "ignore; no
	// invoker tracking".
	InvokerPID int32
	// RespawnDelay is the number of seconds the daemon should wait before
	// forking the replacement booster (0 = immediate).
	RespawnDelay int32
}

const recordSize = 8

// oobSpace is sized for exactly one ancillary file descriptor, matching
// spec.md's "control buffer sized for one FD (CMSG_SPACE(sizeof(int)))".
var oobSpace = unix.CmsgSpace(4)

// NewPair creates the booster socket pair (spec.md §4.2): a SOCK_DGRAM,
// AF_UNIX socketpair whose end [0] is the daemon's read side and end [1] is
// donated to every booster.
func NewPair() (daemonEnd *net.UnixConn, boosterEnd *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("create booster socket pair: %w", err)
	}

	f0 := os.NewFile(uintptr(fds[0]), "booster-socket-daemon")
	conn, err := net.FileConn(f0)
	f0.Close()
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, fmt.Errorf("wrap daemon end as UnixConn: %w", err)
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		unix.Close(fds[1])
		return nil, nil, fmt.Errorf("unexpected conn type %T for booster socket", conn)
	}

	boosterEnd = os.NewFile(uintptr(fds[1]), "booster-socket-booster")
	return uc, boosterEnd, nil
}

// Send transmits rec over conn along with exactly one ancillary file
// descriptor (fd). Called from the booster side at the moment it accepts a
// launch.
func Send(conn *net.UnixConn, rec Record, fd int) error {
	data := encode(rec)
	oob := unix.UnixRights(fd)
	n, oobn, err := conn.WriteMsgUnix(data, oob, nil)
	if err != nil {
		return fmt.Errorf("send hand-off record: %w", err)
	}
	if n != len(data) || oobn != len(oob) {
		return fmt.Errorf("short send of hand-off record: data %d/%d oob %d/%d", n, len(data), oobn, len(oob))
	}
	return nil
}

// Recv receives one hand-off datagram from conn. fd is -1 if no ancillary
// file descriptor was present. Recv does not check this against InvokerPID;
// the supervisor loop records an adoption only when an FD is present and
// otherwise just forks the replacement booster.
//
// Any error here is fatal per spec.md §7 ("failure to receive on the booster
// socket"); the caller does not retry.
func Recv(conn *net.UnixConn) (rec Record, fd int, err error) {
	data := make([]byte, recordSize)
	oob := make([]byte, oobSpace)

	n, oobn, _, _, err := conn.ReadMsgUnix(data, oob)
	if err != nil {
		return Record{}, -1, fmt.Errorf("receive hand-off datagram: %w", err)
	}
	if n != recordSize {
		return Record{}, -1, fmt.Errorf("short hand-off datagram: got %d bytes, want %d", n, recordSize)
	}
	rec = decode(data)

	fd = -1
	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return Record{}, -1, fmt.Errorf("parse control message: %w", err)
		}
		for _, scm := range scms {
			fds, err := unix.ParseUnixRights(&scm)
			if err != nil {
				continue
			}
			if len(fds) > 0 {
				fd = fds[0]
				// Any further FDs beyond the first are unexpected per
				// spec.md ("exactly one file descriptor"); close them so
				// they are not silently leaked.
				for _, extra := range fds[1:] {
					unix.Close(extra)
				}
				break
			}
		}
	}
	return rec, fd, nil
}

func encode(rec Record) []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rec.InvokerPID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(rec.RespawnDelay))
	return buf
}

func decode(buf []byte) Record {
	return Record{
		InvokerPID:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		RespawnDelay: int32(binary.LittleEndian.Uint32(buf[4:8])),
	}
}
