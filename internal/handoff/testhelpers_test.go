package handoff

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

func pairToUnixConn(f *os.File) (*net.UnixConn, error) {
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("unexpected conn type %T", conn)
	}
	return uc, nil
}

func unixClose(fd int) {
	unix.Close(fd)
}
