package signalfunnel

import "golang.org/x/sys/unix"

func pollReadable(fds []int, timeoutMillis int) (int, error) {
	pollFds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pollFds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}
	n, err := unix.Poll(pollFds, timeoutMillis)
	return n, err
}
