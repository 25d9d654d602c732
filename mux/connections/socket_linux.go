package connections

import (
	"github.com/Trinoooo/tcpmux/errs"
	"golang.org/x/sys/unix"
)

// CreateListeningSocket returns a non-blocking IPv4 stream socket listening on
// 0.0.0.0:port with SO_REUSEADDR and SO_REUSEPORT set. For port 0 the
// returned address carries the port the kernel picked. On failure nothing is
// left open.
func CreateListeningSocket(port uint16) (int, *unix.SockaddrInet4, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, errs.NewSocketErr().WithErr(err)
	}

	bound, e := setupListeningSocket(fd, port)
	if e != nil {
		_ = unix.Close(fd)
		return -1, nil, e
	}
	return fd, bound, nil
}

func setupListeningSocket(fd int, port uint16) (*unix.SockaddrInet4, error) {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, errs.NewSetSockOptErr().WithErr(err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		return nil, errs.NewSetSockOptErr().WithErr(err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errs.NewSetNonblockErr().WithErr(err)
	}

	laddr := &unix.SockaddrInet4{
		Port: int(port),
		Addr: [4]byte{}, // INADDR_ANY
	}
	if err := unix.Bind(fd, laddr); err != nil {
		return nil, errs.NewBindErr().WithErr(err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return nil, errs.NewListenErr().WithErr(err)
	}

	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, errs.NewSocketErr().WithErr(err)
	}
	if bound, ok := sa.(*unix.SockaddrInet4); ok {
		return bound, nil
	}
	return laddr, nil
}
