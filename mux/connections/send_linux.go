package connections

import (
	"github.com/Trinoooo/tcpmux/errs"
	"golang.org/x/sys/unix"
)

type sendFunc func(fd int, p []byte) (int, error)

// SendAll keeps writing the unsent suffix of buf to the non-blocking socket fd.
//
// It returns early without error when the socket is full (would block) or a
// write makes no progress, so a result shorter than len(buf) is normal; the
// caller keeps the residue and retries later, typically on the next Writable
// event. Any other failure returns SendErr, the count is then informational
// and the connection must be treated as broken. SendAll never buffers.
func SendAll(fd int, buf []byte) (int, error) {
	return sendAll(fd, buf, send)
}

func sendAll(fd int, buf []byte, sendFn sendFunc) (int, error) {
	if fd < 0 {
		return 0, errs.NewSendErr().WithErr(unix.EBADF)
	}

	total := 0
	for total < len(buf) {
		n, err := sendFn(fd, buf[total:])
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			return total, errs.NewSendErr().WithErr(err)
		}
		if n <= 0 {
			// 写入 0 字节按对端关闭处理
			break
		}
		total += n
	}
	return total, nil
}

// send writes with MSG_NOSIGNAL so a reset peer yields EPIPE instead of SIGPIPE.
func send(fd int, p []byte) (int, error) {
	for {
		n, err := unix.SendmsgN(fd, p, nil, nil, unix.MSG_NOSIGNAL)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
