package connections

import (
	"io"
	"net"

	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/mux/poller"
	"golang.org/x/sys/unix"
)

// Connection is the handle of one accepted socket. Close invalidates the
// handle: a second Close is a no-op and every other operation afterwards
// returns ConnClosedErr.
type Connection struct {
	fd    int
	tag   uint32
	owner *Listener

	addr  [4]byte // peer
	port  uint16
	laddr [4]byte
	lport uint16

	interest poller.Interest
	ready    poller.Flag
	ctx      interface{}
}

// Read makes one non-blocking read. It returns errs.ErrWouldBlock when no data
// is available and io.EOF when the peer shut down its write side.
func (c *Connection) Read(buf []byte) (int, error) {
	if c.fd < 0 {
		return 0, errs.NewConnClosedErr()
	}
	if len(buf) == 0 {
		return 0, nil
	}

	for {
		n, err := unix.Read(c.fd, buf)
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				return 0, errs.ErrWouldBlock
			default:
				return 0, errs.NewReadSocketErr().WithErr(err)
			}
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write makes one non-blocking send and may write less than len(buf).
// Use SendAll to keep writing until the socket is full.
func (c *Connection) Write(buf []byte) (int, error) {
	if c.fd < 0 {
		return 0, errs.NewConnClosedErr()
	}

	n, err := send(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, errs.ErrWouldBlock
		}
		return 0, errs.NewSendErr().WithErr(err)
	}
	return n, nil
}

func (c *Connection) SendAll(buf []byte) (int, error) {
	if c.fd < 0 {
		return 0, errs.NewConnClosedErr()
	}
	return SendAll(c.fd, buf)
}

// SetInterest replaces the registered interest, e.g. to add Writable while
// unsent data is pending.
func (c *Connection) SetInterest(interest poller.Interest) error {
	if c.fd < 0 {
		return errs.NewConnClosedErr()
	}
	if interest == c.interest {
		return nil
	}
	if err := c.owner.p.Modify(c.fd, interest, c.tag); err != nil {
		return err
	}
	c.interest = interest
	return nil
}

func (c *Connection) Interest() poller.Interest {
	return c.interest
}

// Ready returns the flags of the event that made this connection ready.
func (c *Connection) Ready() poller.Flag {
	return c.ready
}

// SetContext stores handler owned per-connection state. It is dropped on Close.
func (c *Connection) SetContext(ctx interface{}) {
	c.ctx = ctx
}

func (c *Connection) Context() interface{} {
	return c.ctx
}

func (c *Connection) RemoteAddr() net.Addr {
	ipv4 := net.IPv4(c.addr[0], c.addr[1], c.addr[2], c.addr[3])
	return &net.TCPAddr{
		IP:   ipv4,
		Port: int(c.port),
	}
}

func (c *Connection) LocalAddr() net.Addr {
	ipv4 := net.IPv4(c.laddr[0], c.laddr[1], c.laddr[2], c.laddr[3])
	return &net.TCPAddr{
		IP:   ipv4,
		Port: int(c.lport),
	}
}

// Addr is the peer IPv4 address in network byte order.
func (c *Connection) Addr() [4]byte {
	return c.addr
}

func (c *Connection) Port() uint16 {
	return c.port
}

func (c *Connection) Tag() uint32 {
	return c.tag
}

func (c *Connection) RawFd() int {
	return c.fd
}

func (c *Connection) Closed() bool {
	return c.fd < 0
}

func (c *Connection) Close() error {
	if c.fd < 0 {
		return nil
	}
	fd := c.fd
	c.fd = -1
	c.ctx = nil

	if c.owner != nil {
		// 关闭 fd 内核会自动摘除注册，这里只为清理 poller 侧的登记
		_ = c.owner.p.Unregister(fd)
		delete(c.owner.conns, c.tag)
	}

	if err := unix.Close(fd); err != nil {
		return errs.NewCloseSocketErr().WithErr(err)
	}
	return nil
}
