package connections

import (
	"net"

	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/Trinoooo/tcpmux/mux/poller"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Listener accepts connections on one port and owns the poller every accepted
// Connection is registered with. It must only be used from one goroutine,
// except for Wake.
type Listener struct {
	fd     int
	addr   [4]byte
	port   uint16
	p      poller.Poller
	events []poller.Pevent

	// tag -> connection, 代替在内核事件里塞指针
	conns   map[uint32]*Connection
	nextTag uint32
	closed  bool
	pollErr error
	logger  *logs.ComponentLogger
}

// Listen never returns a partially built Listener: whatever step fails, the
// resources acquired before it are released.
func Listen(port uint16, opts *Options) (*Listener, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	fd, bound, err := CreateListeningSocket(port)
	if err != nil {
		return nil, err
	}

	p, err := opts.pollerBuilder(opts.maxEvents)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	l, err := newListener(fd, bound, p, opts)
	if err != nil {
		_ = p.Close()
		_ = unix.Close(fd)
		return nil, err
	}
	return l, nil
}

func newListener(fd int, bound *unix.SockaddrInet4, p poller.Poller, opts *Options) (*Listener, error) {
	if err := p.Register(fd, poller.Readable, poller.ListenerTag); err != nil {
		return nil, err
	}

	l := &Listener{
		fd:      fd,
		addr:    bound.Addr,
		port:    uint16(bound.Port),
		p:       p,
		events:  make([]poller.Pevent, opts.maxEvents),
		conns:   make(map[uint32]*Connection),
		nextTag: poller.FirstConnTag,
	}
	l.logger = logs.With("listener",
		zap.Int(consts.LogFieldWorker, opts.worker),
		zap.Stringer(consts.LogFieldLocal, l.Addr()),
	)
	l.logger.Info("listening", zap.Int(consts.LogFieldFd, fd))
	return l, nil
}

// Accept makes a single accept attempt. (nil, nil) means the accept queue is
// empty. An AcceptErr only concerns this attempt, the listener stays usable.
// Because the listening socket is edge-triggered, callers must repeat Accept
// until it returns (nil, nil) whenever the listener is reported ready.
func (l *Listener) Accept() (*Connection, error) {
	if l.closed {
		return nil, errs.NewListenerClosedErr()
	}

	var (
		nfd int
		sa  unix.Sockaddr
		err error
	)
	for {
		nfd, sa, err = unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err != nil {
		if err == unix.EAGAIN {
			return nil, nil
		}
		return nil, errs.NewAcceptErr().WithErr(err)
	}

	conn := &Connection{
		fd:       nfd,
		owner:    l,
		interest: poller.Readable | poller.PeerClosed,
	}
	if raddr, ok := sa.(*unix.SockaddrInet4); ok {
		conn.addr, conn.port = raddr.Addr, uint16(raddr.Port)
	}
	if lsa, e := unix.Getsockname(nfd); e == nil {
		if laddr, ok := lsa.(*unix.SockaddrInet4); ok {
			conn.laddr, conn.lport = laddr.Addr, uint16(laddr.Port)
		}
	}

	conn.tag = l.allocTag()
	if err = l.p.Register(nfd, conn.interest, conn.tag); err != nil {
		_ = unix.Close(nfd)
		return nil, errs.NewAcceptErr().WithErr(err)
	}
	l.conns[conn.tag] = conn
	return conn, nil
}

// Poll blocks until at least one registered descriptor is ready. The batch is
// only valid until the next Poll. A failing wait is fatal: the listener is
// marked failed and every later Poll returns the same error. The owner must
// still Close it, so that releasing the poller is ordered with its Wake calls.
func (l *Listener) Poll() (poller.Batch, error) {
	if l.closed {
		return nil, errs.NewListenerClosedErr()
	}
	if l.pollErr != nil {
		return nil, l.pollErr
	}

	n, err := l.p.Wait(l.events)
	if err != nil {
		l.logger.Error("poll failed", zap.Error(err), zap.Int("conns", len(l.conns)))
		l.pollErr = errors.Wrap(err, "listener poll")
		return nil, l.pollErr
	}
	return l.events[:n], nil
}

// Resolve maps a connection event back to its Connection and stamps the
// event flags on it. Stale tags of connections closed earlier in the same
// batch resolve to nothing.
func (l *Listener) Resolve(evt poller.Pevent) (*Connection, bool) {
	if evt.Tag < poller.FirstConnTag {
		return nil, false
	}
	conn, ok := l.conns[evt.Tag]
	if !ok {
		return nil, false
	}
	conn.ready = evt.Flag
	return conn, true
}

func (l *Listener) Wake() error {
	return l.p.Wake()
}

func (l *Listener) Addr() net.Addr {
	return &net.TCPAddr{
		IP:   net.IPv4(l.addr[0], l.addr[1], l.addr[2], l.addr[3]),
		Port: int(l.port),
	}
}

func (l *Listener) Port() uint16 {
	return l.port
}

func (l *Listener) RawFd() int {
	return l.fd
}

// Len returns the number of live connections.
func (l *Listener) Len() int {
	return len(l.conns)
}

func (l *Listener) Closed() bool {
	return l.closed
}

// Close releases every live connection, the poller and the listening socket.
// Closing an already closed listener is a no-op.
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true

	var err error
	for _, conn := range l.conns {
		err = multierr.Append(err, conn.Close())
	}
	err = multierr.Append(err, l.p.Close())
	if e := unix.Close(l.fd); e != nil {
		err = multierr.Append(err, errs.NewCloseSocketErr().WithErr(e))
	}
	l.fd = -1
	l.logger.Info("listener closed")
	return err
}

func (l *Listener) allocTag() uint32 {
	for {
		tag := l.nextTag
		l.nextTag++
		if l.nextTag < poller.FirstConnTag {
			l.nextTag = poller.FirstConnTag
		}
		if _, used := l.conns[tag]; !used {
			return tag
		}
	}
}
