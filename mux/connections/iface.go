package connections

import (
	"io"
	"net"

	"github.com/Trinoooo/tcpmux/mux/poller"
)

var (
	_ IListener   = &Listener{}
	_ IConnection = &Connection{}
)

type IListener interface {
	Accept() (*Connection, error)
	Poll() (poller.Batch, error)
	Resolve(evt poller.Pevent) (*Connection, bool)
	Addr() net.Addr
	Wake() error
	io.Closer
}

type IConnection interface {
	io.ReadWriteCloser
	SendAll(buf []byte) (int, error)
	SetInterest(interest poller.Interest) error
	Ready() poller.Flag
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	RawFd() int
}
