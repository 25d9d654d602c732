package server

import (
	"io"

	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/Trinoooo/tcpmux/mux/connections"
	"github.com/Trinoooo/tcpmux/mux/poller"
	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/eapache/queue"
	"go.uber.org/zap"
)

// maxPendingBytes caps the residue kept per connection; past it the handler
// stops reading until the peer drains its receive window.
const maxPendingBytes = 4 * consts.MB

// EchoHandler writes back everything it reads. Bytes the socket cannot take
// right away are queued on the connection and flushed on the next Writable
// event, so the order of the echoed stream is kept.
type EchoHandler struct {
	buf     []byte
	metrics *MetricsHelper
	logger  *logs.ComponentLogger
}

type chunk struct {
	buf []byte
	off int
}

// pending is the unsent residue of one connection, stored in its context.
type pending struct {
	q    *queue.Queue
	size int
}

func NewEchoHandler(readBufSize int, metrics *MetricsHelper) *EchoHandler {
	if readBufSize <= 0 {
		readBufSize = consts.DefaultReadBufferSize
	}
	return &EchoHandler{
		buf:     mcache.Malloc(readBufSize),
		metrics: metrics,
		logger:  logs.With("echo"),
	}
}

func NewEchoHandlerBuilder(readBufSize int, metrics *MetricsHelper) HandlerBuilder {
	return func(worker int) Handler {
		h := NewEchoHandler(readBufSize, metrics)
		h.logger = h.logger.With(zap.Int(consts.LogFieldWorker, worker))
		return h
	}
}

func (h *EchoHandler) Handle(conn *connections.Connection) {
	if conn.Ready()&poller.FlagWritable != 0 {
		if !h.flush(conn) {
			return
		}
	}

	for !h.saturated(conn) {
		n, err := conn.Read(h.buf)
		if n > 0 {
			if !h.echo(conn, h.buf[:n]) {
				return
			}
		}
		if err == nil {
			continue
		}

		switch {
		case errs.IsWouldBlock(err):
		case err == io.EOF:
			h.logger.Debug("peer closed", zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()))
			h.close(conn)
		default:
			h.logger.Warn("read failed", zap.Error(err), zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()))
			h.close(conn)
		}
		return
	}
}

// echo returns false once conn has been closed.
func (h *EchoHandler) echo(conn *connections.Connection, data []byte) bool {
	if p := pendingOf(conn); p != nil && p.q.Length() > 0 {
		p.push(data)
		return true
	}

	n, err := conn.SendAll(data)
	h.count(n)
	if err != nil {
		h.logger.Warn("send failed", zap.Error(err), zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()))
		h.close(conn)
		return false
	}
	if n == len(data) {
		return true
	}

	p := pendingOf(conn)
	if p == nil {
		p = &pending{q: queue.New()}
		conn.SetContext(p)
	}
	p.push(data[n:])
	if err := conn.SetInterest(conn.Interest() | poller.Writable); err != nil {
		h.logger.Warn("watch writable failed", zap.Error(err))
		h.close(conn)
		return false
	}
	return true
}

// flush returns false once conn has been closed.
func (h *EchoHandler) flush(conn *connections.Connection) bool {
	p := pendingOf(conn)
	if p == nil {
		return true
	}

	for p.q.Length() > 0 {
		c := p.q.Peek().(*chunk)
		n, err := conn.SendAll(c.buf[c.off:])
		h.count(n)
		if err != nil {
			h.logger.Warn("flush failed", zap.Error(err), zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()))
			h.close(conn)
			return false
		}
		c.off += n
		p.size -= n
		if c.off < len(c.buf) {
			// 发送缓冲区仍满，等下一次 Writable
			return true
		}
		p.q.Remove()
	}

	if err := conn.SetInterest(conn.Interest() &^ poller.Writable); err != nil {
		h.logger.Warn("unwatch writable failed", zap.Error(err))
		h.close(conn)
		return false
	}
	return true
}

func (h *EchoHandler) saturated(conn *connections.Connection) bool {
	p := pendingOf(conn)
	return p != nil && p.size >= maxPendingBytes
}

func (h *EchoHandler) close(conn *connections.Connection) {
	conn.SetContext(nil)
	if err := conn.Close(); err != nil {
		h.logger.Warn("close failed", zap.Error(err))
	}
}

func (h *EchoHandler) count(n int) {
	if h.metrics != nil && n > 0 {
		h.metrics.EchoBytesCounter.Add(float64(n))
	}
}

// Close returns the read buffer to the pool.
func (h *EchoHandler) Close() error {
	if h.buf != nil {
		mcache.Free(h.buf)
		h.buf = nil
	}
	return nil
}

func pendingOf(conn *connections.Connection) *pending {
	p, _ := conn.Context().(*pending)
	return p
}

// push copies data, the read buffer is reused by the next read.
func (p *pending) push(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	p.q.Add(&chunk{buf: buf})
	p.size += len(buf)
}
