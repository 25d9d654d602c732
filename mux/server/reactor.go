package server

import (
	"io"
	"sync"
	"syscall"

	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/Trinoooo/tcpmux/mux/connections"
	"github.com/Trinoooo/tcpmux/mux/poller"
	"github.com/luci/go-render/render"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type reactorState int

const (
	reactorIdle reactorState = iota
	reactorRunning
	reactorDone
)

// Reactor is the single dispatch loop of one Listener. Everything except Stop
// runs on the goroutine that called Run.
type Reactor struct {
	id        int
	l         *connections.Listener
	handler   Handler
	onConnect ConnectObserver
	metrics   *MetricsHelper
	logger    *logs.ComponentLogger

	mutex         sync.Mutex
	state         reactorState
	stopRequested bool
}

func NewReactor(id int, l *connections.Listener, handler Handler, metrics *MetricsHelper) *Reactor {
	if metrics == nil {
		metrics = NewMetricsHelper()
	}
	r := &Reactor{
		id:      id,
		l:       l,
		handler: handler,
		metrics: metrics,
		logger:  logs.With("reactor", zap.Int(consts.LogFieldWorker, id)),
	}
	r.onConnect = r.logConnect
	return r
}

// OnConnect replaces the observer of accepted connections.
func (r *Reactor) OnConnect(observer ConnectObserver) *Reactor {
	if observer != nil {
		r.onConnect = observer
	}
	return r
}

func (r *Reactor) Listener() *connections.Listener {
	return r.l
}

// Run polls and dispatches until Stop is called or polling fails. Either way
// the listener and all of its connections are closed when Run returns; a poll
// failure is returned, a requested stop is not an error, even when it came
// before Run.
func (r *Reactor) Run() error {
	r.mutex.Lock()
	if r.state != reactorIdle {
		stopped := r.state == reactorDone && r.stopRequested
		r.mutex.Unlock()
		if stopped {
			return nil
		}
		return errs.NewListenerClosedErr()
	}
	r.state = reactorRunning
	r.mutex.Unlock()

	r.logger.Info("reactor start", zap.Stringer(consts.LogFieldLocal, r.l.Addr()))
	err := r.loop()

	// 关闭 listener（及 poller 的 wake fd）与 Stop 在同一把锁下，
	// Stop 看到 done 就不会再 Wake
	r.mutex.Lock()
	r.state = reactorDone
	closed := r.l.Len()
	if e := r.l.Close(); e != nil {
		r.logger.Warn("close listener failed", zap.Error(e))
	}
	r.mutex.Unlock()
	r.metrics.ConnectionCloseCounter.Add(float64(closed))
	r.metrics.ActiveConnectionGauge.Sub(float64(closed))
	r.closeHandler()

	if err != nil {
		r.logger.Error("reactor stop", zap.Error(err))
		return err
	}
	r.logger.Info("reactor stop")
	return nil
}

func (r *Reactor) loop() error {
	for {
		batch, err := r.l.Poll()
		if err != nil {
			return err
		}
		r.metrics.BatchSizeHistogram.Observe(float64(batch.Len()))

		if stop := r.dispatchBatch(batch); stop {
			return nil
		}
	}
}

// dispatchBatch consumes every event of batch, even after a stop request.
func (r *Reactor) dispatchBatch(batch poller.Batch) bool {
	stop := false
	for _, evt := range batch {
		r.metrics.EventCounter.Inc()
		if logs.Enabled(zapcore.DebugLevel) {
			r.logger.Debug("event", zap.String(consts.LogFieldEvent, render.Render(evt)), zap.Stringer("flag", evt.Flag))
		}

		switch evt.Tag {
		case poller.WakeTag:
			stop = r.isStopRequested()
		case poller.ListenerTag:
			if evt.Flag&(poller.FlagError|poller.FlagHangUp) != 0 {
				r.logger.Warn("listener reported error condition", zap.Stringer("flag", evt.Flag))
			}
			r.acceptAll()
		default:
			r.dispatchConn(evt)
		}
	}
	return stop
}

// acceptAll drains the accept queue. The listening socket is edge-triggered,
// stopping early would strand the remaining connections until the next one
// arrives.
func (r *Reactor) acceptAll() {
	for {
		conn, err := r.l.Accept()
		if err != nil {
			r.metrics.AcceptErrorCounter.Inc()
			r.logger.Warn("accept failed", zap.Error(err))
			if isPerPeerAcceptErr(err) {
				continue
			}
			return
		}
		if conn == nil {
			return
		}

		r.metrics.ConnectionAcceptCounter.Inc()
		r.metrics.ActiveConnectionGauge.Inc()
		r.onConnect(conn)
	}
}

func (r *Reactor) dispatchConn(evt poller.Pevent) {
	conn, ok := r.l.Resolve(evt)
	if !ok {
		// closed earlier in this batch
		return
	}

	if evt.Flag&(poller.FlagError|poller.FlagHangUp) != 0 && evt.Flag&poller.FlagReadable == 0 {
		// 没有可读数据，handler 读不到失败，边缘触发下也不会再有事件
		r.logger.Debug("connection broken without data, close",
			zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()),
			zap.Stringer("flag", evt.Flag),
		)
		r.closeConn(conn)
		return
	}

	if err := Dispatch(conn, r.handler); err != nil {
		r.metrics.DispatchErrorCounter.Inc()
		r.logger.Warn("dispatch failed", zap.Error(err), zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()))
	}
	if conn.Closed() {
		r.metrics.ConnectionCloseCounter.Inc()
		r.metrics.ActiveConnectionGauge.Dec()
	}
}

func (r *Reactor) closeConn(conn *connections.Connection) {
	if err := conn.Close(); err != nil {
		r.logger.Warn("close connection failed", zap.Error(err))
	}
	r.metrics.ConnectionCloseCounter.Inc()
	r.metrics.ActiveConnectionGauge.Dec()
}

func (r *Reactor) logConnect(conn *connections.Connection) {
	r.logger.Info("connected",
		zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()),
		zap.Int(consts.LogFieldFd, conn.RawFd()),
		zap.Uint32(consts.LogFieldTag, conn.Tag()),
	)
}

// Stop may be called from any goroutine, any number of times. A running
// reactor is woken up and finishes its current batch; a reactor that never
// ran just closes its listener, and a later Run returns nil.
func (r *Reactor) Stop() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	switch r.state {
	case reactorIdle:
		r.state = reactorDone
		r.stopRequested = true
		err := r.l.Close()
		r.closeHandler()
		return err
	case reactorRunning:
		r.stopRequested = true
		return r.l.Wake()
	default:
		return nil
	}
}

func (r *Reactor) closeHandler() {
	if c, ok := r.handler.(io.Closer); ok {
		if e := c.Close(); e != nil {
			r.logger.Warn("close handler failed", zap.Error(e))
		}
	}
}

func (r *Reactor) isStopRequested() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.stopRequested
}

// isPerPeerAcceptErr tells errors caused by a single aborted peer apart from
// resource exhaustion, where retrying right away would spin.
func isPerPeerAcceptErr(err error) bool {
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPROTO) ||
		errors.Is(err, syscall.EPERM)
}
