package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/Trinoooo/tcpmux/config"
	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/Trinoooo/tcpmux/mux/connections"
	"github.com/bytedance/gopkg/util/gopool"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Server runs cfg.Workers reactors, each with its own listening socket bound to
// the same port through SO_REUSEPORT; the kernel spreads new connections across
// them. A connection lives on the reactor that accepted it until it closes.
type Server struct {
	mutex         sync.Mutex
	reactors      []*Reactor
	pool          gopool.Pool
	done          sync.WaitGroup
	errs          []error
	port          uint16
	serving       bool
	metricsHelper *MetricsHelper
}

func NewServer(cfg *config.Config, builder HandlerBuilder) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srv := &Server{
		metricsHelper: NewMetricsHelper(),
		errs:          make([]error, cfg.Workers),
	}
	if builder == nil {
		builder = NewEchoHandlerBuilder(cfg.ReadBufferSize, srv.metricsHelper)
	}
	srv.pool = gopool.NewPool("reactors", int32(cfg.Workers), gopool.NewConfig())
	srv.pool.SetPanicHandler(func(_ context.Context, r interface{}) {
		logs.Error("reactor panic", zap.String("panic", fmt.Sprint(r)))
	})

	// 第一个 listener 确定端口（可能是内核分配的），其余复用
	port := uint16(cfg.Port)
	for i := 0; i < cfg.Workers; i++ {
		opts := connections.NewOptions().SetMaxEvents(cfg.MaxEvents).SetWorker(i)
		l, err := connections.Listen(port, opts)
		if err != nil {
			for _, r := range srv.reactors {
				_ = r.Stop()
			}
			return nil, err
		}
		port = l.Port()
		srv.reactors = append(srv.reactors, NewReactor(i, l, builder(i), srv.metricsHelper))
	}
	srv.port = port
	return srv, nil
}

// Serve blocks until every reactor stopped, returning their combined errors.
func (srv *Server) Serve() error {
	srv.mutex.Lock()
	if srv.serving {
		srv.mutex.Unlock()
		return errs.NewListenerClosedErr()
	}
	srv.serving = true
	srv.done.Add(len(srv.reactors))
	for i, r := range srv.reactors {
		i, r := i, r
		srv.pool.Go(func() {
			defer srv.done.Done()
			srv.errs[i] = r.Run()
		})
	}
	srv.mutex.Unlock()

	logs.Info("server start", zap.Uint16(consts.LogFieldLocal, srv.port), zap.Int("workers", len(srv.reactors)))
	srv.done.Wait()
	logs.Info("server stop")
	return multierr.Combine(srv.errs...)
}

// Close stops every reactor and waits until they have returned. It must not be
// called from a handler, that would wait on its own reactor.
func (srv *Server) Close() error {
	srv.mutex.Lock()
	var err error
	for _, r := range srv.reactors {
		err = multierr.Append(err, r.Stop())
	}
	srv.metricsHelper.Stop()
	srv.mutex.Unlock()

	srv.done.Wait()
	return err
}

// Port is the bound port, useful when configured with port 0.
func (srv *Server) Port() uint16 {
	return srv.port
}

func (srv *Server) Metrics() *MetricsHelper {
	return srv.metricsHelper
}

// OnConnect installs observer on every reactor. Call before Serve.
func (srv *Server) OnConnect(observer ConnectObserver) {
	for _, r := range srv.reactors {
		r.OnConnect(observer)
	}
}
