package server

import (
	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/Trinoooo/tcpmux/mux/connections"
	"github.com/Trinoooo/tcpmux/utils"
	"go.uber.org/zap"
)

// Handler is invoked by the dispatcher each time a connection is reported
// ready; Ready() on the connection carries the event flags. It runs on the
// reactor goroutine and must not block: drain reads until would-block, and
// close the connection on EOF or on an unrecoverable error. When Handle
// returns the connection is either closed or still registered, nothing else.
// Error or HangUp events that carry no Readable flag never reach a handler,
// the reactor closes those connections itself.
type Handler interface {
	Handle(conn *connections.Connection)
}

type HandlerFunc func(conn *connections.Connection)

func (fn HandlerFunc) Handle(conn *connections.Connection) {
	fn(conn)
}

// HandlerBuilder builds the handler of one reactor. Each reactor gets its own
// instance, so handlers need no locking.
type HandlerBuilder func(worker int) Handler

// ConnectObserver is told about every accepted connection.
type ConnectObserver func(conn *connections.Connection)

var dispatchLogger = logs.With("dispatch")

// Dispatch hands conn to handler. A panicking handler is contained: the
// connection is closed and a DispatchErr returned, so one connection can never
// take the reactor down.
func Dispatch(conn *connections.Connection, handler Handler) (err error) {
	if conn == nil || handler == nil {
		return errs.NewDispatchErr().WithErr(errs.NewInvalidParamErr())
	}

	defer utils.HandlePanic(func(r interface{}, stack []byte) {
		dispatchLogger.Error("handler panic, close connection",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
			zap.Stringer(consts.LogFieldPeer, conn.RemoteAddr()),
		)
		_ = conn.Close()
		err = errs.NewDispatchErr()
	})

	handler.Handle(conn)
	return nil
}
