package errs

import (
	"errors"
	"fmt"
)

type MuxErr struct {
	msg  string
	code int64
	err  error
}

// Error 输出格式：
// [错误码] 错误类型描述 ( => 包含错误详细描述 )
// 解释：(xxx) 表示可选内容
func (me *MuxErr) Error() string {
	details := fmt.Sprintf("[%d] %s", me.code, me.msg)
	if me.err != nil {
		details += fmt.Sprintf(" => %s", me.err)
	}

	return details
}

func (me *MuxErr) Code() int64 {
	return me.code
}

func (me *MuxErr) WithErr(err error) *MuxErr {
	me.err = err
	return me
}

func (me *MuxErr) Unwrap() error {
	return me.err
}

func GetCode(err error) int64 {
	var me *MuxErr
	if errors.As(err, &me) {
		return me.code
	}
	return UnknownErrCode
}

// Is reports whether the outermost MuxErr in err's chain carries code.
func Is(err error, code int64) bool {
	return err != nil && GetCode(err) == code
}

// IsSetup reports whether err is a fatal construction error of a listener.
func IsSetup(err error) bool {
	code := GetCode(err)
	return code >= SocketErrCode && code < setupErrCodeEnd
}

// IsWouldBlock reports whether err is the non-blocking "nothing to do right now" signal.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}

const (
	UnknownErrCode           = 0
	InvalidParamErrCode      = 100001
	ReadConfigErrCode        = 100002
	AlreadyRegisteredErrCode = 100003
	NotRegisteredErrCode     = 100004
	ConnClosedErrCode        = 100005
	ListenerClosedErrCode    = 100006
	WouldBlockErrCode        = 100007

	// setup family, fatal for the listener being built
	SocketErrCode       = 200001
	SetSockOptErrCode   = 200002
	SetNonblockErrCode  = 200003
	BindErrCode         = 200004
	ListenErrCode       = 200005
	PollerCreateErrCode = 200006
	RegisterErrCode     = 200007
	setupErrCodeEnd     = 200100

	PollErrCode = 300001

	// per connection, never fatal for the listener
	AcceptErrCode      = 400001
	ReadSocketErrCode  = 400002
	SendErrCode        = 400003
	DispatchErrCode    = 400004
	CloseSocketErrCode = 400005
	PollerCtlErrCode   = 400006
)

// ErrWouldBlock is shared; never call WithErr on it.
var ErrWouldBlock = &MuxErr{msg: "operation would block", code: WouldBlockErrCode}

func NewUnknownErr() *MuxErr {
	return &MuxErr{msg: "unknown error", code: UnknownErrCode}
}

func NewInvalidParamErr() *MuxErr {
	return &MuxErr{msg: "invalid params", code: InvalidParamErrCode}
}

func NewReadConfigErr() *MuxErr {
	return &MuxErr{msg: "read config failed", code: ReadConfigErrCode}
}

func NewAlreadyRegisteredErr() *MuxErr {
	return &MuxErr{msg: "descriptor already registered", code: AlreadyRegisteredErrCode}
}

func NewNotRegisteredErr() *MuxErr {
	return &MuxErr{msg: "descriptor not registered", code: NotRegisteredErrCode}
}

func NewConnClosedErr() *MuxErr {
	return &MuxErr{msg: "connection already closed", code: ConnClosedErrCode}
}

func NewListenerClosedErr() *MuxErr {
	return &MuxErr{msg: "listener already closed", code: ListenerClosedErrCode}
}

func NewSocketErr() *MuxErr {
	return &MuxErr{msg: "setup failed at socket", code: SocketErrCode}
}

func NewSetSockOptErr() *MuxErr {
	return &MuxErr{msg: "setup failed at setsockopt", code: SetSockOptErrCode}
}

func NewSetNonblockErr() *MuxErr {
	return &MuxErr{msg: "setup failed at set nonblock", code: SetNonblockErrCode}
}

func NewBindErr() *MuxErr {
	return &MuxErr{msg: "setup failed at bind", code: BindErrCode}
}

func NewListenErr() *MuxErr {
	return &MuxErr{msg: "setup failed at listen", code: ListenErrCode}
}

func NewPollerCreateErr() *MuxErr {
	return &MuxErr{msg: "setup failed at poller create", code: PollerCreateErrCode}
}

func NewRegisterErr() *MuxErr {
	return &MuxErr{msg: "setup failed at poller register", code: RegisterErrCode}
}

func NewPollErr() *MuxErr {
	return &MuxErr{msg: "poll wait failed", code: PollErrCode}
}

func NewAcceptErr() *MuxErr {
	return &MuxErr{msg: "accept connection failed", code: AcceptErrCode}
}

func NewReadSocketErr() *MuxErr {
	return &MuxErr{msg: "read socket failed", code: ReadSocketErrCode}
}

func NewSendErr() *MuxErr {
	return &MuxErr{msg: "send to socket failed", code: SendErrCode}
}

func NewDispatchErr() *MuxErr {
	return &MuxErr{msg: "dispatch to handler failed", code: DispatchErrCode}
}

func NewCloseSocketErr() *MuxErr {
	return &MuxErr{msg: "close socket failed", code: CloseSocketErrCode}
}

func NewPollerCtlErr() *MuxErr {
	return &MuxErr{msg: "change poller registration failed", code: PollerCtlErrCode}
}
