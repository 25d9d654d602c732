package errs

import (
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMuxErr_Error(t *testing.T) {
	e := NewBindErr()
	assert.Equal(t, "[200004] setup failed at bind", e.Error())

	e = NewBindErr().WithErr(syscall.EADDRINUSE)
	assert.Equal(t, "[200004] setup failed at bind => address already in use", e.Error())
	assert.True(t, errors.Is(e, syscall.EADDRINUSE))
}

func TestGetCode(t *testing.T) {
	assert.EqualValues(t, UnknownErrCode, GetCode(nil))
	assert.EqualValues(t, UnknownErrCode, GetCode(syscall.EBADF))
	assert.EqualValues(t, AcceptErrCode, GetCode(NewAcceptErr()))

	// survives a pkg/errors wrap
	wrapped := errors.Wrap(NewSendErr(), "echo")
	assert.EqualValues(t, SendErrCode, GetCode(wrapped))
	assert.True(t, Is(wrapped, SendErrCode))
	assert.False(t, Is(nil, UnknownErrCode))
}

func TestIsSetup(t *testing.T) {
	for _, e := range []*MuxErr{
		NewSocketErr(),
		NewSetSockOptErr(),
		NewSetNonblockErr(),
		NewBindErr(),
		NewListenErr(),
		NewPollerCreateErr(),
		NewRegisterErr(),
	} {
		assert.True(t, IsSetup(e), e.Error())
	}

	assert.False(t, IsSetup(NewPollErr()))
	assert.False(t, IsSetup(NewAcceptErr()))
	// modify/unregister 发生在运行期，不属于 setup
	assert.False(t, IsSetup(NewPollerCtlErr()))
	assert.False(t, IsSetup(nil))
}

func TestIsWouldBlock(t *testing.T) {
	assert.True(t, IsWouldBlock(ErrWouldBlock))
	assert.True(t, IsWouldBlock(errors.Wrap(ErrWouldBlock, "read")))
	assert.False(t, IsWouldBlock(NewReadSocketErr()))
	assert.False(t, IsWouldBlock(nil))
}
