package handle

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Trinoooo/tcpmux/errs"
	"github.com/pkg/errors"
)

// Session is one connection to a tcpmux server. Every line sent is expected
// to come back unchanged.
type Session struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

func Dial(host string, port int64, timeout time.Duration) (*Session, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return nil, errors.Wrap(err, "dial server")
	}
	return &Session{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}, nil
}

// Echo sends line plus a newline and reads back one line.
func (s *Session) Echo(line string) (string, error) {
	// 服务端无响应时，readline 无法响应中断，这里加超时
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", err
	}

	if _, err := io.WriteString(s.conn, line+"\n"); err != nil {
		return "", errs.NewSendErr().WithErr(err)
	}
	resp, err := s.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", errs.NewConnClosedErr()
		}
		return "", errs.NewReadSocketErr().WithErr(err)
	}
	return resp[:len(resp)-1], nil
}

// HalfClose shuts down the write side and returns whatever the server still
// sends before closing.
func (s *Session) HalfClose() (string, error) {
	tcpConn, ok := s.conn.(*net.TCPConn)
	if !ok {
		return "", errs.NewInvalidParamErr()
	}
	if err := tcpConn.CloseWrite(); err != nil {
		return "", err
	}
	_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
	rest, err := io.ReadAll(s.reader)
	return string(rest), err
}

func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Session) Close() error {
	return s.conn.Close()
}
