package handle

import (
	"testing"
	"time"

	"github.com/Trinoooo/tcpmux/config"
	"github.com/Trinoooo/tcpmux/mux/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T) *server.Server {
	cfg := config.Default()
	cfg.Port = 0
	srv, err := server.NewServer(cfg, nil)
	require.Nil(t, err)

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve()
	}()
	t.Cleanup(func() {
		_ = srv.Close()
		<-served
	})
	return srv
}

func TestSession_Echo(t *testing.T) {
	srv := startEchoServer(t)

	s, err := Dial("127.0.0.1", int64(srv.Port()), time.Second)
	require.Nil(t, err)
	defer s.Close()

	for _, line := range []string{"ping", "hello world", ""} {
		resp, err := s.Echo(line)
		assert.Nil(t, err)
		assert.Equal(t, line, resp)
	}
}

func TestSession_HalfClose(t *testing.T) {
	srv := startEchoServer(t)

	s, err := Dial("127.0.0.1", int64(srv.Port()), time.Second)
	require.Nil(t, err)
	defer s.Close()

	resp, err := s.Echo("before")
	assert.Nil(t, err)
	assert.Equal(t, "before", resp)

	rest, err := s.HalfClose()
	assert.Nil(t, err)
	assert.Equal(t, "", rest)
}

func TestDial_Refused(t *testing.T) {
	srv := startEchoServer(t)
	port := srv.Port()
	assert.Nil(t, srv.Close())

	assert.Eventually(t, func() bool {
		_, err := Dial("127.0.0.1", int64(port), 100*time.Millisecond)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
