package server

import (
	"bytes"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/mux/connections"
	"github.com/Trinoooo/tcpmux/mux/poller"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// failingPoller 包一层 epoll，fail 置位后 Wait 返回错误
type failingPoller struct {
	poller.Poller
	fail atomic.Bool
}

func (fp *failingPoller) Wait(events []poller.Pevent) (int, error) {
	if fp.fail.Load() {
		return 0, errs.NewPollErr().WithErr(unix.EIO)
	}
	return fp.Poller.Wait(events)
}

func listenFailing(t *testing.T) (*connections.Listener, *failingPoller) {
	var fp *failingPoller
	opts := connections.NewOptions().SetPollerBuilder(func(maxEvents int) (poller.Poller, error) {
		ep, err := poller.NewEpollPoller(maxEvents)
		if err != nil {
			return nil, err
		}
		fp = &failingPoller{Poller: ep}
		return fp, nil
	})
	l, err := connections.Listen(0, opts)
	require.Nil(t, err)
	return l, fp
}

// runEcho runs an echo reactor on l in the background.
func runEcho(t *testing.T, l *connections.Listener, metrics *MetricsHelper) (*Reactor, chan error) {
	r := NewReactor(0, l, NewEchoHandler(0, metrics), metrics)
	ran := make(chan error, 1)
	go func() {
		ran <- r.Run()
	}()
	return r, ran
}

func TestReactor_PollFailure(t *testing.T) {
	l, fp := listenFailing(t)
	metrics := NewMetricsHelper()
	r, ran := runEcho(t, l, metrics)

	conn := dial(t, l.Port())
	_, err := conn.Write([]byte("a"))
	assert.Nil(t, err)
	_, err = io.ReadFull(conn, make([]byte, 1))
	assert.Nil(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveConnectionGauge))

	fp.fail.Store(true)
	require.Nil(t, fp.Poller.Wake())

	select {
	case err = <-ran:
		assert.True(t, errs.Is(err, errs.PollErrCode))
	case <-time.After(waitFor):
		t.Fatal("reactor did not stop")
	}

	// 存活的连接被关闭并计入指标
	assert.True(t, l.Closed())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.ActiveConnectionGauge))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ConnectionCloseCounter))
	_, err = io.ReadAll(conn)
	assert.Nil(t, err)

	assert.Nil(t, r.Stop())
	assert.True(t, errs.Is(fp.Poller.Wake(), errs.PollErrCode))
}

// poll 失败退出与并发的 Stop 竞争，Stop 不会碰到已释放的 wake fd
func TestReactor_PollFailureRacesStop(t *testing.T) {
	for i := 0; i < 20; i++ {
		l, fp := listenFailing(t)
		r, ran := runEcho(t, l, nil)

		fp.fail.Store(true)
		require.Nil(t, fp.Poller.Wake())

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.Nil(t, r.Stop())
			}()
		}
		wg.Wait()

		select {
		case err := <-ran:
			// 先看到 stop 请求则正常退出
			if err != nil {
				assert.True(t, errs.Is(err, errs.PollErrCode))
			}
		case <-time.After(waitFor):
			t.Fatal("reactor did not stop")
		}
		assert.True(t, l.Closed())
	}
}

// Error/HangUp 且不可读的事件不交给 handler，reactor 直接关闭连接
func TestReactor_BrokenWithoutData(t *testing.T) {
	l, err := connections.Listen(0, nil)
	require.Nil(t, err)

	metrics := NewMetricsHelper()
	handled := 0
	r := NewReactor(0, l, HandlerFunc(func(conn *connections.Connection) {
		handled++
	}), metrics)
	defer r.Stop()

	var accepted []*connections.Connection
	r.OnConnect(func(conn *connections.Connection) {
		accepted = append(accepted, conn)
	})

	dial(t, l.Port())
	dial(t, l.Port())
	require.Eventually(t, func() bool {
		r.acceptAll()
		return len(accepted) == 2
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ActiveConnectionGauge))

	broken, alive := accepted[0], accepted[1]
	stop := r.dispatchBatch(poller.Batch{
		{Tag: broken.Tag(), Flag: poller.FlagHangUp | poller.FlagError},
		// 同一批次里已关闭连接的旧事件被跳过
		{Tag: broken.Tag(), Flag: poller.FlagReadable},
		{Tag: alive.Tag(), Flag: poller.FlagHangUp | poller.FlagReadable},
	})
	assert.False(t, stop)
	assert.True(t, broken.Closed())
	assert.False(t, alive.Closed())
	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ConnectionCloseCounter))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveConnectionGauge))
}

// 客户端 SO_LINGER=0 关闭发送 RST，连接被回收
func TestServer_Reset(t *testing.T) {
	srv := startServer(t, testConfig(1), nil)

	conn := dial(t, srv.Port())
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(srv.Metrics().ActiveConnectionGauge) == 1
	}, waitFor, 10*time.Millisecond)

	assert.Nil(t, conn.SetLinger(0))
	assert.Nil(t, conn.Close())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(srv.Metrics().ActiveConnectionGauge) == 0
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(srv.Metrics().ConnectionCloseCounter))
}

// 客户端只写不读：积压超过 maxPendingBytes 后 handler 停止读取，
// 客户端开始读之后由 Writable 事件继续，数据完整且有序
func TestServer_EchoBackPressure(t *testing.T) {
	echo := NewEchoHandler(0, nil)
	t.Cleanup(func() {
		_ = echo.Close()
	})
	var saturated atomic.Bool
	builder := func(worker int) Handler {
		return HandlerFunc(func(conn *connections.Connection) {
			echo.Handle(conn)
			if !conn.Closed() && echo.saturated(conn) {
				saturated.Store(true)
			}
		})
	}
	srv := startServer(t, testConfig(1), builder)

	conn := dial(t, srv.Port())
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	assert.Nil(t, conn.SetReadBuffer(4096))

	data := make([]byte, 6*maxPendingBytes)
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(data)
	written := make(chan error, 1)
	go func() {
		_, err := conn.Write(data)
		written <- err
	}()

	assert.Eventually(t, saturated.Load, 10*time.Second, 10*time.Millisecond)

	got := make([]byte, len(data))
	_, err := io.ReadFull(conn, got)
	assert.Nil(t, err)
	assert.Nil(t, <-written)
	assert.True(t, bytes.Equal(data, got))
}
