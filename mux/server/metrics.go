package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

type MetricsHelper struct {
	registry *prometheus.Registry

	ConnectionAcceptCounter prometheus.Counter // socket accept qps
	AcceptErrorCounter      prometheus.Counter
	ConnectionCloseCounter  prometheus.Counter
	EventCounter            prometheus.Counter
	DispatchErrorCounter    prometheus.Counter
	EchoBytesCounter        prometheus.Counter
	ActiveConnectionGauge   prometheus.Gauge
	BatchSizeHistogram      prometheus.Histogram

	stopPush chan struct{}
	pushOnce sync.Once
}

func NewMetricsHelper() *MetricsHelper {
	mh := &MetricsHelper{
		registry: prometheus.NewRegistry(),
		ConnectionAcceptCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpmux_connection_accept_total",
			Help: "connections accepted",
		}),
		AcceptErrorCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpmux_accept_error_total",
			Help: "failed accept attempts, would-block excluded",
		}),
		ConnectionCloseCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpmux_connection_close_total",
			Help: "connections closed by the dispatcher or a handler",
		}),
		EventCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpmux_event_total",
			Help: "readiness events consumed",
		}),
		DispatchErrorCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpmux_dispatch_error_total",
			Help: "handler invocations that failed",
		}),
		EchoBytesCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpmux_echo_bytes_total",
			Help: "bytes written back by the echo handler",
		}),
		ActiveConnectionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tcpmux_connection_active",
			Help: "connections currently registered",
		}),
		BatchSizeHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tcpmux_batch_size",
			Help:    "events per poll",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		stopPush: make(chan struct{}),
	}

	mh.registry.MustRegister(
		mh.ConnectionAcceptCounter,
		mh.AcceptErrorCounter,
		mh.ConnectionCloseCounter,
		mh.EventCounter,
		mh.DispatchErrorCounter,
		mh.EchoBytesCounter,
		mh.ActiveConnectionGauge,
		mh.BatchSizeHistogram,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return mh
}

func (mh *MetricsHelper) Gatherer() prometheus.Gatherer {
	return mh.registry
}

// Handler serves the registry in the prometheus text format.
func (mh *MetricsHelper) Handler() http.Handler {
	return promhttp.HandlerFor(mh.registry, promhttp.HandlerOpts{})
}

// StartPush pushes the registry to a pushgateway every interval until Stop.
func (mh *MetricsHelper) StartPush(url string, interval time.Duration) {
	if interval <= 0 {
		interval = consts.DefaultPushInterval
	}
	pusher := push.New(url, consts.AppName).Gatherer(mh.registry)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-mh.stopPush:
				return
			case <-ticker.C:
				if err := pusher.Add(); err != nil {
					logs.Warn("prometheus pusher push failed", zap.String("url", url), zap.Error(err))
				}
			}
		}
	}()
}

func (mh *MetricsHelper) Stop() {
	mh.pushOnce.Do(func() {
		close(mh.stopPush)
	})
}
