package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Trinoooo/tcpmux/config"
	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/Trinoooo/tcpmux/mux/server"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	flagPort = &cli.Int64Flag{
		Name:    "port",
		Aliases: []string{"p"},
		Value:   consts.DefaultPort,
		Usage:   "listening port, 0 <= port <= 65535 are available, 0 picks an ephemeral port.",
		Action: func(c *cli.Context, port int64) error {
			if port < 0 || port > consts.MaxPort {
				e := errs.NewInvalidParamErr()
				logs.Error(e.Error(), zap.String(consts.LogFieldParams, "port"), zap.Int64(consts.LogFieldValue, port))
				return e
			}
			return nil
		},
		EnvVars: []string{consts.Port},
	}
	flagWorkers = &cli.Int64Flag{
		Name:    "workers",
		Aliases: []string{"w"},
		Value:   consts.DefaultWorkers,
		Usage:   "number of reactors sharing the port, 1 <= number <= 256 are available.",
		Action: func(c *cli.Context, number int64) error {
			if number < 1 || number > consts.MaxWorkers {
				e := errs.NewInvalidParamErr()
				logs.Error(e.Error(), zap.String(consts.LogFieldParams, "workers"), zap.Int64(consts.LogFieldValue, number))
				return e
			}
			return nil
		},
		EnvVars: []string{consts.Workers},
	}
	flagMaxEvents = &cli.Int64Flag{
		Name:    "max-events",
		Aliases: []string{"e"},
		Value:   consts.DefaultMaxEvents,
		Usage:   "max readiness events returned by one poll.",
		Action: func(c *cli.Context, number int64) error {
			if number < 1 {
				e := errs.NewInvalidParamErr()
				logs.Error(e.Error(), zap.String(consts.LogFieldParams, "max-events"), zap.Int64(consts.LogFieldValue, number))
				return e
			}
			return nil
		},
		EnvVars: []string{consts.MaxEvents},
	}
	flagReadBuffer = &cli.Int64Flag{
		Name:    "read-buffer",
		Aliases: []string{"b"},
		Value:   consts.DefaultReadBufferSize,
		Usage:   "read buffer size of the echo handler, 0 < size <= 1MB are available.",
		Action: func(c *cli.Context, size int64) error {
			if size < 1 || size > consts.MB {
				e := errs.NewInvalidParamErr()
				logs.Error(e.Error(), zap.String(consts.LogFieldParams, "read-buffer"), zap.Int64(consts.LogFieldValue, size))
				return e
			}
			return nil
		},
		EnvVars: []string{consts.ReadBufferSize},
	}
	flagConfig = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "yaml config file, defaults to $HOME/tcpmux/config/config.yaml.",
		EnvVars: []string{consts.ConfigFile},
	}
	flagMetricsAddr = &cli.StringFlag{
		Name:    "metrics-addr",
		Usage:   "serve prometheus metrics on this address, e.g. 127.0.0.1:9100.",
		EnvVars: []string{consts.MetricsAddr},
	}
	flagLogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   consts.DefaultLogLevel,
		Usage:   "debug, info, warn or error.",
		EnvVars: []string{consts.LogLevel},
	}
)

type Wrapper struct {
	app *cli.App
}

func NewWrapper() *Wrapper {
	wrapper := &Wrapper{
		app: &cli.App{
			Name:    consts.AppName,
			Usage:   "an epoll based tcp connection multiplexer, echoes by default",
			Version: consts.AppVersion,
		},
	}
	wrapper.modifyDefaultHelp()
	wrapper.withFlags()
	wrapper.withAction()
	wrapper.withAuthor()
	return wrapper
}

func (wrapper *Wrapper) Run(args []string) error {
	return wrapper.app.Run(args)
}

func (wrapper *Wrapper) modifyDefaultHelp() {
	cli.HelpFlag = &cli.BoolFlag{
		Name: "help",
	}
	cli.AppHelpTemplate = consts.HelpTemplate
}

func (wrapper *Wrapper) withFlags() {
	wrapper.app.Flags = []cli.Flag{
		flagPort,
		flagWorkers,
		flagMaxEvents,
		flagReadBuffer,
		flagConfig,
		flagMetricsAddr,
		flagLogLevel,
	}
}

func (wrapper *Wrapper) withAction() {
	wrapper.app.Action = func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if err = logs.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
		defer logs.Sync()

		srv, err := server.NewServer(cfg, nil)
		if err != nil {
			return err
		}

		metricsSrv := serveMetrics(cfg, srv.Metrics())
		if cfg.MetricsPushURL != "" {
			srv.Metrics().StartPush(cfg.MetricsPushURL, cfg.MetricsPushInterval)
		}

		go func() {
			// 使用缓冲通道避免信号处理前到达的信号被丢弃
			sig := make(chan os.Signal, 5)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			for range sig {
				logs.Info("shutdown...")
				if e := srv.Close(); e != nil {
					logs.Error("server shutdown failed", zap.Error(e))
				}
				if metricsSrv != nil {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					_ = metricsSrv.Shutdown(shutdownCtx)
					cancel()
				}
			}
		}()

		return srv.Serve()
	}
}

func (wrapper *Wrapper) withAuthor() {
	wrapper.app.Authors = []*cli.Author{
		{
			Name:  "Trino",
			Email: "sujun.trinoooo@gmail.com",
		},
	}
}

// loadConfig layers explicitly set flags over the config file and environment.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String(flagConfig.Name))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet(flagPort.Name) {
		cfg.Port = int(ctx.Int64(flagPort.Name))
	}
	if ctx.IsSet(flagWorkers.Name) {
		cfg.Workers = int(ctx.Int64(flagWorkers.Name))
	}
	if ctx.IsSet(flagMaxEvents.Name) {
		cfg.MaxEvents = int(ctx.Int64(flagMaxEvents.Name))
	}
	if ctx.IsSet(flagReadBuffer.Name) {
		cfg.ReadBufferSize = int(ctx.Int64(flagReadBuffer.Name))
	}
	if ctx.IsSet(flagMetricsAddr.Name) {
		cfg.MetricsAddr = ctx.String(flagMetricsAddr.Name)
	}
	if ctx.IsSet(flagLogLevel.Name) {
		cfg.LogLevel = ctx.String(flagLogLevel.Name)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveMetrics(cfg *config.Config, mh *server.MetricsHelper) *http.Server {
	if cfg.MetricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", mh.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logs.Info("metrics server start", zap.String(consts.LogFieldLocal, cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Error("metrics server stop", zap.Error(err))
		}
	}()
	return metricsSrv
}
