package config

import (
	"strings"
	"time"

	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/Trinoooo/tcpmux/logs"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Port           int
	Workers        int
	MaxEvents      int
	ReadBufferSize int
	LogLevel       string

	MetricsAddr         string
	MetricsPushURL      string
	MetricsPushInterval time.Duration
}

func Default() *Config {
	return &Config{
		Port:                consts.DefaultPort,
		Workers:             consts.DefaultWorkers,
		MaxEvents:           consts.DefaultMaxEvents,
		ReadBufferSize:      consts.DefaultReadBufferSize,
		LogLevel:            consts.DefaultLogLevel,
		MetricsPushInterval: consts.DefaultPushInterval,
	}
}

// Load merges defaults, the yaml config file and TCPMUX_* environment
// variables, later sources winning. An empty path means
// $HOME/tcpmux/config/config.yaml, which may be absent; an explicit path must
// exist.
func Load(path string) (*Config, error) {
	v := newViper()

	if path == "" {
		v.AddConfigPath(consts.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			e := errs.NewReadConfigErr().WithErr(err)
			logs.Error(e.Error(), zap.String(consts.LogFieldParams, path))
			return nil, e
		}
		logs.Debug("no config file, use defaults", zap.String(consts.LogFieldValue, consts.DefaultConfigPath))
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(consts.ConfigKeyPort, consts.DefaultPort)
	v.SetDefault(consts.ConfigKeyWorkers, consts.DefaultWorkers)
	v.SetDefault(consts.ConfigKeyMaxEvents, consts.DefaultMaxEvents)
	v.SetDefault(consts.ConfigKeyReadBufferSize, consts.DefaultReadBufferSize)
	v.SetDefault(consts.ConfigKeyLogLevel, consts.DefaultLogLevel)
	v.SetDefault(consts.ConfigKeyMetricsAddr, "")
	v.SetDefault(consts.ConfigKeyMetricsPushURL, "")
	v.SetDefault(consts.ConfigKeyMetricsPushInterval, consts.DefaultPushInterval)

	// metrics.addr -> TCPMUX_METRICS_ADDR
	v.SetEnvPrefix(consts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:                v.GetInt(consts.ConfigKeyPort),
		Workers:             v.GetInt(consts.ConfigKeyWorkers),
		MaxEvents:           v.GetInt(consts.ConfigKeyMaxEvents),
		ReadBufferSize:      v.GetInt(consts.ConfigKeyReadBufferSize),
		LogLevel:            v.GetString(consts.ConfigKeyLogLevel),
		MetricsAddr:         v.GetString(consts.ConfigKeyMetricsAddr),
		MetricsPushURL:      v.GetString(consts.ConfigKeyMetricsPushURL),
		MetricsPushInterval: v.GetDuration(consts.ConfigKeyMetricsPushInterval),
	}
}

// Validate accepts port 0, the kernel then picks an ephemeral port.
func (cfg *Config) Validate() error {
	check := func(ok bool, param string, value int) error {
		if ok {
			return nil
		}
		e := errs.NewInvalidParamErr()
		logs.Error(e.Error(), zap.String(consts.LogFieldParams, param), zap.Int(consts.LogFieldValue, value))
		return e
	}

	if err := check(cfg.Port >= 0 && cfg.Port <= consts.MaxPort, consts.ConfigKeyPort, cfg.Port); err != nil {
		return err
	}
	if err := check(cfg.Workers >= 1 && cfg.Workers <= consts.MaxWorkers, consts.ConfigKeyWorkers, cfg.Workers); err != nil {
		return err
	}
	if err := check(cfg.MaxEvents >= 1, consts.ConfigKeyMaxEvents, cfg.MaxEvents); err != nil {
		return err
	}
	return check(cfg.ReadBufferSize >= 1, consts.ConfigKeyReadBufferSize, cfg.ReadBufferSize)
}
