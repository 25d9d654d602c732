package consts

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
)

// viper keys
const (
	ConfigKeyPort                = "port"
	ConfigKeyWorkers             = "workers"
	ConfigKeyMaxEvents           = "max_events"
	ConfigKeyReadBufferSize      = "read_buffer"
	ConfigKeyLogLevel            = "log_level"
	ConfigKeyMetricsAddr         = "metrics.addr"
	ConfigKeyMetricsPushURL      = "metrics.push_url"
	ConfigKeyMetricsPushInterval = "metrics.push_interval"
)

func init() {
	home, _ := homedir.Dir()
	BaseDir = fmt.Sprintf("%s/tcpmux", home)
	DefaultConfigPath = fmt.Sprintf("%s/config", BaseDir)
}

var (
	BaseDir           string
	DefaultConfigPath string
)
