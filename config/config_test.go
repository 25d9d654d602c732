package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Trinoooo/tcpmux/consts"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, consts.DefaultPort, cfg.Port)
	assert.Equal(t, consts.DefaultWorkers, cfg.Workers)
	assert.Nil(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`port: 9100
workers: 3
max_events: 128
read_buffer: 1024
log_level: debug
metrics:
  addr: 127.0.0.1:9101
  push_interval: 10s
`)
	assert.Nil(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	assert.Nil(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 128, cfg.MaxEvents)
	assert.Equal(t, 1024, cfg.ReadBufferSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9101", cfg.MetricsAddr)
	assert.Equal(t, "", cfg.MetricsPushURL)
	assert.Equal(t, 10*time.Second, cfg.MetricsPushInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.Nil(t, os.WriteFile(path, []byte("port: 9100\n"), 0644))

	t.Setenv(consts.Port, "9200")
	t.Setenv(consts.MetricsPushURL, "http://127.0.0.1:9091")

	cfg, err := Load(path)
	assert.Nil(t, err)
	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, "http://127.0.0.1:9091", cfg.MetricsPushURL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errs.Is(err, errs.ReadConfigErrCode))
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.Nil(t, os.WriteFile(path, []byte("workers: 0\n"), 0644))

	_, err := Load(path)
	assert.True(t, errs.Is(err, errs.InvalidParamErrCode))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(cfg *Config)
		valid  bool
	}{
		{"ephemeral port", func(cfg *Config) { cfg.Port = 0 }, true},
		{"port too large", func(cfg *Config) { cfg.Port = consts.MaxPort + 1 }, false},
		{"negative port", func(cfg *Config) { cfg.Port = -1 }, false},
		{"no workers", func(cfg *Config) { cfg.Workers = 0 }, false},
		{"too many workers", func(cfg *Config) { cfg.Workers = consts.MaxWorkers + 1 }, false},
		{"no events", func(cfg *Config) { cfg.MaxEvents = 0 }, false},
		{"no read buffer", func(cfg *Config) { cfg.ReadBufferSize = 0 }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.valid {
				assert.Nil(t, err)
			} else {
				assert.True(t, errs.Is(err, errs.InvalidParamErrCode))
			}
		})
	}
}
