package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Trinoooo/tcpmux/config"
	"github.com/Trinoooo/tcpmux/errs"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

// runLoadConfig 跑一个只带 flag 的 app，拿到合并后的配置
func runLoadConfig(t *testing.T, args ...string) (*config.Config, error) {
	var (
		cfg     *config.Config
		loadErr error
	)
	wrapper := NewWrapper()
	wrapper.app.Action = func(ctx *cli.Context) error {
		cfg, loadErr = loadConfig(ctx)
		return nil
	}
	err := wrapper.Run(append([]string{"tcpmux"}, args...))
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.Nil(t, os.WriteFile(path, []byte("port: 9100\nworkers: 2\nmax_events: 32\n"), 0644))

	cfg, err := runLoadConfig(t, "--config", path, "-p", "9300", "--log-level", "debug")
	assert.Nil(t, err)
	assert.Equal(t, 9300, cfg.Port)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 32, cfg.MaxEvents)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_FlagValidation(t *testing.T) {
	_, err := runLoadConfig(t, "--workers", "0")
	assert.True(t, errs.Is(err, errs.InvalidParamErrCode))

	_, err = runLoadConfig(t, "--port", "70000")
	assert.True(t, errs.Is(err, errs.InvalidParamErrCode))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := runLoadConfig(t, "-c", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, errs.Is(err, errs.ReadConfigErrCode))
}
