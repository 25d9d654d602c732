package logs

import (
	"github.com/Trinoooo/tcpmux/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger, level = newLogger()

func newLogger() (*zap.Logger, zap.AtomicLevel) {
	var cfg zap.Config
	if utils.IsTest() {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return logger, cfg.Level
}

// SetLevel changes the level of every logger derived from Logger.
func SetLevel(lvl string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

func Enabled(lvl zapcore.Level) bool {
	return level.Enabled(lvl)
}

func Sync() {
	_ = Logger.Sync()
}
