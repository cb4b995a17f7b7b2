// Package logger builds the process-wide zap logger from the logging.*
// configuration keys. The logging sink is the one piece of global
// state the system allows itself.
package logger

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/r3e-network/faas-trigger-engine/internal/common/config"
)

// New constructs a zap.Logger honoring level, format and optional file
// output. The environment label is attached to every entry.
func New(cfg config.LoggingConfig, environment string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	if environment != "" {
		log = log.With(zap.String("environment", environment))
	}
	return log, nil
}
