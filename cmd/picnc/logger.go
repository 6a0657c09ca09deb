package main

import (
	"fmt"

	"go.uber.org/zap"

	"picnc/config"
)

// newLogger builds the logger from the logging section. level, when not
// empty, overrides the configured level.
func newLogger(cfg config.LoggingConfig, level string) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	if level == "" {
		level = cfg.Level
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc.Level = lvl

	out := cfg.OutputPath
	if out == "" {
		out = "stdout"
	}
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
