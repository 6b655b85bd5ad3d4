// Package logging constructs the gateway's structured logger: zap under the
// hood, exposed through log/slog so every other package only ever imports
// the standard library's logging interface.
package logging

import (
	"log/slog"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New builds a slog.Logger backed by zap, tagged with component ("gateway"
// or "sequencer" in this repo; ipc-cleanup only prints errors to stderr) so
// multi-process log aggregation can tell the binaries apart. isProd selects JSON output
// with ISO8601 timestamps over the colorized, human-readable console
// encoder. The returned func flushes buffered log entries and should run on
// shutdown.
func New(isProd bool, component string) (*slog.Logger, func() error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Development:      !isProd,
		Encoding:         "json",
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if !isProd {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.Kitchen)
	}

	zapLogger := zap.Must(cfg.Build()).With(zap.String("component", component))
	return slog.New(zapslog.NewHandler(zapLogger.Core())), zapLogger.Sync
}
