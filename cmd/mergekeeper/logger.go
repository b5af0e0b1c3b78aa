package main

import (
	"context"
	"fmt"
	"os"

	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/mergekeeper/internal/cfg"
)

// Logs are written to stderr, stdout is reserved for command output like
// tables.

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	encCfg := zap.NewProductionEncoderConfig()

	encCfg.LevelKey = "loglevel"
	encCfg.TimeKey = config.LogTimeKey
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	return encCfg
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	return zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(zapEncoderConfig(config)),
		zapcore.Lock(os.Stderr),
		logLevel),
	)
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.Sampling = nil
	zcfg.EncoderConfig = zapEncoderConfig(config)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.Encoding = config.LogFormat
	zcfg.Level = zap.NewAtomicLevelAt(logLevel)

	l, err := zcfg.Build()
	exitOnErr("could not initialize logger", err)

	return l
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)
	loggerInitialized = true

	goodbye.Register(func(context.Context, os.Signal) {
		// syncing stderr fails with EINVAL on some platforms, the error
		// is not actionable
		_ = logger.Sync()
	})
}
