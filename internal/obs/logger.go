// Package obs builds the structured logger shared by both services.
package obs

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// atomicLevel is the logger's dynamically adjustable level. Initialized
// eagerly so SetLevel is safe to call before Build (e.g. from a config
// watcher that starts before the logger does).
var atomicLevel = zap.NewAtomicLevel()

// Config controls the logger's encoding and verbosity.
type Config struct {
	Level    string // debug, info, warn, error
	Encoding string // json or console
}

// Build constructs a zap.Logger with two cores: everything below error goes
// to stdout, error and above go to stderr only.
func Build(cfg Config) *zap.Logger {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	t, err := zap.ParseAtomicLevel(level)
	if err != nil {
		log.Fatalf("couldn't parse logger level %q: %v", level, err)
	}
	atomicLevel = t

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.SecondsDurationEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return atomicLevel.Enabled(lvl) && lvl < zapcore.ErrorLevel
	})

	infoCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lowPriority)
	errorCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), highPriority)

	logger := zap.New(zapcore.NewTee(infoCore, errorCore), zap.AddCaller())
	return logger
}

// SetLevel changes the logger's verbosity at runtime.
func SetLevel(level string) error {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	atomicLevel.SetLevel(l)
	return nil
}
