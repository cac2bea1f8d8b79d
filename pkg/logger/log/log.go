// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields map[string]interface{}

// Config controls the global logger output.
type Config struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file" yaml:"file"` // empty means stderr only
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() *Config {
	return &Config{Level: "info"}
}

var globalLogger = newLogger(DefaultConfig())

// Init replaces the global logger according to the provided configuration.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	globalLogger = newLogger(cfg)
	return nil
}

func newLogger(cfg *Config) *logrus.Logger {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000",
	})
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
		}
		l.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}
	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// GlobalLogger returns the process-wide logger instance.
func GlobalLogger() *logrus.Logger {
	return globalLogger
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields Fields) *logrus.Entry {
	return globalLogger.WithFields(logrus.Fields(fields))
}

func Trace(args ...interface{}) {
	globalLogger.Trace(args...)
}

func Tracef(template string, args ...interface{}) {
	globalLogger.Tracef(template, args...)
}

func Debug(args ...interface{}) {
	globalLogger.Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	globalLogger.Debugf(template, args...)
}

func Info(args ...interface{}) {
	globalLogger.Info(args...)
}

func Infof(template string, args ...interface{}) {
	globalLogger.Infof(template, args...)
}

func Warn(args ...interface{}) {
	globalLogger.Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	globalLogger.Warnf(template, args...)
}

func Error(args ...interface{}) {
	globalLogger.Error(args...)
}

func Errorf(template string, args ...interface{}) {
	globalLogger.Errorf(template, args...)
}

func Fatal(args ...interface{}) {
	globalLogger.Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	globalLogger.Fatalf(template, args...)
	os.Exit(1)
}
