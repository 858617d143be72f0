// Package log provides structured logging for interviewlens.
// It wraps logrus with a nested formatter and optional file rotation.
package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Fields are structured key/value pairs attached to a log entry
type Fields = logrus.Fields

// Options configures the global logger
type Options struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `yaml:"file"` // rotated log file; empty disables file output
}

// Init initializes the global logger. Only the first call has an effect.
func Init(opts Options) *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()

		lvl, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		logger.SetLevel(lvl)

		logger.SetFormatter(&formatter.Formatter{
			NoColors:        false,
			TimestampFormat: "02 Jan 06 - 15:04:05",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				funcName := s[len(s)-1]
				return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
			},
		})

		writers := []io.Writer{os.Stderr}
		if opts.File != "" && os.Getenv("APP_ENV") != "test" {
			writers = append(writers, &lumberjack.Logger{
				Filename:   opts.File,
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100,
				MaxAge:     7,
				MaxBackups: 3,
			})
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(true)
	})
	return logger
}

// L returns the global logger, initializing it with defaults if needed
func L() *logrus.Logger {
	return Init(Options{Level: "info"})
}

// Debug logs at debug level
func Debug(fields Fields, msg string) {
	entry(fields).Debug(msg)
}

// Info logs at info level
func Info(fields Fields, msg string) {
	entry(fields).Info(msg)
}

// Warn logs at warn level
func Warn(fields Fields, msg string) {
	entry(fields).Warn(msg)
}

// Error logs at error level
func Error(fields Fields, msg string) {
	entry(fields).Error(msg)
}

func entry(fields Fields) *logrus.Entry {
	if fields == nil {
		fields = Fields{}
	}
	return L().WithFields(fields)
}
