// Package logging configures Logrus for the patternminer binaries: file and
// line info relative to the repository root, UTC timestamps with subsecond
// precision and a level taken from configuration.
package logging

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options control the logger. The zero value logs at info level to the
// standard logger.
type Options struct {
	// Level is a logrus level name such as "debug" or "warn".
	Level string

	// If true, the logger will highlight some output with ANSI colors. This
	// may be overridden by setting the environment variable "CLICOLOR_FORCE".
	ForceColors bool

	// If not nil, this will set up the given logger instead of
	// logrus.StandardLogger(). Used by tests.
	Logger *logrus.Logger
}

// Configure sets up the logger. It is safe to call more than once, but not
// concurrently.
func Configure(opts Options) error {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	opts.Logger.SetLevel(level)
	opts.Logger.SetReportCaller(true)
	opts.Logger.ReplaceHooks(make(logrus.LevelHooks))
	opts.Logger.AddHook(utcHook{})
	opts.Logger.AddHook(newFilenameHook())
	opts.Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:             true,
		TimestampFormat:           "2006-01-02 15:04:05.000000 MST",
		ForceColors:               opts.ForceColors,
		EnvironmentOverrideColors: true,
	})
	opts.Logger.WithFields(logrus.Fields{
		"level":       level.String(),
		"forceColors": opts.ForceColors,
	}).Debug("Initialized Logrus")
	return nil
}

// utcHook converts entry timestamps to UTC.
type utcHook struct{}

func (utcHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (utcHook) Fire(entry *logrus.Entry) error {
	entry.Time = entry.Time.UTC()
	return nil
}

// filenameHook strips the path up to the repository root from caller file
// names.
type filenameHook struct {
	prefix string
}

func newFilenameHook() filenameHook {
	_, file, _, ok := runtime.Caller(0)
	localPath := "pkg/logging/logging.go"
	if !ok || !strings.HasSuffix(file, localPath) {
		return filenameHook{}
	}
	return filenameHook{prefix: file[:len(file)-len(localPath)]}
}

func (hook filenameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook filenameHook) Fire(entry *logrus.Entry) error {
	if entry.HasCaller() && hook.prefix != "" {
		entry.Caller.File = strings.TrimPrefix(entry.Caller.File, hook.prefix)
	}
	return nil
}
