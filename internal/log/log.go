// Package log configures the global zerolog logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the string form of a zerolog.Level. It implements pflag.Value
// so it can be used directly as a flag.
type LogLevel string

const (
	TRACE    LogLevel = "trace"
	DEBUG    LogLevel = "debug"
	INFO     LogLevel = "info"
	WARN     LogLevel = "warn"
	ERROR    LogLevel = "error"
	DISABLED LogLevel = "disabled"
)

var Levels = []LogLevel{TRACE, DEBUG, INFO, WARN, ERROR, DISABLED}

// LogFile is the file opened by InitWithLogLevel(), if any.
var LogFile *os.File

func (ll LogLevel) String() string {
	return string(ll)
}

func (ll *LogLevel) Set(v string) error {
	level := LogLevel(strings.ToLower(strings.TrimSpace(v)))
	if _, err := level.zerolog(); err != nil {
		return err
	}
	*ll = level
	return nil
}

func (ll LogLevel) Type() string {
	return "LogLevel"
}

func (ll LogLevel) zerolog() (zerolog.Level, error) {
	switch ll {
	case TRACE:
		return zerolog.TraceLevel, nil
	case DEBUG:
		return zerolog.DebugLevel, nil
	case INFO, "":
		return zerolog.InfoLevel, nil
	case WARN:
		return zerolog.WarnLevel, nil
	case ERROR:
		return zerolog.ErrorLevel, nil
	case DISABLED:
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("invalid log level %q (must be one of %v)", string(ll), Levels)
}

// InitWithLogLevel() points the global logger at stderr, and additionally
// at the file at logPath when it is not empty. Both writers drop events
// below logLevel.
func InitWithLogLevel(logLevel LogLevel, logPath string) error {
	return initWithWriter(logLevel, logPath, os.Stderr)
}

func initWithWriter(logLevel LogLevel, logPath string, stderr io.Writer) error {
	level, err := logLevel.zerolog()
	if err != nil {
		return fmt.Errorf("failed to convert log level: %w", err)
	}

	writers := []io.Writer{&zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{Out: stderr, NoColor: true}},
		Level:  level,
	}}
	if logPath != "" {
		Close()
		LogFile, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: LogFile},
			Level:  level,
		})
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

// Close() closes the log file, if one was opened.
func Close() {
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}
