package internal

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents different logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// ParseLogLevel maps the LOG_LEVEL vocabulary onto LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelTrace:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a structured logger writing to w at the specified level.
// Console output is human readable; anything else is JSON lines.
func NewLogger(level LogLevel, w io.Writer, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
}

// NewDefaultLogger creates a logger based on the LOG_LEVEL and LOG_FORMAT environment variables
func NewDefaultLogger() zerolog.Logger {
	level := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	console := strings.EqualFold(os.Getenv("LOG_FORMAT"), "console")
	return NewLogger(level, os.Stderr, console)
}

// Global logger instance
var DefaultLogger = NewDefaultLogger()
