package obs

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	l := newLogger(os.Stdout, "json")
	logger.Store(&l)
}

// Logger returns the shared structured logger used across the service.
func Logger() *zerolog.Logger {
	return logger.Load()
}

// SetLogger replaces the shared logger and returns a function restoring the previous one.
func SetLogger(l zerolog.Logger) (restore func()) {
	prev := logger.Swap(&l)
	return func() { logger.Store(prev) }
}

// NewWriterLogger builds a JSON logger writing to w. Mostly useful in tests.
func NewWriterLogger(w io.Writer) zerolog.Logger {
	return newLogger(w, "json")
}

// Configure sets the global level and output format ("json" or "console").
func Configure(level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	l := newLogger(os.Stdout, format)
	logger.Store(&l)
	return nil
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", level)
	}
}

func newLogger(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("service", "plaza").Logger()
}

// Dict starts a nested field group for structured entries.
func Dict() *zerolog.Event {
	return zerolog.Dict()
}
