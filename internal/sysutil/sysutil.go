// Package sysutil sets up process-wide logging for looksd.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SetLogLevel sets the zerolog global level from a config string and returns
// it. "warning" is accepted for warn; blank or unknown values mean info.
func SetLogLevel(lvl string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(lvl))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" || level < zerolog.DebugLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}

// NewLogger builds the process logger tagged with service. pretty selects
// the console writer, otherwise JSON lines go to w (stderr when nil).
func NewLogger(w io.Writer, pretty bool, service string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// PrettyAllowed reports whether console output may be colored. NO_COLOR set
// to a truthy value wins over LOG_PRETTY.
func PrettyAllowed(wantPretty bool, noColor string) bool {
	return wantPretty && !IsTruthy(noColor)
}

// IsTruthy accepts 1, true, yes, y and on in any case.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
