// Package sysutil holds process bootstrap helpers for the server binary:
// global logger setup and small environment readers.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// IsTruthy reports whether an environment variable string should be considered true.
// Accepted values (case-insensitive): "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first non-empty string from a variadic list.
// If all values are empty, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// LogOptions configures InitLogger.
type LogOptions struct {
	Level   string
	Pretty  bool // human-readable console output
	Service string
	Version string
}

// InitLogger installs the global logger and the default context logger, so
// code logging through zerolog.Ctx without a request logger still gets
// service fields. NO_COLOR disables colors in pretty mode.
func InitLogger(w io.Writer, opt LogOptions) zerolog.Logger {
	SetLogLevel(opt.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if opt.Pretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    IsTruthy(os.Getenv("NO_COLOR")),
		}
	}
	l := zerolog.New(w).With().
		Timestamp().
		Str("service", opt.Service).
		Str("version", opt.Version).
		Logger()

	log.Logger = l
	zerolog.DefaultContextLogger = &l
	return l
}

// Version picks the build version: the linker-provided value, then
// APP_VERSION, then "dev".
func Version(linked string) string {
	return strings.TrimSpace(FirstNonEmpty(linked, os.Getenv("APP_VERSION"), "dev"))
}
