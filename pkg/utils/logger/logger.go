// Package logger builds the zerolog logger shared by the commands.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger with timestamps at the given level. Unknown
// levels fall back to info.
func New(level string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}).
		Level(lvl).
		With().Timestamp().Logger()
}
