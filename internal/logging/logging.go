// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the log level and output format.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json; console falls back to json off a terminal
	Debug  bool   // forces debug level
	Out    io.Writer
}

// Setup installs the global logger.
func Setup(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	if opts.Debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	if useConsole(opts.Format, out) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}
	return nil
}

func parseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
}

func useConsole(format string, out io.Writer) bool {
	if strings.EqualFold(format, "json") {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return true
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
