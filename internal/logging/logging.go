package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatAuto    = ""
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures the global logger.
type Options struct {
	Verbosity int    // 0 warn, 1 info, 2 debug, 3+ trace
	Format    string // "", "console" or "json"
	// File is an extra log destination. A bare file name is placed under
	// $XDG_STATE_HOME/domainrouter; "" disables file logging.
	File string
	Out  io.Writer // defaults to os.Stderr
}

// Setup configures the global logger and returns the log file handle, if
// any, so the caller can close it on exit. When the log file cannot be
// opened the console logger is still installed and the error is returned.
func Setup(opt Options) (io.Closer, error) {
	zerolog.SetGlobalLevel(levelFor(opt.Verbosity))

	out := opt.Out
	if out == nil {
		out = os.Stderr
	}

	var console io.Writer = out
	if useConsole(opt.Format, out) {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	writers := []io.Writer{console}
	var file *os.File
	var fileErr error
	if opt.File != "" {
		path, err := LogFilePath(opt.File)
		if err == nil {
			file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		}
		if err != nil {
			fileErr = fmt.Errorf("open log file %q: %w", opt.File, err)
		} else {
			writers = append(writers, file)
		}
	}

	ctx := zerolog.New(io.MultiWriter(writers...)).With().Timestamp()
	if opt.Verbosity >= 2 {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	if fileErr != nil {
		return nopCloser{}, fileErr
	}
	log.Debug().Int("verbosity", opt.Verbosity).Str("file", opt.File).Msg("logger initialized")
	if file == nil {
		return nopCloser{}, nil
	}
	return file, nil
}

func levelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func useConsole(format string, out io.Writer) bool {
	switch format {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// LogFilePath resolves name against the XDG state directory unless it
// already carries a directory component. Parent directories are created.
func LogFilePath(name string) (string, error) {
	if filepath.Base(name) != name {
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return "", err
		}
		return name, nil
	}
	return xdg.StateFile(filepath.Join("domainrouter", name))
}

// Get returns a child of the global logger tagged with component.
func Get(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// LogOperationStart logs the start of an operation and returns a function
// that logs its completion with the elapsed time.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("operation started")
	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("operation completed")
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
