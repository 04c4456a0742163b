package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // Human-readable console output on stdout
	File       string // Rotating log file, empty disables file output
	MaxSizeMB  int64
	MaxBackups int
}

// New builds the structured logger. Output goes to stdout and, when a file
// is configured, to a size-rotated log file.
func New(cfg Config) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var stdout io.Writer = os.Stdout
	if cfg.Pretty {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	var closer io.Closer = nopCloser{}
	output := stdout
	if cfg.File != "" {
		rotator := NewRotator(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err := rotator.Open(); err != nil {
			l := zerolog.New(stdout).With().Timestamp().Logger()
			l.Warn().Err(err).Str("file", cfg.File).Msg("Failed to open log file, using stdout only")
		} else {
			// The file always gets JSON lines, regardless of console formatting
			output = zerolog.MultiLevelWriter(stdout, rotator)
			closer = rotator
		}
	}

	l := zerolog.New(output).With().Timestamp().Caller().Logger()
	return l, closer
}

// SetGlobalLogger sets the package-level logger used by helpers that have no
// injected logger.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
