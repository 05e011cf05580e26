package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel converts a config level string to a zerolog level. Unknown
// values fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New builds the process logger. console switches to human-readable output.
// Extra writers (e.g. a log file) receive JSON lines.
func New(out io.Writer, level string, console bool, extra ...io.Writer) zerolog.Logger {
	var primary io.Writer = out
	if console {
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{primary}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}
	var w io.Writer = primary
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// FilePath builds a log file path like <dir>/<name>.20060102_150405.log.
func FilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
