// Package logger builds the zerolog logger shared by every component.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
)

const timeLayout = "2006-01-02 15:04:05"

// New returns a logger writing to stdout. JSON output is meant for log shippers,
// the console form for a terminal.
func New(level string, jsonFormat bool) (zerolog.Logger, error) {
	return NewWithWriter(os.Stdout, level, jsonFormat)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string, jsonFormat bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := w
	if !jsonFormat {
		out = zerolog.ConsoleWriter{
			Out:         w,
			TimeFormat:  timeLayout,
			FormatLevel: formatLevel,
			FormatCaller: func(i interface{}) string {
				s, ok := i.(string)
				if !ok || s == "" {
					return ""
				}
				return term.Yellowf("[%s]", filepath.Base(s))
			},
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger(), nil
}

func formatLevel(i interface{}) string {
	level, _ := i.(string)
	switch level {
	case zerolog.LevelTraceValue:
		return term.Cyanf("[TRC]")
	case zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue:
		return term.Redf("[ERR]")
	case zerolog.LevelFatalValue:
		return term.Redf("[FTL]")
	case zerolog.LevelPanicValue:
		return term.Redf("[PAN]")
	default:
		return term.Whitef("[UNK]")
	}
}
