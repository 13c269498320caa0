// Package logging is a small leveled logger driven by a -v count.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"golang.org/x/term"
)

type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	level     atomic.Int32
	verbosity atomic.Int32

	tags = map[Level]string{
		LevelError: color.New(color.FgRed, color.Bold).Sprint("[ERR]"),
		LevelWarn:  color.New(color.FgYellow).Sprint("[WARN]"),
		LevelInfo:  color.New(color.FgCyan).Sprint("[INFO]"),
		LevelDebug: color.New(color.FgHiBlack).Sprint("[DBG]"),
		LevelTrace: color.New(color.FgHiBlack).Sprint("[TRC]"),
	}

	onceMu sync.Mutex
	seen   = map[string]bool{}
)

func init() {
	level.Store(int32(LevelWarn))
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		color.NoColor = true
	}
}

// SetOutput redirects log lines, e.g. away from a full-screen TUI.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetVerbosity maps a -v count (0-4) onto a level.
func SetVerbosity(count int) {
	count = min(max(count, 0), 4)
	verbosity.Store(int32(count))
	switch count {
	case 0:
		level.Store(int32(LevelWarn))
	case 1:
		level.Store(int32(LevelInfo))
	case 2:
		level.Store(int32(LevelDebug))
	default:
		level.Store(int32(LevelTrace))
	}
}

func Verbosity() int {
	return int(verbosity.Load())
}

func CurrentLevel() Level {
	return Level(level.Load())
}

func Enabled(l Level) bool {
	return int32(l) <= level.Load()
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	}
	return "unknown"
}

// ParseLevel returns the level and the -v count that selects it.
func ParseLevel(s string) (Level, int, error) {
	switch strings.ToLower(s) {
	case "error":
		return LevelError, 0, nil
	case "warn", "warning":
		return LevelWarn, 0, nil
	case "info":
		return LevelInfo, 1, nil
	case "debug":
		return LevelDebug, 2, nil
	case "trace":
		return LevelTrace, 4, nil
	}
	return LevelWarn, Verbosity(), fmt.Errorf("logging: unknown level %q", s)
}

func logf(l Level, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	log.Printf("%s %s", tags[l], fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) { logf(LevelError, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }

// WarnOncef logs a warning only the first time key is seen.
func WarnOncef(key, format string, args ...any) {
	onceMu.Lock()
	if seen[key] {
		onceMu.Unlock()
		return
	}
	seen[key] = true
	onceMu.Unlock()
	logf(LevelWarn, format, args...)
}

// ForgetPrefix lets WarnOncef report every key that starts with prefix again.
func ForgetPrefix(prefix string) {
	onceMu.Lock()
	for key := range seen {
		if strings.HasPrefix(key, prefix) {
			delete(seen, key)
		}
	}
	onceMu.Unlock()
}
