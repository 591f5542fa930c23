// Package log is the process-wide leveled key/value logger.
//
// Call sites pass a message followed by alternating keys and values:
//
//	appLog.Info("session started", "event", ev.ID, "mode", "move")
//	appLog.Error("commit failed", err, "event", ev.ID)
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	}
	return logger
}

// SetOutput redirects log lines to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

func SetLevel(l Level) {
	levelVar.Set(toSlog(l))
}

// ParseLevel maps a config string to a Level. Unknown values yield LevelInfo.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, pairs(kv)...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, pairs(kv)...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, pairs(kv)...)
}

func Error(msg string, err error, kv ...any) {
	// err always leads so it is easy to grep for.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, pairs(extended)...)
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pairs drops a trailing key without a value and any non-string key, so a
// malformed call never produces slog's !BADKEY noise.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}
