package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestInfoWritesKeyValues(t *testing.T) {
	buf := capture(t)
	SetLevel(LevelInfo)

	Info("session started", "event", "ev-1", "mode", "move")

	out := buf.String()
	for _, want := range []string{"session started", "event=ev-1", "mode=move", "level=INFO"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	buf := capture(t)
	SetLevel(LevelInfo)

	Debug("tick", "n", 1)
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}

	SetLevel(LevelDebug)
	Debug("tick", "n", 2)
	if !strings.Contains(buf.String(), "n=2") {
		t.Fatalf("debug line missing at debug level: %q", buf.String())
	}
}

func TestErrorLeadsWithErr(t *testing.T) {
	buf := capture(t)

	Error("commit failed", errors.New("disk full"), "event", "ev-2")

	out := buf.String()
	if !strings.Contains(out, `err="disk full"`) {
		t.Fatalf("output %q missing err", out)
	}
	if strings.Index(out, "err=") > strings.Index(out, "event=") {
		t.Fatalf("err should precede other keys: %q", out)
	}
}

func TestOddAndNonStringKeysDropped(t *testing.T) {
	buf := capture(t)

	Info("odd", "a", 1, 42, "x", "dangling")

	out := buf.String()
	if strings.Contains(out, "BADKEY") {
		t.Fatalf("malformed pairs leaked: %q", out)
	}
	if !strings.Contains(out, "a=1") {
		t.Fatalf("valid pair dropped: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
