package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := &CronLogger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	l.Info("job started", "entry", 1)
	l.Error(errors.New("boom"), "job failed", "entry", 1)

	out := buf.String()
	if !strings.Contains(out, "job started") || !strings.Contains(out, "entry=1") {
		t.Errorf("info line missing: %s", out)
	}
	if !strings.Contains(out, "job failed") || !strings.Contains(out, "error=boom") {
		t.Errorf("error line missing: %s", out)
	}
}
