package main

import (
	"context"
	"testing"
)

func TestFailedRunFlushesTelemetry(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ELEVENLABS_API_KEY", "key")
	t.Setenv("LOG_LEVEL", "error")

	calls := 0
	orig := setupTelemetry
	setupTelemetry = func(context.Context, string, string) (func(context.Context) error, error) {
		return func(context.Context) error {
			calls++
			return nil
		}, nil
	}
	t.Cleanup(func() { setupTelemetry = orig })

	for _, args := range [][]string{
		{"-schedule", "not a schedule"},
		{"-schedule", "0 3 * * *", "-tz", "Nowhere/Nope"},
	} {
		calls = 0
		if code := run(args); code != 1 {
			t.Errorf("run(%v) exit = %d, want 1", args, code)
		}
		if calls != 1 {
			t.Errorf("run(%v) telemetry shutdown calls = %d, want 1", args, calls)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" FF03, ,Nova ,")
	if len(got) != 2 || got[0] != "FF03" || got[1] != "Nova" {
		t.Errorf("splitList = %q", got)
	}
}
