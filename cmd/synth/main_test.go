package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// recordShutdown replaces the telemetry setup with one whose shutdown
// counts its calls.
func recordShutdown(t *testing.T) *int {
	t.Helper()
	calls := new(int)
	orig := setupTelemetry
	setupTelemetry = func(context.Context, string, string) (func(context.Context) error, error) {
		return func(context.Context) error {
			*calls++
			return nil
		}, nil
	}
	t.Cleanup(func() { setupTelemetry = orig })
	return calls
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("ELEVENLABS_API_KEY", "key")
	t.Setenv("TTS_TEMPLATES_DIR", dir)
	t.Setenv("TTS_JSON_OUT_DIR", filepath.Join(dir, "json"))
	t.Setenv("TTS_CATALOG", filepath.Join(dir, "missing.json"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestFailedRunFlushesTelemetry(t *testing.T) {
	setupEnv(t)
	calls := recordShutdown(t)

	if code := run([]string{"-id", "greeting_hello"}); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if *calls != 1 {
		t.Errorf("telemetry shutdown calls = %d, want 1", *calls)
	}
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t)
	recordShutdown(t)

	if code := run(nil); code != 2 {
		t.Errorf("no mode exit = %d, want 2", code)
	}
	if code := run([]string{"-bogus"}); code != 2 {
		t.Errorf("unknown flag exit = %d, want 2", code)
	}
}

func TestSimulateKeepsRequestOrder(t *testing.T) {
	dir := setupEnv(t)
	calls := recordShutdown(t)

	var sent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sent = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"simulated_conversation":[],"analysis":{"call_successful":"success"}}`))
	}))
	defer server.Close()
	t.Setenv("ELEVENLABS_BASE_URL", server.URL)

	request := `{"simulation_specification":{"simulated_user_config":{"first_message":"Hi"}},"extra_evaluation_criteria":[],"agent_first":true}`
	specPath := filepath.Join(dir, "request.json")
	if err := os.WriteFile(specPath, []byte(request), 0644); err != nil {
		t.Fatal(err)
	}

	if code := run([]string{"-simulate", specPath, "-title", "Call"}); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if *calls != 1 {
		t.Errorf("telemetry shutdown calls = %d, want 1", *calls)
	}
	if sent != request {
		t.Errorf("request body = %s", sent)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "json", "0001-simulate-Call--none-*.yaml"))
	if len(matches) != 1 {
		t.Fatalf("sidecars = %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	block := out[strings.Index(out, "\nrequest:"):]
	si := strings.Index(block, "simulation_specification:")
	ei := strings.Index(block, "extra_evaluation_criteria:")
	ai := strings.Index(block, "agent_first: true")
	if si < 0 || ei < 0 || ai < 0 || si > ei || ei > ai {
		t.Errorf("request keys re-ordered:\n%s", block)
	}
}
