package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestMarshalKeepsInsertionOrder(t *testing.T) {
	r := NewRecord().
		Set("zeta", 1).
		Set("alpha", "two").
		Set("mid", 3.5).
		Set("nothing", nil)
	r.Set("zeta", 10)

	data, err := Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	want := "zeta: 10\nalpha: two\nmid: 3.5\nnothing: null\n"
	if string(data) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", data, want)
	}
	if got := r.Keys(); strings.Join(got, ",") != "zeta,alpha,mid,nothing" {
		t.Errorf("Keys = %v", got)
	}
}

func TestMarshalNestedAndQuoting(t *testing.T) {
	inner := NewRecord().Set("b", "x").Set("a", "y")
	r := NewRecord().
		Set("duration_seconds", "12s").
		Set("numeric_string", "123").
		Set("nested", inner).
		Set("list", []string{"eleven_v3", "eleven_flash_v2_5"})

	data, err := Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "nested:\n  b: x\n  a: y\n") {
		t.Errorf("nested record out of order:\n%s", out)
	}
	if !strings.Contains(out, `numeric_string: "123"`) {
		t.Errorf("numeric string not quoted:\n%s", out)
	}

	var back map[string]any
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back["duration_seconds"] != "12s" || back["numeric_string"] != "123" {
		t.Errorf("round trip = %v", back)
	}
}

func TestMarshalDoesNotFoldLongLines(t *testing.T) {
	long := strings.Repeat("word ", 60) + "end"
	data, err := Marshal(NewRecord().Set("text", long))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 1 {
		t.Errorf("long text folded over %d lines:\n%s", got, data)
	}
}

func TestMarshalMultilineLiteral(t *testing.T) {
	ping := "PING host (1.2.3.4)\n64 bytes from 1.2.3.4\n"
	data, err := Marshal(NewRecord().Set("server_ping", ping))
	if err != nil {
		t.Fatal(err)
	}
	want := "server_ping: |\n  PING host (1.2.3.4)\n  64 bytes from 1.2.3.4\n"
	if string(data) != want {
		t.Errorf("Marshal =\n%q\nwant\n%q", data, want)
	}
}

func TestFromJSONKeepsOrder(t *testing.T) {
	node, err := FromJSON([]byte(`{"z":1,"a":{"y":"two","b":[1,2]},"text":"line1\nline2"}`))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(NewRecord().Set("response", node))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	zi, ai := strings.Index(out, "z: 1"), strings.Index(out, "a:")
	if zi < 0 || ai < 0 || zi > ai {
		t.Errorf("json key order lost:\n%s", out)
	}
	if strings.Contains(out, "{") || strings.Contains(out, "[") {
		t.Errorf("flow style leaked:\n%s", out)
	}
	if !strings.Contains(out, "text: |-\n") {
		t.Errorf("multi-line string not literal:\n%s", out)
	}
}

func TestRawJSONKeepsOrder(t *testing.T) {
	raw := json.RawMessage(`{"simulation_specification":{"turns":1},"extra_evaluation_criteria":[],"agent_first":true}`)
	data, err := Marshal(NewRecord().Set("request", raw))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	si := strings.Index(out, "simulation_specification:")
	ei := strings.Index(out, "extra_evaluation_criteria:")
	ai := strings.Index(out, "agent_first: true")
	if si < 0 || ei < 0 || ai < 0 || si > ei || ei > ai {
		t.Errorf("raw json key order lost:\n%s", out)
	}
}

func TestFromJSONInvalid(t *testing.T) {
	if _, err := FromJSON([]byte(`{"a":`)); err == nil {
		t.Error("expected error for truncated json")
	}
	if _, err := FromJSON(nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestWriteBestEffort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0001-x.yaml")
	if !Write(path, NewRecord().Set("ms", 42)) {
		t.Fatal("Write reported failure")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ms: 42\n" {
		t.Errorf("file = %q", data)
	}

	// A path below a regular file cannot be created.
	bad := filepath.Join(path, "nested.yaml")
	if Write(bad, NewRecord().Set("ms", 1)) {
		t.Error("Write reported success for an impossible path")
	}
}
