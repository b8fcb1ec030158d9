package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/tts-catalog/pkg/config"
	"github.com/wachiwi/tts-catalog/pkg/ledger"
	"github.com/wachiwi/tts-catalog/pkg/netdiag"
	"github.com/wachiwi/tts-catalog/pkg/persist"
)

type threeSeconds struct{}

func (threeSeconds) Duration([]byte) (time.Duration, error) { return 3 * time.Second, nil }

type quietProbe struct{}

func (quietProbe) Run(context.Context, string) netdiag.Result {
	return netdiag.Result{Ping: "ok\n", Trace: "ok\n"}
}

// Everything the writers produce with the default configuration must be
// visible through the archive started with the same configuration.
func TestServesDefaultLayout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Chdir(t.TempDir())
	cfg := config.Default()
	ctx := context.Background()

	h := persist.NewHandler(cfg.Ledger())
	h.Inspector = threeSeconds{}
	h.Probe = quietProbe{}

	idx := 0
	for _, dir := range []string{cfg.EntryOutDir("greeting"), cfg.SweepOutDir()} {
		_, err := h.SaveAudio(ctx, persist.Vars{
			Endpoint:   "tts",
			Title:      "Hello",
			Dict:       "alias",
			VoiceAlias: "FF03",
			Models:     cfg.Models,
			LoopIndex:  &idx,
			OutDir:     dir,
			Input:      "Hi",
		}, []byte("mp3"))
		if err != nil {
			t.Fatalf("SaveAudio(%s): %v", dir, err)
		}
	}
	if _, err := h.SaveConversation(ctx, persist.Vars{
		Endpoint:   "simulate",
		Title:      "Call",
		Dict:       "alias",
		JSONOutDir: cfg.JSONOutDir,
	}, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	router := (&Server{Root: cfg.TemplatesDir, Ledger: cfg.Ledger()}).Router()

	var artifacts []Artifact
	if err := json.Unmarshal(get(t, router, "/api/artifacts").Body.Bytes(), &artifacts); err != nil {
		t.Fatal(err)
	}
	kinds := map[string][]string{}
	for _, a := range artifacts {
		kinds[a.Dir] = append(kinds[a.Dir], a.Kind)
	}
	for dir, want := range map[string]int{"greeting/out": 2, "tests/out": 2, "json": 1} {
		if len(kinds[dir]) != want {
			t.Errorf("%s artifacts = %v, want %d (all: %+v)", dir, kinds[dir], want, artifacts)
		}
	}

	for _, a := range artifacts {
		if a.Kind != KindAudio {
			continue
		}
		if w := get(t, router, a.Path); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", a.Path, w.Code)
		}
		if w := get(t, router, "/api/metadata/"+a.Dir+"/"+a.Name); w.Code != http.StatusOK {
			t.Errorf("metadata for %s = %d", a.Name, w.Code)
		}
	}

	var entries []ledger.Entry
	if err := json.Unmarshal(get(t, router, "/api/ledger").Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("ledger = %+v", entries)
	}
}
