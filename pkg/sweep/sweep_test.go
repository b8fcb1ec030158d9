package sweep

import (
	"context"
	"errors"
	"testing"

	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/elevenlabs"
	"github.com/wachiwi/tts-catalog/pkg/persist"
	"github.com/wachiwi/tts-catalog/pkg/voice"
)

type fakeClient struct {
	calls   []string
	deleted []string
	fail    map[string]bool
	cancel  context.CancelFunc
}

func (f *fakeClient) TextToSpeech(_ context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) ([]byte, error) {
	f.calls = append(f.calls, voiceID+"/"+req.ModelID)
	if f.cancel != nil && len(f.calls) == 2 {
		f.cancel()
	}
	if f.fail[req.ModelID] {
		return nil, &elevenlabs.StatusError{StatusCode: 500, Body: "boom"}
	}
	return []byte("audio"), nil
}

func (f *fakeClient) DeleteVoice(_ context.Context, voiceID string) error {
	f.deleted = append(f.deleted, voiceID)
	return errors.New("delete refused")
}

type fakeSaver struct {
	saved []persist.Vars
}

func (f *fakeSaver) SaveAudio(_ context.Context, v persist.Vars, _ []byte) (persist.Result, error) {
	f.saved = append(f.saved, v)
	return persist.Result{}, nil
}

func testRegistry() voice.Registry {
	return voice.NewRegistry(map[string]string{"A": "id-a", "B": "id-b"})
}

func TestRunSweep(t *testing.T) {
	client := &fakeClient{fail: map[string]bool{"m2": true}}
	saver := &fakeSaver{}
	r := &Runner{Client: client, Saver: saver, Voices: testRegistry()}

	job := Job{Endpoint: "tts", Title: "t", Dict: "alias", Input: "hi", Aliases: []string{"A", "Missing", "B"}, Models: []string{"m1", "m2"}, OutDir: t.TempDir(), RunID: "r1"}
	sum, err := r.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 6 || sum.Success != 2 || sum.Failed != 4 {
		t.Errorf("summary = %+v", sum)
	}
	want := []string{"id-a/m1", "id-a/m2", "id-b/m1", "id-b/m2"}
	if len(client.calls) != len(want) {
		t.Fatalf("calls = %v", client.calls)
	}
	for i := range want {
		if client.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, client.calls[i], want[i])
		}
	}
	if len(saver.saved) != 2 {
		t.Fatalf("saved = %d", len(saver.saved))
	}
	v := saver.saved[1]
	if v.VoiceAlias != "B" || v.LoopIndex == nil || *v.LoopIndex != 0 || v.Models[*v.LoopIndex] != "m1" || v.RunID != "r1" {
		t.Errorf("vars = %+v", v)
	}
	if len(client.deleted) != 0 {
		t.Errorf("voices deleted without DeleteAfterUse: %v", client.deleted)
	}
}

func TestRunDeleteAfterUseContinuesOnError(t *testing.T) {
	client := &fakeClient{}
	r := &Runner{Client: client, Saver: &fakeSaver{}, Voices: testRegistry(), DeleteAfterUse: true}

	sum, err := r.Run(context.Background(), Job{Aliases: []string{"A", "B"}, Models: []string{"m1"}})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Success != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if len(client.deleted) != 2 || client.deleted[0] != "id-a" || client.deleted[1] != "id-b" {
		t.Errorf("deleted = %v", client.deleted)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeClient{cancel: cancel}
	r := &Runner{Client: client, Saver: &fakeSaver{}, Voices: testRegistry(), Delay: DefaultDelay}

	sum, err := r.Run(ctx, Job{Aliases: []string{"A", "B"}, Models: []string{"m1", "m2"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(client.calls) != 2 || sum.Total != 2 {
		t.Errorf("calls = %v, summary = %+v", client.calls, sum)
	}
}

func TestEntryJob(t *testing.T) {
	e := catalog.Entry{
		Category:  "greeting",
		Title:     "Hello",
		Input:     "Hi {{name}}",
		Voice:     catalog.VoiceSpec{Alias: "FF03", Stability: 0.4, SimilarityBoost: 0.8, Speed: 1.1, Style: 0.2},
		Models:    []string{"eleven_v3"},
		Variables: map[string]string{"name": "Ana"},
	}
	job := EntryJob(e, "out")
	if job.Input != "Hi Ana" || job.Aliases[0] != "FF03" || job.Settings.Speed != 1.1 || job.Title != "Hello" {
		t.Errorf("job = %+v", job)
	}

	d := DefaultJob(catalog.AvailableModels, "out")
	if len(d.Aliases) != len(DefaultAliases) || d.Settings.SimilarityBoost != 0.75 {
		t.Errorf("default job = %+v", d)
	}
	reg := voice.NewRegistry(voice.Defaults())
	for _, a := range DefaultAliases {
		if _, ok := reg.Lookup(a); !ok {
			t.Errorf("default alias %q not registered", a)
		}
	}
}
