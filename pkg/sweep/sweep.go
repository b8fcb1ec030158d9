// Package sweep synthesizes one text across a set of voices and models,
// persisting every result, to compare voices side by side.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/elevenlabs"
	"github.com/wachiwi/tts-catalog/pkg/persist"
	"github.com/wachiwi/tts-catalog/pkg/voice"
)

// DefaultText is a Portuguese tongue-twister that exercises pacing and
// sibilants.
const DefaultText = "Você conhece a Prudential? Já é cliente? Num ninho de mafagafos há sete mafagafinhos. " +
	"Quando a mafagafa gafa, gafam os sete mafagafinhos. Trazei três pratos de trigo para três tigres tristes comerem. " +
	"A aranha arranha a rã. A rã arranha a aranha. Nem a aranha arranha a rã. Nem a rã arranha a aranha. " +
	"O tempo perguntou ao tempo quanto tempo o tempo tem, o tempo respondeu ao tempo que o tempo tem o tempo que o tempo tem. " +
	"Se percebeste, percebeste. Se não percebeste, faz que percebeste para que eu perceba que tu percebeste. Percebeste?"

// DefaultAliases are the voices compared by a plain voice test.
var DefaultAliases = []string{
	"Will", "HopeUC", "Leo", "Nassim", "Fernando", "Jerry", "Krishna", "Jeff",
	"Anika", "Alex Wright", "Saira", "Leon", "Peter", "Arthur", "HopeCT",
}

// DefaultDelay separates consecutive API calls.
const DefaultDelay = 100 * time.Millisecond

type Synthesizer interface {
	TextToSpeech(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) ([]byte, error)
	DeleteVoice(ctx context.Context, voiceID string) error
}

type Saver interface {
	SaveAudio(ctx context.Context, v persist.Vars, body []byte) (persist.Result, error)
}

// Job describes one sweep.
type Job struct {
	Endpoint string
	Title    string
	Dict     string
	Input    string
	Aliases  []string
	Models   []string
	Settings elevenlabs.VoiceSettings
	OutDir   string
	RunID    string
}

// DefaultJob is the voice test: DefaultText over DefaultAliases and models.
func DefaultJob(models []string, outDir string) Job {
	return Job{
		Endpoint: "tts",
		Title:    "test_voices",
		Dict:     "alias",
		Input:    DefaultText,
		Aliases:  DefaultAliases,
		Models:   models,
		Settings: elevenlabs.VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75, Speed: 1, Style: 0},
		OutDir:   outDir,
	}
}

// EntryJob synthesizes a catalog entry with its own voice and models.
func EntryJob(e catalog.Entry, outDir string) Job {
	return Job{
		Endpoint: "tts",
		Title:    e.Title,
		Dict:     "alias",
		Input:    e.Text(),
		Aliases:  []string{e.Voice.Alias},
		Models:   e.Models,
		Settings: elevenlabs.VoiceSettings{
			Stability:       e.Voice.Stability,
			SimilarityBoost: e.Voice.SimilarityBoost,
			Speed:           e.Voice.Speed,
			Style:           e.Voice.Style,
		},
		OutDir: outDir,
	}
}

type Summary struct {
	Total   int
	Success int
	Failed  int
}

type Runner struct {
	Client Synthesizer
	Saver  Saver
	Voices voice.Registry
	Delay  time.Duration
	// DeleteAfterUse removes each voice from the account once all its
	// models are done. Never enable it for custom voices you want to keep.
	DeleteAfterUse bool
}

// Run walks aliases then models sequentially. Individual failures are
// logged and counted; only context cancellation stops the sweep early.
func (r *Runner) Run(ctx context.Context, job Job) (Summary, error) {
	var sum Summary
	planned := len(job.Aliases) * len(job.Models)
	slog.Info("Starting sweep", "title", job.Title, "requests", planned, "run_id", job.RunID)

	for _, alias := range job.Aliases {
		sel, err := voice.NewSelector(r.Voices, alias)
		if err != nil {
			slog.Error("Skipping voice", "voice", alias, "error", err)
			sum.Total += len(job.Models)
			sum.Failed += len(job.Models)
			continue
		}

		for i := range job.Models {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			sum.Total++
			if err := r.one(ctx, job, sel, i); err != nil {
				sum.Failed++
				slog.Error("Request failed", "n", sum.Total, "of", planned, "voice", alias, "model", job.Models[i], "error", err)
				continue
			}
			sum.Success++
			slog.Info("Request done", "n", sum.Total, "of", planned, "voice", alias, "model", job.Models[i])

			if err := sleep(ctx, r.Delay); err != nil {
				return sum, err
			}
		}

		if r.DeleteAfterUse {
			if err := r.Client.DeleteVoice(ctx, sel.ID()); err != nil {
				slog.Error("Failed to delete voice", "voice", alias, "error", err)
			} else {
				slog.Info("Deleted voice", "voice", alias)
			}
		}
	}

	slog.Info("Sweep summary", "total", sum.Total, "success", sum.Success, "failed", sum.Failed)
	return sum, nil
}

func (r *Runner) one(ctx context.Context, job Job, sel *voice.Selector, i int) error {
	start := time.Now()
	audio, err := r.Client.TextToSpeech(ctx, sel.ID(), elevenlabs.TextToSpeechRequest{
		Text:          job.Input,
		ModelID:       job.Models[i],
		VoiceSettings: job.Settings,
	})
	if err != nil {
		return err
	}

	idx := i
	_, err = r.Saver.SaveAudio(ctx, persist.Vars{
		Endpoint:        job.Endpoint,
		Title:           job.Title,
		Dict:            job.Dict,
		VoiceAlias:      sel.Alias(),
		Models:          job.Models,
		LoopIndex:       &idx,
		OutDir:          job.OutDir,
		Stability:       job.Settings.Stability,
		SimilarityBoost: job.Settings.SimilarityBoost,
		Speed:           job.Settings.Speed,
		Style:           job.Settings.Style,
		Input:           job.Input,
		RequestStart:    start,
		RunID:           job.RunID,
	}, audio)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
