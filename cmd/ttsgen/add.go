package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/config"
	"github.com/wachiwi/tts-catalog/pkg/voice"
)

// varsFlag collects repeated -var name=value flags.
type varsFlag map[string]string

func (v varsFlag) String() string {
	pairs := make([]string, 0, len(v))
	for k, val := range v {
		pairs = append(pairs, k+"="+val)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (v varsFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v[strings.TrimSpace(name)] = value
	return nil
}

func runAdd(args []string, store *catalog.Store, cfg *config.Config, stdout io.Writer) int {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(stdout)

	vars := varsFlag{}
	category := fs.String("category", "", "Category: "+strings.Join(catalog.Categories, ", "))
	title := fs.String("title", "", "Title, at least 3 characters; the ID is derived from it")
	input := fs.String("input", "", "Text to synthesize")
	alias := fs.String("voice", cfg.DefaultVoice, "Voice alias")
	stability := fs.Float64("stability", 0.5, "Stability, 0 to 1")
	similarity := fs.Float64("similarity", 0.75, "Similarity boost, 0 to 1")
	speed := fs.Float64("speed", 1.0, "Speed, 0.5 to 2")
	style := fs.Float64("style", 0.0, "Style, 0 to 1")
	models := fs.String("models", strings.Join(catalog.AvailableModels, ","), "Comma separated models")
	dryRun := fs.Bool("dry-run", false, "Validate and print the ID without saving")
	fs.Var(vars, "var", "Template variable name=value, repeatable")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	entry := catalog.Entry{
		Category: *category,
		Title:    *title,
		Input:    *input,
		Voice: catalog.VoiceSpec{
			Alias:           *alias,
			Stability:       *stability,
			SimilarityBoost: *similarity,
			Speed:           *speed,
			Style:           *style,
		},
		Models:    splitList(*models),
		Variables: vars,
	}

	if _, ok := cfg.VoiceRegistry().Lookup(strings.TrimSpace(*alias)); !ok {
		slog.Warn("Voice alias is not in the registry; template generation will fail for it", "voice", *alias, "error", voice.ErrUnknownAlias)
	}

	id, err := store.Add(entry)
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicateID) {
			fmt.Fprintln(stdout, "Choose a different title or category.")
		}
		slog.Error("Failed to add audio", "error", err)
		return 1
	}
	if *dryRun {
		fmt.Fprintf(stdout, "Valid entry %s (not saved)\n", id)
		return 0
	}
	if err := store.Save(); err != nil {
		slog.Error("Failed to save catalog", "error", err)
		return 1
	}

	fmt.Fprintf(stdout, "Added %s to %s\n", id, store.Path())
	fmt.Fprintf(stdout, "Next: ttsgen generate %s\n", id)
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
