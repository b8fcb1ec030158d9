package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/config"
	"github.com/wachiwi/tts-catalog/pkg/elevenlabs"
	"github.com/wachiwi/tts-catalog/pkg/logger"
	"github.com/wachiwi/tts-catalog/pkg/metadata"
	"github.com/wachiwi/tts-catalog/pkg/persist"
	"github.com/wachiwi/tts-catalog/pkg/sweep"
	"github.com/wachiwi/tts-catalog/pkg/telemetry"
)

var setupTelemetry = telemetry.Setup

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	var configPath, id, simulate, title, llm string
	fs.StringVar(&configPath, "config", "", "Optional YAML config file")
	fs.StringVar(&id, "id", "", "Catalog entry to synthesize")
	fs.StringVar(&simulate, "simulate", "", "JSON file with a conversation simulation request; runs a simulation instead of TTS")
	fs.StringVar(&title, "title", "simulation", "Title used in simulation artifact names")
	fs.StringVar(&llm, "llm", "", "LLM tag recorded in simulation artifact names")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 1
	}
	logger.Setup(cfg.LogLevel)

	if cfg.APIKey == "" {
		slog.Error("ELEVENLABS_API_KEY must be set")
		return 1
	}
	if id == "" && simulate == "" {
		slog.Error("Either -id or -simulate is required")
		fs.Usage()
		return 2
	}

	ctx := context.Background()
	shutdown, err := setupTelemetry(ctx, "synth", cfg.OTELEndpoint)
	if err != nil {
		slog.Error("Failed to set up telemetry", "error", err)
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				slog.Error("Failed to shut down telemetry", "error", err)
			}
		}()
	}

	client := elevenlabs.NewClient(cfg.BaseURL, cfg.APIKey)
	runID := uuid.NewString()

	if simulate != "" {
		if err := simulateConversation(ctx, cfg, client, simulate, title, llm, runID); err != nil {
			slog.Error("Simulation failed", "error", err)
			return 1
		}
		return 0
	}

	store, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		return 1
	}
	entry, err := store.Get(id)
	if err != nil {
		slog.Error("Failed to find audio", "error", err)
		return 1
	}

	outDir := cfg.EntryOutDir(entry.Category)
	job := sweep.EntryJob(entry, outDir)
	job.RunID = runID

	runner := &sweep.Runner{
		Client: client,
		Saver:  persist.NewHandler(cfg.Ledger()),
		Voices: cfg.VoiceRegistry(),
		Delay:  sweep.DefaultDelay,
	}
	sum, err := runner.Run(ctx, job)
	if err != nil {
		slog.Error("Synthesis interrupted", "error", err)
		return 1
	}
	if sum.Failed > 0 {
		slog.Error("Some models failed", "id", id, "failed", sum.Failed, "total", sum.Total)
		return 1
	}
	slog.Info("Successfully synthesized audio", "id", id, "dir", outDir)
	return 0
}

func simulateConversation(ctx context.Context, cfg *config.Config, client *elevenlabs.Client, specPath, title, llm, runID string) error {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return err
	}
	// The echoed request keeps the key order of the file.
	request, err := metadata.FromJSON(data)
	if err != nil {
		return err
	}

	start := time.Now()
	body, err := client.SimulateConversation(ctx, cfg.AgentID, json.RawMessage(data))
	if err != nil {
		return err
	}

	h := persist.NewHandler(cfg.Ledger())
	res, err := h.SaveConversation(ctx, persist.Vars{
		Endpoint:     "simulate",
		Title:        title,
		Dict:         "alias",
		JSONOutDir:   cfg.JSONOutDir,
		BaseURL:      cfg.BaseURL,
		LLM:          llm,
		RequestStart: start,
		LastRequest:  request,
		RunID:        runID,
	}, body)
	if err != nil {
		return err
	}
	slog.Info("Successfully saved simulation", "file", res.MetadataPath)
	return nil
}
