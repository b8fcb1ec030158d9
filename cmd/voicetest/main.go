package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/wachiwi/tts-catalog/pkg/config"
	"github.com/wachiwi/tts-catalog/pkg/elevenlabs"
	"github.com/wachiwi/tts-catalog/pkg/logger"
	"github.com/wachiwi/tts-catalog/pkg/naming"
	"github.com/wachiwi/tts-catalog/pkg/persist"
	"github.com/wachiwi/tts-catalog/pkg/sweep"
	"github.com/wachiwi/tts-catalog/pkg/telemetry"
)

var setupTelemetry = telemetry.Setup

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("voicetest", flag.ContinueOnError)
	var (
		configPath string
		voices     string
		models     string
		text       string
		outDir     string
		schedule   string
		timezone   string
		deleteUsed bool
		delay      time.Duration
	)
	fs.StringVar(&configPath, "config", "", "Optional YAML config file")
	fs.StringVar(&voices, "voices", strings.Join(sweep.DefaultAliases, ","), "Comma separated voice aliases")
	fs.StringVar(&models, "models", "", "Comma separated models (default: all configured)")
	fs.StringVar(&text, "text", sweep.DefaultText, "Text to synthesize")
	fs.StringVar(&outDir, "out", "", "Output directory (default: <templates_dir>/tests/out)")
	fs.StringVar(&schedule, "schedule", "", "Cron spec to repeat the sweep, e.g. \"0 3 * * *\"")
	fs.StringVar(&timezone, "tz", "Local", "Time zone for -schedule")
	fs.BoolVar(&deleteUsed, "delete-after-use", false, "Delete each voice from the account after use (destructive)")
	fs.DurationVar(&delay, "delay", sweep.DefaultDelay, "Pause between API calls")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := setupTelemetry(ctx, "voicetest", cfg.OTELEndpoint)
	if err != nil {
		slog.Error("Failed to set up telemetry", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("Failed to shut down telemetry", "error", err)
			}
		}()
	}

	if outDir == "" {
		outDir = cfg.SweepOutDir()
	}
	job := sweep.DefaultJob(cfg.Models, outDir)
	job.Input = text
	job.Aliases = splitList(voices)
	if models != "" {
		job.Models = splitList(models)
	}

	// The handler lives across scheduled runs, so sequence numbers are
	// also guarded in memory.
	saver := persist.NewHandler(cfg.Ledger())
	saver.Namer = naming.NewGenerator(naming.NewLockedAllocator(nil))

	runner := &sweep.Runner{
		Client:         elevenlabs.NewClient(cfg.BaseURL, cfg.APIKey),
		Saver:          saver,
		Voices:         cfg.VoiceRegistry(),
		Delay:          delay,
		DeleteAfterUse: deleteUsed,
	}
	if deleteUsed {
		slog.Warn("Voices will be deleted from the account after use")
	}

	runOnce := func() {
		j := job
		j.RunID = uuid.NewString()
		if _, err := runner.Run(ctx, j); err != nil {
			slog.Error("Sweep interrupted", "run_id", j.RunID, "error", err)
		}
	}

	if schedule == "" {
		runOnce()
		return 0
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		slog.Error("Error loading location", "tz", timezone, "error", err)
		return 1
	}
	cronLog := &logger.CronLogger{Logger: slog.Default()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(schedule, runOnce); err != nil {
		slog.Error("Invalid schedule", "schedule", schedule, "error", err)
		return 1
	}
	c.Start()
	slog.Info("Voice test scheduled", "schedule", schedule, "tz", loc.String())

	<-ctx.Done()
	slog.Info("Shutting down")
	<-c.Stop().Done()
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
