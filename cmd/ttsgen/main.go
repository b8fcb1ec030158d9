package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/config"
	"github.com/wachiwi/tts-catalog/pkg/httpgen"
	"github.com/wachiwi/tts-catalog/pkg/logger"
	"github.com/wachiwi/tts-catalog/pkg/telemetry"
)

const usage = `Usage: ttsgen [-config file] <command>

Commands:
  generateAllHttpFiles   render every catalog entry
  generate <id>          render one catalog entry
  list                   list catalog entries by category
  add [flags]            add an entry to the catalog (add -h for flags)
`

var setupTelemetry = telemetry.Setup

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("ttsgen", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() { fmt.Fprint(stdout, usage) }
	configPath := fs.String("config", "", "Optional YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}
	logger.Setup(cfg.LogLevel)

	ctx := context.Background()
	shutdown, err := setupTelemetry(ctx, "ttsgen", cfg.OTELEndpoint)
	if err != nil {
		slog.Error("Failed to set up telemetry", "error", err)
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				slog.Error("Failed to shut down telemetry", "error", err)
			}
		}()
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	command, rest := fs.Arg(0), fs.Args()[1:]

	store, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		return 1
	}
	gen := &httpgen.Generator{
		Store:   store,
		Voices:  cfg.VoiceRegistry(),
		BaseURL: cfg.BaseURL,
		OutDir:  cfg.TemplatesDir,
	}

	switch command {
	case "generateAllHttpFiles":
		sum := gen.GenerateAll(ctx)
		fmt.Fprintf(stdout, "Summary: %d success, %d errors\n", sum.Success, sum.Errors)
	case "generate":
		if len(rest) == 0 {
			fmt.Fprintln(stdout, "Usage: ttsgen generate <id>")
			return 1
		}
		file, err := gen.Generate(rest[0])
		if err != nil {
			slog.Error("Failed to generate request file", "id", rest[0], "error", err)
			return 1
		}
		fmt.Fprintf(stdout, "Generated %s\n", file)
	case "list":
		if err := httpgen.List(stdout, store); err != nil {
			slog.Error("Failed to list catalog", "error", err)
			return 1
		}
	case "add":
		return runAdd(rest, store, cfg, stdout)
	default:
		fs.Usage()
		return 2
	}
	return 0
}
