// Package config holds the runtime configuration shared by the tts-catalog
// commands. A Config value is built once at startup and passed to each
// component; nothing in this module reads configuration from globals.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/wachiwi/tts-catalog/pkg/ledger"
	"github.com/wachiwi/tts-catalog/pkg/voice"
)

// Config is the root configuration.
type Config struct {
	// APIKey is the ElevenLabs credential. It is only read from the
	// environment, never from the YAML file.
	APIKey string `yaml:"-"`

	BaseURL string   `yaml:"base_url"`
	AgentID string   `yaml:"agent_id"`
	Models  []string `yaml:"models"`

	// Voices maps aliases to provider voice IDs.
	Voices       map[string]string `yaml:"voices"`
	DefaultVoice string            `yaml:"default_voice"`

	// TemplatesDir holds the request templates and is the root every
	// artifact is written under: catalog audio in {category}/out, voice
	// sweeps in tests/out. The shared ledger lives at its top.
	TemplatesDir string `yaml:"templates_dir"`

	// JSONOutDir receives conversation sidecars.
	JSONOutDir  string `yaml:"json_out_dir"`
	CatalogPath string `yaml:"catalog_path"`

	// LedgerRetention bounds the age of ledger entries. Zero keeps all.
	LedgerRetention time.Duration `yaml:"ledger_retention"`

	LogLevel     string        `yaml:"log_level"`
	OTELEndpoint string        `yaml:"otel_endpoint"`
	Archive      ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig configures the artifact browser.
type ArchiveConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	User       string `yaml:"-"`
	Password   string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL: "https://api.elevenlabs.io",
		AgentID: "agent_2101k6144df8e9k80spt9h8m63yq",
		Models: []string{
			"eleven_v3",
			"eleven_flash_v2_5",
			"eleven_turbo_v2_5",
		},
		Voices:          voice.Defaults(),
		DefaultVoice:    voice.DefaultAlias,
		TemplatesDir:    "./tts-audios",
		JSONOutDir:      "./tts-audios/json",
		CatalogPath:     "./tts-audios/config/audio-catalog.json",
		LedgerRetention: 30 * 24 * time.Hour,
		LogLevel:        "info",
		Archive: ArchiveConfig{
			ListenAddr: ":8080",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file at path, a
// .env file in the working directory and the process environment, in
// that order of precedence (later wins). An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of the defaults and validates
// the result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIKey = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	cfg.BaseURL = getEnv("ELEVENLABS_BASE_URL", cfg.BaseURL)
	cfg.JSONOutDir = getEnv("TTS_JSON_OUT_DIR", cfg.JSONOutDir)
	cfg.CatalogPath = getEnv("TTS_CATALOG", cfg.CatalogPath)
	cfg.TemplatesDir = getEnv("TTS_TEMPLATES_DIR", cfg.TemplatesDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_ENDPOINT", cfg.OTELEndpoint)
	cfg.Archive.ListenAddr = getEnv("ARCHIVE_LISTEN_ADDR", cfg.Archive.ListenAddr)
	cfg.Archive.User = os.Getenv("ARCHIVE_USER")
	cfg.Archive.Password = os.Getenv("ARCHIVE_PASSWORD")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", cfg.BaseURL))
	}
	if len(cfg.Models) == 0 {
		errs = append(errs, errors.New("models must not be empty"))
	}
	if len(cfg.Voices) == 0 {
		errs = append(errs, errors.New("voices must not be empty"))
	} else if _, ok := cfg.Voices[cfg.DefaultVoice]; !ok {
		errs = append(errs, fmt.Errorf("default_voice %q is not in voices", cfg.DefaultVoice))
	}
	if cfg.TemplatesDir == "" {
		errs = append(errs, errors.New("templates_dir is required"))
	}
	if cfg.JSONOutDir == "" {
		errs = append(errs, errors.New("json_out_dir is required"))
	}
	if cfg.LedgerRetention < 0 {
		errs = append(errs, fmt.Errorf("ledger_retention %s must not be negative", cfg.LedgerRetention))
	}
	if cfg.CatalogPath == "" {
		errs = append(errs, errors.New("catalog_path is required"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.APIKey == "" {
		slog.Debug("ELEVENLABS_API_KEY is not set; synthesis commands will fail")
	}

	return errors.Join(errs...)
}

// VoiceRegistry returns an immutable registry built from cfg.Voices.
func (c *Config) VoiceRegistry() voice.Registry {
	return voice.NewRegistry(c.Voices)
}

// EntryOutDir is where audio for catalog entries of category is written.
// Generated request templates point at the same directory.
func (c *Config) EntryOutDir(category string) string {
	return filepath.Join(c.TemplatesDir, category, "out")
}

// SweepOutDir is where voice test sweeps write their audio.
func (c *Config) SweepOutDir() string {
	return filepath.Join(c.TemplatesDir, "tests", "out")
}

// Ledger opens the ledger shared by every writer and the archive.
func (c *Config) Ledger() *ledger.Ledger {
	return ledger.InDir(c.TemplatesDir, c.LedgerRetention)
}

// String redacts the API key.
func (c *Config) String() string {
	return fmt.Sprintf("<Config base_url=%s templates_dir=%s catalog=%s [REDACTED]>", c.BaseURL, c.TemplatesDir, c.CatalogPath)
}
