// Package persist stores synthesized responses on disk: the artifact, a
// YAML metadata sidecar and a ledger entry.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wachiwi/tts-catalog/pkg/inspect"
	"github.com/wachiwi/tts-catalog/pkg/ledger"
	"github.com/wachiwi/tts-catalog/pkg/metadata"
	"github.com/wachiwi/tts-catalog/pkg/naming"
	"github.com/wachiwi/tts-catalog/pkg/netdiag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrSkipped marks a response that was not persisted because its inputs
// were unusable. Callers count it and move on.
var ErrSkipped = errors.New("persist: skipped")

// TimestampLayout renders datetime_stamp in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	savedCounter   metric.Int64Counter
	skippedCounter metric.Int64Counter
	latencyHist    metric.Float64Histogram
)

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/tts-catalog/pkg/persist")
	savedCounter, err = meter.Int64Counter("tts.artifacts.saved",
		metric.WithDescription("Total number of persisted artifacts"),
		metric.WithUnit("{files}"),
	)
	if err != nil {
		slog.Error("Failed to create saved metric", "error", err)
	}
	skippedCounter, err = meter.Int64Counter("tts.artifacts.skipped",
		metric.WithDescription("Total number of responses skipped before persisting"),
		metric.WithUnit("{responses}"),
	)
	if err != nil {
		slog.Error("Failed to create skipped metric", "error", err)
	}
	latencyHist, err = meter.Float64Histogram("tts.request.latency",
		metric.WithDescription("Elapsed time between request start and persistence"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		slog.Error("Failed to create latency metric", "error", err)
	}
}

// Vars is the request context a response is persisted with.
type Vars struct {
	Endpoint   string
	Title      string
	Dict       string
	VoiceAlias string

	// Model wins over Models[*LoopIndex] when set.
	Model     string
	Models    []string
	LoopIndex *int

	OutDir     string
	JSONOutDir string
	BaseURL    string
	LLM        string

	Stability       float64
	SimilarityBoost float64
	Speed           float64
	Style           float64
	Input           string

	RequestStart time.Time
	LastRequest  any
	RunID        string
}

// Prober runs network diagnostics.
type Prober interface {
	Run(ctx context.Context, baseURL string) netdiag.Result
}

// Result names the files written for one response.
type Result struct {
	ArtifactPath string
	MetadataPath string
	Duration     time.Duration
}

// Handler persists responses. Ledger may be nil.
type Handler struct {
	Namer     *naming.Generator
	Probe     Prober
	Inspector inspect.Inspector
	Ledger    *ledger.Ledger
	Now       func() time.Time
}

// NewHandler wires a handler with the directory-scan allocator, the system
// probe and the audio inspector.
func NewHandler(l *ledger.Ledger) *Handler {
	return &Handler{
		Namer:     naming.NewGenerator(naming.DirScanAllocator{}),
		Probe:     netdiag.NewProbe(),
		Inspector: inspect.AudioInspector{},
		Ledger:    l,
		Now:       time.Now,
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// CurrentModel resolves the model for this response.
func (v Vars) CurrentModel() (string, error) {
	if v.Model != "" {
		return v.Model, nil
	}
	if v.LoopIndex == nil {
		return "", fmt.Errorf("%w: no model and no loop index", ErrSkipped)
	}
	i := *v.LoopIndex
	if i < 0 || i >= len(v.Models) {
		return "", fmt.Errorf("%w: loop index %d out of range for %d models", ErrSkipped, i, len(v.Models))
	}
	return v.Models[i], nil
}

func (h *Handler) skip(ctx context.Context, reason string, err error) error {
	slog.Warn("Skipping response", "reason", reason, "error", err)
	skippedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	return err
}

// SaveAudio writes body as {stem}_temp.mp3, measures its duration, renames
// it to {stem}D={N}s.mp3 and then writes {stem}.yaml.
func (h *Handler) SaveAudio(ctx context.Context, v Vars, body []byte) (Result, error) {
	if v.LoopIndex != nil && (*v.LoopIndex < 0 || *v.LoopIndex >= len(v.Models)) {
		return Result{}, h.skip(ctx, "loop_index", fmt.Errorf("%w: loop index %d out of range for %d models", ErrSkipped, *v.LoopIndex, len(v.Models)))
	}
	if len(body) == 0 {
		return Result{}, h.skip(ctx, "empty_body", fmt.Errorf("%w: empty response body", ErrSkipped))
	}
	model, err := v.CurrentModel()
	if err != nil {
		return Result{}, h.skip(ctx, "no_model", err)
	}

	stem, err := h.Namer.Stem(v.OutDir, naming.Params{
		Endpoint: v.Endpoint,
		Name:     v.Title,
		Model:    model,
		Dict:     v.Dict,
		Voice:    v.VoiceAlias,
	})
	if err != nil {
		return Result{}, err
	}

	tempPath := filepath.Join(v.OutDir, stem+"_temp.mp3")
	if err := os.WriteFile(tempPath, body, 0644); err != nil {
		return Result{}, fmt.Errorf("persist: write %q: %w", tempPath, err)
	}

	d, err := h.Inspector.Duration(body)
	if err != nil {
		return Result{ArtifactPath: tempPath}, fmt.Errorf("persist: duration of %q: %w", tempPath, err)
	}
	tag := inspect.Tag(d)

	finalPath := filepath.Join(v.OutDir, stem+"D="+tag+".mp3")
	if err := os.Rename(tempPath, finalPath); err != nil {
		return Result{ArtifactPath: tempPath}, fmt.Errorf("persist: rename %q: %w", tempPath, err)
	}
	slog.Info("Saved audio", "file", finalPath)

	now := h.now()
	ms := elapsedMillis(v.RequestStart, now)
	rec := metadata.NewRecord().
		Set("ms", ms).
		Set("datetime_stamp", now.UTC().Format(TimestampLayout)).
		Set("generator_name", v.Endpoint+"-"+v.Title).
		Set("model", model).
		Set("voice", v.VoiceAlias).
		Set("duration_seconds", tag).
		Set("stability", v.Stability).
		Set("similarity_boost", v.SimilarityBoost).
		Set("speed", v.Speed).
		Set("style", v.Style).
		Set("text", v.Input)
	if v.RunID != "" {
		rec.Set("run_id", v.RunID)
	}

	metaPath := filepath.Join(v.OutDir, stem+".yaml")
	metadata.Write(metaPath, rec)

	h.record(ctx, ledger.Entry{
		Name:            filepath.Base(finalPath),
		Dir:             v.OutDir,
		Kind:            ledger.KindAudio,
		Model:           model,
		Voice:           v.VoiceAlias,
		DurationSeconds: inspect.Seconds(d),
		RunID:           v.RunID,
		Timestamp:       now,
	}, ms)

	return Result{ArtifactPath: finalPath, MetadataPath: metaPath, Duration: d}, nil
}

// SaveConversation writes the JSON response body, network diagnostics and
// the echoed request into {stem}.yaml under JSONOutDir.
func (h *Handler) SaveConversation(ctx context.Context, v Vars, body []byte) (Result, error) {
	if len(body) == 0 {
		return Result{}, h.skip(ctx, "empty_body", fmt.Errorf("%w: empty response body", ErrSkipped))
	}
	response, err := metadata.FromJSON(body)
	if err != nil {
		return Result{}, h.skip(ctx, "invalid_json", fmt.Errorf("%w: %v", ErrSkipped, err))
	}

	stem, err := h.Namer.Stem(v.JSONOutDir, naming.Params{
		Endpoint: v.Endpoint,
		Name:     v.Title,
		Model:    "none",
		Dict:     v.Dict,
		Voice:    "agent",
		LLM:      v.LLM,
	})
	if err != nil {
		return Result{}, err
	}

	diag := h.Probe.Run(ctx, v.BaseURL)

	now := h.now()
	ms := elapsedMillis(v.RequestStart, now)
	rec := metadata.NewRecord().
		Set("server_ping", diag.Ping).
		Set("server_tracert", diag.Trace).
		Set("ms", ms).
		Set("datetime_stamp", now.UTC().Format(TimestampLayout)).
		Set("generator_name", v.Endpoint+"-"+v.Title).
		Set("response", response).
		Set("request", v.LastRequest)
	if v.RunID != "" {
		rec.Set("run_id", v.RunID)
	}

	metaPath := filepath.Join(v.JSONOutDir, stem+".yaml")
	metadata.Write(metaPath, rec)
	slog.Info("Saved conversation", "file", metaPath)

	h.record(ctx, ledger.Entry{
		Name:      filepath.Base(metaPath),
		Dir:       v.JSONOutDir,
		Kind:      ledger.KindConversation,
		RunID:     v.RunID,
		Timestamp: now,
	}, ms)

	return Result{ArtifactPath: metaPath, MetadataPath: metaPath}, nil
}

func (h *Handler) record(ctx context.Context, e ledger.Entry, ms int64) {
	kind := attribute.String("kind", e.Kind)
	savedCounter.Add(ctx, 1, metric.WithAttributes(kind))
	latencyHist.Record(ctx, float64(ms), metric.WithAttributes(kind))

	if h.Ledger == nil {
		return
	}
	if err := h.Ledger.Add(e); err != nil {
		slog.Error("Failed to update ledger", "file", h.Ledger.Path(), "error", err)
	}
}

// elapsedMillis treats a missing start marker as "now".
func elapsedMillis(start, end time.Time) int64 {
	if start.IsZero() {
		return 0
	}
	return end.Sub(start).Milliseconds()
}
