// Package httpgen renders catalog entries into .http request definitions
// that import the shared TTS base template.
package httpgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/voice"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BaseTemplate is the shared definition every generated file imports.
const BaseTemplate = "../TPL_tts_base.http"

var generatedCounter metric.Int64Counter

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/tts-catalog/pkg/httpgen")
	generatedCounter, err = meter.Int64Counter("tts.templates.generated",
		metric.WithDescription("Total number of request definitions rendered"),
		metric.WithUnit("{files}"),
	)
	if err != nil {
		slog.Error("Failed to create template metrics", "error", err)
	}
}

var requestTmpl = template.Must(template.New("request").Delims("[[", "]]").Parse(`# @import [[.Base]]
# Auto-generated: [[.Generated]]
# Audio ID: [[.ID]]

{{
    exports.input = [[.Input]];
    exports.models = [[.Models]];
}}
[[- if .Variables]]
[[range .Variables]]
@[[.Name]] = [[.Value]]
[[- end]]
[[- end]]

# Request
@endpoint = tts
@title = [[.Title]]
@dict = alias

# System
@OUT_DIR = [[.OutDir]]
@ELEVEN_API_KEY = {{$processEnv ELEVENLABS_API_KEY}}
@VOICE_ALIAS = [[.Alias]]
@VOICE_ID = [[.VoiceID]]
@baseURL = [[.BaseURL]]

# Voice
@stability = {{[[.Stability]]}}
@similarity_boost = {{[[.SimilarityBoost]]}}
@speed = {{[[.Speed]]}}
@style = {{[[.Style]]}}

###
# @ref generateAudio
`))

type variable struct {
	Name  string
	Value string
}

type view struct {
	Base            string
	Generated       string
	ID              string
	Input           string
	Models          string
	Variables       []variable
	Title           string
	OutDir          string
	Alias           string
	VoiceID         string
	BaseURL         string
	Stability       string
	SimilarityBoost string
	Speed           string
	Style           string
}

// Generator writes one request definition per catalog entry into
// {OutDir}/{category}/tts-{id}.http.
type Generator struct {
	Store   *catalog.Store
	Voices  voice.Registry
	BaseURL string
	OutDir  string
	Now     func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Render returns the request definition for e.
func (g *Generator) Render(id string, e catalog.Entry) ([]byte, error) {
	sel, err := voice.NewSelector(g.Voices, e.Voice.Alias)
	if err != nil {
		return nil, fmt.Errorf("httpgen: %q: %w", id, err)
	}
	models, err := json.Marshal(e.Models)
	if err != nil {
		return nil, fmt.Errorf("httpgen: %q: %w", id, err)
	}

	names := make([]string, 0, len(e.Variables))
	for k := range e.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	vars := make([]variable, 0, len(names))
	for _, k := range names {
		vars = append(vars, variable{Name: k, Value: e.Variables[k]})
	}

	v := view{
		Base:            BaseTemplate,
		Generated:       g.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		ID:              id,
		Input:           strconv.Quote(e.Input),
		Models:          string(models),
		Variables:       vars,
		Title:           e.Title,
		OutDir:          path.Join(filepath.ToSlash(g.OutDir), e.Category, "out"),
		Alias:           sel.Alias(),
		VoiceID:         sel.ID(),
		BaseURL:         g.BaseURL,
		Stability:       formatFloat(e.Voice.Stability),
		SimilarityBoost: formatFloat(e.Voice.SimilarityBoost),
		Speed:           formatFloat(e.Voice.Speed),
		Style:           formatFloat(e.Voice.Style),
	}

	var buf bytes.Buffer
	if err := requestTmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("httpgen: render %q: %w", id, err)
	}
	return buf.Bytes(), nil
}

// FilePath is where the definition for id in category is written.
func (g *Generator) FilePath(id, category string) string {
	return filepath.Join(g.OutDir, category, "tts-"+id+".http")
}

// Generate renders the entry stored under id and writes it, creating the
// category directory if needed.
func (g *Generator) Generate(id string) (string, error) {
	e, err := g.Store.Get(id)
	if err != nil {
		return "", err
	}
	data, err := g.Render(id, e)
	if err != nil {
		return "", err
	}
	file := g.FilePath(id, e.Category)
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return "", fmt.Errorf("httpgen: create %q: %w", filepath.Dir(file), err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return "", fmt.Errorf("httpgen: write %q: %w", file, err)
	}
	slog.Info("Generated request file", "id", id, "file", file)
	return file, nil
}

type Summary struct {
	Success int
	Errors  int
	Failed  map[string]error
}

// GenerateAll renders every catalog entry. Per-entry failures are logged
// and counted; they never stop the batch.
func (g *Generator) GenerateAll(ctx context.Context) Summary {
	sum := Summary{Failed: make(map[string]error)}
	for _, id := range g.Store.IDs() {
		if _, err := g.Generate(id); err != nil {
			slog.Error("Failed to generate request file", "id", id, "error", err)
			sum.Errors++
			sum.Failed[id] = err
			generatedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
			continue
		}
		sum.Success++
		generatedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	}
	slog.Info("Generation summary", "success", sum.Success, "errors", sum.Errors)
	return sum
}

// PreviewLength is how many characters of input List shows.
const PreviewLength = 50

// List prints the catalog grouped by category with a short input preview.
func List(w io.Writer, s *catalog.Store) error {
	for _, grp := range s.GroupByCategory() {
		if _, err := fmt.Fprintf(w, "%s\n", strings.ToUpper(grp.Category)); err != nil {
			return err
		}
		for _, id := range grp.IDs {
			e, _ := s.Get(id)
			if _, err := fmt.Fprintf(w, "   └─ %s\n      Input: %q\n", id, preview(e.Input)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= PreviewLength {
		return s
	}
	return string([]rune(s)[:PreviewLength]) + "..."
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
