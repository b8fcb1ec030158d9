// Package catalog loads, validates and extends the audio catalog: a JSON
// document mapping audio IDs to the text, voice settings, models and
// template variables used to synthesize them.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound     = errors.New("catalog: audio not found")
	ErrDuplicateID  = errors.New("catalog: audio id already exists")
	ErrInvalidEntry = errors.New("catalog: invalid entry")
)

const (
	CategoryGreeting          = "greeting"
	CategoryObjection         = "objection"
	CategoryFollowup          = "followup"
	CategoryClosing           = "closing"
	CategoryQualification     = "qualification"
	CategoryScheduling        = "scheduling"
	CategorySystemEnvironment = "system_environment"
)

// Categories lists the accepted categories in display order.
var Categories = []string{
	CategoryGreeting,
	CategoryObjection,
	CategoryFollowup,
	CategoryClosing,
	CategoryQualification,
	CategoryScheduling,
	CategorySystemEnvironment,
}

// AvailableModels lists the synthesis models an entry may target.
var AvailableModels = []string{
	"eleven_v3",
	"eleven_flash_v2_5",
	"eleven_turbo_v2_5",
}

type VoiceSpec struct {
	Alias           string  `json:"alias"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
	Style           float64 `json:"style"`
}

type Entry struct {
	Category  string            `json:"category"`
	Title     string            `json:"title"`
	Input     string            `json:"input"`
	Voice     VoiceSpec         `json:"voice"`
	Models    []string          `json:"models"`
	Variables map[string]string `json:"variables"`
}

var placeholder = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Text returns Input with {{name}} placeholders replaced by the entry's
// variables. Unknown placeholders are left untouched.
func (e Entry) Text() string {
	return placeholder.ReplaceAllStringFunc(e.Input, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := e.Variables[name]; ok {
			return v
		}
		return m
	})
}

// Store is an in-memory catalog bound to the file it was loaded from.
// Top-level keys other than "audios" are preserved on Save.
type Store struct {
	path   string
	extra  map[string]json.RawMessage
	audios map[string]Entry
}

// Load reads the catalog at path.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", path, err)
	}
	s.path = path
	return s, nil
}

// LoadFromReader parses a catalog document. The returned store has no path
// and must be written with Encode.
func LoadFromReader(r io.Reader) (*Store, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	raw, ok := doc["audios"]
	if !ok {
		return nil, errors.New(`missing top-level "audios" object`)
	}
	var audios map[string]Entry
	if err := json.Unmarshal(raw, &audios); err != nil {
		return nil, fmt.Errorf(`invalid "audios" object: %w`, err)
	}
	if audios == nil {
		audios = make(map[string]Entry)
	}
	delete(doc, "audios")
	return &Store{extra: doc, audios: audios}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Len() int {
	return len(s.audios)
}

// Get returns the entry stored under id.
func (s *Store) Get(id string) (Entry, error) {
	e, ok := s.audios[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return e, nil
}

// IDs returns every audio ID in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.audios))
	for id := range s.audios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Group struct {
	Category string
	IDs      []string
}

// GroupByCategory returns the IDs grouped by category, both sorted.
func (s *Store) GroupByCategory() []Group {
	byCat := make(map[string][]string)
	for _, id := range s.IDs() {
		cat := s.audios[id].Category
		byCat[cat] = append(byCat[cat], id)
	}
	groups := make([]Group, 0, len(byCat))
	for cat, ids := range byCat {
		groups = append(groups, Group{Category: cat, IDs: ids})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Category < groups[j].Category })
	return groups
}

// Add validates e, derives its ID and stores it. Nothing is written until
// Save is called.
func (s *Store) Add(e Entry) (string, error) {
	e = Clean(e)
	if err := ValidateEntry(e); err != nil {
		return "", err
	}
	id := EntryID(e.Category, e.Title)
	if _, exists := s.audios[id]; exists {
		return "", fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	s.audios[id] = e
	return id, nil
}

// Encode writes the catalog as JSON indented with four spaces.
func (s *Store) Encode(w io.Writer) error {
	doc := make(map[string]any, len(s.extra)+1)
	for k, v := range s.extra {
		doc[k] = v
	}
	doc["audios"] = s.audios

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}
	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}

// Save rewrites the catalog file the store was loaded from.
func (s *Store) Save() error {
	if s.path == "" {
		return errors.New("catalog: store has no path")
	}
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("catalog: save %q: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("catalog: save %q: %w", s.path, err)
	}
	return nil
}

var (
	whitespace  = regexp.MustCompile(`\s+`)
	invalidChar = regexp.MustCompile(`[^a-z0-9_]`)
	underscores = regexp.MustCompile(`_+`)
	varName     = regexp.MustCompile(`^[a-z_]+$`)
)

// NormalizeID turns a title into an ID fragment: lowercase, whitespace
// runs become "_", anything outside [a-z0-9_] is dropped, repeated
// underscores collapse and edge underscores are trimmed.
func NormalizeID(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = whitespace.ReplaceAllString(s, "_")
	s = invalidChar.ReplaceAllString(s, "")
	s = underscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// EntryID is "{category}_{NormalizeID(title)}".
func EntryID(category, title string) string {
	return category + "_" + NormalizeID(title)
}

// Clean trims the free-text fields of e the way interactive input is
// trimmed before it is stored.
func Clean(e Entry) Entry {
	e.Category = strings.TrimSpace(e.Category)
	e.Title = strings.TrimSpace(e.Title)
	e.Input = strings.TrimSpace(e.Input)
	e.Voice.Alias = strings.TrimSpace(e.Voice.Alias)
	if e.Variables == nil {
		e.Variables = map[string]string{}
	} else {
		vars := make(map[string]string, len(e.Variables))
		for k, v := range e.Variables {
			vars[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		e.Variables = vars
	}
	return e
}

// ValidateEntry reports every problem with e, joined and wrapped in
// ErrInvalidEntry.
func ValidateEntry(e Entry) error {
	var errs []error

	if !contains(Categories, e.Category) {
		errs = append(errs, fmt.Errorf("category %q must be one of %s", e.Category, strings.Join(Categories, ", ")))
	}
	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, errors.New("title must not be empty"))
	} else if utf8.RuneCountInString(e.Title) < 3 {
		errs = append(errs, errors.New("title must have at least 3 characters"))
	} else if NormalizeID(e.Title) == "" {
		errs = append(errs, fmt.Errorf("title %q yields an empty id", e.Title))
	}
	if strings.TrimSpace(e.Input) == "" {
		errs = append(errs, errors.New("input must not be empty"))
	}
	if strings.TrimSpace(e.Voice.Alias) == "" {
		errs = append(errs, errors.New("voice alias must not be empty"))
	}
	errs = append(errs,
		checkRange("stability", e.Voice.Stability, 0, 1),
		checkRange("similarity_boost", e.Voice.SimilarityBoost, 0, 1),
		checkRange("speed", e.Voice.Speed, 0.5, 2),
		checkRange("style", e.Voice.Style, 0, 1),
	)
	if len(e.Models) == 0 {
		errs = append(errs, errors.New("at least one model is required"))
	}
	for _, m := range e.Models {
		if !contains(AvailableModels, m) {
			errs = append(errs, fmt.Errorf("model %q must be one of %s", m, strings.Join(AvailableModels, ", ")))
		}
	}
	for name, value := range e.Variables {
		if !varName.MatchString(name) {
			errs = append(errs, fmt.Errorf("variable %q must contain only lowercase letters and underscores", name))
		}
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("variable %q must have a value", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	return nil
}

func checkRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s %g must be between %g and %g", name, v, lo, hi)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
