// Package voice maps human-readable voice aliases to provider voice IDs and
// tracks the currently selected alias.
package voice

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrUnknownAlias is returned when an alias is not present in the registry.
var ErrUnknownAlias = errors.New("voice: unknown alias")

// DefaultAlias is the alias selected when nothing else is configured.
const DefaultAlias = "FF03"

var defaultVoices = map[string]string{
	"FF04":                              "2GjEiBcNU3qMWn4sAFHh",
	"FF03":                              "wwjVck1XIYAewhk5NRXK",
	"Marcio - Bold & Captivating":       "Zk0wRqIFBWGMu2lIk7hw",
	"Carla - Children's story narrator": "oJebhZNaPllxk6W0LSBA",
	"Rachel":                            "21m00Tcm4TlvDq8ikWAM",
	"Drew":                              "29vD33N1CtxCmqQRPOHJ",
	"Clyde":                             "2EiwWnXFnvU5JabPnv8n",
	"Paul":                              "5Q0t7uMcjvnagumLfvZi",
	"Aria":                              "9BWtsMINqrJLrRacOk9x",
	"Masculino":                         "re2r5d74PqDzicySNW0I",
	"Feminino":                          "Sm1seazb4gs7RSlUVw7c",
	"Will":                              "QWzA13xdHsD8GLBwVILU",
	"HopeUC":                            "tnSpp4vdxKPjI9w0GnoV",
	"Leo":                               "IvLWq57RKibBrqZGpQrC",
	"Nassim":                            "repzAAjoKlgcT2oOAIWt",
	"Fernando":                          "dlGxemPxFMTY7iXagmOj",
	"Jerry":                             "XA2bIQ92TabjGbpO2xRr",
	"Krishna":                           "m5qndnI7u4OAdXhH0Mr5",
	"Jeff":                              "gs0tAILXbY5DNrJrsM6F",
	"Anika":                             "Sm1seazb4gs7RSlUVw7c",
	"Alex Wright":                       "GzE4TcXfh9rYCU9gVgPp",
	"Saira":                             "vghiSqG5ezdhd8F3tKAD",
	"Leon":                              "re2r5d74PqDzicySNW0I",
	"Peter":                             "GgV5QStPLpmkN7FOHJtY",
	"Arthur":                            "TtRFBnwQdH1k01vR0hMz",
	"HopeCT":                            "WZlYpi1yf6zJhNWXih74",
}

// Defaults returns a copy of the built-in alias to voice ID table.
func Defaults() map[string]string {
	return maps.Clone(defaultVoices)
}

// Registry is an immutable alias to voice ID table.
type Registry struct {
	ids map[string]string
}

// NewRegistry copies m into a new Registry. Later changes to m are not seen.
func NewRegistry(m map[string]string) Registry {
	return Registry{ids: maps.Clone(m)}
}

// Lookup returns the voice ID for alias.
func (r Registry) Lookup(alias string) (string, bool) {
	id, ok := r.ids[alias]
	return id, ok
}

// Aliases returns all registered aliases in sorted order.
func (r Registry) Aliases() []string {
	return slices.Sorted(maps.Keys(r.ids))
}

// Len returns the number of registered aliases.
func (r Registry) Len() int {
	return len(r.ids)
}

// Selector holds the current voice alias. The voice ID is always derived
// from the alias and cannot be set directly.
//
// A Selector is meant for a single writer.
type Selector struct {
	registry Registry
	alias    string
}

// NewSelector returns a Selector positioned on alias.
func NewSelector(r Registry, alias string) (*Selector, error) {
	s := &Selector{registry: r}
	if err := s.SetAlias(alias); err != nil {
		return nil, err
	}
	return s, nil
}

// Alias returns the currently selected alias.
func (s *Selector) Alias() string {
	return s.alias
}

// ID returns the provider voice ID of the current alias.
func (s *Selector) ID() string {
	id, _ := s.registry.Lookup(s.alias)
	return id
}

// SetAlias selects alias. An unknown alias leaves the selection unchanged.
func (s *Selector) SetAlias(alias string) error {
	if _, ok := s.registry.Lookup(alias); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
	}
	s.alias = alias
	return nil
}
