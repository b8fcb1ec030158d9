// Package naming builds artifact filename stems of the form
//
//	{seq}-{endpoint}-{name}--{model}-LLM={llm}-Dict={dict}-V={voice}-{timestamp}
//
// where seq is a 4-digit, zero-padded sequence number allocated per output
// directory and timestamp is local time at minute resolution.
package naming

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// TimestampLayout formats the trailing timestamp (YYYY-MM-DDTHH-mm).
const TimestampLayout = "2006-01-02T15-04"

const none = "none"

var seqPattern = regexp.MustCompile(`^\d{4}-`)

// Params are the request attributes encoded into a stem. Empty LLM and
// Voice are rendered as "none".
type Params struct {
	Endpoint string
	Name     string
	Model    string
	Dict     string
	Voice    string
	LLM      string
}

// Allocator hands out the next sequence number for a directory.
type Allocator interface {
	Next(dir string) (int, error)
}

// DirScanAllocator derives the next number from the files already in the
// directory: the largest 4-digit prefix plus one, or 1 when none match.
//
// Scanning and writing are separate steps, so two callers that allocate
// before either writes its artifact receive the same number.
type DirScanAllocator struct{}

// Next creates dir if needed and returns max(prefix)+1.
func (DirScanAllocator) Next(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("naming: create %q: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("naming: read %q: %w", dir, err)
	}
	maxSeq := 0
	for _, e := range entries {
		if seq, ok := ParseSequence(e.Name()); ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

// LockedAllocator serializes allocation through a wrapped Allocator and
// remembers the last number issued per directory, so callers in one
// process never receive the same number even if nothing has been written
// yet.
type LockedAllocator struct {
	mu   sync.Mutex
	base Allocator
	last map[string]int
}

// NewLockedAllocator wraps base. A nil base means DirScanAllocator.
func NewLockedAllocator(base Allocator) *LockedAllocator {
	if base == nil {
		base = DirScanAllocator{}
	}
	return &LockedAllocator{base: base, last: make(map[string]int)}
}

func (a *LockedAllocator) Next(dir string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.base.Next(dir)
	if err != nil {
		return 0, err
	}
	if last := a.last[dir]; n <= last {
		n = last + 1
	}
	a.last[dir] = n
	return n, nil
}

// ParseSequence returns the leading 4-digit sequence of name.
func ParseSequence(name string) (int, bool) {
	if !seqPattern.MatchString(name) {
		return 0, false
	}
	n, err := strconv.Atoi(name[:4])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Generator composes stems. It never writes files other than creating the
// output directory.
type Generator struct {
	Allocator Allocator
	Now       func() time.Time
}

// NewGenerator returns a Generator using a and the local wall clock.
// A nil a means DirScanAllocator.
func NewGenerator(a Allocator) *Generator {
	if a == nil {
		a = DirScanAllocator{}
	}
	return &Generator{Allocator: a, Now: time.Now}
}

// Stem allocates the next sequence in dir and returns the composed stem.
func (g *Generator) Stem(dir string, p Params) (string, error) {
	seq, err := g.Allocator.Next(dir)
	if err != nil {
		return "", err
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return FormatStem(seq, p, now()), nil
}

// FormatStem renders a stem for an already allocated sequence number.
func FormatStem(seq int, p Params, t time.Time) string {
	return fmt.Sprintf("%04d-%s-%s--%s-LLM=%s-Dict=%s-V=%s-%s",
		seq, p.Endpoint, p.Name, p.Model,
		orNone(p.LLM), p.Dict, orNone(p.Voice),
		t.Local().Format(TimestampLayout))
}

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}
