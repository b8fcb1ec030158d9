// Package metadata writes ordered key/value records as YAML sidecar files.
//
// Keys keep their insertion order, long lines are never folded and
// multi-line strings are emitted as literal blocks so command output stays
// readable.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is an insertion-ordered mapping. Values may be scalars, slices,
// maps, *yaml.Node, json.RawMessage or nested *Record.
//
// Go maps and values decoded into any are encoded with sorted keys. Pass
// a *Record, a *yaml.Node (see FromJSON) or a json.RawMessage when the
// key order of a nested object must survive.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Set stores value under key. Re-setting a key keeps its original position.
func (r *Record) Set(key string, value any) *Record {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return r
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of keys.
func (r *Record) Len() int {
	return len(r.keys)
}

// MarshalYAML implements yaml.Marshaler.
func (r *Record) MarshalYAML() (any, error) {
	return r.node()
}

func (r *Record) node() (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range r.keys {
		v, err := toNode(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("metadata: key %q: %w", k, err)
		}
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			v,
		)
	}
	return m, nil
}

func toNode(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case *Record:
		return val.node()
	case *yaml.Node:
		if val.Kind == yaml.DocumentNode && len(val.Content) == 1 {
			return val.Content[0], nil
		}
		return val, nil
	case json.RawMessage:
		return FromJSON(val)
	case string:
		n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}
		if strings.Contains(val, "\n") {
			n.Style = yaml.LiteralStyle
		}
		return n, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

// FromJSON converts a JSON document into a block-style YAML node, keeping
// object key order.
func FromJSON(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := jsonNode(dec)
	if err != nil {
		return nil, fmt.Errorf("metadata: parse json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("metadata: parse json: trailing data")
	}
	return n, nil
}

func jsonNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected key %v", kt)
				}
				v, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			s := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				v, err := jsonNode(dec)
				if err != nil {
					return nil, err
				}
				s.Content = append(s.Content, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return s, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return toNode(t)
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(t.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// Marshal renders r as YAML with a two-space indent.
func Marshal(r *Record) ([]byte, error) {
	n, err := r.node()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("metadata: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("metadata: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Save marshals r and writes it to path.
func Save(path string, r *Record) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("metadata: write %q: %w", path, err)
	}
	return nil
}

// Write is the best-effort form of Save: failures are logged and
// swallowed. It reports whether the file was written.
func Write(path string, r *Record) bool {
	if err := Save(path, r); err != nil {
		slog.Error("Failed to save metadata file", "file", path, "error", err)
		return false
	}
	slog.Info("Saved response metadata", "file", path)
	return true
}
