// Package models defines core data structures for chunks, queries, and retrieval results.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Chunk is an immutable piece of a source document with ordered metadata.
// Chunks are produced by the ingest splitter and owned by the vector store
// once added; they are never mutated afterwards.
type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the chunk.
func (c *Chunk) Clone() *Chunk {
	return &Chunk{Content: c.Content, Metadata: c.Metadata.Clone()}
}

// MetaField is a single metadata entry. Value is one of string, int64, or float64.
type MetaField struct {
	Key   string
	Value any
}

// Metadata is an ordered mapping from string keys to scalar values.
// Order is preserved through JSON round-trips, which a plain Go map cannot do.
type Metadata []MetaField

// Set returns metadata with key set to value, replacing an existing entry in
// place or appending a new one. Integer and float types are normalized to
// int64 and float64.
func (m Metadata) Set(key string, value any) Metadata {
	v := normalizeScalar(value)
	for i := range m {
		if m[i].Key == key {
			m[i].Value = v
			return m
		}
	}
	return append(m, MetaField{Key: key, Value: v})
}

// Get returns the value for key and whether it was present.
func (m Metadata) Get(key string) (any, bool) {
	for i := range m {
		if m[i].Key == key {
			return m[i].Value, true
		}
	}
	return nil, false
}

// GetString returns the string value for key, or "" if absent or not a string.
func (m Metadata) GetString(key string) string {
	if v, ok := m.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt returns the int64 value for key, or 0 if absent or not an integer.
func (m Metadata) GetInt(key string) int64 {
	if v, ok := m.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

// Clone returns a copy of the metadata.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	copy(out, m)
	return out
}

func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float32:
		return float64(n)
	case float64:
		return n
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON encodes the metadata as a JSON object with fields in order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("metadata value for %q: %w", f.Key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving field order. Numbers without
// a fractional part decode as int64, others as float64, so integer metadata
// (chunk indexes, counts) survives a round-trip without becoming floats.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata: expected object, got %v", tok)
	}

	out := Metadata{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("metadata: non-string key %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		val, err := scalarFromToken(key, valTok)
		if err != nil {
			return err
		}
		out = append(out, MetaField{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return err
	}
	*m = out
	return nil
}

func scalarFromToken(key string, tok json.Token) (any, error) {
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("metadata value for %q: %w", key, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("metadata value for %q must be a string or number, got %T", key, tok)
	}
}
