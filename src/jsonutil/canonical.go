// Package jsonutil provides deterministic JSON serialization for
// content-addressed hashing of attacker decisions and context.
package jsonutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// Canonical serializes v into a stable form: object keys sorted, no
// insignificant whitespace, ASCII-only. Two values that are equal after
// decoding always produce the same bytes, so the result can be hashed
// directly as a cache key.
func Canonical(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	var ascii bytes.Buffer
	for _, r := range string(bytes.TrimRight(buf.Bytes(), "\n")) {
		switch {
		case r < utf8.RuneSelf:
			ascii.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&ascii, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&ascii, `\u%04x`, r)
		}
	}
	return ascii.Bytes(), nil
}

// normalize round-trips v through encoding/json so map[string]any key
// order becomes deterministic regardless of how v was constructed, then
// walks the result rewriting every object into an ordered key/value
// slice so json.Marshal emits keys in sorted order.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return sortValue(decoded), nil
}

func sortValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, kv{key: k, value: sortValue(t[k])})
		}
		return pairs
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sortValue(item)
		}
		return out
	default:
		return v
	}
}

type kv struct {
	key   string
	value any
}

// orderedMap marshals as a JSON object preserving insertion order, which
// sortValue has already sorted by key.
type orderedMap []kv

func (m orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pair := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(pair.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		valJSON, err := marshalNoIndent(pair.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// HashAgentAction returns the hex SHA-256 digest of the canonical JSON
// form of a defender agent action.
func HashAgentAction(agentAction any) (string, error) {
	return hashCanonical(agentAction)
}

// HashAttackerContext returns the hex SHA-256 digest of the canonical
// JSON form of an attacker context snapshot, or the sentinel "none" when
// ctx is nil.
func HashAttackerContext(ctx any) (string, error) {
	if ctx == nil {
		return "none", nil
	}
	return hashCanonical(ctx)
}

func hashCanonical(v any) (string, error) {
	canon, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
