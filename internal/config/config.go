package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Map is a string-keyed configuration mapping. Values are scalars, nested
// mappings or sequences, as produced by decoding YAML into interface values.
type Map map[string]any

// Merge layers src over dst and returns dst. Mappings present on both sides
// are merged recursively; any other src value replaces the dst value. A nil
// src leaves dst unchanged.
func Merge(dst, src Map) Map {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = Map{}
	}
	for key, sv := range src {
		srcMap, srcIsMap := asMap(sv)
		dstMap, dstIsMap := asMap(dst[key])
		if srcIsMap && dstIsMap {
			Merge(dstMap, srcMap)
			continue
		}
		dst[key] = copyValue(sv)
	}
	return dst
}

// Copy returns a deep copy of m. Nested mappings and sequences are copied;
// scalars are shared.
func Copy(m Map) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch m := v.(type) {
	case Map:
		return Copy(m)
	case map[string]any:
		return map[string]any(Copy(Map(m)))
	}
	if s, ok := v.([]any); ok {
		c := make([]any, len(s))
		for i := range s {
			c[i] = copyValue(s[i])
		}
		return c
	}
	return v
}

func asMap(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		return m, m != nil
	case map[string]any:
		return Map(m), m != nil
	default:
		return nil, false
	}
}

// Has reports whether key is present with a non-nil value.
func (m Map) Has(key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// Sub returns the mapping stored under key, or nil if the key is absent,
// null or not a mapping.
func (m Map) Sub(key string) Map {
	sub, _ := asMap(m[key])
	return sub
}

func (m Map) String(key, def string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func (m Map) Float(key string, def float64) float64 {
	if f, ok := toFloat(m[key]); ok {
		return f
	}
	return def
}

func (m Map) Int(key string, def int) int {
	if f, ok := toFloat(m[key]); ok {
		return int(f)
	}
	return def
}

func (m Map) Bool(key string, def bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Strings returns the value under key as a string list. A single string is
// treated as a one-element list.
func (m Map) Strings(key string) []string {
	switch v := m[key].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// StringMap returns a mapping of string values, stringifying scalars.
func (m Map) StringMap(key string) map[string]string {
	sub := m.Sub(key)
	if len(sub) == 0 {
		return nil
	}
	out := make(map[string]string, len(sub))
	for k, v := range sub {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Number extracts a float from a YAML-decoded scalar.
func Number(v any) (float64, bool) { return toFloat(v) }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// LoadMap reads a YAML document into a Map. An empty document yields an
// empty Map.
func LoadMap(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMap(data)
}

func ParseMap(data []byte) (Map, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}

// Save writes m as YAML.
func Save(path string, m Map) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
