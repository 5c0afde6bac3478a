// Package dig reads values out of loosely typed, partially absent trees such
// as decoded JSON documents. Every lookup either finds a value or reports it
// absent; nothing in this package returns an error or panics.
package dig

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Get walks root one hop per path element. String keys index maps with
// string keys and struct fields (by Go name or json tag). Int keys index
// slices and arrays. A nil value or a missing key at any hop reports absent.
func Get(root any, path ...any) (v any, ok bool) {
	defer func() {
		if recover() != nil {
			v, ok = nil, false
		}
	}()

	cur := root
	for _, key := range path {
		if isNil(cur) {
			return nil, false
		}
		next, found := step(cur, key)
		if !found {
			return nil, false
		}
		cur = next
	}
	if isNil(cur) {
		return nil, false
	}
	return cur, true
}

func step(cur any, key any) (any, bool) {
	// fast paths for decoded JSON
	switch node := cur.(type) {
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, false
		}
		v, ok := node[k]
		return v, ok
	case []any:
		i, ok := key.(int)
		if !ok || i < 0 || i >= len(node) {
			return nil, false
		}
		return node[i], true
	}

	rv := reflect.ValueOf(cur)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		k, ok := key.(string)
		if !ok || rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		v := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		i, ok := key.(int)
		if !ok || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Struct:
		k, ok := key.(string)
		if !ok {
			return nil, false
		}
		return structField(rv, k)
	}
	return nil, false
}

func structField(rv reflect.Value, name string) (any, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if f.Name == name || (tag != "" && tag != "-" && tag == name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// String returns the string at path, or def when absent or not a string.
func String(root any, def string, path ...any) string {
	v, ok := Get(root, path...)
	if !ok {
		return def
	}
	if p, isPtr := v.(*string); isPtr {
		return *p
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Float returns the number at path, or def. Numeric strings and json.Number
// values are parsed.
func Float(root any, def float64, path ...any) float64 {
	v, ok := Get(root, path...)
	if !ok {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return f
}

// LookupFloat is Float with an explicit presence flag instead of a default.
func LookupFloat(root any, path ...any) (float64, bool) {
	v, ok := Get(root, path...)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Int returns the integer at path, or def. Fractional numbers are truncated.
func Int(root any, def int, path ...any) int {
	v, ok := Get(root, path...)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	return int(f)
}

// Bool returns the boolean at path, or def.
func Bool(root any, def bool, path ...any) bool {
	v, ok := Get(root, path...)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case *bool:
		return *b
	}
	return def
}

// Strings returns the string elements of the sequence at path in order.
// Non-string elements are skipped. Absent or non-sequence values yield nil.
func Strings(root any, path ...any) []string {
	v, ok := Get(root, path...)
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// First returns the first element of the sequence at path.
func First(root any, path ...any) (any, bool) {
	return Get(root, append(append([]any(nil), path...), 0)...)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case *float64:
		return *n, true
	case *float32:
		return float64(*n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
