package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Patch maps store field names (the JSON names of the entity fields) to new values.
type Patch map[string]any

// Keys returns the patched field names.
func (p Patch) Keys() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

// Clone returns a shallow copy of p.
func (p Patch) Clone() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ApplyPatch returns a copy of v with the patch fields overwritten.
// Unknown keys are ignored.
func ApplyPatch[T any](v T, p Patch) (T, error) {
	var zero T
	raw, err := json.Marshal(v)
	if err != nil {
		return zero, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return zero, err
	}
	for k, val := range p {
		m[k] = val
	}
	raw, err = json.Marshal(m)
	if err != nil {
		return zero, fmt.Errorf("apply patch: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("apply patch: %w", err)
	}
	return out, nil
}

// Decode builds an entity from a store document. The document id always wins over any "id"
// field present in data.
func Decode[T any](id string, data map[string]any) (T, error) {
	var out T
	m := make(map[string]any, len(data)+1)
	for k, v := range data {
		m[k] = v
	}
	m["id"] = id
	raw, err := json.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("decode %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", id, err)
	}
	return out, nil
}

var timeType = reflect.TypeOf(time.Time{})

// Fields converts an entity into store fields keyed by JSON name, without the id.
// Top-level timestamps stay time.Time so backends can store them natively; nested values are
// normalized through JSON.
func Fields(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("fields: nil value")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("fields: expected struct, got %s", rv.Kind())
	}
	rt := rv.Type()
	out := map[string]any{}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, omitEmpty := jsonName(sf)
		if name == "" || name == "-" || name == "id" {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		switch {
		case sf.Type == timeType:
			out[name] = fv.Interface()
		case sf.Type.Kind() == reflect.Pointer && sf.Type.Elem() == timeType:
			if fv.IsNil() {
				out[name] = nil
			} else {
				out[name] = fv.Elem().Interface()
			}
		default:
			raw, err := json.Marshal(fv.Interface())
			if err != nil {
				return nil, fmt.Errorf("fields: %s: %w", name, err)
			}
			var norm any
			if err := json.Unmarshal(raw, &norm); err != nil {
				return nil, fmt.Errorf("fields: %s: %w", name, err)
			}
			out[name] = norm
		}
	}
	return out, nil
}

func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name, false
	}
	parts := strings.Split(tag, ",")
	omit := false
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omit = true
		}
	}
	return parts[0], omit
}
