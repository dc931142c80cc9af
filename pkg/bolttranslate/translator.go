// Package bolttranslate maps between PackStream structs and the semantic
// value model of pkg/values, one translator per Bolt minor version family.
// Higher versions are modelled by embedding the lower-version translator as
// a field and delegating unchanged behaviours — "layering by delegation, not
// inheritance" (spec.md §4.2/§9): each translator is a concrete type owning
// its predecessor, never a subclass.
package bolttranslate

import (
	"fmt"

	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Translator is implemented by every Bolt-version-specific translator.
// Serialize fails with a descriptive error when a value cannot be
// represented on the wire (spec.md §4.2: "<type> out of bounds"-class
// errors); DeserializeStruct always succeeds, falling back to a BrokenValue.
type Translator interface {
	Serialize(s packstream.Serializer, value any) error
	DeserializeStruct(tag byte, fields []any) any
}

// toInt64 coerces packstream's decoded field (always int64, or occasionally
// another numeric Go type when constructed in tests) into an int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func fieldCountError(kind string, tag byte, want, got int) values.BrokenValue {
	return values.Broken(fmt.Sprintf("expected %d fields for %s struct %q, found %d", want, kind, string(tag), got))
}

// writePrimitive handles every value kind that every translator agrees on:
// null, bool, int, float, bytes, string, lists, and maps. It recurses through
// serializeStruct for anything it doesn't recognise, so each translator's
// Serialize method only needs to special-case its own struct types.
func writePrimitive(s packstream.Serializer, value any, serializeStruct func(packstream.Serializer, any) (bool, error)) error {
	switch v := value.(type) {
	case nil:
		return s.WriteNull()
	case bool:
		return s.WriteBool(v)
	case int64:
		return s.WriteInt(v)
	case int:
		return s.WriteInt(int64(v))
	case float64:
		return s.WriteFloat(v)
	case []byte:
		return s.WriteBytes(v)
	case string:
		return s.WriteString(v)
	case []any:
		if err := s.WriteListHeader(len(v)); err != nil {
			return err
		}
		for _, el := range v {
			if err := writePrimitive(s, el, serializeStruct); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		if err := s.WriteMapHeader(len(v)); err != nil {
			return err
		}
		for k, el := range v {
			if err := s.WriteString(k); err != nil {
				return err
			}
			if err := writePrimitive(s, el, serializeStruct); err != nil {
				return err
			}
		}
		return nil
	case values.AuthToken:
		return writePrimitive(s, map[string]any(v), serializeStruct)
	default:
		handled, err := serializeStruct(s, value)
		if err != nil {
			return err
		}
		if !handled {
			return fmt.Errorf("bolttranslate: value of type %T out of bounds for this protocol version", value)
		}
		return nil
	}
}
