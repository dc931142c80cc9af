package bolttranslate

import (
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Vector type markers, grounded on the Bolt 6.0 vector struct definition
// (original_source/neo4j/src/driver/io/bolt/bolt6x0/translator.rs): a single
// byte identifying the element type, followed by the packed big-endian
// payload.
const (
	vecMarkerF64 byte = 1
	vecMarkerF32 byte = 2
	vecMarkerI64 byte = 3
	vecMarkerI32 byte = 4
	vecMarkerI16 byte = 5
	vecMarkerI8  byte = 6
)

// Bolt6x0Translator embeds the 5.x translator and adds the Vector struct
// ('V'), the only shape Bolt 6.0 introduces (spec.md §4.2).
type Bolt6x0Translator struct {
	base *Bolt5x0Translator
}

func NewBolt6x0Translator() *Bolt6x0Translator {
	return &Bolt6x0Translator{base: NewBolt5x0Translator()}
}

func (t *Bolt6x0Translator) Serialize(s packstream.Serializer, value any) error {
	return writePrimitive(s, value, t.serializeStruct)
}

func (t *Bolt6x0Translator) serializeStruct(s packstream.Serializer, value any) (bool, error) {
	v, ok := value.(values.Vector)
	if !ok {
		return t.base.serializeStruct(s, value)
	}
	return true, writeVector(s, v)
}

func writeVector(s packstream.Serializer, v values.Vector) error {
	if err := s.WriteStructHeader(packstream.TagVector, 2); err != nil {
		return err
	}
	switch v.Kind {
	case values.VectorF64:
		return writeVectorBody(s, vecMarkerF64, len(v.F64)*8, func(b []byte) { putFloat64s(b, v.F64) })
	case values.VectorF32:
		return writeVectorBody(s, vecMarkerF32, len(v.F32)*4, func(b []byte) { putFloat32s(b, v.F32) })
	case values.VectorI64:
		return writeVectorBody(s, vecMarkerI64, len(v.I64)*8, func(b []byte) { putInt64s(b, v.I64) })
	case values.VectorI32:
		return writeVectorBody(s, vecMarkerI32, len(v.I32)*4, func(b []byte) { putInt32s(b, v.I32) })
	case values.VectorI16:
		return writeVectorBody(s, vecMarkerI16, len(v.I16)*2, func(b []byte) { putInt16s(b, v.I16) })
	case values.VectorI8:
		return writeVectorBody(s, vecMarkerI8, len(v.I8), func(b []byte) { putInt8s(b, v.I8) })
	default:
		return packstreamErr("unknown vector kind")
	}
}

func writeVectorBody(s packstream.Serializer, marker byte, byteLen int, fill func([]byte)) error {
	if err := s.WriteBytes([]byte{marker}); err != nil {
		return err
	}
	buf := make([]byte, byteLen)
	fill(buf)
	return s.WriteBytes(buf)
}

func (t *Bolt6x0Translator) DeserializeStruct(tag byte, fields []any) any {
	if tag != packstream.TagVector {
		return t.base.DeserializeStruct(tag, fields)
	}
	if len(fields) != 2 {
		return fieldCountError("vector", tag, 2, len(fields))
	}
	markerBytes, ok1 := fields[0].([]byte)
	data, ok2 := fields[1].([]byte)
	if !ok1 || !ok2 || len(markerBytes) != 1 {
		return values.Broken("malformed vector struct fields")
	}
	return decodeVector(markerBytes[0], data)
}

func decodeVector(marker byte, data []byte) any {
	switch marker {
	case vecMarkerF64:
		if len(data)%8 != 0 {
			return values.Broken("f64 vector data misaligned")
		}
		return values.Vector{Kind: values.VectorF64, F64: readFloat64s(data)}
	case vecMarkerF32:
		if len(data)%4 != 0 {
			return values.Broken("f32 vector data misaligned")
		}
		return values.Vector{Kind: values.VectorF32, F32: readFloat32s(data)}
	case vecMarkerI64:
		if len(data)%8 != 0 {
			return values.Broken("i64 vector data misaligned")
		}
		return values.Vector{Kind: values.VectorI64, I64: readInt64s(data)}
	case vecMarkerI32:
		if len(data)%4 != 0 {
			return values.Broken("i32 vector data misaligned")
		}
		return values.Vector{Kind: values.VectorI32, I32: readInt32s(data)}
	case vecMarkerI16:
		if len(data)%2 != 0 {
			return values.Broken("i16 vector data misaligned")
		}
		return values.Vector{Kind: values.VectorI16, I16: readInt16s(data)}
	case vecMarkerI8:
		return values.Vector{Kind: values.VectorI8, I8: readInt8s(data)}
	default:
		return values.Broken("unknown vector type marker")
	}
}
