package bolttranslate

import (
	"encoding/binary"
	"errors"
	"math"
)

func packstreamErr(msg string) error { return errors.New("bolttranslate: " + msg) }

func putFloat64s(b []byte, v []float64) {
	for i, f := range v {
		binary.BigEndian.PutUint64(b[i*8:], math.Float64bits(f))
	}
}

func putFloat32s(b []byte, v []float32) {
	for i, f := range v {
		binary.BigEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
}

func putInt64s(b []byte, v []int64) {
	for i, n := range v {
		binary.BigEndian.PutUint64(b[i*8:], uint64(n))
	}
}

func putInt32s(b []byte, v []int32) {
	for i, n := range v {
		binary.BigEndian.PutUint32(b[i*4:], uint32(n))
	}
}

func putInt16s(b []byte, v []int16) {
	for i, n := range v {
		binary.BigEndian.PutUint16(b[i*2:], uint16(n))
	}
}

func putInt8s(b []byte, v []int8) {
	for i, n := range v {
		b[i] = byte(n)
	}
}

func readFloat64s(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(b[i*8:]))
	}
	return out
}

func readFloat32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4:]))
	}
	return out
}

func readInt64s(b []byte) []int64 {
	out := make([]int64, len(b)/8)
	for i := range out {
		out[i] = int64(binary.BigEndian.Uint64(b[i*8:]))
	}
	return out
}

func readInt32s(b []byte) []int32 {
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
	}
	return out
}

func readInt16s(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(b[i*2:]))
	}
	return out
}

func readInt8s(b []byte) []int8 {
	out := make([]int8, len(b))
	for i, by := range b {
		out[i] = int8(by)
	}
	return out
}
