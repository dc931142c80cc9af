package packstream

import (
	"errors"
	"io"
	"math"
)

// Serializer is the shared interface between the byte-sink encoder and the
// human-readable trace encoder (pkg/packstream/trace.go), so debug logging
// costs nothing when disabled: callers construct a TraceEncoder only when
// the logger's debug level is actually enabled.
type Serializer interface {
	WriteNull() error
	WriteBool(b bool) error
	WriteInt(i int64) error
	WriteFloat(f float64) error
	WriteBytes(b []byte) error
	WriteString(s string) error
	WriteListHeader(size int) error
	WriteMapHeader(size int) error
	WriteStructHeader(tag byte, fields int) error
}

// Marshaler is implemented by any value this package knows how to encode.
// Translators (pkg/bolttranslate) implement it for the semantic value model.
type Marshaler interface {
	MarshalPackStream(s Serializer) error
}

var (
	ErrBytesTooLarge  = errors.New("packstream: bytes exceed max size of 4294967295")
	ErrStringTooLarge = errors.New("packstream: string exceeds max size of 4294967295 bytes")
	ErrListTooLarge   = errors.New("packstream: list exceeds max size of 4294967295")
	ErrMapTooLarge    = errors.New("packstream: map exceeds max size of 4294967295")
	ErrTooManyFields  = errors.New("packstream: structure exceeds max number of fields (15)")
)

// Encoder writes PackStream-encoded bytes to an io.Writer.
type Encoder struct {
	w   io.Writer
	buf [9]byte
}

func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

func (e *Encoder) WriteNull() error { return e.write1(MarkerNull) }

func (e *Encoder) WriteBool(b bool) error {
	if b {
		return e.write1(MarkerTrue)
	}
	return e.write1(MarkerFalse)
}

func (e *Encoder) WriteInt(i int64) error {
	switch {
	case -16 <= i && i <= 127:
		return e.write1(byte(int8(i)))
	case -128 <= i && i <= 127:
		e.buf[0] = MarkerInt8
		e.buf[1] = byte(int8(i))
		return e.writeN(2)
	case -32768 <= i && i <= 32767:
		e.buf[0] = MarkerInt16
		putBE16(e.buf[1:], uint16(int16(i)))
		return e.writeN(3)
	case -2147483648 <= i && i <= 2147483647:
		e.buf[0] = MarkerInt32
		putBE32(e.buf[1:], uint32(int32(i)))
		return e.writeN(5)
	default:
		e.buf[0] = MarkerInt64
		putBE64(e.buf[1:], uint64(i))
		return e.writeN(9)
	}
}

func (e *Encoder) WriteFloat(f float64) error {
	e.buf[0] = MarkerFloat
	putBE64(e.buf[1:], math.Float64bits(f))
	return e.writeN(9)
}

func (e *Encoder) WriteBytes(b []byte) error {
	size := len(b)
	switch {
	case size <= 0xFF:
		if err := e.write2(MarkerBytes8, byte(size)); err != nil {
			return err
		}
	case size <= 0xFFFF:
		if err := e.writeHeader16(MarkerBytes16, uint16(size)); err != nil {
			return err
		}
	case int64(size) <= 0xFFFFFFFF:
		if err := e.writeHeader32(MarkerBytes32, uint32(size)); err != nil {
			return err
		}
	default:
		return ErrBytesTooLarge
	}
	_, err := e.w.Write(b)
	return err
}

func (e *Encoder) WriteString(s string) error {
	bs := []byte(s)
	size := len(bs)
	switch {
	case size <= 15:
		if err := e.write1(tinyStringBase + byte(size)); err != nil {
			return err
		}
	case size <= 0xFF:
		if err := e.write2(MarkerString8, byte(size)); err != nil {
			return err
		}
	case size <= 0xFFFF:
		if err := e.writeHeader16(MarkerString16, uint16(size)); err != nil {
			return err
		}
	case int64(size) <= 0xFFFFFFFF:
		if err := e.writeHeader32(MarkerString32, uint32(size)); err != nil {
			return err
		}
	default:
		return ErrStringTooLarge
	}
	_, err := e.w.Write(bs)
	return err
}

func (e *Encoder) WriteListHeader(size int) error {
	switch {
	case size <= 15:
		return e.write1(tinyListBase + byte(size))
	case size <= 0xFF:
		return e.write2(MarkerList8, byte(size))
	case size <= 0xFFFF:
		return e.writeHeader16(MarkerList16, uint16(size))
	case int64(size) <= 0xFFFFFFFF:
		return e.writeHeader32(MarkerList32, uint32(size))
	default:
		return ErrListTooLarge
	}
}

func (e *Encoder) WriteMapHeader(size int) error {
	switch {
	case size <= 15:
		return e.write1(tinyMapBase + byte(size))
	case size <= 0xFF:
		return e.write2(MarkerMap8, byte(size))
	case size <= 0xFFFF:
		return e.writeHeader16(MarkerMap16, uint16(size))
	case int64(size) <= 0xFFFFFFFF:
		return e.writeHeader32(MarkerMap32, uint32(size))
	default:
		return ErrMapTooLarge
	}
}

func (e *Encoder) WriteStructHeader(tag byte, fields int) error {
	if fields > MaxStructFields {
		return ErrTooManyFields
	}
	return e.write2(tinyStructBase+byte(fields), tag)
}

func (e *Encoder) write1(b byte) error {
	e.buf[0] = b
	return e.writeN(1)
}

func (e *Encoder) write2(a, b byte) error {
	e.buf[0] = a
	e.buf[1] = b
	return e.writeN(2)
}

func (e *Encoder) writeHeader16(marker byte, size uint16) error {
	e.buf[0] = marker
	putBE16(e.buf[1:], size)
	return e.writeN(3)
}

func (e *Encoder) writeHeader32(marker byte, size uint32) error {
	e.buf[0] = marker
	putBE32(e.buf[1:], size)
	return e.writeN(5)
}

func (e *Encoder) writeN(n int) error {
	_, err := e.w.Write(e.buf[:n])
	return err
}

func putBE16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func putBE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}
