package packstream

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// RawStruct is what the decoder produces for any 0xB0-0xBF marker: a tag
// byte plus its decoded fields. Interpreting a RawStruct into a semantic
// value (Node, Point, BrokenValue, ...) is the job of pkg/bolttranslate —
// packstream itself never fails on an unknown tag, per spec.md §4.2's
// "deserialize_struct always succeeds" contract.
type RawStruct struct {
	Tag    byte
	Fields []any
}

// Decoder reads PackStream-encoded values from a byte stream. Decode returns
// one of: nil, bool, int64, float64, []byte, string, []any, map[string]any,
// or RawStruct.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br}
}

// FramingError is a decode-time failure: a malformed marker, an impossible
// size, or a read failure. It is always fatal to the connection (ProtocolError
// territory) — unlike a BrokenValue, which covers a well-framed but
// semantically unrepresentable value.
type FramingError struct {
	msg string
}

func (e *FramingError) Error() string { return "packstream: " + e.msg }

func framingErrorf(format string, args ...any) error {
	return &FramingError{msg: fmt.Sprintf(format, args...)}
}

func (d *Decoder) Decode() (any, error) {
	marker, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	return d.decodeValue(marker)
}

func (d *Decoder) decodeValue(marker byte) (any, error) {
	switch {
	case marker == MarkerNull:
		return nil, nil
	case marker == MarkerFalse:
		return false, nil
	case marker == MarkerTrue:
		return true, nil
	case marker == MarkerFloat:
		bits, err := d.readU64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case isTinyInt(marker):
		return int64(int8(marker)), nil
	case marker == MarkerInt8:
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		return int64(int8(b)), nil
	case marker == MarkerInt16:
		v, err := d.readU16()
		if err != nil {
			return nil, err
		}
		return int64(int16(v)), nil
	case marker == MarkerInt32:
		v, err := d.readU32()
		if err != nil {
			return nil, err
		}
		return int64(int32(v)), nil
	case marker == MarkerInt64:
		v, err := d.readU64()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case marker == MarkerBytes8, marker == MarkerBytes16, marker == MarkerBytes32:
		size, err := d.readSize(marker, MarkerBytes8, MarkerBytes16, MarkerBytes32)
		if err != nil {
			return nil, err
		}
		return d.readBytes(size)
	case marker >= tinyStringBase && marker <= tinyStringMax:
		return d.readString(int(marker - tinyStringBase))
	case marker == MarkerString8, marker == MarkerString16, marker == MarkerString32:
		size, err := d.readSize(marker, MarkerString8, MarkerString16, MarkerString32)
		if err != nil {
			return nil, err
		}
		return d.readString(size)
	case marker >= tinyListBase && marker <= tinyListMax:
		return d.readList(int(marker - tinyListBase))
	case marker == MarkerList8, marker == MarkerList16, marker == MarkerList32:
		size, err := d.readSize(marker, MarkerList8, MarkerList16, MarkerList32)
		if err != nil {
			return nil, err
		}
		return d.readList(size)
	case marker >= tinyMapBase && marker <= tinyMapMax:
		return d.readMap(int(marker - tinyMapBase))
	case marker == MarkerMap8, marker == MarkerMap16, marker == MarkerMap32:
		size, err := d.readSize(marker, MarkerMap8, MarkerMap16, MarkerMap32)
		if err != nil {
			return nil, err
		}
		return d.readMap(size)
	case marker >= tinyStructBase && marker <= tinyStructMax:
		return d.readStruct(int(marker - tinyStructBase))
	default:
		return nil, framingErrorf("unknown marker byte 0x%02X", marker)
	}
}

// isTinyInt recognises the two byte ranges PackStream reserves for a tiny
// int encoded as the marker byte itself: 0x00-0x7F (0..127) and 0xF0-0xFF
// (-16..-1, two's complement).
func isTinyInt(marker byte) bool {
	return marker <= 0x7F || marker >= 0xF0
}

func (d *Decoder) readSize(marker, m8, m16, m32 byte) (int, error) {
	switch marker {
	case m8:
		b, err := d.r.ReadByte()
		return int(b), err
	case m16:
		v, err := d.readU16()
		return int(v), err
	case m32:
		v, err := d.readU32()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt32 {
			return 0, framingErrorf("size %d exceeds platform limits", v)
		}
		return int(v), nil
	}
	return 0, framingErrorf("unreachable size marker 0x%02X", marker)
}

func (d *Decoder) readU16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (d *Decoder) readU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (d *Decoder) readU64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (d *Decoder) readBytes(size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Decoder) readString(size int) (string, error) {
	buf, err := d.readBytes(size)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (d *Decoder) readList(size int) ([]any, error) {
	out := make([]any, size)
	for i := 0; i < size; i++ {
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *Decoder) readMap(size int) (map[string]any, error) {
	out := make(map[string]any, size)
	for i := 0; i < size; i++ {
		key, err := d.Decode()
		if err != nil {
			return nil, err
		}
		ks, ok := key.(string)
		if !ok {
			return nil, framingErrorf("map key is not a string: %T", key)
		}
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		out[ks] = v
	}
	return out, nil
}

func (d *Decoder) readStruct(fieldCount int) (RawStruct, error) {
	tag, err := d.r.ReadByte()
	if err != nil {
		return RawStruct{}, err
	}
	fields := make([]any, fieldCount)
	for i := 0; i < fieldCount; i++ {
		v, err := d.Decode()
		if err != nil {
			return RawStruct{}, err
		}
		fields[i] = v
	}
	return RawStruct{Tag: tag, Fields: fields}, nil
}
