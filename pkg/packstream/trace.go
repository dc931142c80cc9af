package packstream

import (
	"fmt"
	"strconv"
	"strings"
)

// TraceEncoder renders the same structure as Encoder but as a human-readable
// string, for debug logging. Construct one only when the caller's logger has
// debug logging enabled (see pkg/log) — that keeps the no-allocation
// fallthrough spec.md §4.1 requires when debug logging is off, since nothing
// ever builds a TraceEncoder in that case.
type TraceEncoder struct {
	b strings.Builder
}

func NewTraceEncoder() *TraceEncoder { return &TraceEncoder{} }

func (t *TraceEncoder) String() string { return t.b.String() }

func (t *TraceEncoder) WriteNull() error { t.b.WriteString("Null"); return nil }

func (t *TraceEncoder) WriteBool(b bool) error {
	t.b.WriteString(strconv.FormatBool(b))
	return nil
}

func (t *TraceEncoder) WriteInt(i int64) error {
	t.b.WriteString(strconv.FormatInt(i, 10))
	return nil
}

func (t *TraceEncoder) WriteFloat(f float64) error {
	t.b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func (t *TraceEncoder) WriteBytes(b []byte) error {
	fmt.Fprintf(&t.b, "#[%d bytes]", len(b))
	return nil
}

func (t *TraceEncoder) WriteString(s string) error {
	t.b.WriteByte('"')
	t.b.WriteString(s)
	t.b.WriteByte('"')
	return nil
}

func (t *TraceEncoder) WriteListHeader(size int) error {
	fmt.Fprintf(&t.b, "List(%d)", size)
	return nil
}

func (t *TraceEncoder) WriteMapHeader(size int) error {
	fmt.Fprintf(&t.b, "Map(%d)", size)
	return nil
}

func (t *TraceEncoder) WriteStructHeader(tag byte, fields int) error {
	fmt.Fprintf(&t.b, "Struct(tag=0x%02X, fields=%d)", tag, fields)
	return nil
}
