package packstream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeInt(t *testing.T, i int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.WriteInt(i))
	return buf.Bytes()
}

func TestInt_MarkerSelection(t *testing.T) {
	assert.Len(t, encodeInt(t, 100), 1, "tiny int")
	assert.Len(t, encodeInt(t, -128), 2, "int8")
	assert.Len(t, encodeInt(t, 30000), 3, "int16")
	assert.Len(t, encodeInt(t, 70000), 5, "int32")
	assert.Len(t, encodeInt(t, 1<<40), 9, "int64")
}

func TestInt_RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, -16, 127, 128, -128, -129, 32767, -32768, 32768, 2147483647, -2147483648, 2147483648, 1 << 40, -(1 << 40)}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, NewEncoder(&buf).WriteInt(v))
		dec := NewDecoder(&buf)
		got, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestString_MarkerThresholds(t *testing.T) {
	cases := []struct {
		size     int
		wantHead byte
	}{
		{0, tinyStringBase},
		{15, tinyStringBase + 15},
		{16, MarkerString8},
		{255, MarkerString8},
		{256, MarkerString16},
		{65535, MarkerString16},
		{65536, MarkerString32},
	}
	for _, c := range cases {
		s := string(make([]byte, c.size))
		var buf bytes.Buffer
		require.NoError(t, NewEncoder(&buf).WriteString(s))
		assert.Equal(t, c.wantHead, buf.Bytes()[0], "size=%d", c.size)
	}
}

func TestListHeader_MarkerThresholds(t *testing.T) {
	cases := []struct {
		size int
		want byte
	}{
		{0, tinyListBase},
		{15, tinyListBase + 15},
		{16, MarkerList8},
		{255, MarkerList8},
		{256, MarkerList16},
		{65536, MarkerList32},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		require.NoError(t, NewEncoder(&buf).WriteListHeader(c.size))
		assert.Equal(t, c.want, buf.Bytes()[0])
	}
}

func TestStruct_TooManyFieldsRejected(t *testing.T) {
	var buf bytes.Buffer
	err := NewEncoder(&buf).WriteStructHeader('N', 16)
	assert.ErrorIs(t, err, ErrTooManyFields)
}

func TestDecode_UnknownMarkerIsFramingError(t *testing.T) {
	buf := bytes.NewReader([]byte{0xC4})
	_, err := NewDecoder(buf).Decode()
	require.Error(t, err)
	var fe *FramingError
	assert.ErrorAs(t, err, &fe)
}

func TestRoundTrip_ListAndMap(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.WriteListHeader(2))
	require.NoError(t, enc.WriteInt(1))
	require.NoError(t, enc.WriteString("x"))

	dec := NewDecoder(&buf)
	got, err := dec.Decode()
	require.NoError(t, err)
	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0])
	assert.Equal(t, "x", list[1])
}

func TestRoundTrip_Struct(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.WriteStructHeader(TagNode, 1))
	require.NoError(t, enc.WriteInt(42))

	got, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)
	rs, ok := got.(RawStruct)
	require.True(t, ok)
	assert.Equal(t, TagNode, rs.Tag)
	assert.Equal(t, []any{int64(42)}, rs.Fields)
}

func TestFloat_BitExactRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).WriteFloat(3.14159265358979))
	got, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)
	assert.Equal(t, 3.14159265358979, got)
}
