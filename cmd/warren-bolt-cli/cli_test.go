package main

import (
	"bytes"
	"io"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/packstream"
)

// fakeServer answers one scripted reply per tag, in the order registered,
// popping from the front of each tag's queue as requests arrive. Mirrors the
// harness pkg/pool and pkg/session tests use for a live Neo4j server.
type fakeServer struct {
	t       *testing.T
	replies map[byte][][]byte
}

func startFakeServer(t *testing.T, replies map[byte][][]byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	fs := &fakeServer{t: t, replies: replies}
	go func() {
		for {
			raw, err := ln.Accept()
			if err != nil {
				return
			}
			go fs.serve(raw)
		}
	}()
	return ln.Addr().String()
}

func (fs *fakeServer) serve(raw net.Conn) {
	defer raw.Close()
	handshake := make([]byte, 20)
	if _, err := io.ReadFull(raw, handshake); err != nil {
		return
	}
	if _, err := raw.Write([]byte{0, 0, 0, 5}); err != nil {
		return
	}
	conn := boltconn.WrapNegotiated(raw, raw.RemoteAddr().String(), boltconn.Version{Major: 5, Minor: 0})

	for {
		msg, err := conn.ReceiveMessage()
		if err != nil {
			return
		}
		dec := packstream.NewDecoder(bytes.NewReader(msg))
		v, err := dec.Decode()
		if err != nil {
			return
		}
		rs, ok := v.(packstream.RawStruct)
		if !ok {
			continue
		}
		queue := fs.replies[rs.Tag]
		if len(queue) == 0 {
			continue
		}
		reply := queue[0]
		fs.replies[rs.Tag] = queue[1:]
		if err := conn.SendMessage(reply); err != nil {
			return
		}
	}
}

func encodeSuccess(t *testing.T, meta map[string]any) []byte {
	t.Helper()
	return encodeStructTest(t, 0x70, meta)
}

func encodeStructTest(t *testing.T, tag byte, meta map[string]any) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := packstream.NewEncoder(&buf)
	require.NoError(t, enc.WriteStructHeader(tag, 1))
	require.NoError(t, enc.WriteMapHeader(len(meta)))
	for k, v := range meta {
		require.NoError(t, enc.WriteString(k))
		switch vv := v.(type) {
		case string:
			require.NoError(t, enc.WriteString(vv))
		case bool:
			require.NoError(t, enc.WriteBool(vv))
		case int64:
			require.NoError(t, enc.WriteInt(vv))
		case []string:
			require.NoError(t, enc.WriteListHeader(len(vv)))
			for _, s := range vv {
				require.NoError(t, enc.WriteString(s))
			}
		case map[string]any:
			require.NoError(t, enc.WriteMapHeader(len(vv)))
			for mk, mv := range vv {
				require.NoError(t, enc.WriteString(mk))
				writeRouteValue(t, enc, mv)
			}
		case []any:
			require.NoError(t, enc.WriteListHeader(len(vv)))
			for _, item := range vv {
				writeRouteValue(t, enc, item)
			}
		default:
			t.Fatalf("encodeStructTest: unsupported type %T", v)
		}
	}
	return buf.Bytes()
}

func writeRouteValue(t *testing.T, enc *packstream.Encoder, v any) {
	t.Helper()
	switch vv := v.(type) {
	case string:
		require.NoError(t, enc.WriteString(vv))
	case int64:
		require.NoError(t, enc.WriteInt(vv))
	case []string:
		require.NoError(t, enc.WriteListHeader(len(vv)))
		for _, s := range vv {
			require.NoError(t, enc.WriteString(s))
		}
	case map[string]any:
		require.NoError(t, enc.WriteMapHeader(len(vv)))
		for mk, mv := range vv {
			require.NoError(t, enc.WriteString(mk))
			writeRouteValue(t, enc, mv)
		}
	case []any:
		require.NoError(t, enc.WriteListHeader(len(vv)))
		for _, item := range vv {
			writeRouteValue(t, enc, item)
		}
	default:
		t.Fatalf("writeRouteValue: unsupported type %T", v)
	}
}

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}
