package driver

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-bolt/pkg/auth"
	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

func TestParseURI(t *testing.T) {
	cases := []struct {
		uri        string
		wantRouted bool
		wantTLS    boltconn.TLSMode
		wantAddr   string
	}{
		{"bolt://localhost", false, boltconn.TLSDisabled, "localhost:7687"},
		{"bolt+s://db.example.com:7687", false, boltconn.TLSSystemCA, "db.example.com:7687"},
		{"bolt+ssc://db.example.com", false, boltconn.TLSInsecure, "db.example.com:7687"},
		{"neo4j://localhost:7688", true, boltconn.TLSDisabled, "localhost:7688"},
		{"neo4j+s://aura.example.com", true, boltconn.TLSSystemCA, "aura.example.com:7687"},
		{"neo4j+ssc://localhost", true, boltconn.TLSInsecure, "localhost:7687"},
	}
	for _, c := range cases {
		routed, tlsMode, addr, err := parseURI(c.uri)
		require.NoError(t, err, c.uri)
		assert.Equal(t, c.wantRouted, routed, c.uri)
		assert.Equal(t, c.wantTLS, tlsMode, c.uri)
		assert.Equal(t, c.wantAddr, addr, c.uri)
	}
}

func TestParseURI_RejectsUnknownScheme(t *testing.T) {
	_, _, _, err := parseURI("http://localhost")
	assert.Error(t, err)
}

func TestParseURI_RejectsMissingHost(t *testing.T) {
	_, _, _, err := parseURI("bolt://")
	assert.Error(t, err)
}

// --- fake Bolt server, mirroring pkg/pool's test harness ---

func startFakeBoltServer(t *testing.T, newReplies func() map[byte][][]byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFakeConn(conn, newReplies())
		}
	}()
	return ln.Addr().String()
}

func serveFakeConn(raw net.Conn, replies map[byte][][]byte) {
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
		queue := replies[rs.Tag]
		if len(queue) == 0 {
			continue
		}
		reply := queue[0]
		replies[rs.Tag] = queue[1:]
		if err := conn.SendMessage(reply); err != nil {
			return
		}
	}
}

func encodeStruct(t *testing.T, tag byte, meta map[string]any) []byte {
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
		case []string:
			require.NoError(t, enc.WriteListHeader(len(vv)))
			for _, s := range vv {
				require.NoError(t, enc.WriteString(s))
			}
		default:
			t.Fatalf("encodeStruct: unsupported meta value %T", v)
		}
	}
	return buf.Bytes()
}

func driverRunReplies(t *testing.T) func() map[byte][][]byte {
	return func() map[byte][][]byte {
		return map[byte][][]byte{
			bolt.TagHello: {encodeStruct(t, bolt.TagSuccess, map[string]any{"server": "Neo4j/5.20.0"})},
			bolt.TagRun:   {encodeStruct(t, bolt.TagSuccess, map[string]any{"fields": []string{"n"}})},
			bolt.TagPull:  {encodeStruct(t, bolt.TagSuccess, map[string]any{"has_more": false, "bookmark": "bm:1"})},
		}
	}
}

func TestDriver_ExecuteQuery_AutoCommit(t *testing.T) {
	addr := startFakeBoltServer(t, driverRunReplies(t))

	d, err := New("bolt://"+addr, Config{
		Auth:                         auth.Static{Token: values.AuthToken{"scheme": "none"}},
		ConnectionTimeout:            2 * time.Second,
		ConnectionAcquisitionTimeout: 2 * time.Second,
		MaxConnectionPoolSize:        2,
	})
	require.NoError(t, err)
	defer d.Close()

	res, err := d.ExecuteQuery(context.Background(), "RETURN 1 AS n", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.Keys)
	assert.Equal(t, "bm:1", res.Summary.Bookmark)
}

func TestNew_RequiresAuth(t *testing.T) {
	_, err := New("bolt://localhost", Config{})
	assert.Error(t, err)
}
