package pool

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/routing"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// startFakeBoltServer accepts TCP connections, negotiates Bolt 5.0, and
// replies to each incoming request from a fresh per-connection reply queue,
// standing in for a live Neo4j server.
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
	if _, err := raw.Write([]byte{0, 0, 0, 5}); err != nil { // chooses Bolt 5.0
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
		s, ok := v.(string)
		require.True(t, ok, "test helper only supports string meta values")
		require.NoError(t, enc.WriteString(s))
	}
	return buf.Bytes()
}

func helloOnlyReplies(t *testing.T) func() map[byte][][]byte {
	return func() map[byte][][]byte {
		return map[byte][][]byte{
			0x01: {encodeStruct(t, 0x70, map[string]any{"server": "Neo4j/5.0.0"})}, // TagHello -> TagSuccess
		}
	}
}

func testConfig(address string) Config {
	return Config{
		Seeds:          []string{address},
		ConnectTimeout: 2 * time.Second,
		AcquireTimeout: 2 * time.Second,
		MaxPerAddress:  2,
	}
}

var testToken = values.AuthToken{"scheme": "none"}

func TestAddressPool_ReusesReleasedConnection(t *testing.T) {
	addr := startFakeBoltServer(t, helloOnlyReplies(t))
	ap := newAddressPool(addr, testConfig(addr))

	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)

	pc, err := ap.acquire(ctx, deadline, testToken)
	require.NoError(t, err)
	ap.release(pc, false)

	pc2, err := ap.acquire(ctx, deadline, testToken)
	require.NoError(t, err)
	assert.Same(t, pc, pc2)

	stats := ap.stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 0, stats.Idle)
}

func TestAddressPool_DirtyReleaseDiscardsConnection(t *testing.T) {
	addr := startFakeBoltServer(t, helloOnlyReplies(t))
	ap := newAddressPool(addr, testConfig(addr))

	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)

	pc, err := ap.acquire(ctx, deadline, testToken)
	require.NoError(t, err)
	ap.release(pc, true)

	stats := ap.stats()
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Idle)
}

func TestAddressPool_AcquireFailsPastDeadline(t *testing.T) {
	addr := startFakeBoltServer(t, helloOnlyReplies(t))
	cfg := testConfig(addr)
	cfg.MaxPerAddress = 1
	ap := newAddressPool(addr, cfg)

	ctx := context.Background()
	longDeadline := time.Now().Add(2 * time.Second)
	pc, err := ap.acquire(ctx, longDeadline, testToken)
	require.NoError(t, err)
	defer ap.release(pc, false)

	_, err = ap.acquire(ctx, time.Now().Add(-time.Second), testToken)
	require.Error(t, err)
}

func TestPool_AcquireDirect_UsesSingleSeed(t *testing.T) {
	addr := startFakeBoltServer(t, helloOnlyReplies(t))
	p, err := New(Config{
		Seeds:          []string{addr},
		Routed:         false,
		ConnectTimeout: 2 * time.Second,
		AcquireTimeout: 2 * time.Second,
		MaxPerAddress:  2,
	})
	require.NoError(t, err)

	ctx := context.Background()
	conn, err := p.Acquire(ctx, bolt.Write, "", "")
	require.NoError(t, err)
	assert.Equal(t, addr, conn.Address())

	require.NoError(t, p.Release(ctx, conn, false))
}

func TestPool_InvalidateWriter_RetriedAcquireTargetsDifferentWriter(t *testing.T) {
	p, err := New(Config{Routed: true, ConnectTimeout: 2 * time.Second, AcquireTimeout: 2 * time.Second})
	require.NoError(t, err)

	p.routes.Put(&routing.Table{
		Database: "neo4j",
		Writers:  []string{"stale:7687", "fresh:7687"},
		Readers:  []string{"fresh:7687"},
		Deadline: time.Now().Add(time.Minute),
	})

	p.InvalidateWriter("neo4j", "stale:7687")

	addrs, err := p.candidateAddresses(context.Background(), bolt.Write, "neo4j", "", testToken, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh:7687"}, addrs)
}

func TestParseRouteMeta_DecodesRolesAndTTL(t *testing.T) {
	meta := map[string]any{
		"rt": map[string]any{
			"ttl": int64(300),
			"db":  "neo4j",
			"servers": []any{
				map[string]any{"role": "ROUTE", "addresses": []any{"router1:7687"}},
				map[string]any{"role": "READ", "addresses": []any{"reader1:7687", "reader2:7687"}},
				map[string]any{"role": "WRITE", "addresses": []any{"writer1:7687"}},
			},
		},
	}

	table, err := parseRouteMeta("", meta)
	require.NoError(t, err)
	assert.Equal(t, "neo4j", table.Database)
	assert.Equal(t, []string{"router1:7687"}, table.Routers)
	assert.Equal(t, []string{"reader1:7687", "reader2:7687"}, table.Readers)
	assert.Equal(t, []string{"writer1:7687"}, table.Writers)
	assert.True(t, table.Deadline.After(time.Now()))
}

func TestParseRouteMeta_MissingRTIsProtocolError(t *testing.T) {
	_, err := parseRouteMeta("neo4j", map[string]any{})
	assert.Error(t, err)
}
