package metrics

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/pool"
)

// startFakeBoltServer mirrors pkg/pool's test helper: it negotiates Bolt 5.0
// over a raw TCP socket and replies SUCCESS to HELLO, standing in for a live
// Neo4j server.
func startFakeBoltServer(t *testing.T) string {
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
			go serveFakeConn(conn)
		}
	}()
	return ln.Addr().String()
}

func serveFakeConn(raw net.Conn) {
	defer raw.Close()
	handshake := make([]byte, 20)
	if _, err := io.ReadFull(raw, handshake); err != nil {
		return
	}
	if _, err := raw.Write([]byte{0, 0, 0, 5}); err != nil {
		return
	}
	conn := boltconn.WrapNegotiated(raw, raw.RemoteAddr().String(), boltconn.Version{Major: 5, Minor: 0})
	var buf bytes.Buffer
	enc := packstream.NewEncoder(&buf)
	_ = enc.WriteStructHeader(0x70, 1)
	_ = enc.WriteMapHeader(1)
	_ = enc.WriteString("server")
	_ = enc.WriteString("Neo4j/5.0.0")
	success := buf.Bytes()

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
		if !ok || rs.Tag != 0x01 { // only answers TagHello
			continue
		}
		if err := conn.SendMessage(success); err != nil {
			return
		}
	}
}

func TestCollector_PopulatesPoolConnections(t *testing.T) {
	addr := startFakeBoltServer(t)
	p, err := pool.New(pool.Config{
		Seeds:          []string{addr},
		ConnectTimeout: 2 * time.Second,
		AcquireTimeout: 2 * time.Second,
		MaxPerAddress:  2,
	})
	require.NoError(t, err)

	ctx := context.Background()
	conn, err := p.Acquire(ctx, bolt.Write, "", "")
	require.NoError(t, err)

	c := NewCollector(p)
	c.collect()

	assert := require.New(t)
	assert.Equal(float64(1), testutil.ToFloat64(PoolConnections.WithLabelValues(addr, "in_use")))
	assert.Equal(float64(0), testutil.ToFloat64(PoolConnections.WithLabelValues(addr, "idle")))

	require.NoError(t, p.Release(ctx, conn, false))
	c.collect()
	assert.Equal(float64(0), testutil.ToFloat64(PoolConnections.WithLabelValues(addr, "in_use")))
	assert.Equal(float64(1), testutil.ToFloat64(PoolConnections.WithLabelValues(addr, "idle")))
}

func TestCollector_NoAddressesYieldsNoStats(t *testing.T) {
	p, err := pool.New(pool.Config{Seeds: []string{"127.0.0.1:0"}})
	require.NoError(t, err)

	c := NewCollector(p)
	c.collect() // must not panic with an empty addrs map
}
