package session

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/bolttranslate"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/bookmark"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/stream"
)

// fakeConn adapts an already-Ready *bolt.Handler to the session.Connection
// interface a real pool would satisfy.
type fakeConn struct {
	h    *bolt.Handler
	addr string
}

func (f *fakeConn) Handler() *bolt.Handler { return f.h }
func (f *fakeConn) Address() string        { return f.addr }

// fakePool always hands out the same connection and records whether each
// release was marked dirty and any writer invalidations, standing in for
// pkg/pool in these tests.
type fakePool struct {
	conn               *fakeConn
	released           []bool
	invalidatedWriters []string
}

func (p *fakePool) Acquire(ctx context.Context, mode bolt.AccessMode, database, impersonatedUser string) (Connection, error) {
	return p.conn, nil
}

func (p *fakePool) Release(ctx context.Context, conn Connection, dirty bool) error {
	p.released = append(p.released, dirty)
	return nil
}

func (p *fakePool) InvalidateWriter(database, address string) {
	p.invalidatedWriters = append(p.invalidatedWriters, database+"/"+address)
}

// wireServer replies to each incoming request with one scripted response,
// popped from a per-tag queue, standing in for a live Neo4j server.
type wireServer struct {
	t          *testing.T
	conn       *boltconn.Connection
	replies    map[byte][][]byte
	closeOnTag map[byte]bool
}

func (s *wireServer) run() {
	for {
		msg, err := s.conn.ReceiveMessage()
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
		if s.closeOnTag[rs.Tag] {
			s.conn.Close()
			return
		}
		queue := s.replies[rs.Tag]
		if len(queue) == 0 {
			continue
		}
		reply := queue[0]
		s.replies[rs.Tag] = queue[1:]
		if err := s.conn.SendMessage(reply); err != nil {
			return
		}
	}
}

func encodeStruct(t *testing.T, tag byte, meta map[string]any) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := packstream.NewEncoder(&buf)
	require.NoError(t, enc.WriteStructHeader(tag, 1))
	writeMeta(t, enc, meta)
	return buf.Bytes()
}

func writeMeta(t *testing.T, enc *packstream.Encoder, meta map[string]any) {
	t.Helper()
	require.NoError(t, enc.WriteMapHeader(len(meta)))
	for k, v := range meta {
		require.NoError(t, enc.WriteString(k))
		writeAny(t, enc, v)
	}
}

func writeAny(t *testing.T, enc *packstream.Encoder, v any) {
	t.Helper()
	switch vv := v.(type) {
	case string:
		require.NoError(t, enc.WriteString(vv))
	case int64:
		require.NoError(t, enc.WriteInt(vv))
	case bool:
		require.NoError(t, enc.WriteBool(vv))
	case []string:
		require.NoError(t, enc.WriteListHeader(len(vv)))
		for _, s := range vv {
			require.NoError(t, enc.WriteString(s))
		}
	default:
		t.Fatalf("writeAny: unsupported type %T", v)
	}
}

// newReadySession wires a Session whose single pooled connection has
// already completed HELLO, so tests can drive RUN/BEGIN/etc. directly.
func newReadySession(t *testing.T, cfg Config) (*Session, *fakePool, *wireServer) {
	t.Helper()
	client, server := net.Pipe()
	clientConn := boltconn.WrapNegotiated(client, "bolt://test", boltconn.Version{Major: 5, Minor: 0})
	serverConn := boltconn.WrapNegotiated(server, "bolt://test-server", boltconn.Version{Major: 5, Minor: 0})
	t.Cleanup(func() { client.Close(); server.Close() })

	h := bolt.NewHandler(clientConn, bolttranslate.NewBolt5x0Translator())
	ws := &wireServer{t: t, conn: serverConn, replies: map[byte][][]byte{
		bolt.TagHello: {encodeStruct(t, bolt.TagSuccess, map[string]any{"server": "Neo4j/5.20.0"})},
	}}
	go ws.run()

	done := false
	require.NoError(t, h.Hello(bolt.HelloParams{UserAgent: "warren-bolt/1.0"}, bolt.Callbacks{
		OnSuccess: func(map[string]any) error { done = true; return nil },
	}))
	for !done {
		require.NoError(t, h.ReadResponse())
	}
	require.Equal(t, bolt.StateReady, h.State())

	pool := &fakePool{conn: &fakeConn{h: h, addr: "bolt://test-server"}}
	s := New(pool, cfg)
	return s, pool, ws
}

func TestSession_AutoCommitDrainsAndCapturesBookmark(t *testing.T) {
	s, pool, ws := newReadySession(t, Config{})
	ws.replies[bolt.TagRun] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"fields": []string{"n"}})}
	ws.replies[bolt.TagDiscard] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"has_more": false, "bookmark": "bm:1"})}

	ctx := context.Background()
	res, err := s.AutoCommit(ctx, "RETURN 1 AS n", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.Keys())

	summary, err := res.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bm:1", summary.Bookmark)

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, []string{"bm:1"}, s.LastBookmarks().Slice())
	require.Len(t, pool.released, 1)
	assert.False(t, pool.released[0])
}

func TestSession_ExplicitTransactionCommit(t *testing.T) {
	s, pool, ws := newReadySession(t, Config{})
	ws.replies[bolt.TagBegin] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{})}
	ws.replies[bolt.TagRun] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"fields": []string{"n"}})}
	ws.replies[bolt.TagDiscard] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"has_more": false})}
	ws.replies[bolt.TagCommit] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"bookmark": "bm:2"})}

	ctx := context.Background()
	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)

	res, err := tx.Run(ctx, "RETURN 1 AS n", nil)
	require.NoError(t, err)
	_, err = res.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, []string{"bm:2"}, s.LastBookmarks().Slice())
	require.Len(t, pool.released, 1)
	assert.False(t, pool.released[0])

	_, err = tx.Run(ctx, "RETURN 2", nil)
	assert.ErrorIs(t, err, ErrTransactionClosed)
}

func TestSession_TransactionDroppedWithoutCommitRollsBackSilently(t *testing.T) {
	s, pool, ws := newReadySession(t, Config{})
	ws.replies[bolt.TagBegin] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{})}
	ws.replies[bolt.TagRollback] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{})}

	ctx := context.Background()
	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.Close(ctx))
	require.Len(t, pool.released, 1)
	assert.False(t, pool.released[0])
}

func TestSession_BeginFailureInvalidatesWriterWhenNotALeader(t *testing.T) {
	s, pool, ws := newReadySession(t, Config{DatabaseName: "neo4j"})
	ws.replies[bolt.TagBegin] = [][]byte{encodeStruct(t, bolt.TagFailure, map[string]any{
		"code":    "Neo.ClientError.Cluster.NotALeader",
		"message": "not a leader",
	})}

	ctx := context.Background()
	_, err := s.BeginTransaction(ctx)
	require.Error(t, err)
	require.Len(t, pool.invalidatedWriters, 1)
	assert.Equal(t, "neo4j/bolt://test-server", pool.invalidatedWriters[0])
}

func TestSession_CommitFailureInvalidatesWriterWhenNotALeader(t *testing.T) {
	s, pool, ws := newReadySession(t, Config{DatabaseName: "neo4j"})
	ws.replies[bolt.TagBegin] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{})}
	ws.replies[bolt.TagCommit] = [][]byte{encodeStruct(t, bolt.TagFailure, map[string]any{
		"code":    "Neo.ClientError.Cluster.NotALeader",
		"message": "not a leader",
	})}

	ctx := context.Background()
	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)

	err = tx.Commit(ctx)
	require.Error(t, err)
	require.Len(t, pool.invalidatedWriters, 1)
	assert.Equal(t, "neo4j/bolt://test-server", pool.invalidatedWriters[0])
}

func TestTransaction_CommitDisconnectWhileAwaitingSuccessIsNotRetryable(t *testing.T) {
	s, _, ws := newReadySession(t, Config{})
	ws.replies[bolt.TagBegin] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{})}
	ws.closeOnTag = map[byte]bool{bolt.TagCommit: true}

	ctx := context.Background()
	tx, err := s.BeginTransaction(ctx)
	require.NoError(t, err)

	err = tx.Commit(ctx)
	require.Error(t, err)

	ne, ok := neo4jerr.As(err)
	require.True(t, ok)
	assert.True(t, ne.DuringCommit)
	assert.False(t, ne.IsRetryable())
}

func TestSession_ExecuteWriteCommitsOnSuccess(t *testing.T) {
	s, pool, ws := newReadySession(t, Config{BookmarkManager: bookmark.NewInMemory()})
	ws.replies[bolt.TagBegin] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{})}
	ws.replies[bolt.TagRun] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"fields": []string{}})}
	ws.replies[bolt.TagDiscard] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"has_more": false})}
	ws.replies[bolt.TagCommit] = [][]byte{encodeStruct(t, bolt.TagSuccess, map[string]any{"bookmark": "bm:3"})}

	ctx := context.Background()
	result, err := s.ExecuteWrite(ctx, func(tx *Transaction) (any, error) {
		res, err := tx.Run(ctx, "CREATE (n)", nil)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	require.NoError(t, err)
	summary, ok := result.(stream.Summary)
	require.True(t, ok)
	assert.False(t, summary.HasMore)
	assert.Equal(t, []string{"bm:3"}, s.LastBookmarks().Slice())
	require.Len(t, pool.released, 1)
	assert.False(t, pool.released[0])
}
