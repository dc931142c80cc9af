// Package session implements the session and transaction orchestration
// layer: auto-commit runs, explicit and retriable managed transactions, and
// bookmark causal chaining (spec.md §4.9), grounded on the official
// driver's sessionWithContext (other_examples/..._neo4j-session_with_context.go.go).
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/bookmark"
	"github.com/cuemby/warren-bolt/pkg/log"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/retry"
	"github.com/cuemby/warren-bolt/pkg/stream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Connection is the narrow view of a pooled connection a session needs: the
// protocol handler to drive and the address it is bound to, for logging.
type Connection interface {
	Handler() *bolt.Handler
	Address() string
}

// Pool is the subset of the connection pool a session depends on. It owns
// routing-table consultation and home-database resolution internally
// (spec.md §4.4); a session only ever asks for "a connection for this mode
// and database".
type Pool interface {
	Acquire(ctx context.Context, mode bolt.AccessMode, database, impersonatedUser string) (Connection, error)
	Release(ctx context.Context, conn Connection, dirty bool) error
	InvalidateWriter(database, address string)
}

// Config configures a new Session; its zero value is usable (AccessMode
// Write, home database, no bookmarks).
type Config struct {
	AccessMode       bolt.AccessMode
	Bookmarks        values.Bookmarks
	DatabaseName     string
	ImpersonatedUser string
	FetchSize        int64
	BookmarkManager  bookmark.Manager
	RetryPolicy      *retry.Policy
}

// pendingAuto tracks an in-flight auto-commit result so the session can
// flush it (capturing its bookmark) before the next unit of work begins,
// mirroring the official driver's autocommitTx.done on next Run/Close.
type pendingAuto struct {
	conn   Connection
	result *Result
}

// Session is a single-threaded sequence of work bound to a database, with
// a bookmark set causally chained through an optional BookmarkManager
// (spec.md §4.9). A Session is not safe for concurrent use.
type Session struct {
	pool             Pool
	mode             bolt.AccessMode
	database         string
	impersonatedUser string
	fetchSize        int64
	bookmarks        values.Bookmarks
	bookmarkMgr      bookmark.Manager
	retryPolicy      retry.Policy

	explicitTx *Transaction
	auto       *pendingAuto

	id  string
	log zerolog.Logger
}

func New(pool Pool, cfg Config) *Session {
	id := uuid.NewString()
	bms := cfg.Bookmarks
	if bms == nil {
		bms = values.NewBookmarks()
	}
	policy := retry.DefaultPolicy()
	if cfg.RetryPolicy != nil {
		policy = *cfg.RetryPolicy
	}
	return &Session{
		pool:             pool,
		mode:             cfg.AccessMode,
		database:         cfg.DatabaseName,
		impersonatedUser: cfg.ImpersonatedUser,
		fetchSize:        cfg.FetchSize,
		bookmarks:        bms,
		bookmarkMgr:      cfg.BookmarkManager,
		retryPolicy:      policy,
		id:               id,
		log:              log.WithSessionID(id),
	}
}

// LastBookmarks returns the bookmark set as of the last completed unit of
// work, or the session's initial set if none has completed yet.
func (s *Session) LastBookmarks() values.Bookmarks {
	return s.bookmarks.Union(values.NewBookmarks())
}

// AutoCommit runs a single RUN/PULL outside any transaction; the server
// manages the commit boundary (spec.md §4.9 "auto_commit").
func (s *Session) AutoCommit(ctx context.Context, query string, params map[string]any) (*Result, error) {
	if s.explicitTx != nil {
		return nil, neo4jerr.InvalidConfig("session has a pending explicit transaction")
	}
	if err := s.flushAuto(ctx); err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx, s.mode, s.database, s.impersonatedUser)
	if err != nil {
		return nil, err
	}
	bms, err := s.unionBookmarks()
	if err != nil {
		_ = s.pool.Release(ctx, conn, true)
		return nil, err
	}

	h := conn.Handler()
	var keys []string
	var qid int64
	done, runErr := false, error(nil)
	cb := bolt.Callbacks{
		OnSuccess: func(meta map[string]any) error {
			qid = h.Shared().LastQueryID
			keys = fieldNames(meta)
			done = true
			return nil
		},
		OnFailure: func(se *neo4jerr.ServerError) error {
			runErr = neo4jerr.FromServerError(se)
			done = true
			return nil
		},
	}
	if err := h.Run(bolt.RunParams{
		Query: query, Parameters: params, Bookmarks: bms.Slice(),
		Mode: s.mode, Database: s.database, ImpersonatedUser: s.impersonatedUser,
	}, cb); err != nil {
		_ = s.pool.Release(ctx, conn, true)
		return nil, err
	}
	if err := h.Telemetry(bolt.TelemetryAutoCommit, bolt.Callbacks{}); err != nil {
		_ = s.pool.Release(ctx, conn, true)
		return nil, err
	}
	for !done {
		if err := h.ReadResponse(); err != nil {
			_ = s.pool.Release(ctx, conn, true)
			return nil, neo4jerr.WrapRead(err)
		}
	}
	if runErr != nil {
		s.invalidateWriterIfNeeded(runErr, conn.Address())
		_ = s.pool.Release(ctx, conn, true)
		return nil, runErr
	}

	st := stream.New(h, qid, s.fetchSize, keys, &stream.ErrCell{})
	res := &Result{stream: st}
	s.auto = &pendingAuto{conn: conn, result: res}
	return res, nil
}

// BeginTransaction starts an explicit transaction on this session; only one
// may be open at a time (spec.md §4.9).
func (s *Session) BeginTransaction(ctx context.Context, configurers ...TxConfigurer) (*Transaction, error) {
	if s.explicitTx != nil {
		return nil, neo4jerr.InvalidConfig("session already has a pending transaction")
	}
	if err := s.flushAuto(ctx); err != nil {
		return nil, err
	}
	cfg := defaultTxConfig()
	for _, c := range configurers {
		c(&cfg)
	}
	tx, err := s.begin(ctx, s.mode, cfg)
	if err != nil {
		return nil, err
	}
	s.explicitTx = tx
	return tx, nil
}

// ExecuteRead runs work inside a retried read transaction
// (spec.md §4.9 "run_with_retry").
func (s *Session) ExecuteRead(ctx context.Context, work TransactionWork, configurers ...TxConfigurer) (any, error) {
	return s.executeManaged(ctx, bolt.Read, work, configurers...)
}

// ExecuteWrite runs work inside a retried write transaction.
func (s *Session) ExecuteWrite(ctx context.Context, work TransactionWork, configurers ...TxConfigurer) (any, error) {
	return s.executeManaged(ctx, bolt.Write, work, configurers...)
}

// TransactionWork is a unit of work run against a managed transaction
// handle; it MUST be side-effect-idempotent since it may be retried
// (spec.md §4.9, §4.10).
type TransactionWork func(tx *Transaction) (any, error)

func (s *Session) executeManaged(ctx context.Context, mode bolt.AccessMode, work TransactionWork, configurers ...TxConfigurer) (any, error) {
	if s.explicitTx != nil {
		return nil, neo4jerr.InvalidConfig("session already has a pending explicit transaction")
	}
	if err := s.flushAuto(ctx); err != nil {
		return nil, err
	}
	cfg := defaultTxConfig()
	for _, c := range configurers {
		c(&cfg)
	}

	return retry.Run(ctx, s.retryPolicy, func(ctx context.Context) (any, error) {
		tx, err := s.begin(ctx, mode, cfg)
		if err != nil {
			return nil, err
		}
		result, workErr := work(tx)
		if workErr != nil {
			_ = tx.Rollback(ctx)
			return nil, workErr
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// begin acquires a connection and sends BEGIN, without registering the
// resulting Transaction as the session's explicit one; shared by
// BeginTransaction and each retry attempt of executeManaged.
func (s *Session) begin(ctx context.Context, mode bolt.AccessMode, cfg TxConfig) (*Transaction, error) {
	conn, err := s.pool.Acquire(ctx, mode, s.database, s.impersonatedUser)
	if err != nil {
		return nil, err
	}
	bms, err := s.unionBookmarks()
	if err != nil {
		_ = s.pool.Release(ctx, conn, true)
		return nil, err
	}

	h := conn.Handler()
	done, beginErr := false, error(nil)
	cb := bolt.Callbacks{
		OnSuccess: func(map[string]any) error { done = true; return nil },
		OnFailure: func(se *neo4jerr.ServerError) error {
			beginErr = neo4jerr.FromServerError(se)
			done = true
			return nil
		},
	}
	if err := h.Begin(bolt.BeginParams{
		Bookmarks: bms.Slice(), TxTimeoutMs: cfg.TimeoutMs, TxMetadata: cfg.Metadata,
		Mode: mode, Database: s.database, ImpersonatedUser: s.impersonatedUser,
	}, cb); err != nil {
		_ = s.pool.Release(ctx, conn, true)
		return nil, err
	}
	for !done {
		if err := h.ReadResponse(); err != nil {
			_ = s.pool.Release(ctx, conn, true)
			return nil, neo4jerr.WrapWrite(err)
		}
	}
	if beginErr != nil {
		s.invalidateWriterIfNeeded(beginErr, conn.Address())
		_ = s.pool.Release(ctx, conn, true)
		return nil, beginErr
	}

	return &Transaction{
		session:   s,
		conn:      conn,
		handler:   h,
		fetchSize: s.fetchSize,
		errCell:   &stream.ErrCell{},
	}, nil
}

// Close flushes any pending transaction or auto-commit result and returns
// their connections to the pool.
func (s *Session) Close(ctx context.Context) error {
	var txErr error
	if s.explicitTx != nil {
		txErr = s.explicitTx.Close(ctx)
	}
	autoErr := s.flushAuto(ctx)
	if txErr != nil {
		return txErr
	}
	return autoErr
}

// flushAuto forces a pending auto-commit result to completion so its final
// bookmark is captured, then returns its connection to the pool. It runs
// before every new unit of work and on Close, mirroring the official
// driver's autocommitTx.done.
func (s *Session) flushAuto(ctx context.Context) error {
	if s.auto == nil {
		return nil
	}
	pa := s.auto
	s.auto = nil
	summary, err := pa.result.stream.Consume()
	s.absorbBookmark(summary.Bookmark)
	return s.pool.Release(ctx, pa.conn, err != nil)
}

func (s *Session) clearExplicit(tx *Transaction) {
	if s.explicitTx == tx {
		s.explicitTx = nil
	}
}

func (s *Session) unionBookmarks() (values.Bookmarks, error) {
	if s.bookmarkMgr == nil {
		return s.bookmarks, nil
	}
	fromMgr, err := s.bookmarkMgr.GetBookmarks()
	if err != nil {
		return nil, neo4jerr.UserCallback(err)
	}
	return s.bookmarks.Union(fromMgr), nil
}

// absorbBookmark replaces the session's current bookmark with the one the
// server returned and notifies the bookmark manager of the transition
// (spec.md §4.9 "Causal chaining").
func (s *Session) absorbBookmark(bm string) {
	if bm == "" {
		return
	}
	previous := s.bookmarks
	s.bookmarks = values.NewBookmarks(bm)
	if s.bookmarkMgr != nil {
		_ = s.bookmarkMgr.UpdateBookmarks(previous, s.bookmarks)
	}
}

// invalidateWriterIfNeeded evicts addr from the pool's cached writer list
// for this session's database when err signals the server is no longer the
// writer (e.g. Neo.ClientError.Cluster.NotALeader), so the retry that
// follows targets a different one (spec.md §4.5, §8 scenario 3).
func (s *Session) invalidateWriterIfNeeded(err error, addr string) {
	if ne, ok := neo4jerr.As(err); ok && ne.InvalidatesWriter() {
		s.pool.InvalidateWriter(s.database, addr)
	}
}

func fieldNames(meta map[string]any) []string {
	raw, ok := meta["fields"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// TxConfig carries the per-transaction timeout and metadata sent in
// BEGIN/RUN extras.
type TxConfig struct {
	TimeoutMs int64
	Metadata  map[string]any
}

type TxConfigurer func(*TxConfig)

func defaultTxConfig() TxConfig {
	return TxConfig{}
}

// WithTxTimeout sets the transaction's server-enforced timeout.
func WithTxTimeout(d time.Duration) TxConfigurer {
	return func(c *TxConfig) { c.TimeoutMs = d.Milliseconds() }
}

// WithTxMetadata attaches metadata visible in the server's query log.
func WithTxMetadata(meta map[string]any) TxConfigurer {
	return func(c *TxConfig) { c.Metadata = meta }
}
