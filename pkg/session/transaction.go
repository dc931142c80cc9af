package session

import (
	"context"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/stream"
)

// ErrTransactionClosed is returned by any operation on a Transaction after
// it has committed, rolled back, or failed (spec.md §4.9 "After any error,
// the transaction is closed").
var ErrTransactionClosed = neo4jerr.InvalidConfig("transaction is closed")

// Transaction is an explicit or managed transaction handle: query(...).run(),
// commit(), rollback() (spec.md §4.9). Dropping it without Commit rolls back
// silently via Close.
type Transaction struct {
	session   *Session
	conn      Connection
	handler   *bolt.Handler
	fetchSize int64
	errCell   *stream.ErrCell
	closed    bool
}

// Run issues a RUN/PULL within this transaction and returns its record
// stream.
func (t *Transaction) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	if err := t.checkOpen(ctx); err != nil {
		return nil, err
	}
	var keys []string
	var qid int64
	done, runErr := false, error(nil)
	cb := bolt.Callbacks{
		OnSuccess: func(meta map[string]any) error {
			qid = t.handler.Shared().LastQueryID
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
	if err := t.handler.Run(bolt.RunParams{Query: query, Parameters: params}, cb); err != nil {
		t.fail(err)
		return nil, err
	}
	for !done {
		if err := t.handler.ReadResponse(); err != nil {
			t.fail(neo4jerr.WrapRead(err))
			return nil, t.errCell.Err
		}
	}
	if runErr != nil {
		t.session.invalidateWriterIfNeeded(runErr, t.conn.Address())
		t.fail(runErr)
		return nil, runErr
	}
	st := stream.New(t.handler, qid, t.fetchSize, keys, t.errCell)
	return &Result{stream: st}, nil
}

// Commit commits the transaction. A stream failure observed earlier via the
// shared ErrCell fails the commit instead of being sent to the server
// (spec.md §4.7 "a shared cell (§4.9)").
func (t *Transaction) Commit(ctx context.Context) error {
	if err := t.checkOpen(ctx); err != nil {
		return err
	}
	var bm string
	done, commitErr := false, error(nil)
	cb := bolt.Callbacks{
		OnSuccess: func(meta map[string]any) error {
			if b, ok := meta["bookmark"].(string); ok {
				bm = b
			}
			done = true
			return nil
		},
		OnFailure: func(se *neo4jerr.ServerError) error {
			commitErr = neo4jerr.FromServerError(se)
			done = true
			return nil
		},
	}
	if err := t.handler.Commit(cb); err != nil {
		t.finish(ctx, true)
		return neo4jerr.WrapWrite(err).FailedCommit()
	}
	for !done {
		if err := t.handler.ReadResponse(); err != nil {
			t.finish(ctx, true)
			return neo4jerr.WrapRead(err).FailedCommit()
		}
	}
	if commitErr != nil {
		t.session.invalidateWriterIfNeeded(commitErr, t.conn.Address())
		t.finish(ctx, true)
		return commitErr
	}
	t.session.absorbBookmark(bm)
	t.finish(ctx, false)
	return nil
}

// Rollback rolls back the transaction. Called automatically by Close when
// the transaction was dropped without a Commit.
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	done, rollbackErr := false, error(nil)
	cb := bolt.Callbacks{
		OnSuccess: func(map[string]any) error { done = true; return nil },
		OnFailure: func(se *neo4jerr.ServerError) error {
			rollbackErr = neo4jerr.FromServerError(se)
			done = true
			return nil
		},
	}
	if err := t.handler.Rollback(cb); err != nil {
		t.finish(ctx, true)
		return err
	}
	for !done {
		if err := t.handler.ReadResponse(); err != nil {
			t.finish(ctx, true)
			return neo4jerr.WrapWrite(err)
		}
	}
	if rollbackErr != nil {
		t.session.invalidateWriterIfNeeded(rollbackErr, t.conn.Address())
	}
	t.finish(ctx, rollbackErr != nil)
	return rollbackErr
}

// Close rolls back if the transaction is still open, matching "dropping
// without commit rolls back silently" (spec.md §4.9).
func (t *Transaction) Close(ctx context.Context) error {
	if t.closed {
		return nil
	}
	return t.Rollback(ctx)
}

func (t *Transaction) checkOpen(ctx context.Context) error {
	if t.closed {
		return ErrTransactionClosed
	}
	if t.errCell.Err != nil {
		err := t.errCell.Err
		t.finish(ctx, true)
		return err
	}
	return nil
}

func (t *Transaction) fail(err error) {
	t.errCell.Set(err)
}

func (t *Transaction) finish(ctx context.Context, dirty bool) {
	if t.closed {
		return
	}
	t.closed = true
	_ = t.session.pool.Release(ctx, t.conn, dirty)
	t.session.clearExplicit(t)
}
