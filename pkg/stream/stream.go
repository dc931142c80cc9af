// Package stream implements the lazy record cursor over one RUN's results
// (spec.md §4.7).
package stream

import (
	"fmt"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
)

// ListenerState tracks what a Stream is doing independently of the
// connection-wide bolt.State, since a stream's life (buffering records,
// discarding, terminal error, done) is a narrower concern than the whole
// connection's protocol state.
type ListenerState int

const (
	Streaming ListenerState = iota
	Discarding
	Errored
	Done
)

// Record is one row: field names shared across the whole stream plus this
// row's values.
type Record struct {
	Keys   []string
	Values []any
}

// Summary is the accumulated result metadata a stream yields once
// exhausted: counters, timing, bookmark, notifications (spec.md §4.7).
type Summary struct {
	Bookmark      string
	Database      string
	HasMore       bool
	Counters      map[string]any
	Plan          map[string]any
	Profile       map[string]any
	Notifications []any
	GqlStatuses   []any
	TLast         int64
}

// puller is the subset of *bolt.Handler a Stream needs, so tests can
// exercise Stream without a live connection.
type puller interface {
	Pull(p bolt.PullParams, cb bolt.Callbacks) error
	Discard(p bolt.PullParams, cb bolt.Callbacks) error
	ReadResponse() error
}

// Stream is a lazy cursor over one RUN's records (spec.md §4.7). It is not
// safe for concurrent use; a record stream borrows its connection
// exclusively until consumed or abandoned (spec.md §5).
type Stream struct {
	handler   puller
	qid       int64
	fetchSize int64
	keys      []string

	state   ListenerState
	buffer  []Record
	hasMore bool
	summary Summary
	err     error

	// errCell is the shared error cell mediating propagation into the
	// owning transaction (spec.md §4.7 "a shared cell (§4.9)").
	errCell *ErrCell
}

// ErrCell is the shared mutable slot a Stream and its owning transaction
// both observe: a stream failure also fails the transaction that opened it.
type ErrCell struct {
	Err error
}

func (c *ErrCell) Set(err error) {
	if c.Err == nil {
		c.Err = err
	}
}

func New(handler puller, qid int64, fetchSize int64, keys []string, cell *ErrCell) *Stream {
	if fetchSize == 0 {
		fetchSize = 1000
	}
	return &Stream{handler: handler, qid: qid, fetchSize: fetchSize, keys: keys, errCell: cell, hasMore: true}
}

func (s *Stream) Keys() []string { return s.keys }

// Next returns the next record, or (nil, nil) when the stream is exhausted.
// An error observed during streaming is surfaced exactly once, on the call
// that observed it (spec.md §4.7 "Failure semantics").
func (s *Stream) Next() (*Record, error) {
	if s.state == Errored {
		return nil, nil
	}
	if s.err != nil {
		err := s.err
		s.err = nil
		s.state = Errored
		return nil, err
	}
	if len(s.buffer) == 0 {
		if !s.hasMore {
			s.state = Done
			return nil, nil
		}
		if err := s.fetchMore(); err != nil {
			s.fail(err)
			s.state = Errored
			return nil, err
		}
		if len(s.buffer) == 0 {
			s.state = Done
			return nil, nil
		}
	}
	rec := s.buffer[0]
	s.buffer = s.buffer[1:]
	return &rec, nil
}

func (s *Stream) fetchMore() error {
	done := false
	var pullErr error
	err := s.handler.Pull(bolt.PullParams{N: s.fetchSize, Qid: s.qid}, bolt.Callbacks{
		OnRecord: func(fields []any) error {
			s.buffer = append(s.buffer, Record{Keys: s.keys, Values: fields})
			return nil
		},
		OnSuccess: func(meta map[string]any) error {
			s.applySummary(meta)
			done = true
			return nil
		},
		OnFailure: func(se *neo4jerr.ServerError) error {
			pullErr = neo4jerr.FromServerError(se)
			done = true
			return nil
		},
	})
	if err != nil {
		return err
	}
	for !done {
		if err := s.handler.ReadResponse(); err != nil {
			return err
		}
	}
	return pullErr
}

// Single consumes all remaining records, returning the sole record or an
// error if zero or more than one were produced (spec.md §4.7 "single()").
func (s *Stream) Single() (*Record, error) {
	var only *Record
	for {
		rec, err := s.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		if only != nil {
			return nil, fmt.Errorf("stream: expected exactly one record, got more than one")
		}
		only = rec
	}
	if only == nil {
		return nil, fmt.Errorf("stream: expected exactly one record, got none")
	}
	return only, nil
}

// Consume discards any pending records and returns the final summary
// (spec.md §4.7 "consume()").
func (s *Stream) Consume() (Summary, error) {
	if s.state == Done || s.state == Errored {
		return s.summary, s.err
	}
	if !s.hasMore {
		s.state = Done
		return s.summary, nil
	}
	done := false
	var discardErr error
	err := s.handler.Discard(bolt.PullParams{N: -1, Qid: s.qid}, bolt.Callbacks{
		OnSuccess: func(meta map[string]any) error {
			s.applySummary(meta)
			done = true
			return nil
		},
		OnFailure: func(se *neo4jerr.ServerError) error {
			discardErr = neo4jerr.FromServerError(se)
			done = true
			return nil
		},
	})
	if err != nil {
		return s.summary, err
	}
	for !done {
		if err := s.handler.ReadResponse(); err != nil {
			return s.summary, err
		}
	}
	s.state = Done
	return s.summary, discardErr
}

// TryAsEagerResult drains the stream into memory, valid only before any
// record has been yielded to the caller (spec.md §4.7 "try_as_eager_result").
func (s *Stream) TryAsEagerResult() ([]Record, Summary, error) {
	var all []Record
	for {
		rec, err := s.Next()
		if err != nil {
			return nil, s.summary, err
		}
		if rec == nil {
			break
		}
		all = append(all, *rec)
	}
	return all, s.summary, nil
}

func (s *Stream) applySummary(meta map[string]any) {
	if hasMore, ok := meta["has_more"].(bool); ok {
		s.hasMore = hasMore
	} else {
		s.hasMore = false
	}
	if bm, ok := meta["bookmark"].(string); ok {
		s.summary.Bookmark = bm
	}
	if db, ok := meta["db"].(string); ok {
		s.summary.Database = db
	}
	if stats, ok := meta["stats"].(map[string]any); ok {
		s.summary.Counters = stats
	}
	if plan, ok := meta["plan"].(map[string]any); ok {
		s.summary.Plan = plan
	}
	if profile, ok := meta["profile"].(map[string]any); ok {
		s.summary.Profile = profile
	}
	if notif, ok := meta["notifications"].([]any); ok {
		s.summary.Notifications = notif
	}
	if gql, ok := meta["gql_status_objects"].([]any); ok {
		s.summary.GqlStatuses = gql
	}
	if t, ok := meta["t_last"].(int64); ok {
		s.summary.TLast = t
	}
	s.summary.HasMore = s.hasMore
}

func (s *Stream) fail(err error) {
	s.errCell.Set(err)
	s.err = err
}
