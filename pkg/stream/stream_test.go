package stream

import (
	"testing"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePuller scripts a fixed sequence of Pull/Discard responses without a
// real connection, one scripted reply consumed per ReadResponse call.
type fakePuller struct {
	pullRecords [][]any
	finalMeta   map[string]any
	pending     []func()
}

func (f *fakePuller) Pull(p bolt.PullParams, cb bolt.Callbacks) error {
	for _, rec := range f.pullRecords {
		records := rec
		f.pending = append(f.pending, func() { _ = cb.OnRecord(records) })
	}
	meta := f.finalMeta
	f.pending = append(f.pending, func() { _ = cb.OnSuccess(meta) })
	return nil
}

func (f *fakePuller) Discard(p bolt.PullParams, cb bolt.Callbacks) error {
	meta := f.finalMeta
	f.pending = append(f.pending, func() { _ = cb.OnSuccess(meta) })
	return nil
}

func (f *fakePuller) ReadResponse() error {
	next := f.pending[0]
	f.pending = f.pending[1:]
	next()
	return nil
}

func TestStream_NextDrainsAllRecords(t *testing.T) {
	p := &fakePuller{
		pullRecords: [][]any{{int64(1)}, {int64(2)}},
		finalMeta:   map[string]any{"has_more": false, "bookmark": "bm:1"},
	}
	s := New(p, 7, 1000, []string{"n"}, &ErrCell{})

	rec, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.Values[0])

	rec, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Values[0])

	rec, err = s.Next()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, "bm:1", s.summary.Bookmark)
}

func TestStream_Single_ErrorsOnMultipleRecords(t *testing.T) {
	p := &fakePuller{
		pullRecords: [][]any{{int64(1)}, {int64(2)}},
		finalMeta:   map[string]any{"has_more": false},
	}
	s := New(p, 7, 1000, []string{"n"}, &ErrCell{})
	_, err := s.Single()
	assert.Error(t, err)
}

func TestStream_TryAsEagerResult(t *testing.T) {
	p := &fakePuller{
		pullRecords: [][]any{{int64(1)}, {int64(2)}},
		finalMeta:   map[string]any{"has_more": false},
	}
	s := New(p, 7, 1000, []string{"n"}, &ErrCell{})
	recs, _, err := s.TryAsEagerResult()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestStream_Consume(t *testing.T) {
	p := &fakePuller{finalMeta: map[string]any{"has_more": false}}
	s := New(p, 7, 1000, []string{"n"}, &ErrCell{})
	summary, err := s.Consume()
	require.NoError(t, err)
	assert.False(t, summary.HasMore)
}
