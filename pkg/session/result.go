package session

import (
	"context"

	"github.com/cuemby/warren-bolt/pkg/stream"
)

// Result is the context-carrying record stream a Run returns, matching the
// official driver's ResultWithContext shape (spec.md §4.7).
type Result struct {
	stream *stream.Stream
}

func (r *Result) Keys() []string { return r.stream.Keys() }

func (r *Result) Next(ctx context.Context) (*stream.Record, error) {
	return r.stream.Next()
}

func (r *Result) Single(ctx context.Context) (*stream.Record, error) {
	return r.stream.Single()
}

func (r *Result) Consume(ctx context.Context) (stream.Summary, error) {
	return r.stream.Consume()
}

func (r *Result) TryAsEagerResult(ctx context.Context) ([]stream.Record, stream.Summary, error) {
	return r.stream.TryAsEagerResult()
}
