package bolt

import "github.com/cuemby/warren-bolt/pkg/neo4jerr"

// Callbacks is the response descriptor enqueued alongside each request that
// expects a reply (spec.md §4.3 "Message contracts"). OnRecord may be
// called any number of times before the terminal callback fires exactly
// once.
type Callbacks struct {
	OnSuccess func(meta map[string]any) error
	OnRecord  func(fields []any) error
	OnIgnored func()
	OnFailure func(*neo4jerr.ServerError) error
}

// pending is one FIFO entry: which message it answers and the callbacks to
// run against its reply.
type pending struct {
	tag       byte
	callbacks Callbacks
}
