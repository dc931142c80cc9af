package bolt

import (
	"bytes"
	"container/list"
	"fmt"

	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/bolttranslate"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/packstream"
)

// ConnState is the shared, slow-changing state a connection accumulates
// across its lifetime: identity and hints learned at HELLO time, plus the
// query cursor and feature flags later messages depend on (spec.md §4.3,
// "a reference to the connection's shared state").
type ConnState struct {
	ServerAgent      string
	ConnectionID     string
	RecvTimeoutSecs  int
	TelemetryEnabled bool
	SSREnabled       bool
	PatchBoltUTC     bool // 4.4 only: HELLO response hint patch_bolt: ["utc"]
	LastQueryID      int64
	Authenticated    bool
}

// Handler drives one Bolt connection: it owns the struct translator for the
// negotiated minor version, the pending-response FIFO, and the state
// machine (spec.md §4.3).
type Handler struct {
	conn       *boltconn.Connection
	translator bolttranslate.Translator
	state      State
	shared     ConnState
	pendingQ   *list.List // of *pending
	lastErr    error
}

func NewHandler(conn *boltconn.Connection, translator bolttranslate.Translator) *Handler {
	return &Handler{
		conn:       conn,
		translator: translator,
		state:      StateUnauthorized,
		pendingQ:   list.New(),
		shared:     ConnState{LastQueryID: -1},
	}
}

func (h *Handler) State() State          { return h.state }
func (h *Handler) Shared() *ConnState    { return &h.shared }
func (h *Handler) Translator() bolttranslate.Translator { return h.translator }

// enqueue serializes one message struct, writes it to the wire immediately
// (the underlying connection buffers at the TCP layer, so pipelining is
// just several consecutive SendMessage calls before any ReadResponse), and
// appends the response descriptor to the FIFO.
func (h *Handler) enqueue(tag byte, fields []any, cb Callbacks) error {
	if err := h.writeStruct(tag, fields); err != nil {
		return err
	}
	h.pendingQ.PushBack(&pending{tag: tag, callbacks: cb})
	return nil
}

// writeStruct encodes and sends one message struct without touching the
// pending FIFO, for fire-and-forget messages like GOODBYE.
func (h *Handler) writeStruct(tag byte, fields []any) error {
	var buf bytes.Buffer
	enc := packstream.NewEncoder(&buf)
	if err := enc.WriteStructHeader(tag, len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := h.translator.Serialize(enc, f); err != nil {
			return fmt.Errorf("bolt: encode tag 0x%02x: %w", tag, err)
		}
	}
	if err := h.conn.SendMessage(buf.Bytes()); err != nil {
		h.fail(err)
		return err
	}
	return nil
}

// ReadResponse reads one framed reply and dispatches it against the head of
// the FIFO (spec.md §4.3 "Response pipeline"). RECORD replies leave the
// descriptor in place since a RUN/PULL may yield many records before its
// terminal SUCCESS/FAILURE.
func (h *Handler) ReadResponse() error {
	front := h.pendingQ.Front()
	if front == nil {
		return fmt.Errorf("bolt: no pending response to read")
	}
	p := front.Value.(*pending)

	body, err := h.conn.ReceiveMessage()
	if err != nil {
		h.fail(err)
		return err
	}
	dec := packstream.NewDecoder(bytes.NewReader(body))
	val, err := dec.Decode()
	if err != nil {
		h.fail(err)
		return err
	}
	rs, ok := val.(packstream.RawStruct)
	if !ok {
		err := fmt.Errorf("bolt: response is not a struct")
		h.fail(err)
		return err
	}

	switch rs.Tag {
	case TagSuccess:
		h.pendingQ.Remove(front)
		meta, _ := soleMapField(rs.Fields)
		enrichStatusesIfPresent(meta)
		if p.callbacks.OnSuccess != nil {
			return p.callbacks.OnSuccess(meta)
		}
		return nil
	case TagRecord:
		var fields []any
		if len(rs.Fields) == 1 {
			if list, ok := rs.Fields[0].([]any); ok {
				fields = list
			}
		}
		if p.callbacks.OnRecord != nil {
			return p.callbacks.OnRecord(fields)
		}
		return nil
	case TagIgnored:
		h.pendingQ.Remove(front)
		if p.callbacks.OnIgnored != nil {
			p.callbacks.OnIgnored()
		}
		return nil
	case TagFailure:
		h.pendingQ.Remove(front)
		h.state = StateFailed
		meta, _ := soleMapField(rs.Fields)
		serverErr := neo4jerr.FromMeta(meta)
		if p.callbacks.OnFailure != nil {
			return p.callbacks.OnFailure(serverErr)
		}
		return serverErr
	default:
		err := fmt.Errorf("bolt: unexpected response tag 0x%02x", rs.Tag)
		h.fail(err)
		return err
	}
}

// Pending reports how many responses are still outstanding, letting a
// caller drain a pipelined batch (spec.md §4.3 "Pipelining").
func (h *Handler) Pending() int { return h.pendingQ.Len() }

func (h *Handler) fail(err error) {
	h.lastErr = err
	h.state = StateDead
}

// LastError reports the fatal error that moved the connection to Dead, if
// any.
func (h *Handler) LastError() error { return h.lastErr }

func soleMapField(fields []any) (map[string]any, bool) {
	if len(fields) != 1 {
		return map[string]any{}, false
	}
	m, ok := fields[0].(map[string]any)
	if !ok {
		return map[string]any{}, false
	}
	return m, true
}

// enrichStatusesIfPresent applies the ≥5.7 diagnostic-record defaulting to
// every entry in a RUN/PULL success meta's "statuses" list (spec.md §4.3,
// "On ≥5.6 the same enrichment is applied preemptively").
func enrichStatusesIfPresent(meta map[string]any) {
	raw, ok := meta["statuses"]
	if !ok {
		return
	}
	statuses, ok := raw.([]any)
	if !ok {
		return
	}
	for _, s := range statuses {
		status, ok := s.(map[string]any)
		if !ok {
			continue
		}
		neo4jerr.EnrichDiagnosticRecord(status)
	}
}
