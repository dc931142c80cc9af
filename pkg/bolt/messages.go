package bolt

import "fmt"

// HelloParams builds the HELLO extras map (spec.md §4.3 "HELLO"). Auth is
// merged in by the caller only for versions before 5.1; from 5.1 onward it travels
// in a separate LOGON.
type HelloParams struct {
	UserAgent         string
	BoltAgent         map[string]string // >=5.3
	RoutingContext    map[string]string
	NotificationFilter map[string]any // >=5.2
	Auth              map[string]any // merged in only for pre-5.1 handlers
}

func (h *Handler) Hello(p HelloParams, cb Callbacks) error {
	if h.state != StateUnauthorized {
		return fmt.Errorf("bolt: HELLO only valid from unauthorized state, have %s", h.state)
	}
	extras := map[string]any{"user_agent": p.UserAgent}
	if p.RoutingContext != nil {
		extras["routing"] = p.RoutingContext
	}
	if p.BoltAgent != nil {
		extras["bolt_agent"] = p.BoltAgent
	}
	if p.NotificationFilter != nil {
		for k, v := range p.NotificationFilter {
			extras[k] = v
		}
	}
	for k, v := range p.Auth {
		if _, exists := extras[k]; !exists {
			extras[k] = v
		}
	}
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		h.applyHelloMeta(meta)
		h.state = StateReady
		h.shared.Authenticated = len(p.Auth) > 0
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagHello, []any{extras}, wrapped)
}

func (h *Handler) applyHelloMeta(meta map[string]any) {
	if agent, ok := meta["server"].(string); ok {
		h.shared.ServerAgent = agent
	}
	if id, ok := meta["connection_id"].(string); ok {
		h.shared.ConnectionID = id
	}
	hints, _ := meta["hints"].(map[string]any)
	if v, ok := hints["connection.recv_timeout_seconds"].(int64); ok {
		h.shared.RecvTimeoutSecs = int(v)
	}
	if v, ok := hints["telemetry.enabled"].(bool); ok {
		h.shared.TelemetryEnabled = v
	}
	if v, ok := hints["ssr.enabled"].(bool); ok {
		h.shared.SSREnabled = v
	}
	if patches, ok := meta["patch_bolt"].([]any); ok {
		for _, pv := range patches {
			if s, ok := pv.(string); ok && s == "utc" {
				h.shared.PatchBoltUTC = true
			}
		}
	}
}

// Logon sends authentication separately from HELLO (>=5.1).
func (h *Handler) Logon(auth map[string]any, cb Callbacks) error {
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		h.shared.Authenticated = true
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagLogon, []any{auth}, wrapped)
}

// Logoff invalidates the current authentication without closing the
// connection; a Logon must follow before further RUN/BEGIN traffic.
func (h *Handler) Logoff(cb Callbacks) error {
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		h.shared.Authenticated = false
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagLogoff, nil, wrapped)
}

// RunParams carries RUN's three fields: query, parameters, and extras
// (spec.md §4.3 "RUN").
type RunParams struct {
	Query            string
	Parameters       map[string]any
	Bookmarks        []string
	TxTimeoutMs      int64
	TxMetadata       map[string]any
	Mode             AccessMode
	Database         string
	ImpersonatedUser string
	NotificationFilter map[string]any
}

func (p RunParams) extras() map[string]any {
	e := map[string]any{}
	if len(p.Bookmarks) > 0 {
		e["bookmarks"] = toAnySlice(p.Bookmarks)
	}
	if p.TxTimeoutMs > 0 {
		e["tx_timeout"] = p.TxTimeoutMs
	}
	if len(p.TxMetadata) > 0 {
		e["tx_metadata"] = p.TxMetadata
	}
	if p.Mode == Read {
		e["mode"] = "r"
	}
	if p.Database != "" {
		e["db"] = p.Database
	}
	if p.ImpersonatedUser != "" {
		e["imp_user"] = p.ImpersonatedUser
	}
	for k, v := range p.NotificationFilter {
		e[k] = v
	}
	return e
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (h *Handler) Run(p RunParams, cb Callbacks) error {
	if h.state != StateReady && h.state != StateTx {
		return fmt.Errorf("bolt: RUN invalid in state %s", h.state)
	}
	inTx := h.state == StateTx
	params := p.Parameters
	if params == nil {
		params = map[string]any{}
	}
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		if qid, ok := meta["qid"].(int64); ok {
			h.shared.LastQueryID = qid
		}
		if inTx {
			h.state = StateStreamingTx
		} else {
			h.state = StateStreaming
		}
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagRun, []any{p.Query, params, p.extras()}, wrapped)
}

// PullParams and DiscardParams carry PULL/DISCARD's one extras field: n
// (records to fetch, -1 = all) and an optional qid targeting a query other
// than the most recent RUN (spec.md §4.3).
type PullParams struct {
	N   int64
	Qid int64 // 0 means "omit, target most recent"
}

func (p PullParams) extras() map[string]any {
	e := map[string]any{"n": p.N}
	if p.Qid != 0 {
		e["qid"] = p.Qid
	}
	return e
}

func (h *Handler) Pull(p PullParams, cb Callbacks) error {
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		if hasMore, _ := meta["has_more"].(bool); !hasMore {
			h.state = h.state.leavingStream()
		}
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagPull, []any{p.extras()}, wrapped)
}

func (h *Handler) Discard(p PullParams, cb Callbacks) error {
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		if hasMore, _ := meta["has_more"].(bool); !hasMore {
			h.state = h.state.leavingStream()
		}
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagDiscard, []any{p.extras()}, wrapped)
}

// BeginParams mirrors RunParams minus the query/parameters (spec.md §4.3
// "BEGIN mirrors RUN extras").
type BeginParams struct {
	Bookmarks        []string
	TxTimeoutMs      int64
	TxMetadata       map[string]any
	Mode             AccessMode
	Database         string
	ImpersonatedUser string
	NotificationFilter map[string]any
}

func (p BeginParams) extras() map[string]any {
	rp := RunParams{
		Bookmarks: p.Bookmarks, TxTimeoutMs: p.TxTimeoutMs, TxMetadata: p.TxMetadata,
		Mode: p.Mode, Database: p.Database, ImpersonatedUser: p.ImpersonatedUser,
		NotificationFilter: p.NotificationFilter,
	}
	return rp.extras()
}

func (h *Handler) Begin(p BeginParams, cb Callbacks) error {
	if h.state != StateReady {
		return fmt.Errorf("bolt: BEGIN invalid in state %s", h.state)
	}
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		h.state = StateTx
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagBegin, []any{p.extras()}, wrapped)
}

func (h *Handler) Commit(cb Callbacks) error {
	if h.state != StateTx {
		return fmt.Errorf("bolt: COMMIT invalid in state %s", h.state)
	}
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		h.state = StateReady
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagCommit, nil, wrapped)
}

func (h *Handler) Rollback(cb Callbacks) error {
	if h.state != StateTx {
		return fmt.Errorf("bolt: ROLLBACK invalid in state %s", h.state)
	}
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		h.state = StateReady
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagRollback, nil, wrapped)
}

// Reset is the out-of-band recovery message: it clears a Failed connection
// back to Ready and may be sent regardless of current state.
func (h *Handler) Reset(cb Callbacks) error {
	wrapped := cb
	wrapped.OnSuccess = func(meta map[string]any) error {
		h.state = StateReady
		h.shared.LastQueryID = -1
		if cb.OnSuccess != nil {
			return cb.OnSuccess(meta)
		}
		return nil
	}
	return h.enqueue(TagReset, nil, wrapped)
}

// Goodbye is fire-and-forget: no response descriptor is enqueued, and the
// caller closes the socket immediately after the write completes.
func (h *Handler) Goodbye() error {
	return h.writeStruct(TagGoodbye, nil)
}

// Telemetry reports which driver API a unit of work entered through; it
// obeys the server's telemetry-enabled hint and is a no-op otherwise
// (spec.md §4.3 "TELEMETRY").
func (h *Handler) Telemetry(api TelemetryAPI, cb Callbacks) error {
	if !h.shared.TelemetryEnabled {
		return nil
	}
	return h.enqueue(TagTelemetry, []any{int64(api)}, cb)
}

// RouteParams carries ROUTE's fields across both its 5.0 shape ({db,
// imp_user}) and its >=5.1 shape (a single extras map) — spec.md §4.3
// "ROUTE".
type RouteParams struct {
	RoutingContext map[string]string
	Bookmarks      []string
	Database       string
	ImpersonatedUser string
	Minor          int
}

func (h *Handler) Route(p RouteParams, cb Callbacks) error {
	routingCtx := map[string]any{}
	for k, v := range p.RoutingContext {
		routingCtx[k] = v
	}
	extras := map[string]any{}
	if p.Database != "" {
		extras["db"] = p.Database
	}
	if p.ImpersonatedUser != "" {
		extras["imp_user"] = p.ImpersonatedUser
	}
	return h.enqueue(TagRoute, []any{routingCtx, toAnySlice(p.Bookmarks), extras}, cb)
}
