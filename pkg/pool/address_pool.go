package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/routing"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// pooledConnection is one live, single-owner Bolt connection handed out by
// an addressPool. It satisfies pkg/session's Connection interface.
type pooledConnection struct {
	address         string
	conn            *boltconn.Connection
	handler         *bolt.Handler
	birth           time.Time
	lastUsed        time.Time
	authFingerprint uint64
}

func (pc *pooledConnection) Handler() *bolt.Handler { return pc.handler }
func (pc *pooledConnection) Address() string        { return pc.address }

func (pc *pooledConnection) expired(maxLifetime time.Duration) bool {
	return maxLifetime > 0 && time.Since(pc.birth) > maxLifetime
}

// Stats reports one address sub-pool's occupancy, mirroring the shape a
// Prometheus collector would scrape (spec.md §4.4).
type Stats struct {
	Address string
	Active  int
	Idle    int
	Total   int
	Waiting int
}

// addressPool is the per-address connection pool adapted from a per-tenant
// database pool: idle/active tracking with sync.Cond-signalled FIFO-bounded
// waiters (spec.md §4.4 "Concurrency discipline"). Liveness and re-auth
// checks run outside the lock, unlike the grounding source, since spec.md
// §5 requires the pool's critical sections not perform I/O.
type addressPool struct {
	mu   sync.Mutex
	cond *sync.Cond

	address string
	cfg     Config

	idle    []*pooledConnection
	active  map[*pooledConnection]struct{}
	total   int
	waiting int
	closed  bool
}

func newAddressPool(address string, cfg Config) *addressPool {
	ap := &addressPool{
		address: address,
		cfg:     cfg,
		active:  make(map[*pooledConnection]struct{}),
	}
	ap.cond = sync.NewCond(&ap.mu)
	return ap
}

// acquire returns an idle connection, dials a new one under the per-address
// cap, or waits for a release, bounded by deadline (spec.md §4.4 "acquire").
func (ap *addressPool) acquire(ctx context.Context, deadline time.Time, tok values.AuthToken) (*pooledConnection, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ap.mu.Lock()
		if ap.closed {
			ap.mu.Unlock()
			return nil, neo4jerr.Disconnect(fmt.Sprintf("address pool for %s is closed", ap.address), nil)
		}

		if len(ap.idle) > 0 {
			pc := ap.idle[len(ap.idle)-1]
			ap.idle = ap.idle[:len(ap.idle)-1]
			if pc.expired(ap.cfg.MaxLifetime) {
				ap.total--
				ap.mu.Unlock()
				pc.conn.Close()
				continue
			}
			ap.active[pc] = struct{}{}
			ap.mu.Unlock()

			if ap.validate(pc, tok) {
				pc.lastUsed = time.Now()
				return pc, nil
			}
			ap.mu.Lock()
			delete(ap.active, pc)
			ap.total--
			ap.cond.Signal()
			ap.mu.Unlock()
			pc.conn.Close()
			continue
		}

		if ap.total < ap.cfg.MaxPerAddress {
			ap.total++
			ap.mu.Unlock()

			pc, err := ap.dial(ctx, tok)
			if err != nil {
				ap.mu.Lock()
				ap.total--
				ap.cond.Signal()
				ap.mu.Unlock()
				return nil, err
			}
			ap.mu.Lock()
			ap.active[pc] = struct{}{}
			ap.mu.Unlock()
			return pc, nil
		}

		ap.waiting++
		remaining := time.Until(deadline)
		if remaining <= 0 {
			ap.waiting--
			ap.mu.Unlock()
			return nil, neo4jerr.AcquisitionTimeout(fmt.Sprintf("address %s exhausted its %d-connection cap", ap.address, ap.cfg.MaxPerAddress))
		}
		timer := time.AfterFunc(remaining, ap.cond.Broadcast)
		ap.cond.Wait()
		timer.Stop()
		ap.waiting--
		closed := ap.closed
		ap.mu.Unlock()
		if closed {
			return nil, neo4jerr.Disconnect(fmt.Sprintf("address pool for %s is closing", ap.address), nil)
		}
		if time.Now().After(deadline) {
			return nil, neo4jerr.AcquisitionTimeout(fmt.Sprintf("address %s exhausted its %d-connection cap", ap.address, ap.cfg.MaxPerAddress))
		}
	}
}

// validate runs the RESET liveness check and re-auth, both outside the
// pool's lock, before an idle connection is reused (spec.md §4.4
// "Eviction policies").
func (ap *addressPool) validate(pc *pooledConnection, tok values.AuthToken) bool {
	if ap.cfg.LivenessThreshold > 0 && time.Since(pc.lastUsed) > ap.cfg.LivenessThreshold {
		if err := resetConnection(pc.handler); err != nil {
			return false
		}
	}
	fp := routing.HashAuthToken(tok)
	if fp != pc.authFingerprint {
		if !supportsLogon(pc.conn.Version) {
			return false
		}
		if err := reauthenticate(pc.handler, tok); err != nil {
			return false
		}
		pc.authFingerprint = fp
	}
	return true
}

// release returns a connection to the idle set, or discards it when the
// caller observed a socket-level failure (spec.md §4.4 "release").
func (ap *addressPool) release(pc *pooledConnection, dirty bool) {
	ap.mu.Lock()
	delete(ap.active, pc)
	if ap.closed || dirty || pc.expired(ap.cfg.MaxLifetime) {
		ap.total--
		ap.cond.Signal()
		ap.mu.Unlock()
		pc.conn.Close()
		return
	}
	pc.lastUsed = time.Now()
	ap.idle = append(ap.idle, pc)
	ap.cond.Signal()
	ap.mu.Unlock()
}

func (ap *addressPool) dial(ctx context.Context, tok values.AuthToken) (*pooledConnection, error) {
	h, conn, err := dialAndHandshake(ctx, ap.address, ap.cfg, tok)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &pooledConnection{
		address:         ap.address,
		conn:            conn,
		handler:         h,
		birth:           now,
		lastUsed:        now,
		authFingerprint: routing.HashAuthToken(tok),
	}, nil
}

func (ap *addressPool) stats() Stats {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return Stats{Address: ap.address, Active: len(ap.active), Idle: len(ap.idle), Total: ap.total, Waiting: ap.waiting}
}

// close drains idle connections and wakes any waiters, which then observe
// ap.closed and fail. Active connections close as their sessions release
// them; this does not block waiting for that to happen.
func (ap *addressPool) close() {
	ap.mu.Lock()
	if ap.closed {
		ap.mu.Unlock()
		return
	}
	ap.closed = true
	idle := ap.idle
	ap.idle = nil
	ap.cond.Broadcast()
	ap.mu.Unlock()
	for _, pc := range idle {
		pc.conn.Close()
	}
}

// dialAndHandshake opens a socket, negotiates the Bolt version, and
// completes HELLO (plus a trailing LOGON on >=5.1 handlers, which carry
// auth separately from HELLO) (spec.md §4.3 "HELLO"/"LOGON", §4.8).
func dialAndHandshake(ctx context.Context, address string, cfg Config, tok values.AuthToken) (*bolt.Handler, *boltconn.Connection, error) {
	conn, err := boltconn.Connect(ctx, boltconn.DialOptions{
		Address:        address,
		TLSMode:        cfg.TLSMode,
		ConnectTimeout: cfg.ConnectTimeout,
		KeepAlive:      cfg.KeepAlive,
	})
	if err != nil {
		return nil, nil, neo4jerr.WrapConnect(err)
	}

	h := bolt.NewHandler(conn, translatorFor(conn.Version))
	helloParams := bolt.HelloParams{
		UserAgent:          cfg.UserAgent,
		RoutingContext:     cfg.RoutingContext,
		NotificationFilter: cfg.NotificationFilter,
	}
	if !supportsLogon(conn.Version) {
		helloParams.Auth = map[string]any(tok)
	}

	done := false
	var helloErr error
	cb := bolt.Callbacks{
		OnSuccess: func(map[string]any) error { done = true; return nil },
		OnFailure: func(se *neo4jerr.ServerError) error { helloErr = neo4jerr.FromServerError(se); done = true; return nil },
	}
	if err := h.Hello(helloParams, cb); err != nil {
		conn.Close()
		return nil, nil, neo4jerr.WrapWrite(err)
	}
	for !done {
		if err := h.ReadResponse(); err != nil {
			conn.Close()
			return nil, nil, neo4jerr.WrapRead(err)
		}
	}
	if helloErr != nil {
		conn.Close()
		return nil, nil, helloErr
	}

	if supportsLogon(conn.Version) {
		if err := reauthenticate(h, tok); err != nil {
			conn.Close()
			return nil, nil, err
		}
	}
	return h, conn, nil
}

// supportsLogon reports whether a negotiated version carries auth in a
// standalone LOGON message (>=5.1) rather than merged into HELLO's extras.
func supportsLogon(v boltconn.Version) bool {
	return v.Major > 5 || (v.Major == 5 && v.Minor >= 1)
}

func resetConnection(h *bolt.Handler) error {
	done := false
	var resetErr error
	cb := bolt.Callbacks{
		OnSuccess: func(map[string]any) error { done = true; return nil },
		OnFailure: func(se *neo4jerr.ServerError) error { resetErr = neo4jerr.FromServerError(se); done = true; return nil },
	}
	if err := h.Reset(cb); err != nil {
		return err
	}
	for !done {
		if err := h.ReadResponse(); err != nil {
			return err
		}
	}
	return resetErr
}

func reauthenticate(h *bolt.Handler, tok values.AuthToken) error {
	done := false
	var logonErr error
	cb := bolt.Callbacks{
		OnSuccess: func(map[string]any) error { done = true; return nil },
		OnFailure: func(se *neo4jerr.ServerError) error { logonErr = neo4jerr.FromServerError(se); done = true; return nil },
	}
	if err := h.Logon(map[string]any(tok), cb); err != nil {
		return err
	}
	for !done {
		if err := h.ReadResponse(); err != nil {
			return err
		}
	}
	return logonErr
}
