// Package pool implements the connection pool: per-address sub-pools with
// routing-table and home-database caches layered on top, satisfying
// pkg/session's Pool/Connection interfaces (spec.md §4.4, §4.5, §4.6).
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/warren-bolt/pkg/auth"
	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/bolttranslate"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/log"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/resolver"
	"github.com/cuemby/warren-bolt/pkg/routing"
	"github.com/cuemby/warren-bolt/pkg/session"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Config configures a Pool. Routing is enabled whenever len(Seeds) > 1 is
// irrelevant; what matters is Routed, set by the driver from the URI scheme
// (neo4j/neo4j+s/neo4j+ssc vs bolt/bolt+s/bolt+ssc).
type Config struct {
	Seeds    []string
	Routed   bool
	Resolver resolver.AddressResolver
	Auth     auth.Manager

	UserAgent          string
	RoutingContext     map[string]string
	NotificationFilter map[string]any

	TLSMode        boltconn.TLSMode
	ConnectTimeout time.Duration
	KeepAlive      bool

	AcquireTimeout    time.Duration
	MaxLifetime       time.Duration
	LivenessThreshold time.Duration
	MaxPerAddress     int
}

func (c Config) withDefaults() Config {
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 60 * time.Second
	}
	if c.MaxPerAddress <= 0 {
		c.MaxPerAddress = 100
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// Pool is the driver-wide connection pool: one addressPool per Bolt server
// address plus the routing-table and home-database caches that decide which
// address to use (spec.md §4.4).
type Pool struct {
	cfg Config

	mu    sync.Mutex
	addrs map[string]*addressPool

	routes *routing.Cache
	homeDB *routing.HomeDBCache
}

// New builds a Pool.
func New(cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	homeDB, err := routing.NewHomeDBCache(routing.DefaultHomeDBCacheSize)
	if err != nil {
		return nil, err
	}
	return &Pool{
		cfg:    cfg,
		addrs:  make(map[string]*addressPool),
		routes: routing.NewCache(),
		homeDB: homeDB,
	}, nil
}

func (p *Pool) addressPoolFor(address string) *addressPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ap, ok := p.addrs[address]
	if !ok {
		ap = newAddressPool(address, p.cfg)
		p.addrs[address] = ap
	}
	return ap
}

// Close drains every address sub-pool: idle connections are closed and
// waiters are woken at once, and in-flight connections are closed as they
// are released. Close does not wait for in-flight connections to return.
func (p *Pool) Close() {
	p.mu.Lock()
	addrs := make([]*addressPool, 0, len(p.addrs))
	for _, ap := range p.addrs {
		addrs = append(addrs, ap)
	}
	p.mu.Unlock()
	for _, ap := range addrs {
		ap.close()
	}
}

// Stats reports per-address occupancy for every address this pool has
// dialed at least one connection to, the hook pkg/metrics polls to
// populate its pool gauges.
func (p *Pool) Stats() []Stats {
	p.mu.Lock()
	addrs := make([]*addressPool, 0, len(p.addrs))
	for _, ap := range p.addrs {
		addrs = append(addrs, ap)
	}
	p.mu.Unlock()
	stats := make([]Stats, 0, len(addrs))
	for _, ap := range addrs {
		stats = append(stats, ap.stats())
	}
	return stats
}

// Acquire resolves a connection for the given access mode and target
// database, consulting the routing table when the pool is routed (spec.md
// §4.4 "acquire").
func (p *Pool) Acquire(ctx context.Context, mode bolt.AccessMode, database, impersonatedUser string) (session.Connection, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	tok, err := p.auth(ctx)
	if err != nil {
		return nil, err
	}

	addresses, err := p.candidateAddresses(ctx, mode, database, impersonatedUser, tok, deadline)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, addr := range addresses {
		ap := p.addressPoolFor(addr)
		conn, err := ap.acquire(ctx, deadline, tok)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = neo4jerr.ServiceUnavailable("no candidate addresses available")
	}
	return nil, lastErr
}

// Release returns a connection to its address sub-pool (spec.md §4.4
// "release").
func (p *Pool) Release(ctx context.Context, conn session.Connection, dirty bool) error {
	pc, ok := conn.(*pooledConnection)
	if !ok {
		return fmt.Errorf("pool: release of foreign connection type %T", conn)
	}
	ap := p.addressPoolFor(pc.address)
	ap.release(pc, dirty)
	return nil
}

// InvalidateWriter evicts address from the cached routing table's writer
// list for database, so a subsequent Acquire for a write targets a
// different server instead of the one that just reported it is no longer
// the leader (spec.md §4.5, §8 scenario 3).
func (p *Pool) InvalidateWriter(database, address string) {
	p.routes.RemoveWriter(database, address)
}

func (p *Pool) auth(ctx context.Context) (values.AuthToken, error) {
	if p.cfg.Auth == nil {
		return values.AuthToken{"scheme": "none"}, nil
	}
	return p.cfg.Auth.GetAuth(ctx)
}

// candidateAddresses returns the ordered addresses Acquire should try: the
// single direct address for an unrouted pool, or the routing table's
// reader/writer list (refreshing it first if needed) for a routed one.
func (p *Pool) candidateAddresses(ctx context.Context, mode bolt.AccessMode, database, impersonatedUser string, tok values.AuthToken, deadline time.Time) ([]string, error) {
	if !p.cfg.Routed {
		return p.seedAddresses(ctx)
	}

	if database == "" {
		resolved, err := p.resolveHomeDB(ctx, impersonatedUser, tok, deadline)
		if err != nil {
			return nil, err
		}
		database = resolved
	}

	table, ok := p.routes.Get(database)
	if !ok || table.Expired(time.Now()) {
		var err error
		table, err = p.refreshTable(ctx, database, impersonatedUser, deadline)
		if err != nil {
			return nil, err
		}
	}
	addrs := table.Addresses(mode == bolt.Write)
	if len(addrs) == 0 {
		return nil, neo4jerr.ServiceUnavailable(fmt.Sprintf("routing table for %q has no %s addresses", database, mode))
	}
	return addrs, nil
}

// resolveHomeDB consults the home-database cache, running a routing round
// against the empty-database table on a miss (spec.md §4.4 "resolve_home_db",
// §4.6).
func (p *Pool) resolveHomeDB(ctx context.Context, impersonatedUser string, tok values.AuthToken, deadline time.Time) (string, error) {
	key := routing.HomeDBKey{ImpersonatedUser: impersonatedUser, AuthHash: routing.HashAuthToken(tok)}
	if db, ok := p.homeDB.Get(key); ok {
		return db, nil
	}
	table, err := p.refreshTable(ctx, "", impersonatedUser, deadline)
	if err != nil {
		return "", err
	}
	p.homeDB.Put(key, table.Database)
	return table.Database, nil
}

// seedAddresses expands the configured seed addresses through the resolver
// chain. Unrouted pools consult only the first resolved address, matching a
// bolt:// URI's single-server semantics.
func (p *Pool) seedAddresses(ctx context.Context) ([]string, error) {
	if len(p.cfg.Seeds) == 0 {
		return nil, neo4jerr.InvalidConfig("pool: no seed addresses configured")
	}
	if p.cfg.Resolver == nil {
		return []string{p.cfg.Seeds[0]}, nil
	}
	resolved, err := p.cfg.Resolver.Resolve(ctx, p.cfg.Seeds[0])
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// refreshTable runs a routing round: ROUTE against each candidate router in
// turn, stopping at the first success or the first fatal-for-discovery
// error (spec.md §4.5).
func (p *Pool) refreshTable(ctx context.Context, database, impersonatedUser string, deadline time.Time) (*routing.Table, error) {
	routers, err := p.routerCandidates(ctx, database)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, addr := range routers {
		table, err := p.routeOnce(ctx, addr, database, impersonatedUser, deadline)
		if err == nil {
			p.routes.Put(table)
			return table, nil
		}
		if ne, ok := neo4jerr.As(err); ok && ne.FatalDuringDiscovery() {
			return nil, err
		}
		lastErr = err
	}

	if old, ok := p.routes.Get(database); ok && !old.Expired(time.Now()) {
		logger := log.WithComponent("pool")
		if len(routers) > 0 {
			logger = log.WithAddress(routers[0])
		}
		logger.Warn().Err(lastErr).Msg("routing table refresh exhausted all routers, keeping unexpired table")
	} else {
		p.routes.Invalidate(database)
	}
	if lastErr == nil {
		lastErr = neo4jerr.ServiceUnavailable("routing table refresh exhausted all routers")
	} else {
		lastErr = neo4jerr.ServiceUnavailable(fmt.Sprintf("routing table refresh exhausted all routers: %s", lastErr))
	}
	return nil, lastErr
}

// routerCandidates returns the routers to try: the current table's routers
// for a warm refresh, or the resolved seeds for a cold start (spec.md §4.5
// "a candidate router in the current table... or the seed addresses for a
// cold start").
func (p *Pool) routerCandidates(ctx context.Context, database string) ([]string, error) {
	if table, ok := p.routes.Get(database); ok && len(table.Routers) > 0 {
		return table.Routers, nil
	}
	return p.seedAddresses(ctx)
}

// routeOnce dials a short-lived connection to one router, issues ROUTE, and
// parses its response. It does not borrow from the address pool: routing
// connections are not reused, which keeps this pool's eviction/liveness
// bookkeeping scoped to connections that actually serve sessions.
func (p *Pool) routeOnce(ctx context.Context, address, database, impersonatedUser string, deadline time.Time) (*routing.Table, error) {
	dialCtx := ctx
	if dl, ok := ctx.Deadline(); !ok || deadline.Before(dl) {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	tok, err := p.auth(ctx)
	if err != nil {
		return nil, err
	}
	h, conn, err := dialAndHandshake(dialCtx, address, p.cfg, tok)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer h.Goodbye() //nolint:errcheck

	var meta map[string]any
	var routeErr error
	done := false
	cb := bolt.Callbacks{
		OnSuccess: func(m map[string]any) error { meta = m; done = true; return nil },
		OnFailure: func(se *neo4jerr.ServerError) error { routeErr = neo4jerr.FromServerError(se); done = true; return nil },
	}
	if err := h.Route(bolt.RouteParams{
		RoutingContext:   p.cfg.RoutingContext,
		Database:         database,
		ImpersonatedUser: impersonatedUser,
		Minor:            int(conn.Version.Minor),
	}, cb); err != nil {
		return nil, neo4jerr.WrapWrite(err)
	}
	for !done {
		if err := h.ReadResponse(); err != nil {
			return nil, neo4jerr.WrapRead(err)
		}
	}
	if routeErr != nil {
		return nil, routeErr
	}
	return parseRouteMeta(database, meta)
}

// parseRouteMeta decodes ROUTE's success meta: rt: {ttl, db, servers:
// [{addresses, role}]} (spec.md §4.5).
func parseRouteMeta(requestedDB string, meta map[string]any) (*routing.Table, error) {
	rt, ok := meta["rt"].(map[string]any)
	if !ok {
		return nil, neo4jerr.Protocol("ROUTE success missing rt field")
	}
	ttlSecs, _ := rt["ttl"].(int64)
	db, _ := rt["db"].(string)
	if db == "" {
		db = requestedDB
	}
	table := &routing.Table{Database: db, Deadline: time.Now().Add(time.Duration(ttlSecs) * time.Second)}

	servers, _ := rt["servers"].([]any)
	for _, s := range servers {
		entry, ok := s.(map[string]any)
		if !ok {
			continue
		}
		role, _ := entry["role"].(string)
		var addrs []string
		if rawAddrs, ok := entry["addresses"].([]any); ok {
			for _, a := range rawAddrs {
				if addr, ok := a.(string); ok {
					addrs = append(addrs, addr)
				}
			}
		}
		switch role {
		case "ROUTE":
			table.Routers = append(table.Routers, addrs...)
		case "READ":
			table.Readers = append(table.Readers, addrs...)
		case "WRITE":
			table.Writers = append(table.Writers, addrs...)
		}
	}
	return table, nil
}

// translatorFor picks the struct translator for a negotiated Bolt version
// (spec.md §4.2 "layering by delegation"): one concrete translator covers an
// entire minor-version line.
func translatorFor(v boltconn.Version) bolttranslate.Translator {
	switch {
	case v.Major >= 6:
		return bolttranslate.NewBolt6x0Translator()
	case v.Major == 5:
		return bolttranslate.NewBolt5x0Translator()
	default:
		return bolttranslate.NewBolt4x4Translator(true)
	}
}
