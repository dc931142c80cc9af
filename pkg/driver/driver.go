// Package driver is the top-level facade: it owns the connection pool,
// parses connection URIs, and dispatches sessions and one-shot
// execute-query calls (spec.md module N).
//
// Grounded on pkg/client.Client (teacher): a struct wrapping a transport
// handle plus a constructor that resolves scheme/auth/TLS into dial
// options, with thin per-call delegation methods.
package driver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/warren-bolt/pkg/auth"
	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/bookmark"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/pool"
	"github.com/cuemby/warren-bolt/pkg/resolver"
	"github.com/cuemby/warren-bolt/pkg/retry"
	"github.com/cuemby/warren-bolt/pkg/session"
	"github.com/cuemby/warren-bolt/pkg/stream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

const defaultPort = "7687"

// Config is the user-facing surface named in spec.md §6 "Config surface".
// New fills in UserAgent, FetchSize and BookmarkManager, and pkg/pool fills
// in the timeout and pool-size defaults; these match pkg/config.Default().
// KeepAlive is not defaulted: a zero Config dials without TCP keep-alive,
// while pkg/config.Default() turns it on.
type Config struct {
	UserAgent                    string
	Auth                         auth.Manager
	Resolver                     resolver.AddressResolver
	ConnectionTimeout            time.Duration
	ConnectionAcquisitionTimeout time.Duration
	MaxConnectionLifetime        time.Duration
	MaxConnectionPoolSize        int
	FetchSize                    int64
	KeepAlive                    bool
	NotificationFilter           map[string]any
	TelemetryDisabled            bool
	BookmarkManager              bookmark.Manager
	RetryPolicy                  *retry.Policy
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "warren-bolt/1.0"
	}
	if c.FetchSize == 0 {
		c.FetchSize = 1000
	}
	if c.BookmarkManager == nil {
		c.BookmarkManager = bookmark.NewInMemory()
	}
	return c
}

// Driver owns the connection pool for one target (direct address or
// routing seed) and hands out sessions bound to it. A Driver is shared
// across goroutines; the sessions it creates are not (spec.md §5).
type Driver struct {
	pool *pool.Pool
	cfg  Config
}

// New parses uri (bolt/bolt+s/bolt+ssc/neo4j/neo4j+s/neo4j+ssc, spec.md §6)
// and builds the pool behind it.
func New(uri string, cfg Config) (*Driver, error) {
	cfg = cfg.withDefaults()
	if cfg.Auth == nil {
		return nil, neo4jerr.InvalidConfig("driver: Auth is required")
	}

	routed, tlsMode, address, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	p, err := pool.New(pool.Config{
		Seeds:              []string{address},
		Routed:             routed,
		Resolver:           cfg.Resolver,
		Auth:               cfg.Auth,
		UserAgent:          cfg.UserAgent,
		NotificationFilter: cfg.NotificationFilter,
		TLSMode:            tlsMode,
		ConnectTimeout:     cfg.ConnectionTimeout,
		KeepAlive:          cfg.KeepAlive,
		AcquireTimeout:     cfg.ConnectionAcquisitionTimeout,
		MaxLifetime:        cfg.MaxConnectionLifetime,
		MaxPerAddress:      cfg.MaxConnectionPoolSize,
	})
	if err != nil {
		return nil, err
	}

	return &Driver{pool: p, cfg: cfg}, nil
}

// parseURI splits a connection URI into (routed, tlsMode, host:port).
func parseURI(uri string) (routed bool, tlsMode boltconn.TLSMode, address string, err error) {
	u, parseErr := url.Parse(uri)
	if parseErr != nil {
		return false, 0, "", neo4jerr.InvalidConfig(fmt.Sprintf("invalid connection URI: %s", parseErr))
	}

	scheme := strings.ToLower(u.Scheme)
	base, variant, _ := strings.Cut(scheme, "+")
	switch base {
	case "bolt":
		routed = false
	case "neo4j":
		routed = true
	default:
		return false, 0, "", neo4jerr.InvalidConfig(fmt.Sprintf("unsupported connection scheme %q", u.Scheme))
	}
	switch variant {
	case "":
		tlsMode = boltconn.TLSDisabled
	case "s":
		tlsMode = boltconn.TLSSystemCA
	case "ssc":
		tlsMode = boltconn.TLSInsecure
	default:
		return false, 0, "", neo4jerr.InvalidConfig(fmt.Sprintf("unsupported connection scheme %q", u.Scheme))
	}

	host := u.Hostname()
	if host == "" {
		return false, 0, "", neo4jerr.InvalidConfig("connection URI has no host")
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	if _, err := strconv.Atoi(port); err != nil {
		return false, 0, "", neo4jerr.InvalidConfig(fmt.Sprintf("invalid port in connection URI: %s", port))
	}
	return routed, tlsMode, fmt.Sprintf("%s:%s", host, port), nil
}

// NewSession opens a session bound to this driver's pool. Sessions are not
// safe for concurrent use and should be closed by the caller.
func (d *Driver) NewSession(cfg session.Config) *session.Session {
	if cfg.FetchSize == 0 {
		cfg.FetchSize = d.cfg.FetchSize
	}
	if cfg.BookmarkManager == nil {
		cfg.BookmarkManager = d.cfg.BookmarkManager
	}
	if cfg.RetryPolicy == nil {
		cfg.RetryPolicy = d.cfg.RetryPolicy
	}
	return session.New(d.pool, cfg)
}

// EagerResult is the fully-drained outcome of ExecuteQuery: every record
// read up front, plus the run summary.
type EagerResult struct {
	Keys    []string
	Records []stream.Record
	Summary stream.Summary
}

// ExecuteQuery is the one-shot convenience wrapper: open a session, run an
// auto-commit query, consume it fully, close the session.
func (d *Driver) ExecuteQuery(ctx context.Context, cypher string, params map[string]any, opts ...QueryOption) (*EagerResult, error) {
	o := queryOptions{mode: bolt.Write}
	for _, apply := range opts {
		apply(&o)
	}

	s := d.NewSession(session.Config{
		AccessMode:       o.mode,
		DatabaseName:     o.database,
		ImpersonatedUser: o.impersonatedUser,
		Bookmarks:        o.bookmarks,
		BookmarkManager:  d.cfg.BookmarkManager,
	})
	defer s.Close(ctx)

	res, err := s.AutoCommit(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	keys := res.Keys()
	records, summary, err := res.TryAsEagerResult(ctx)
	if err != nil {
		return nil, err
	}
	return &EagerResult{Keys: keys, Records: records, Summary: summary}, nil
}

// QueryOption customises a single ExecuteQuery call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	mode             bolt.AccessMode
	database         string
	impersonatedUser string
	bookmarks        values.Bookmarks
}

func WithDatabase(name string) QueryOption         { return func(o *queryOptions) { o.database = name } }
func WithImpersonatedUser(u string) QueryOption    { return func(o *queryOptions) { o.impersonatedUser = u } }
func WithReadMode() QueryOption                    { return func(o *queryOptions) { o.mode = bolt.Read } }
func WithBookmarks(bm values.Bookmarks) QueryOption { return func(o *queryOptions) { o.bookmarks = bm } }

// VerifyConnectivity opens and immediately releases one connection,
// confirming the target is reachable and authentication succeeds.
func (d *Driver) VerifyConnectivity(ctx context.Context) error {
	s := d.NewSession(session.Config{})
	defer s.Close(ctx)
	_, err := s.AutoCommit(ctx, "RETURN 1", nil)
	return err
}

// Close releases every idle pooled connection. In-flight sessions should
// be closed by their owners before calling Close.
func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}
