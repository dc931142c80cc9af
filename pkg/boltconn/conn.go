package boltconn

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/cuemby/warren-bolt/pkg/log"
)

// TLSMode selects the certificate validation strategy for an encrypted
// connection scheme (spec.md §6 "Connection URIs").
type TLSMode int

const (
	TLSDisabled TLSMode = iota
	TLSSystemCA         // bolt+s / neo4j+s
	TLSInsecure         // bolt+ssc / neo4j+ssc: encrypted, certificate unverified
)

// DialOptions configures Connect.
type DialOptions struct {
	Address        string
	TLSMode        TLSMode
	ConnectTimeout time.Duration
	KeepAlive      bool
}

// Connection is one live, single-owner Bolt socket: negotiated version,
// chunked reader/writer, and idle/lifetime bookkeeping consulted by the
// pool's eviction policies (spec.md §4.4).
type Connection struct {
	Address string
	Version Version

	raw      net.Conn
	writer   *chunkWriter
	reader   *chunkReader
	birth    time.Time
	lastUsed time.Time
}

// Connect dials the address, performs the version handshake, and returns a
// Connection positioned to send HELLO. It never sends application messages;
// that is pkg/bolt's job.
func Connect(ctx context.Context, opts DialOptions) (*Connection, error) {
	dialer := net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: keepAliveInterval(opts.KeepAlive)}
	raw, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, err
	}

	conn := raw
	switch opts.TLSMode {
	case TLSSystemCA:
		tlsConn := tls.Client(raw, &tls.Config{ServerName: hostOnly(opts.Address), MinVersion: tls.VersionTLS12})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, err
		}
		conn = tlsConn
	case TLSInsecure:
		tlsConn := tls.Client(raw, &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}) //nolint:gosec
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, err
		}
		conn = tlsConn
	}

	br := bufio.NewReaderSize(conn, 4096)
	version, err := Negotiate(struct {
		readWriter
	}{readWriter{br, conn}})
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.WithAddress(opts.Address).Debug().Str("bolt_version", version.String()).Msg("handshake complete")
	return newConnection(conn, br, opts.Address, version), nil
}

// newConnection wraps an already-negotiated socket. Exported as
// WrapNegotiated for tests and for callers (e.g. a future TESTKIT backend)
// that perform the handshake out of band.
func newConnection(raw net.Conn, br *bufio.Reader, address string, version Version) *Connection {
	now := time.Now()
	return &Connection{
		Address:  address,
		Version:  version,
		raw:      raw,
		writer:   newChunkWriter(raw),
		reader:   newChunkReader(br),
		birth:    now,
		lastUsed: now,
	}
}

// WrapNegotiated builds a Connection around a socket that has already
// completed the version handshake, for tests that drive the wire protocol
// over an in-memory net.Pipe.
func WrapNegotiated(raw net.Conn, address string, version Version) *Connection {
	return newConnection(raw, bufio.NewReaderSize(raw, 4096), address, version)
}

// readWriter adapts a split reader/writer pair to io.ReadWriter for the
// handshake, since the buffered reader must survive past negotiation for
// chunk reads afterwards.
type readWriter struct {
	r *bufio.Reader
	w net.Conn
}

func (rw readWriter) Read(p []byte) (int, error)  { return rw.r.Read(p) }
func (rw readWriter) Write(p []byte) (int, error) { return rw.w.Write(p) }

func keepAliveInterval(enabled bool) time.Duration {
	if !enabled {
		return -1
	}
	return 30 * time.Second
}

func hostOnly(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}

// SendMessage writes one fully-chunked Bolt message.
func (c *Connection) SendMessage(body []byte) error {
	return c.writer.WriteMessage(body)
}

// ReceiveMessage reads and reassembles one Bolt message.
func (c *Connection) ReceiveMessage() ([]byte, error) {
	msg, err := c.reader.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.lastUsed = time.Now()
	return msg, nil
}

// SetDeadline applies a read/write deadline derived from the server's
// recv-timeout hint or the driver's own configuration.
func (c *Connection) SetDeadline(d time.Time) error {
	return c.raw.SetDeadline(d)
}

func (c *Connection) Close() error {
	return c.raw.Close()
}

func (c *Connection) Age() time.Duration  { return time.Since(c.birth) }
func (c *Connection) Idle() time.Duration { return time.Since(c.lastUsed) }
