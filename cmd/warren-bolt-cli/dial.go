package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/warren-bolt/pkg/bolt"
	"github.com/cuemby/warren-bolt/pkg/bolttranslate"
	"github.com/cuemby/warren-bolt/pkg/boltconn"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
)

const defaultPort = "7687"

// resolveAddress maps one of the six Bolt connection-URI schemes to a dial
// address and TLS mode, the same table pkg/driver.parseURI uses.
func resolveAddress(uri string) (address string, tlsMode boltconn.TLSMode, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", 0, fmt.Errorf("invalid URI: %w", err)
	}
	base, variant, _ := strings.Cut(u.Scheme, "+")
	switch base {
	case "bolt", "neo4j":
	default:
		return "", 0, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	switch variant {
	case "":
		tlsMode = boltconn.TLSDisabled
	case "s":
		tlsMode = boltconn.TLSSystemCA
	case "ssc":
		tlsMode = boltconn.TLSInsecure
	default:
		return "", 0, fmt.Errorf("unsupported scheme variant %q", variant)
	}

	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("URI is missing a host")
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", 0, fmt.Errorf("invalid port %q", port)
	}
	return host + ":" + port, tlsMode, nil
}

// translatorFor picks the struct translator for a negotiated version,
// mirroring pkg/pool's unexported helper of the same name.
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

// handshake dials uri, negotiates a Bolt version, and sends HELLO with the
// basic auth token merged into its extras map, whatever version was
// negotiated. No LOGON is sent, including on 5.1+ connections.
func handshake(ctx context.Context, uri, user, password string) (*bolt.Handler, *boltconn.Connection, error) {
	address, tlsMode, err := resolveAddress(uri)
	if err != nil {
		return nil, nil, err
	}

	conn, err := boltconn.Connect(ctx, boltconn.DialOptions{
		Address:        address,
		TLSMode:        tlsMode,
		ConnectTimeout: 10 * time.Second,
		KeepAlive:      true,
	})
	if err != nil {
		return nil, nil, neo4jerr.WrapConnect(err)
	}

	h := bolt.NewHandler(conn, translatorFor(conn.Version))
	hello := bolt.HelloParams{
		UserAgent: "warren-bolt-cli/1.0",
		Auth: map[string]any{
			"scheme":      "basic",
			"principal":   user,
			"credentials": password,
		},
	}

	done := false
	var helloErr error
	cb := bolt.Callbacks{
		OnSuccess: func(map[string]any) error { done = true; return nil },
		OnFailure: func(se *neo4jerr.ServerError) error { helloErr = neo4jerr.FromServerError(se); done = true; return nil },
	}
	if err := h.Hello(hello, cb); err != nil {
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
	return h, conn, nil
}
