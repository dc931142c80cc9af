/*
Package log provides structured logging for the driver using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("pool")                    │          │
	│  │  - WithAddress("localhost:7687")             │          │
	│  │  - WithBoltVersion("5.4")                    │          │
	│  │  - WithSessionID("session-abc123")           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "pool",                     │          │
	│  │    "address": "localhost:7687",             │          │
	│  │    "time": "2026-07-29T10:30:00Z",          │          │
	│  │    "message": "connection acquired"         │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF connection acquired component=pool │      │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs (pool, session, routing)
  - WithAddress: Add the Bolt server address a log line concerns
  - WithBoltVersion: Add the negotiated protocol version
  - WithSessionID: Add the logical session a log line belongs to

# Usage

Initializing the Logger:

	import "github.com/cuemby/warren-bolt/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("driver started")
	log.Debug("acquiring connection")
	log.Warn("routing table refresh returned stale servers")
	log.Error("connection handshake failed")

Component Loggers:

	poolLog := log.WithComponent("pool")
	poolLog.Info().Msg("dialing address")

	connLog := log.WithAddress("localhost:7687").
		With().Str("bolt_version", "5.4").Logger()
	connLog.Debug().Msg("HELLO succeeded")

Context Logger Helpers:

	sessLog := log.WithSessionID("session-abc123")
	sessLog.Info().Msg("managed transaction retrying")

# Integration Points

This package integrates with:

  - pkg/pool: Logs address selection, dial failures, acquire timeouts
  - pkg/session: Logs retry attempts and bookmark propagation
  - pkg/routing: Logs routing-table refresh outcomes
  - pkg/boltconn: Logs handshake and TLS negotiation

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers down into acquire/retry loops
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Consistent error format across the driver

# Security

Log Content:
  - Never log auth tokens or credentials
  - Bookmarks and query parameters may carry sensitive data; avoid
    logging them at Info level or above

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
