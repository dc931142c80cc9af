// Package neo4jerr defines the error taxonomy produced by the Bolt driver:
// disconnects, client-side configuration errors, server-reported failures,
// acquisition/transaction timeouts, user-callback failures, and protocol
// violations. All of them share the *Neo4jError type so callers can use a
// single errors.As to recover driver-specific detail.
package neo4jerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the taxonomy of driver errors.
type Kind int

const (
	KindDisconnect Kind = iota
	KindInvalidConfig
	KindServerError
	KindTimeout
	KindUserCallback
	KindProtocolError
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindDisconnect:
		return "Disconnect"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindServerError:
		return "ServerError"
	case KindTimeout:
		return "Timeout"
	case KindUserCallback:
		return "UserCallback"
	case KindProtocolError:
		return "ProtocolError"
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	default:
		return "Unknown"
	}
}

// Neo4jError is the single error type returned across package boundaries of
// the driver. Use errors.As to recover it and inspect Kind/Server.
type Neo4jError struct {
	Kind    Kind
	Message string
	Cause   error

	// DuringCommit is set on Disconnect errors observed between sending
	// COMMIT and receiving its SUCCESS: the transaction's fate is unknown
	// and the error must not be retried.
	DuringCommit bool

	// Server carries the parsed FAILURE payload when Kind == KindServerError.
	Server *ServerError
}

func (e *Neo4jError) Error() string {
	switch e.Kind {
	case KindServerError:
		return e.Server.Error()
	case KindDisconnect:
		return fmt.Sprintf("connection failed: %s (during commit: %v)", e.Message, e.DuringCommit)
	case KindProtocolError:
		return fmt.Sprintf("the driver encountered a protocol violation, this is likely a bug in the driver or the server: %s", e.Message)
	default:
		return e.Message
	}
}

func (e *Neo4jError) Unwrap() error { return e.Cause }

// IsRetryable reports whether a retry policy may re-invoke the work that
// produced this error.
func (e *Neo4jError) IsRetryable() bool {
	switch e.Kind {
	case KindServerError:
		return e.Server.IsRetryable()
	case KindDisconnect:
		return !e.DuringCommit
	case KindServiceUnavailable:
		return true
	default:
		return false
	}
}

// FatalDuringDiscovery reports whether this error must abort a routing-table
// refresh immediately rather than trying the next router.
func (e *Neo4jError) FatalDuringDiscovery() bool {
	switch e.Kind {
	case KindServerError:
		return e.Server.FatalDuringDiscovery()
	case KindInvalidConfig, KindUserCallback:
		return true
	default:
		return false
	}
}

// InvalidatesWriter reports whether the pool must evict its cached writer
// address for the affected database after this error.
func (e *Neo4jError) InvalidatesWriter() bool {
	return e.Kind == KindServerError && e.Server.InvalidatesWriter()
}

// FailedCommit marks a Disconnect error as having occurred during commit,
// making it non-retryable regardless of the original classification.
func (e *Neo4jError) FailedCommit() *Neo4jError {
	if e.Kind == KindDisconnect {
		e.DuringCommit = true
	}
	return e
}

func Disconnect(message string, cause error) *Neo4jError {
	return &Neo4jError{Kind: KindDisconnect, Message: message, Cause: cause}
}

func InvalidConfig(message string) *Neo4jError {
	return &Neo4jError{Kind: KindInvalidConfig, Message: message}
}

func Timeout(message string) *Neo4jError {
	return &Neo4jError{Kind: KindTimeout, Message: message}
}

func AcquisitionTimeout(during string) *Neo4jError {
	return Timeout(fmt.Sprintf("connection acquisition timed out while %s", during))
}

func UserCallback(cause error) *Neo4jError {
	return &Neo4jError{Kind: KindUserCallback, Message: cause.Error(), Cause: cause}
}

func Protocol(message string) *Neo4jError {
	return &Neo4jError{Kind: KindProtocolError, Message: message}
}

// ServiceUnavailable reports that a routing-table refresh exhausted every
// candidate router without a usable reply (spec.md §4.5).
func ServiceUnavailable(message string) *Neo4jError {
	return &Neo4jError{Kind: KindServiceUnavailable, Message: message}
}

func FromServerError(se *ServerError) *Neo4jError {
	return &Neo4jError{Kind: KindServerError, Message: se.Error(), Server: se}
}

// WrapRead turns a socket read failure into a Disconnect error.
func WrapRead(err error) *Neo4jError {
	if err == nil {
		return nil
	}
	return Disconnect(fmt.Sprintf("failed to read: %s", err), err)
}

// WrapWrite turns a socket write failure into a Disconnect error.
func WrapWrite(err error) *Neo4jError {
	if err == nil {
		return nil
	}
	return Disconnect(fmt.Sprintf("failed to write: %s", err), err)
}

// WrapConnect turns a dial failure into a Disconnect error.
func WrapConnect(err error) *Neo4jError {
	if err == nil {
		return nil
	}
	return Disconnect(fmt.Sprintf("failed to open connection: %s", err), err)
}

// As is a tiny convenience over errors.As for the common case.
func As(err error) (*Neo4jError, bool) {
	var n *Neo4jError
	ok := errors.As(err, &n)
	return n, ok
}
