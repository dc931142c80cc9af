package neo4jerr

import "strings"

// reclassifiedCodes rewrites pre-5.0 transient codes that Neo4j 5.0+
// reclassified as client errors. The driver normalises both directions so a
// 4.4 server and a 5.0+ server produce the same retry behaviour.
var reclassifiedCodes = map[string]string{
	"Neo.TransientError.Transaction.Terminated":         "Neo.ClientError.Transaction.Terminated",
	"Neo.TransientError.Transaction.LockClientStopped":  "Neo.ClientError.Transaction.LockClientStopped",
}

// fatalDuringDiscoveryCodes abort a routing-table refresh immediately rather
// than falling through to the next router.
var fatalDuringDiscoveryCodes = map[string]bool{
	"Neo.ClientError.Database.DatabaseNotFound":          true,
	"Neo.ClientError.Transaction.InvalidBookmark":        true,
	"Neo.ClientError.Transaction.InvalidBookmarkMixture": true,
	"Neo.ClientError.Statement.TypeError":                true,
	"Neo.ClientError.Statement.ArgumentError":            true,
	"Neo.ClientError.Request.Invalid":                    true,
}

const authorizationExpired = "Neo.ClientError.Security.AuthorizationExpired"

var retryableCodes = map[string]bool{
	authorizationExpired:                                true,
	"Neo.ClientError.Cluster.NotALeader":                 true,
	"Neo.ClientError.General.ForbiddenOnReadOnlyDatabase": true,
}

// ServerError is a FAILURE response parsed into its Bolt GQL-adjacent shape:
// code, message, and (>=5.7) a diagnostic record enriched with the defaults
// Neo4j uses when the server didn't supply them.
type ServerError struct {
	Code             string
	Message          string
	GqlStatus        string
	DiagnosticRecord map[string]any
	Cause            *ServerError

	retryableOverwrite bool
}

// NewServerError applies the pre-5.0 reclassification and constructs a
// ServerError. Use FromMeta to build one directly off a FAILURE message.
func NewServerError(code, message string) *ServerError {
	if mapped, ok := reclassifiedCodes[code]; ok {
		code = mapped
	}
	return &ServerError{Code: code, Message: message}
}

// FromMeta builds a ServerError from a decoded FAILURE message's metadata
// map, defaulting code/message the way a malformed FAILURE is tolerated.
func FromMeta(meta map[string]any) *ServerError {
	code, _ := meta["code"].(string)
	if code == "" {
		code = "Neo.DatabaseError.General.UnknownError"
	}
	message, _ := meta["message"].(string)
	if message == "" {
		message = "An unknown error occurred."
	}
	se := NewServerError(code, message)
	if gql, ok := meta["gql_status"].(string); ok {
		se.GqlStatus = gql
	}
	if dr, ok := meta["diagnostic_record"].(map[string]any); ok {
		se.DiagnosticRecord = enrichDiagnosticRecord(dr)
	}
	if cause, ok := meta["cause"].(map[string]any); ok {
		se.Cause = FromMeta(cause)
	}
	return se
}

// enrichDiagnosticRecord applies the >=5.7 default fields before the record
// reaches application code, recursing is handled by the caller via Cause.
func enrichDiagnosticRecord(dr map[string]any) map[string]any {
	out := make(map[string]any, len(dr)+3)
	for k, v := range dr {
		out[k] = v
	}
	if _, ok := out["OPERATION"]; !ok {
		out["OPERATION"] = ""
	}
	if _, ok := out["OPERATION_CODE"]; !ok {
		out["OPERATION_CODE"] = "0"
	}
	if _, ok := out["CURRENT_SCHEMA"]; !ok {
		out["CURRENT_SCHEMA"] = "/"
	}
	return out
}

// EnrichDiagnosticRecord applies the same >=5.7 defaulting in place to a
// diagnostic_record nested inside a RUN/PULL success status entry, since
// those never flow through FromMeta (spec.md §4.3, "On ≥5.6 the same
// enrichment is applied preemptively to each status").
func EnrichDiagnosticRecord(status map[string]any) {
	dr, ok := status["diagnostic_record"].(map[string]any)
	if !ok {
		return
	}
	status["diagnostic_record"] = enrichDiagnosticRecord(dr)
}

func (e *ServerError) Error() string {
	return "server error " + e.Code + ": " + e.Message
}

// Classification is the second dot-separated segment of the code, e.g.
// "ClientError" in "Neo.ClientError.Security.Forbidden".
func (e *ServerError) Classification() string { return codeSegment(e.Code, 1) }

// Category is the third dot-separated segment of the code.
func (e *ServerError) Category() string { return codeSegment(e.Code, 2) }

// Title is the fourth dot-separated segment of the code.
func (e *ServerError) Title() string { return codeSegment(e.Code, 3) }

func codeSegment(code string, n int) string {
	parts := strings.Split(code, ".")
	if n < len(parts) {
		return parts[n]
	}
	return ""
}

func (e *ServerError) IsRetryable() bool {
	if e.retryableOverwrite {
		return true
	}
	if retryableCodes[e.Code] {
		return true
	}
	return e.Classification() == "TransientError"
}

func (e *ServerError) FatalDuringDiscovery() bool {
	if fatalDuringDiscoveryCodes[e.Code] {
		return true
	}
	return strings.HasPrefix(e.Code, "Neo.ClientError.Security.") && e.Code != authorizationExpired
}

// DeactivatesServer reports whether the routing table must drop the server
// that produced this error as a candidate entirely.
func (e *ServerError) DeactivatesServer() bool {
	return e.Code == "Neo.TransientError.General.DatabaseUnavailable"
}

// InvalidatesWriter reports whether the pool's cached writer for this
// database is stale and must be re-discovered.
func (e *ServerError) InvalidatesWriter() bool {
	return e.Code == "Neo.ClientError.Cluster.NotALeader" ||
		e.Code == "Neo.ClientError.General.ForbiddenOnReadOnlyDatabase"
}

func (e *ServerError) IsSecurityError() bool {
	return strings.HasPrefix(e.Code, "Neo.ClientError.Security.")
}

// UnauthenticatesAllConnections reports whether every pooled connection for
// the offending address must be re-authenticated before further use.
func (e *ServerError) UnauthenticatesAllConnections() bool {
	return e.Code == authorizationExpired
}

// OverwriteRetryable lets a protocol handler mark a query retryable in-band
// (used by RUN success hints on servers that advertise it), independent of
// the code-based classification above.
func (e *ServerError) OverwriteRetryable() {
	e.retryableOverwrite = true
}
