package bolt

// State is the per-connection protocol state, mirroring the handler's view
// of what the server is prepared to do next. It is distinct from the
// stream-listener states in pkg/stream, which track one RUN's record
// delivery rather than the connection as a whole.
type State int

const (
	StateUnauthorized State = iota // HELLO/LOGON not yet sent
	StateReady                     // idle, ready for RUN/BEGIN
	StateStreaming                 // auto-commit RUN in flight
	StateTx          // inside a transaction, no open stream
	StateStreamingTx // RUN inside a transaction in flight
	StateFailed      // recoverable: needs RESET
	StateDead        // unrecoverable: connection must be dropped
)

func (s State) String() string {
	switch s {
	case StateUnauthorized:
		return "unauthorized"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateTx:
		return "tx"
	case StateStreamingTx:
		return "streaming_tx"
	case StateFailed:
		return "failed"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// leavingStream returns the state to transition to when the last open
// stream on a connection in this state is consumed or discarded.
func (s State) leavingStream() State {
	switch s {
	case StateStreamingTx:
		return StateTx
	case StateStreaming:
		return StateReady
	default:
		return s
	}
}
