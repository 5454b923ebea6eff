package mysqlconn

// State is one of the seven connection states in the command/response
// state machine (spec.md §4.1).
type State int

const (
	// StateAllocated is the initial state: constructed, no transport.
	StateAllocated State = iota
	// StateReady is idle and safe to issue a command.
	StateReady
	// StateQuerySent means a query command has been written and the
	// connection is awaiting a result-set header.
	StateQuerySent
	// StateSendingLoadData means the server asked the client to stream
	// a local file.
	StateSendingLoadData
	// StateFetchingData means a result-set header has been parsed and
	// rows are pending on the unbuffered path.
	StateFetchingData
	// StateNextResultPending means the last row was consumed and the
	// server has more result sets.
	StateNextResultPending
	// StateQuitSent is terminal: a logical close was issued, or the
	// server was declared unreachable.
	StateQuitSent
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateReady:
		return "ready"
	case StateQuerySent:
		return "query_sent"
	case StateSendingLoadData:
		return "sending_load_data"
	case StateFetchingData:
		return "fetching_data"
	case StateNextResultPending:
		return "next_result_pending"
	case StateQuitSent:
		return "quit_sent"
	default:
		return "unknown"
	}
}

// pollable reports whether a handle in this state is eligible for the
// readiness multiplexer: states at or below ready, and quit_sent, are
// ineligible (spec.md §4.8).
func (s State) pollable() bool {
	return s != StateAllocated && s != StateReady && s != StateQuitSent
}
