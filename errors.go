package mysqlconn

import "fmt"

// Kind classifies a driver-raised error (spec.md §7).
type Kind int

const (
	// KindServerGone marks a write or read on a transport the peer has
	// dropped, or any operation attempted while state is StateQuitSent.
	KindServerGone Kind = iota
	// KindCommandsOutOfSync marks an operation disallowed by the current
	// state.
	KindCommandsOutOfSync
	// KindMalformedPacket marks a reply whose byte pattern didn't match
	// the expected packet shape.
	KindMalformedPacket
	// KindServerError marks an ERR packet received from the server.
	KindServerError
	// KindOldAuthRequired marks a server that refused because only
	// old-style authentication was offered.
	KindOldAuthRequired
	// KindConnectionError marks a transport failure during dial.
	KindConnectionError
	// KindUnknownCharset marks a caller-named charset not in the
	// compiled table.
	KindUnknownCharset
	// KindNotImplemented marks a server protocol version the driver
	// does not support.
	KindNotImplemented
	// KindOutOfMemory marks an allocation failure.
	KindOutOfMemory
)

func (k Kind) String() string {
	switch k {
	case KindServerGone:
		return "ServerGone"
	case KindCommandsOutOfSync:
		return "CommandsOutOfSync"
	case KindMalformedPacket:
		return "MalformedPacket"
	case KindServerError:
		return "ServerError"
	case KindOldAuthRequired:
		return "OldAuthRequired"
	case KindConnectionError:
		return "ConnectionError"
	case KindUnknownCharset:
		return "UnknownCharset"
	case KindNotImplemented:
		return "NotImplemented"
	case KindOutOfMemory:
		return "OutOfMemory"
	default:
		return "Unknown"
	}
}

// Error is the error type every Connection operation returns on failure.
// It corresponds to ErrorInfo in the component design (spec.md §2): a
// typed kind plus the server's error_no/sqlstate/message when applicable.
type Error struct {
	Kind     Kind
	ErrNo    uint16
	SQLState string
	Message  string
	Wrapped  error
}

func (e *Error) Error() string {
	if e.ErrNo != 0 {
		return fmt.Sprintf("%s: %d (%s): %s", e.Kind, e.ErrNo, e.SQLState, e.Message)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: err}
}

func serverError(errNo uint16, sqlState, message string) *Error {
	return &Error{Kind: KindServerError, ErrNo: errNo, SQLState: sqlState, Message: message}
}

// fixedOldPasswordDiagnostic is the message surfaced for KindOldAuthRequired
// (spec.md §4.2 "Authentication-specific failures").
const fixedOldPasswordDiagnostic = "server requires pre-4.1 old-style password authentication, which this driver does not support"

// ErrorInfo mirrors the connection's sticky error_info slot: the last
// error surfaced by an operation, available after a FAIL return (spec.md
// §7 "Propagation policy").
type ErrorInfo struct {
	ErrNo    uint16
	SQLState string
	Message  string
}
