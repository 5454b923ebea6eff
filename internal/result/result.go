// Package result holds the minimal Result type the connection layer
// creates while parsing a query's reply header and then hands ownership
// of to the caller. Row decoding and buffered-vs-streaming iteration
// strategy live here as a stub surface: the wire-level column and row
// packet format is explicitly out of scope (spec.md §1), but the
// connection's lifecycle handoff to Result must compile and be testable.
package result

import "github.com/mysqlconn/mysqlconn/internal/protocol"

// Field describes one column of a result set's metadata.
type Field struct {
	Name         string
	TableName    string
	CharsetNo    byte
	ColumnLength uint32
	ColumnType   byte
	Flags        uint16
	Decimals     byte
}

// Mode selects how a Result's rows are consumed once the caller takes
// ownership (spec.md §3's "use_result"/"store_result" split).
type Mode int

const (
	// ModeUnclaimed means the caller has not yet chosen use_result or
	// store_result; the connection still owns the Result.
	ModeUnclaimed Mode = iota
	// ModeUse streams rows directly off the wire as the caller consumes
	// them, holding the connection busy until exhausted.
	ModeUse
	// ModeStore buffers the whole result set up front, freeing the
	// connection for the next command immediately.
	ModeStore
)

// Result is a connection-owned-then-caller-owned handle onto one result
// set within a (possibly chained) query response.
type Result struct {
	Fields       []Field
	Mode         Mode
	EOFReached   bool
	AffectedRows uint64 // not set by the connection, which keeps affected rows on the Connection
	StatusFlags  protocol.ServerStatus

	// Rows holds each row's undecoded packet body, in arrival order.
	// Column-value decoding is out of this package's scope (spec.md §1);
	// AppendRow is the connection's only way to push fetched rows in.
	Rows [][]byte

	refcount int
}

// New creates a Result still owned by the connection, with the given
// field metadata already parsed from the header.
func New(fields []Field) *Result {
	return &Result{Fields: fields}
}

// GetReference increments the shared-ownership refcount (spec.md §5).
func (r *Result) GetReference() { r.refcount++ }

// FreeReference decrements the refcount, reporting whether it reached
// zero (the caller should treat that as "this Result is now destroyed").
func (r *Result) FreeReference() bool {
	r.refcount--
	return r.refcount <= 0
}

// Claim transfers ownership from the connection to the caller under the
// given consumption mode (spec.md §3: "ownership transfers out").
func (r *Result) Claim(mode Mode) {
	r.Mode = mode
}

// MarkEOF records that the terminating EOF/OK packet for this result set
// has been consumed, capturing its status flags so the connection can
// test ServerStatusMoreResultsExists for chaining (spec.md §4.4).
func (r *Result) MarkEOF(eof *protocol.EOFPacket) {
	r.EOFReached = true
	r.StatusFlags = eof.StatusFlags
}

// HasMoreResults reports whether the server signaled another result set
// follows this one.
func (r *Result) HasMoreResults() bool {
	return r.StatusFlags&protocol.ServerStatusMoreResultsExists != 0
}

// AppendRow appends one row's undecoded packet body, in arrival order.
func (r *Result) AppendRow(row []byte) {
	r.Rows = append(r.Rows, row)
}
