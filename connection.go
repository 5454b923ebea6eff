// Package mysqlconn implements a native client-side driver for the
// MySQL 4.1+ wire protocol: a connection object that owns a network
// stream, sequences command packets against reply packets, and tracks
// session-level state across connect, authenticate, reconnect,
// change-user, multi-statement result chaining, and orderly shutdown.
//
// The byte-level packet codec, the transport, the result-set
// materializer, and prepared statements are external collaborators
// (internal/protocol, internal/transport, internal/result,
// internal/stmt); this package coordinates them but does not implement
// their internals.
package mysqlconn

import (
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mysqlconn/mysqlconn/internal/netpoll"
	"github.com/mysqlconn/mysqlconn/internal/protocol"
	"github.com/mysqlconn/mysqlconn/internal/result"
	"github.com/mysqlconn/mysqlconn/internal/stats"
	"github.com/mysqlconn/mysqlconn/internal/transport"
)

// CloseReason indexes the "close in middle" / close-type statistics
// (spec.md §4.7).
type CloseReason int

const (
	CloseExplicit CloseReason = iota
	CloseImplicit
	CloseDisconnect
)

// QueryType classifies the last statement dispatched through query
// (spec.md §3 "last_query_type").
type QueryType int

const (
	QueryTypeOther QueryType = iota
	QueryTypeSelect
	QueryTypeUpsert
	QueryTypeLoadData
)

// UpsertStatus mirrors the four fields OK packets carry (spec.md §3,
// GLOSSARY "Upsert status").
type UpsertStatus struct {
	ServerStatus protocol.ServerStatus
	WarningCount uint16
	AffectedRows uint64
	LastInsertID uint64
}

// LocalInfileHandler is invoked when the server requests a LOCAL INFILE
// load; it must return the file's contents (or an error) to be framed as
// the data packets COM_QUERY's load-data continuation sends (SPEC_FULL.md
// supplemented feature 2). A nil handler refuses every request.
type LocalInfileHandler func(filename string) ([]byte, error)

// Connection is the principal entity: a single-owner, single-threaded
// handle onto one MySQL session (spec.md §3, §5).
type Connection struct {
	// Identity
	host       string
	user       string
	password   string
	database   string
	unixSocket string
	port       int
	scheme     string
	hostInfo   string

	// Server-provided
	threadID           uint32
	serverVersion      string
	protocolVersion    byte
	serverCapabilities protocol.Capability
	scramble           []byte

	// Session
	charset          string
	greetCharset     byte
	clientFlag       protocol.Capability
	maxPacketSize    uint32

	// Dynamic
	state         State
	upsertStatus  UpsertStatus
	errorInfo     ErrorInfo
	lastMessage   string
	fieldCount    uint64
	lastQueryType QueryType
	currentResult *result.Result

	// Configuration
	options Options

	// Resources
	net     *transport.Conn
	rawConn net.Conn
	stream  protocol.Stream
	stats   *stats.Counters

	// reader/writer are what the protocol.Stream actually reads/writes
	// through; they equal net until CLIENT_COMPRESS is negotiated, at
	// which point they wrap net in zlib packet framing (spec.md §6,
	// internal/transport's CompressReader/CompressWriter).
	reader io.Reader
	writer io.Writer

	persistent bool
	refcount   int

	localInfile LocalInfileHandler
	ops         Ops
	plugins     map[PluginID]any

	mu sync.Mutex
}

// New creates a Connection in StateAllocated; connect() is required
// before any other operation is valid.
func New(opts Options) *Connection {
	c := &Connection{
		state:      StateAllocated,
		options:    opts.withDefaults(),
		stats:      stats.New(),
		plugins:    make(map[PluginID]any),
		persistent: opts.Persistent,
	}
	c.ops = defaultOps{}
	return c
}

// State returns the connection's current state.
func (c *Connection) State() State { return c.state }

// ThreadID returns the server-assigned connection id from the greet
// packet.
func (c *Connection) ThreadID() uint32 { return c.threadID }

// HostInfo returns the human-readable description of the transport, e.g.
// "db.example.com via TCP/IP" or "localhost via UNIX socket".
func (c *Connection) HostInfo() string { return c.hostInfo }

// Metrics returns the private Prometheus registry this connection's
// counters are registered on, for an embedder that wants to expose it
// on its own /metrics endpoint (cmd/mysqlping does this).
func (c *Connection) Metrics() *prometheus.Registry { return c.stats.Registry }

// ServerVersion returns the server's version string from the greet
// packet.
func (c *Connection) ServerVersion() string { return c.serverVersion }

// CharsetName returns the currently active charset name.
func (c *Connection) CharsetName() string { return c.charset }

// AffectedRows returns the affected-rows count from the last OK reply.
func (c *Connection) AffectedRows() uint64 { return c.upsertStatus.AffectedRows }

// InsertID returns the last-insert-id from the last OK reply.
func (c *Connection) InsertID() uint64 { return c.upsertStatus.LastInsertID }

// WarningCount returns the warning count from the last OK reply.
func (c *Connection) WarningCount() uint16 { return c.upsertStatus.WarningCount }

// Errno returns the error number from the last failed operation, or 0.
func (c *Connection) Errno() uint16 { return c.errorInfo.ErrNo }

// SQLState returns the SQLSTATE from the last failed operation, or "".
func (c *Connection) SQLState() string { return c.errorInfo.SQLState }

// Err returns the message from the last failed operation, or "".
func (c *Connection) Err() string { return c.errorInfo.Message }

// MoreResults reports whether the server_status bit MORE_RESULTS_EXISTS
// is currently set (spec.md §4.4 "more_results").
func (c *Connection) MoreResults() bool {
	return c.upsertStatus.ServerStatus&protocol.ServerStatusMoreResultsExists != 0
}

// SetLocalInfileHandler registers the callback used to satisfy LOCAL
// INFILE requests; passing nil (the default) refuses every request.
func (c *Connection) SetLocalInfileHandler(h LocalInfileHandler) {
	c.localInfile = h
}

// GetReference increments the connection's shared-ownership refcount
// (spec.md §5); Result and Stmt call this when they start observing the
// handle.
func (c *Connection) GetReference() { c.refcount++ }

// FreeReference decrements the refcount, reporting whether it reached
// zero.
func (c *Connection) FreeReference() bool {
	c.refcount--
	return c.refcount <= 0
}

// RestartSession clears per-session residue on a persistent connection
// ahead of reuse by a new caller session (spec.md §3 "Lifecycles",
// SPEC_FULL.md supplemented feature 4).
func (c *Connection) RestartSession() {
	c.lastMessage = ""
	c.errorInfo = ErrorInfo{}
}

// EndSession marks a persistent connection's teardown point without
// tearing down the transport itself; the connection remains usable until
// a subsequent explicit Close.
func (c *Connection) EndSession() {
	c.upsertStatus = UpsertStatus{}
}

// pollHandle adapts this connection to netpoll.Handle for the readiness
// multiplexer (spec.md §4.8).
type pollHandle struct {
	conn *Connection
}

func (h pollHandle) Pollable() bool { return h.conn.state.pollable() }

func (h pollHandle) RawConn() (syscall.RawConn, error) {
	tcpConn, ok := h.conn.rawConn.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("mysqlconn: poll requires a TCP transport")
	}
	return tcpConn.SyscallConn()
}

var _ netpoll.Handle = pollHandle{}
