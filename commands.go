package mysqlconn

import (
	"fmt"
	"time"

	"github.com/mysqlconn/mysqlconn/internal/protocol"
)

// expectedReply names what handle_response should parse after a command
// that doesn't defer reply-reading to the caller (spec.md §4.3).
type expectedReply int

const (
	// replyNone means simpleCommand returns after the write without
	// reading a reply (kill-self, whose connection the server drops).
	replyNone expectedReply = iota
	replyOK
	replyEOF
)

// simpleCommand implements spec.md §4.3: validates state, clears
// upsert_status unless ignoreUpsert is set, always clears error_info,
// writes the command packet, and optionally reads back the expected
// reply shape.
func (c *Connection) simpleCommand(cmd protocol.Command, arg []byte, expected expectedReply, ignoreUpsert bool) error {
	if c.state == StateQuitSent {
		return c.fail(newError(KindServerGone, "server gone"))
	}
	if c.state != StateReady {
		return c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	if !ignoreUpsert {
		c.upsertStatus = UpsertStatus{}
	}
	c.errorInfo = ErrorInfo{}

	packet := protocol.BuildCommand(cmd, arg)
	start := time.Now()
	c.stream.Reset()
	if err := c.stream.WritePacket(c.writer, packet); err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "writing command packet", err))
	}
	c.stats.BytesSent(len(packet) + 4)
	c.stats.CommandSent(commandName(cmd), time.Since(start).Seconds())

	if expected == replyNone {
		return nil
	}

	return c.handleResponse(expected, ignoreUpsert)
}

// handleResponse reads and interprets the command's reply per the shape
// named by expected (spec.md §4.3 step 5).
func (c *Connection) handleResponse(expected expectedReply, ignoreUpsert bool) error {
	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "reading reply packet", err))
	}
	c.stats.BytesReceived(len(data) + 4)

	switch expected {
	case replyOK:
		return c.handleOKReply(data, ignoreUpsert)
	case replyEOF:
		return c.handleEOFReply(data)
	default:
		panic(fmt.Sprintf("mysqlconn: handleResponse called with programmer-error expected reply %d", expected))
	}
}

func (c *Connection) handleOKReply(data []byte, ignoreUpsert bool) error {
	if protocol.IsErrPacket(data) {
		return c.handleErrPacket(data)
	}

	ok, err := protocol.ParseOK(data)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindMalformedPacket, "parsing OK packet", err))
	}

	c.lastMessage = ok.Message
	if !ignoreUpsert {
		c.upsertStatus = UpsertStatus{
			ServerStatus: ok.StatusFlags,
			WarningCount: ok.WarningCount,
			AffectedRows: ok.AffectedRows,
			LastInsertID: ok.LastInsertID,
		}
	}
	return nil
}

func (c *Connection) handleEOFReply(data []byte) error {
	if protocol.IsErrPacket(data) {
		return c.handleErrPacket(data)
	}
	if !protocol.IsEOFPacket(data) {
		c.transitionQuitSent()
		return c.fail(newError(KindMalformedPacket, "expected EOF packet"))
	}
	// Success: no session mutation (spec.md §4.3).
	return nil
}

// handleErrPacket parses an ERR reply, sets error_info, and clears
// MORE_RESULTS_EXISTS per the protocol's omission of server_status in
// error packets (spec.md §3 invariant 7, §9).
func (c *Connection) handleErrPacket(data []byte) error {
	errPkt, err := protocol.ParseErr(data)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindMalformedPacket, "parsing ERR packet", err))
	}

	c.upsertStatus.ServerStatus &^= protocol.ServerStatusMoreResultsExists
	// affected_rows is set to the all-bits-set sentinel on error, not 0,
	// so a failed statement can never be mistaken for one that legitimately
	// affected zero rows (spec.md §4.3 "error sentinel").
	c.upsertStatus.AffectedRows = ^uint64(0)

	return c.fail(serverError(errPkt.ErrorCode, errPkt.SQLState, errPkt.Message))
}

// fail records e in error_info and returns it, implementing the
// "propagation policy" of spec.md §7.
func (c *Connection) fail(e *Error) error {
	c.errorInfo = ErrorInfo{ErrNo: e.ErrNo, SQLState: e.SQLState, Message: e.Error()}
	c.stats.Error(e.Kind.String())
	return e
}

// transitionQuitSent moves the connection to the terminal state on an
// unrecoverable protocol or transport error (spec.md §4.1, §7).
func (c *Connection) transitionQuitSent() {
	c.state = StateQuitSent
}

func commandName(cmd protocol.Command) string {
	switch cmd {
	case protocol.ComQuit:
		return "COM_QUIT"
	case protocol.ComInitDB:
		return "COM_INIT_DB"
	case protocol.ComQuery:
		return "COM_QUERY"
	case protocol.ComFieldList:
		return "COM_FIELD_LIST"
	case protocol.ComStatistics:
		return "COM_STATISTICS"
	case protocol.ComProcessKill:
		return "COM_PROCESS_KILL"
	case protocol.ComPing:
		return "COM_PING"
	case protocol.ComDebug:
		return "COM_DEBUG"
	case protocol.ComChangeUser:
		return "COM_CHANGE_USER"
	case protocol.ComSetOption:
		return "COM_SET_OPTION"
	case protocol.ComRefresh:
		return "COM_REFRESH"
	case protocol.ComShutdown:
		return "COM_SHUTDOWN"
	default:
		return "COM_UNKNOWN"
	}
}
