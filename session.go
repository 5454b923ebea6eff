package mysqlconn

import (
	"encoding/binary"

	"github.com/mysqlconn/mysqlconn/internal/charset"
	"github.com/mysqlconn/mysqlconn/internal/protocol"
	"github.com/mysqlconn/mysqlconn/internal/result"
)

// SelectDB issues COM_INIT_DB, updating the stored database name on
// success (spec.md §4.5).
func (c *Connection) SelectDB(name string) error {
	if err := c.simpleCommand(protocol.ComInitDB, []byte(name), replyOK, false); err != nil {
		return err
	}
	c.database = name
	return nil
}

// Ping issues COM_PING; failures still set error_info but don't produce
// user-visible warnings (spec.md §4.5, §7 "silent").
func (c *Connection) Ping() error {
	return c.simpleCommand(protocol.ComPing, nil, replyOK, true)
}

// Stat issues COM_STATISTICS and returns the server's free-form stats
// string (spec.md §4.5).
func (c *Connection) Stat() (string, error) {
	if c.state == StateQuitSent {
		return "", c.fail(newError(KindServerGone, "server gone"))
	}
	if c.state != StateReady {
		return "", c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	c.errorInfo = ErrorInfo{}
	packet := protocol.BuildComStatistics()
	c.stream.Reset()
	if err := c.stream.WritePacket(c.writer, packet); err != nil {
		c.transitionQuitSent()
		return "", c.fail(wrapError(KindServerGone, "writing COM_STATISTICS", err))
	}
	c.stats.CommandSent("COM_STATISTICS", 0)

	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return "", c.fail(wrapError(KindServerGone, "reading stats reply", err))
	}
	return string(data), nil
}

// Kill issues COM_PROCESS_KILL for pid. Killing the connection's own
// thread transitions straight to StateQuitSent without waiting for a
// reply, matching the server's behavior of dropping the connection
// before it can answer (spec.md §4.5).
func (c *Connection) Kill(pid uint32) error {
	arg := make([]byte, 4)
	binary.LittleEndian.PutUint32(arg, pid)

	if pid == c.threadID {
		err := c.simpleCommand(protocol.ComProcessKill, arg, replyNone, false)
		c.transitionQuitSent()
		return err
	}
	return c.simpleCommand(protocol.ComProcessKill, arg, replyOK, false)
}

// Refresh issues COM_REFRESH with the given option bitmask (spec.md
// §4.5).
func (c *Connection) Refresh(opts protocol.RefreshOption) error {
	return c.simpleCommand(protocol.ComRefresh, []byte{byte(opts)}, replyOK, false)
}

// Shutdown issues COM_SHUTDOWN; the server closes the connection
// afterward on its own initiative (spec.md §4.5).
func (c *Connection) Shutdown() error {
	return c.simpleCommand(protocol.ComShutdown, nil, replyOK, false)
}

// SetServerOption issues COM_SET_OPTION, e.g. to toggle
// CLIENT_MULTI_STATEMENTS mid-session (spec.md §4.5).
func (c *Connection) SetServerOption(opt protocol.SetOption) error {
	arg := make([]byte, 2)
	binary.LittleEndian.PutUint16(arg, uint16(opt))
	return c.simpleCommand(protocol.ComSetOption, arg, replyEOF, false)
}

// DumpDebugInfo issues COM_DEBUG, asking the server to dump debug
// information to its own log (spec.md §4.5).
func (c *Connection) DumpDebugInfo() error {
	return c.simpleCommand(protocol.ComDebug, nil, replyEOF, false)
}

// SetCharset issues `SET NAMES <name>` and, on success, updates the
// active charset (spec.md §4.5). name must resolve in internal/charset's
// table or the operation fails with KindUnknownCharset before any I/O.
func (c *Connection) SetCharset(name string) error {
	if _, ok := charset.Lookup(name); !ok {
		return c.fail(newError(KindUnknownCharset, "unknown charset "+name))
	}
	if err := c.query("SET NAMES " + name); err != nil {
		return err
	}
	c.charset = name
	return nil
}

// EscapeString escapes s for safe inclusion inside single quotes in a
// hand-built COM_QUERY string, dispatching on the connection's active
// charset the way mysqlnd's escaper does (spec.md §6 "Charset external
// collaborator").
func (c *Connection) EscapeString(s string) string {
	cs, _ := charset.Resolve(c.charset)
	return charset.EscapeString(cs, s)
}

// ListFields issues COM_FIELD_LIST and returns a Result with EOFReached
// already set (spec.md §4.5). The field-definition packets are read off
// the wire but not decoded, so the Result's Fields is empty.
func (c *Connection) ListFields(table, wildcard string) (*result.Result, error) {
	if c.state == StateQuitSent {
		return nil, c.fail(newError(KindServerGone, "server gone"))
	}
	if c.state != StateReady {
		return nil, c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	c.errorInfo = ErrorInfo{}
	packet := protocol.BuildComFieldList(table, wildcard)
	c.stream.Reset()
	if err := c.stream.WritePacket(c.writer, packet); err != nil {
		c.transitionQuitSent()
		return nil, c.fail(wrapError(KindServerGone, "writing COM_FIELD_LIST", err))
	}
	c.stats.CommandSent("COM_FIELD_LIST", 0)

	// COM_FIELD_LIST's reply is a run of field-definition packets
	// terminated by a real EOF, with no leading count packet the way
	// COM_QUERY's result-set header has one. Field content decoding is
	// out of scope, but every packet still has to be read off the wire
	// before the next command can be issued (spec.md §5).
	r := result.New(nil)
	for {
		data, err := c.stream.ReadPacket(c.reader)
		if err != nil {
			c.transitionQuitSent()
			return nil, c.fail(wrapError(KindServerGone, "reading field list reply", err))
		}
		if protocol.IsErrPacket(data) {
			return nil, c.handleErrPacket(data)
		}
		if protocol.IsEOFPacket(data) {
			eof, err := protocol.ParseEOF(data)
			if err != nil {
				c.transitionQuitSent()
				return nil, c.fail(wrapError(KindMalformedPacket, "parsing field list terminal EOF", err))
			}
			r.MarkEOF(eof)
			return r, nil
		}
	}
}
