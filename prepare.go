package mysqlconn

import (
	"github.com/mysqlconn/mysqlconn/internal/protocol"
	"github.com/mysqlconn/mysqlconn/internal/stmt"
)

// PrepareStatement issues COM_STMT_PREPARE and hands back the resulting
// Stmt handle, draining the parameter and column definition packets the
// server sends after the header without decoding them (spec.md §1
// "prepared-statement internals... exist as concrete collaborators";
// binding and binary row decoding are out of scope here).
func (c *Connection) PrepareStatement(sql string) (*stmt.Stmt, error) {
	if c.state == StateQuitSent {
		return nil, c.fail(newError(KindServerGone, "server gone"))
	}
	if c.state != StateReady {
		return nil, c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	c.errorInfo = ErrorInfo{}
	packet := protocol.BuildComStmtPrepare(sql)
	c.stream.Reset()
	if err := c.stream.WritePacket(c.writer, packet); err != nil {
		c.transitionQuitSent()
		return nil, c.fail(wrapError(KindServerGone, "writing COM_STMT_PREPARE", err))
	}
	c.stats.CommandSent("COM_STMT_PREPARE", 0)

	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return nil, c.fail(wrapError(KindServerGone, "reading STMT_PREPARE reply", err))
	}
	if protocol.IsErrPacket(data) {
		return nil, c.handleErrPacket(data)
	}

	header, err := protocol.ParseStmtPrepareOK(data)
	if err != nil {
		c.transitionQuitSent()
		return nil, c.fail(wrapError(KindMalformedPacket, "parsing STMT_PREPARE OK", err))
	}

	if err := c.drainDefinitionPackets(int(header.ParamCount)); err != nil {
		return nil, err
	}
	if err := c.drainDefinitionPackets(int(header.ColumnCount)); err != nil {
		return nil, err
	}

	s := stmt.New(header.StatementID, header.ParamCount, header.ColumnCount, header.WarningCount)
	s.GetReference()
	return s, nil
}

// drainDefinitionPackets reads count column/parameter definition packets
// followed by their terminating EOF, when count is nonzero (the server
// omits both when count is 0).
func (c *Connection) drainDefinitionPackets(count int) error {
	if count == 0 {
		return nil
	}
	for i := 0; i < count; i++ {
		if _, err := c.stream.ReadPacket(c.reader); err != nil {
			c.transitionQuitSent()
			return c.fail(wrapError(KindServerGone, "draining statement definition", err))
		}
	}
	eof, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "draining statement definition EOF", err))
	}
	if protocol.IsErrPacket(eof) {
		return c.handleErrPacket(eof)
	}
	return nil
}

// CloseStatement issues COM_STMT_CLOSE, which the server never replies
// to, and marks s closed so a caller can't send it twice.
func (c *Connection) CloseStatement(s *stmt.Stmt) error {
	if s.Closed() {
		return nil
	}
	if c.state != StateReady {
		return c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	packet := protocol.BuildComStmtClose(s.ID)
	c.stream.Reset()
	if err := c.stream.WritePacket(c.writer, packet); err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "writing COM_STMT_CLOSE", err))
	}
	c.stats.CommandSent("COM_STMT_CLOSE", 0)

	s.MarkClosed()
	if s.FreeReference() {
		return nil
	}
	return nil
}
