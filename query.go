package mysqlconn

import (
	"github.com/mysqlconn/mysqlconn/internal/protocol"
	"github.com/mysqlconn/mysqlconn/internal/result"
)

// Query issues a SQL statement and waits for its result-set header
// (spec.md §4.4). It dispatches through the connection's Ops table so a
// plugin or test harness can intercept it.
func (c *Connection) Query(sql string) error {
	return c.ops.Query(c, sql)
}

// query is the default implementation of Query (spec.md §4.4).
func (c *Connection) query(sql string) error {
	if err := c.sendQuery(sql); err != nil {
		return err
	}
	return c.reapQuery()
}

// SendQuery writes COM_QUERY without waiting for the reply, enabling the
// readiness multiplexer to wait on several connections at once before
// ReapQuery collects each one's response (spec.md §4.4).
func (c *Connection) SendQuery(sql string) error { return c.sendQuery(sql) }

func (c *Connection) sendQuery(sql string) error {
	if c.state == StateQuitSent {
		return c.fail(newError(KindServerGone, "server gone"))
	}
	if c.state != StateReady {
		return c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	c.upsertStatus = UpsertStatus{}
	c.errorInfo = ErrorInfo{}

	packet := protocol.BuildComQuery(sql)
	c.stream.Reset()
	if err := c.stream.WritePacket(c.writer, packet); err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "writing query packet", err))
	}
	c.stats.BytesSent(len(packet) + 4)
	c.stats.CommandSent("COM_QUERY", 0)

	c.state = StateQuerySent
	return nil
}

// ReapQuery collects the reply to a prior SendQuery (spec.md §4.4).
func (c *Connection) ReapQuery() error { return c.reapQuery() }

func (c *Connection) reapQuery() error {
	if err := c.readResultSetHeader(); err != nil {
		return err
	}
	if c.lastQueryType == QueryTypeUpsert && c.upsertStatus.AffectedRows > 0 {
		c.stats.RowsAffected(c.upsertStatus.AffectedRows)
	}
	return nil
}

// NextResult advances to the next chained result set, valid only in
// StateNextResultPending (spec.md §4.4).
func (c *Connection) NextResult() error {
	if c.state != StateNextResultPending {
		return c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	c.errorInfo = ErrorInfo{}
	c.upsertStatus.AffectedRows = 0

	c.state = StateQuerySent
	if err := c.readResultSetHeader(); err != nil {
		c.transitionQuitSent()
		return err
	}
	return nil
}

// MoreResultsPending reports whether the server signaled another chained
// result set (spec.md §4.4 "more_results").
func (c *Connection) MoreResultsPending() bool { return c.MoreResults() }

// readResultSetHeader reads the packet following a query/next_result
// dispatch and performs the StateQuerySent transition named in spec.md
// §4.1: an OK means an upsert/DDL, an ERR means failure, a LOCAL INFILE
// request switches to StateSendingLoadData, and anything else is a
// column-count length-encoded integer starting a result set.
func (c *Connection) readResultSetHeader() error {
	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "reading result-set header", err))
	}
	c.stats.BytesReceived(len(data) + 4)

	switch {
	case protocol.IsErrPacket(data):
		c.state = StateReady
		return c.handleErrPacket(data)

	case protocol.IsOKPacket(data):
		ok, err := protocol.ParseOK(data)
		if err != nil {
			c.transitionQuitSent()
			return c.fail(wrapError(KindMalformedPacket, "parsing OK packet", err))
		}
		c.lastMessage = ok.Message
		c.lastQueryType = QueryTypeUpsert
		c.upsertStatus = UpsertStatus{
			ServerStatus: ok.StatusFlags,
			WarningCount: ok.WarningCount,
			AffectedRows: ok.AffectedRows,
			LastInsertID: ok.LastInsertID,
		}
		c.state = StateReady
		return nil

	case len(data) > 0 && data[0] == loadDataLocalMarker:
		c.state = StateSendingLoadData
		return c.sendLocalInfile(data[1:])

	default:
		count, _, n := protocol.ReadLengthEncodedInt(data)
		if n == 0 {
			c.transitionQuitSent()
			return c.fail(newError(KindMalformedPacket, "malformed result-set header"))
		}
		c.fieldCount = count
		c.lastQueryType = QueryTypeSelect
		c.currentResult = result.New(nil)
		c.state = StateFetchingData
		c.stats.ResultSetOpened()
		return c.drainColumnDefs()
	}
}

// loadDataLocalMarker is the field-count byte (0xFB) the server sends to
// request a LOCAL INFILE load.
const loadDataLocalMarker = 0xfb

// sendLocalInfile satisfies (or refuses) a LOCAL INFILE request using the
// registered LocalInfileHandler (SPEC_FULL.md supplemented feature 2).
func (c *Connection) sendLocalInfile(filenameBytes []byte) error {
	filename := string(filenameBytes)

	if c.localInfile == nil || !c.options.AllowLocalInfile {
		if err := c.stream.WritePacket(c.writer, nil); err != nil {
			c.transitionQuitSent()
			return c.fail(wrapError(KindServerGone, "refusing local infile", err))
		}
		return c.finishLocalInfile()
	}

	content, err := c.localInfile(filename)
	if err != nil {
		if writeErr := c.stream.WritePacket(c.writer, nil); writeErr != nil {
			c.transitionQuitSent()
			return c.fail(wrapError(KindServerGone, "aborting local infile", writeErr))
		}
		return c.finishLocalInfile()
	}

	if err := c.stream.WritePacket(c.writer, content); err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "sending local infile data", err))
	}
	if err := c.stream.WritePacket(c.writer, nil); err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "sending local infile terminator", err))
	}
	return c.finishLocalInfile()
}

func (c *Connection) finishLocalInfile() error {
	c.state = StateQuerySent
	return c.readResultSetHeader()
}

// mergeEOFIntoResult folds a result set's terminating EOF into the
// current Result and performs the StateFetchingData transitions in
// spec.md §4.1: to StateNextResultPending when more results follow, or
// StateReady otherwise. Row decoding itself belongs to Result
// (out of scope here); this is the handoff point the connection owns.
func (c *Connection) mergeEOFIntoResult(eof *protocol.EOFPacket) {
	if c.currentResult != nil {
		c.currentResult.MarkEOF(eof)
	}
	c.upsertStatus.ServerStatus = eof.StatusFlags
	c.upsertStatus.WarningCount = eof.WarningCount

	if eof.StatusFlags&protocol.ServerStatusMoreResultsExists != 0 {
		c.state = StateNextResultPending
	} else {
		c.state = StateReady
	}
}

// drainColumnDefs reads and discards a result set's column-definition
// packets and the boundary EOF that follows them, leaving the stream
// positioned at the first row packet (spec.md §4.4). Field metadata
// decoding is out of this driver's scope, so the definitions themselves
// are never parsed, only consumed off the wire.
func (c *Connection) drainColumnDefs() error {
	for i := uint64(0); i < c.fieldCount; i++ {
		if _, err := c.stream.ReadPacket(c.reader); err != nil {
			c.transitionQuitSent()
			return c.fail(wrapError(KindServerGone, "draining column definition", err))
		}
	}

	boundary, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "draining column boundary EOF", err))
	}
	if protocol.IsErrPacket(boundary) {
		c.state = StateReady
		return c.handleErrPacket(boundary)
	}
	return nil
}

// drainCurrentResult reads and discards a result set's row packets and
// terminating EOF without decoding any of them, for callers (init
// commands) that only need the connection returned to StateReady
// (spec.md §4.2 "if it returned a result set, consumed and discarded").
// The column-definition packets and boundary EOF were already consumed
// by readResultSetHeader's call to drainColumnDefs.
func (c *Connection) drainCurrentResult() error {
	for {
		row, err := c.stream.ReadPacket(c.reader)
		if err != nil {
			c.transitionQuitSent()
			return c.fail(wrapError(KindServerGone, "draining result row", err))
		}
		if protocol.IsErrPacket(row) {
			return c.handleErrPacket(row)
		}
		if protocol.IsEOFPacket(row) {
			eof, err := protocol.ParseEOF(row)
			if err != nil {
				c.transitionQuitSent()
				return c.fail(wrapError(KindMalformedPacket, "parsing terminal EOF", err))
			}
			c.mergeEOFIntoResult(eof)
			return nil
		}
	}
}

// FetchRow reads the next row packet of the currently open result set,
// returning (nil, nil) once the terminating EOF has been consumed — at
// which point mergeEOFIntoResult has already advanced the connection out
// of StateFetchingData (to StateReady, or StateNextResultPending for a
// chained result per spec.md §4.4 "more_results"). This is the hook
// UseResult/StoreResult rows flow back through; row content is handed
// back undecoded, since decoding column values is the result-set
// materializer's job and out of this driver's scope.
func (c *Connection) FetchRow() ([]byte, error) {
	if c.state != StateFetchingData {
		return nil, c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}

	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return nil, c.fail(wrapError(KindServerGone, "reading result row", err))
	}
	c.stats.BytesReceived(len(data) + 4)

	if protocol.IsErrPacket(data) {
		c.state = StateReady
		return nil, c.handleErrPacket(data)
	}
	if protocol.IsEOFPacket(data) {
		eof, err := protocol.ParseEOF(data)
		if err != nil {
			c.transitionQuitSent()
			return nil, c.fail(wrapError(KindMalformedPacket, "parsing terminal EOF", err))
		}
		c.mergeEOFIntoResult(eof)
		c.currentResult = nil
		return nil, nil
	}
	return data, nil
}

// UseResult claims the current result set for streaming iteration,
// transferring ownership to the caller (spec.md §3 "use_result"). The
// connection keeps its own reference to the same Result until FetchRow
// reaches the terminating EOF, so the caller's copy observes EOFReached
// flip to true at that point.
func (c *Connection) UseResult() *result.Result {
	r := c.currentResult
	if r != nil {
		r.Claim(result.ModeUse)
		r.GetReference()
	}
	return r
}

// StoreResult claims the current result set and eagerly buffers every
// row by driving FetchRow to completion before returning, freeing the
// connection for the next command immediately (spec.md §3
// "store_result").
func (c *Connection) StoreResult() (*result.Result, error) {
	r := c.currentResult
	if r == nil {
		return nil, nil
	}
	r.Claim(result.ModeStore)
	r.GetReference()

	for {
		row, err := c.FetchRow()
		if err != nil {
			return r, err
		}
		if row == nil {
			break
		}
		r.AppendRow(row)
	}
	return r, nil
}
