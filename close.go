package mysqlconn

import (
	"log/slog"

	"github.com/mysqlconn/mysqlconn/internal/protocol"
)

// sendClose dispatches the right teardown action for the current state
// before transitioning to StateQuitSent (spec.md §4.7).
func (c *Connection) sendClose() {
	switch c.state {
	case StateReady:
		if c.net != nil {
			packet := protocol.BuildComQuit()
			c.stream.Reset()
			_ = c.stream.WritePacket(c.writer, packet) // best-effort; ignore failure
		}
	case StateSendingLoadData, StateNextResultPending, StateQuerySent, StateFetchingData:
		// Sending COM_QUIT here would confuse the server mid-response;
		// rely on the transport drop to clean up server-side.
		c.stats.CloseInMiddle()
	case StateAllocated, StateQuitSent:
		// Nothing to send.
	}
	c.state = StateQuitSent
}

// Close tears down the connection, then decrements the reference count;
// the destructor runs once it reaches zero (spec.md §4.7, §5). A
// CloseImplicit on a persistent connection (Options.Persistent) that's
// still StateReady is treated as a pool checkin instead of a real
// teardown: RestartSession/EndSession run and the transport stays open
// for the next caller (SPEC_FULL.md supplemented feature 4).
func (c *Connection) Close(reason CloseReason) error {
	slog.Debug("connection closing", "reason", closeReasonName(reason), "thread_id", c.threadID)
	c.stats.Closed(closeReasonName(reason))

	if reason == CloseImplicit && c.persistent && c.state == StateReady {
		c.EndSession()
		c.RestartSession()
		return nil
	}

	c.sendClose()
	if c.net != nil {
		_ = c.net.Close()
	}
	if c.FreeReference() {
		c.destroy()
	}
	return nil
}

func (c *Connection) destroy() {
	c.net = nil
	c.rawConn = nil
	c.currentResult = nil
	c.plugins = nil
}

func closeReasonName(r CloseReason) string {
	switch r {
	case CloseExplicit:
		return "close_explicit"
	case CloseImplicit:
		return "close_implicit"
	case CloseDisconnect:
		return "close_disconnect"
	default:
		return "close_unknown"
	}
}
