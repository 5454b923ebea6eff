package mysqlconn

import (
	"testing"

	"github.com/mysqlconn/mysqlconn/internal/protocol"
)

func TestPingSuccess(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server) // COM_PING
		sendPkt(t, server, 1, buildOKPkt(0, 0, uint16(protocol.ServerStatusAutocommit), 0, ""))
	}()

	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	<-done
	if c.State() != StateReady {
		t.Fatalf("state = %v, want ready", c.State())
	}
}

func TestPingFailureKeepsStateReady(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server)
		sendPkt(t, server, 1, buildErrPkt(2006, "HY000", "server has gone away"))
	}()

	err := c.Ping()
	<-done
	if err == nil {
		t.Fatalf("expected ping failure")
	}
	if c.State() != StateReady {
		t.Fatalf("state = %v, want ready (ERR during simple command doesn't force quit_sent)", c.State())
	}
}

func TestSelectDBUpdatesDatabase(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server) // COM_INIT_DB
		sendPkt(t, server, 1, buildOKPkt(0, 0, uint16(protocol.ServerStatusAutocommit), 0, ""))
	}()

	if err := c.SelectDB("widgets"); err != nil {
		t.Fatalf("SelectDB: %v", err)
	}
	<-done
	if c.database != "widgets" {
		t.Fatalf("database = %q, want widgets", c.database)
	}
}

func TestSimpleCommandRejectedWhenQuitSent(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()
	c.state = StateQuitSent

	if err := c.Ping(); err == nil {
		t.Fatalf("expected server-gone error once quit_sent")
	}
	if c.Errno() != 0 {
		t.Fatalf("errno should be unset for a local state error")
	}
}

func TestKillSelfTransitionsQuitSent(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server) // COM_PROCESS_KILL, no reply read back by the client
	}()

	if err := c.Kill(c.ThreadID()); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	<-done
	if c.State() != StateQuitSent {
		t.Fatalf("state = %v, want quit_sent after self-kill", c.State())
	}
}
