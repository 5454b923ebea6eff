package mysqlconn

import (
	"net"
	"testing"

	"github.com/mysqlconn/mysqlconn/internal/protocol"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCloseExplicitSendsQuit(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		payload, _ := recvPkt(t, server)
		if len(payload) != 1 || protocol.Command(payload[0]) != protocol.ComQuit {
			t.Errorf("expected a lone COM_QUIT payload, got %v", payload)
		}
	}()

	if err := c.Close(CloseExplicit); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done
	if c.State() != StateQuitSent {
		t.Fatalf("state = %v, want quit_sent", c.State())
	}

	n, err := testutil.GatherAndCount(c.Metrics(), "mysqlconn_closes_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("mysqlconn_closes_total samples = %d, want 1", n)
	}
}

func TestCloseInMiddleRecordsDedicatedStat(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server)                  // COM_QUERY
		sendPkt(t, server, 1, []byte{0x01}) // 1 column
		sendPkt(t, server, 2, []byte("coldef1"))
		sendPkt(t, server, 3, buildEOFPkt(0, uint16(protocol.ServerStatusAutocommit))) // boundary EOF
	}()
	if err := c.Query("SELECT 1"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	<-done
	if c.State() != StateFetchingData {
		t.Fatalf("state = %v, want fetching_data", c.State())
	}

	if err := c.Close(CloseDisconnect); err != nil {
		t.Fatalf("Close: %v", err)
	}

	n, err := testutil.GatherAndCount(c.Metrics(), "mysqlconn_close_in_middle_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("mysqlconn_close_in_middle_total samples = %d, want 1", n)
	}
}

func TestCloseImplicitOnPersistentConnectionStaysReady(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	handshakeDone := make(chan struct{})
	go func() {
		defer close(handshakeDone)
		caps := uint32(protocol.MandatoryCapabilities)
		acceptHandshake(t, server, caps)
		sendPkt(t, server, 2, buildOKPkt(0, 0, uint16(protocol.ServerStatusAutocommit), 0, ""))
	}()

	c := New(Options{Persistent: true})
	if err := c.ConnectConn(client, "root", "", "", 0); err != nil {
		t.Fatalf("ConnectConn: %v", err)
	}
	<-handshakeDone

	c.lastMessage = "stale"
	if err := c.Close(CloseImplicit); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state = %v, want ready (persistent checkin, not teardown)", c.State())
	}
	if c.lastMessage != "" {
		t.Fatalf("lastMessage = %q, want cleared by RestartSession", c.lastMessage)
	}
	if c.net == nil {
		t.Fatalf("persistent checkin must not tear down the transport")
	}
}

func TestCloseExplicitOnPersistentConnectionTearsDown(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()
	c.persistent = true

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server) // COM_QUIT
	}()

	if err := c.Close(CloseExplicit); err != nil {
		t.Fatalf("Close: %v", err)
	}
	<-done
	if c.State() != StateQuitSent {
		t.Fatalf("state = %v, want quit_sent (explicit close always tears down)", c.State())
	}
}
