package mysqlconn

import (
	"testing"

	"github.com/mysqlconn/mysqlconn/internal/protocol"
)

func TestPrepareStatementNoParamsNoColumns(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server) // COM_STMT_PREPARE
		header := []byte{0x00, 7, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
		sendPkt(t, server, 1, header)
	}()

	s, err := c.PrepareStatement("SELECT 1")
	<-done
	if err != nil {
		t.Fatalf("PrepareStatement: %v", err)
	}
	if s.ID != 7 {
		t.Fatalf("stmt id = %d, want 7", s.ID)
	}
	if s.ParamCount != 0 || s.ColumnCount != 0 {
		t.Fatalf("expected zero params/columns, got %d/%d", s.ParamCount, s.ColumnCount)
	}
}

func TestPrepareStatementDrainsDefinitions(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server) // COM_STMT_PREPARE
		// statement id 3, 1 param, 1 column
		header := []byte{0x00, 3, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0}
		sendPkt(t, server, 1, header)
		sendPkt(t, server, 2, []byte("param def"))
		sendPkt(t, server, 3, buildEOFPkt(0, uint16(protocol.ServerStatusAutocommit)))
		sendPkt(t, server, 4, []byte("column def"))
		sendPkt(t, server, 5, buildEOFPkt(0, uint16(protocol.ServerStatusAutocommit)))
	}()

	s, err := c.PrepareStatement("SELECT ? FROM t")
	<-done
	if err != nil {
		t.Fatalf("PrepareStatement: %v", err)
	}
	if s.ParamCount != 1 || s.ColumnCount != 1 {
		t.Fatalf("expected 1 param / 1 column, got %d/%d", s.ParamCount, s.ColumnCount)
	}
}

func TestCloseStatementSendsComStmtClose(t *testing.T) {
	c, server := readyConnection(t)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		recvPkt(t, server) // COM_STMT_PREPARE
		header := []byte{0x00, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
		sendPkt(t, server, 1, header)
	}()
	s, err := c.PrepareStatement("SELECT 1")
	<-done
	if err != nil {
		t.Fatalf("PrepareStatement: %v", err)
	}

	done2 := make(chan struct{})
	go func() {
		defer close(done2)
		payload, _ := recvPkt(t, server)
		if len(payload) != 5 || protocol.Command(payload[0]) != protocol.ComStmtClose {
			t.Errorf("expected COM_STMT_CLOSE payload, got %v", payload)
		}
	}()

	if err := c.CloseStatement(s); err != nil {
		t.Fatalf("CloseStatement: %v", err)
	}
	<-done2
	if !s.Closed() {
		t.Fatalf("expected statement marked closed")
	}

	if err := c.CloseStatement(s); err != nil {
		t.Fatalf("CloseStatement idempotent call: %v", err)
	}
}
