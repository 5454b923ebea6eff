package mysqlconn

import (
	"net"
	"testing"

	"github.com/mysqlconn/mysqlconn/internal/protocol"
)

// fakeNonce is a stand-in 20-byte scramble, split 8+12 across the two
// greet parts the way ParseGreet expects.
var fakeNonce = []byte("abcdefghijklmnopqrs0")

func startFakeServer(t *testing.T, server net.Conn, run func(net.Conn)) {
	t.Helper()
	go run(server)
}

// acceptHandshake plays the server side of a successful
// Greet -> HandshakeResponse41 -> OK exchange, returning the client's
// raw HandshakeResponse41 payload for the caller to assert against.
func acceptHandshake(t *testing.T, server net.Conn, caps uint32) []byte {
	t.Helper()
	greet := buildGreetPkt(42, fakeNonce, caps, "mysql_native_password")
	sendPkt(t, server, 0, greet)

	authPayload, _ := recvPkt(t, server)
	return authPayload
}

func TestConnectConnSuccess(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	done := make(chan struct{})
	var gotAuth []byte
	startFakeServer(t, server, func(server net.Conn) {
		defer close(done)
		caps := uint32(protocol.MandatoryCapabilities | protocol.ClientPluginAuth)
		gotAuth = acceptHandshake(t, server, caps)
		sendPkt(t, server, 2, buildOKPkt(0, 0, uint16(protocol.ServerStatusAutocommit), 0, ""))
	})

	c := New(Options{})
	err := c.ConnectConn(client, "root", "secret", "", 0)
	<-done
	if err != nil {
		t.Fatalf("ConnectConn: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state = %v, want ready", c.State())
	}
	if c.ThreadID() != 42 {
		t.Fatalf("thread id = %d, want 42", c.ThreadID())
	}
	if len(gotAuth) == 0 {
		t.Fatalf("server observed no auth packet")
	}
}

func TestConnectConnAuthFailure(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	done := make(chan struct{})
	startFakeServer(t, server, func(server net.Conn) {
		defer close(done)
		caps := uint32(protocol.MandatoryCapabilities | protocol.ClientPluginAuth)
		acceptHandshake(t, server, caps)
		sendPkt(t, server, 2, buildErrPkt(1045, "28000", "Access denied for user 'root'@'localhost'"))
	})

	c := New(Options{})
	err := c.ConnectConn(client, "root", "wrong", "", 0)
	<-done
	if err == nil {
		t.Fatalf("expected auth failure, got nil error")
	}
	if c.Errno() != 1045 {
		t.Fatalf("errno = %d, want 1045", c.Errno())
	}
	if c.SQLState() != "28000" {
		t.Fatalf("sqlstate = %q, want 28000", c.SQLState())
	}
}

func TestConnectConnOldProtocolRejected(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	done := make(chan struct{})
	startFakeServer(t, server, func(server net.Conn) {
		defer close(done)
		greet := buildGreetPkt(1, fakeNonce, uint32(protocol.MandatoryCapabilities), "mysql_native_password")
		greet[0] = 9 // protocol version below MinProtocolVersion
		sendPkt(t, server, 0, greet)
	})

	c := New(Options{})
	err := c.ConnectConn(client, "root", "x", "", 0)
	<-done
	if err == nil {
		t.Fatalf("expected old-protocol rejection")
	}
	if c.State() != StateAllocated {
		t.Fatalf("state = %v, want allocated (no transition on handshake failure before ready)", c.State())
	}
}
