package mysqlconn

import (
	"net"
	"testing"

	"github.com/mysqlconn/mysqlconn/internal/authplugin"
)

// --- raw packet framing helpers, mirroring the teacher's
// sendMySQLPkt/recvMySQLPkt fake-server pattern ---

func sendPkt(t *testing.T, conn net.Conn, seq byte, payload []byte) {
	t.Helper()
	hdr := []byte{byte(len(payload)), byte(len(payload) >> 8), byte(len(payload) >> 16), seq}
	if _, err := conn.Write(append(hdr, payload...)); err != nil {
		t.Fatalf("sendPkt: %v", err)
	}
}

func recvPkt(t *testing.T, conn net.Conn) (payload []byte, seq byte) {
	t.Helper()
	hdr := make([]byte, 4)
	if _, err := readFull(conn, hdr); err != nil {
		t.Fatalf("recvPkt header: %v", err)
	}
	length := int(hdr[0]) | int(hdr[1])<<8 | int(hdr[2])<<16
	seq = hdr[3]
	payload = make([]byte, length)
	if length > 0 {
		if _, err := readFull(conn, payload); err != nil {
			t.Fatalf("recvPkt body: %v", err)
		}
	}
	return payload, seq
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// --- packet builders ---

func buildGreetPkt(threadID uint32, scramble []byte, caps uint32, authPlugin string) []byte {
	var buf []byte
	buf = append(buf, 10) // protocol version
	buf = append(buf, []byte("8.0.30-test")...)
	buf = append(buf, 0)
	buf = append(buf, byte(threadID), byte(threadID>>8), byte(threadID>>16), byte(threadID>>24))
	buf = append(buf, scramble[:8]...)
	buf = append(buf, 0) // filler
	buf = append(buf, byte(caps), byte(caps>>8))
	buf = append(buf, 0x21) // charset: utf8_general_ci
	buf = append(buf, 0x02, 0x00) // status: autocommit
	buf = append(buf, byte(caps>>16), byte(caps>>24))
	buf = append(buf, byte(len(scramble)+1))
	buf = append(buf, make([]byte, 10)...) // reserved
	rest := scramble[8:]
	buf = append(buf, rest...)
	buf = append(buf, 0)
	buf = append(buf, []byte(authPlugin)...)
	buf = append(buf, 0)
	return buf
}

func buildOKPkt(affectedRows, insertID uint64, status, warnings uint16, message string) []byte {
	buf := []byte{0x00}
	buf = appendLenenc(buf, affectedRows)
	buf = appendLenenc(buf, insertID)
	buf = append(buf, byte(status), byte(status>>8))
	buf = append(buf, byte(warnings), byte(warnings>>8))
	buf = append(buf, []byte(message)...)
	return buf
}

func appendLenenc(buf []byte, v uint64) []byte {
	return append(buf, byte(v)) // every test value here is < 251
}

func buildErrPkt(code uint16, sqlState, message string) []byte {
	buf := []byte{0xff, byte(code), byte(code >> 8), '#'}
	buf = append(buf, []byte(sqlState)...)
	buf = append(buf, []byte(message)...)
	return buf
}

func buildEOFPkt(warnings, status uint16) []byte {
	return []byte{0xfe, byte(warnings), byte(warnings >> 8), byte(status), byte(status >> 8)}
}

// scrambleFor computes the mysql_native_password response a real client
// would send for password against nonce, for the fake server side of a
// handshake test to assert against (or simply ignore).
func scrambleFor(t *testing.T, password string, nonce []byte) []byte {
	t.Helper()
	plugin, err := authplugin.Lookup("mysql_native_password")
	if err != nil {
		t.Fatalf("lookup native password plugin: %v", err)
	}
	resp, err := plugin.Scramble(password, nonce)
	if err != nil {
		t.Fatalf("scramble: %v", err)
	}
	return resp
}
