package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestStreamWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	var ws, rs Stream

	payload := []byte("SELECT * FROM widgets")
	if err := ws.WritePacket(&buf, payload); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	got, err := rs.ReadPacket(&buf)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestStreamSequenceMismatchRejected(t *testing.T) {
	var buf bytes.Buffer
	// hand-craft a packet claiming sequence 5 when a fresh Stream expects 0
	buf.Write([]byte{3, 0, 0, 5})
	buf.WriteString("abc")

	var rs Stream
	if _, err := rs.ReadPacket(&buf); err == nil {
		t.Fatalf("expected a sequence mismatch error")
	}
}

func TestStreamResetRestartsSequence(t *testing.T) {
	var buf bytes.Buffer
	var s Stream
	if err := s.WritePacket(&buf, []byte("a")); err != nil {
		t.Fatalf("WritePacket 1: %v", err)
	}
	s.Reset()
	if err := s.WritePacket(&buf, []byte("b")); err != nil {
		t.Fatalf("WritePacket 2: %v", err)
	}

	hdr := make([]byte, 4)
	buf.Read(hdr) // first packet's header, seq 0
	buf.Next(1)
	buf.Read(hdr) // second packet's header: seq should be 0 again after Reset
	if hdr[3] != 0 {
		t.Fatalf("sequence after Reset = %d, want 0", hdr[3])
	}
}

func TestReadLengthEncodedIntSingleByte(t *testing.T) {
	v, isNull, n := ReadLengthEncodedInt([]byte{42})
	if isNull || n != 1 || v != 42 {
		t.Fatalf("got (%d, %v, %d), want (42, false, 1)", v, isNull, n)
	}
}

func TestReadLengthEncodedIntNull(t *testing.T) {
	_, isNull, n := ReadLengthEncodedInt([]byte{0xfb})
	if !isNull || n != 1 {
		t.Fatalf("expected NULL marker decoded as isNull=true, n=1")
	}
}

func TestAuthRequestMarshalHalfPacket(t *testing.T) {
	req := &AuthRequest{ClientFlags: ClientProtocol41, MaxPacketSize: 1024, CharsetNo: 0x21, HalfPacket: true}
	data := req.Marshal()
	if len(data) != 32 {
		t.Fatalf("half-packet length = %d, want 32", len(data))
	}
}

func TestAuthRequestMarshalFull(t *testing.T) {
	req := &AuthRequest{
		ClientFlags:   ClientProtocol41 | ClientSecureConnection | ClientConnectWithDB,
		MaxPacketSize: 1024,
		CharsetNo:     0x21,
		User:          "root",
		AuthResponse:  []byte{1, 2, 3},
		Database:      "widgets",
	}
	data := req.Marshal()

	pos := 32
	user, n, err := NullTerminated(data[pos:])
	if err != nil || string(user) != "root" {
		t.Fatalf("user = %q, err = %v", user, err)
	}
	pos += n

	if int(data[pos]) != 3 {
		t.Fatalf("lenenc auth-response length = %d, want 3", data[pos])
	}
	pos++
	if !bytes.Equal(data[pos:pos+3], []byte{1, 2, 3}) {
		t.Fatalf("auth response mismatch")
	}
	pos += 3

	db, _, err := NullTerminated(data[pos:])
	if err != nil || string(db) != "widgets" {
		t.Fatalf("database = %q, err = %v", db, err)
	}
}

func TestParseOKPacket(t *testing.T) {
	data := []byte{0x00, 5, 9, byte(ServerStatusAutocommit), 0, 2, 0, 'o', 'k'}
	ok, err := ParseOK(data)
	if err != nil {
		t.Fatalf("ParseOK: %v", err)
	}
	if ok.AffectedRows != 5 || ok.LastInsertID != 9 || ok.WarningCount != 2 || ok.Message != "ok" {
		t.Fatalf("unexpected OK fields: %+v", ok)
	}
}

func TestParseErrPacket(t *testing.T) {
	data := append([]byte{0xff, 0x15, 0x04, '#'}, []byte("28000Access denied")...)
	errPkt, err := ParseErr(data)
	if err != nil {
		t.Fatalf("ParseErr: %v", err)
	}
	if errPkt.ErrorCode != 1045 || errPkt.SQLState != "28000" || errPkt.Message != "Access denied" {
		t.Fatalf("unexpected ERR fields: %+v", errPkt)
	}
}

func TestIsPacketClassifiers(t *testing.T) {
	if !IsErrPacket([]byte{0xff, 0, 0}) {
		t.Fatalf("expected ERR classification")
	}
	if !IsOKPacket([]byte{0x00}) {
		t.Fatalf("expected OK classification")
	}
	if !IsEOFPacket([]byte{0xfe, 0, 0, 2, 0}) {
		t.Fatalf("expected EOF classification")
	}
	if IsEOFPacket(make([]byte, 9)) {
		t.Fatalf("a 9+ byte 0xfe-led packet is a length-encoded integer, not EOF")
	}
}

func TestParseStmtPrepareOK(t *testing.T) {
	data := []byte{0x00, 7, 0, 0, 0, 2, 0, 1, 0, 0, 3, 0}
	ok, err := ParseStmtPrepareOK(data)
	if err != nil {
		t.Fatalf("ParseStmtPrepareOK: %v", err)
	}
	if ok.StatementID != 7 || ok.ColumnCount != 2 || ok.ParamCount != 1 || ok.WarningCount != 3 {
		t.Fatalf("unexpected fields: %+v", ok)
	}
}

func TestBuildCommandPrependsOpcode(t *testing.T) {
	got := BuildCommand(ComQuery, []byte("SELECT 1"))
	if got[0] != byte(ComQuery) {
		t.Fatalf("opcode byte = %d, want %d", got[0], ComQuery)
	}
	if string(got[1:]) != "SELECT 1" {
		t.Fatalf("argument bytes mismatch: %q", got[1:])
	}
}

func TestBuildComStmtClosePacksStatementID(t *testing.T) {
	got := BuildComStmtClose(0x01020304)
	want := []byte{byte(ComStmtClose), 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBuildComChangeUserTruncatesLongUserName(t *testing.T) {
	longUser := strings.Repeat("u", maxAllowedUserLen+100)

	got := BuildComChangeUser(longUser, []byte{0xAA}, "db", 33, "", false)
	gotUser := string(got[1 : 1+maxAllowedUserLen])
	if gotUser != strings.Repeat("u", maxAllowedUserLen) {
		t.Fatalf("user name not truncated to %d bytes", maxAllowedUserLen)
	}
	if got[1+maxAllowedUserLen] != 0 {
		t.Fatalf("expected a NUL terminator immediately after the truncated user name")
	}

	gotNoCS := BuildComChangeUserNoCharset(longUser, []byte{0xAA}, "db", false)
	if string(gotNoCS[1:1+maxAllowedUserLen]) != strings.Repeat("u", maxAllowedUserLen) {
		t.Fatalf("no-charset variant: user name not truncated to %d bytes", maxAllowedUserLen)
	}
}

func TestBuildComChangeUserLeavesShortUserNameAlone(t *testing.T) {
	got := BuildComChangeUser("root", []byte{0xAA}, "db", 33, "", false)
	if string(got[1:5]) != "root" || got[5] != 0 {
		t.Fatalf("short user name should pass through untouched, got %v", got)
	}
}
