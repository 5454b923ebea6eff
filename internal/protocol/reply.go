package protocol

import "fmt"

// OKPacket is the terminal reply for any non-result-returning command
// (spec.md §6).
type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	StatusFlags  ServerStatus
	WarningCount uint16
	Message      string
}

// ParseOK parses an OK_Packet. data is the whole packet payload, including
// the leading 0x00 field-count byte, which ParseOK skips.
func ParseOK(data []byte) (*OKPacket, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty OK packet", ErrMalformedPacket)
	}
	pos := 1 // skip field-count byte

	affected, _, n := ReadLengthEncodedInt(data[pos:])
	if n == 0 {
		return nil, fmt.Errorf("%w: OK affected_rows", ErrMalformedPacket)
	}
	pos += n

	insertID, _, n := ReadLengthEncodedInt(data[pos:])
	if n == 0 {
		return nil, fmt.Errorf("%w: OK last_insert_id", ErrMalformedPacket)
	}
	pos += n

	if pos+2 > len(data) {
		return nil, fmt.Errorf("%w: OK status flags", ErrMalformedPacket)
	}
	status := ServerStatus(uint16(data[pos]) | uint16(data[pos+1])<<8)
	pos += 2

	var warnings uint16
	if pos+2 <= len(data) {
		warnings = uint16(data[pos]) | uint16(data[pos+1])<<8
		pos += 2
	}

	var message string
	if pos < len(data) {
		message = string(data[pos:])
	}

	return &OKPacket{
		AffectedRows: affected,
		LastInsertID: insertID,
		StatusFlags:  status,
		WarningCount: warnings,
		Message:      message,
	}, nil
}

// EOFPacket marks a result-set boundary (spec.md §6).
type EOFPacket struct {
	WarningCount uint16
	StatusFlags  ServerStatus
}

// ParseEOF parses an EOF_Packet. data is the whole packet payload,
// including the leading 0xFE byte, which ParseEOF skips.
func ParseEOF(data []byte) (*EOFPacket, error) {
	if len(data) < 1 {
		return &EOFPacket{}, nil
	}
	pos := 1
	var warnings uint16
	var status ServerStatus
	if pos+2 <= len(data) {
		warnings = uint16(data[pos]) | uint16(data[pos+1])<<8
		pos += 2
	}
	if pos+2 <= len(data) {
		status = ServerStatus(uint16(data[pos]) | uint16(data[pos+1])<<8)
	}
	return &EOFPacket{WarningCount: warnings, StatusFlags: status}, nil
}

// ErrPacket carries a server-side failure (spec.md §6, §7).
type ErrPacket struct {
	ErrorCode uint16
	SQLState  string
	Message   string
}

// ParseErr parses an ERR_Packet. data is the whole packet payload,
// including the leading 0xFF byte, which ParseErr skips.
func ParseErr(data []byte) (*ErrPacket, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: truncated ERR packet", ErrMalformedPacket)
	}
	code := uint16(data[1]) | uint16(data[2])<<8
	pos := 3

	var sqlState string
	if pos < len(data) && data[pos] == '#' {
		pos++
		end := pos + 5
		if end > len(data) {
			end = len(data)
		}
		sqlState = string(data[pos:end])
		pos = end
	}

	var msg string
	if pos < len(data) {
		msg = string(data[pos:])
	}

	return &ErrPacket{ErrorCode: code, SQLState: sqlState, Message: msg}, nil
}

// IsErrPacket reports whether data's field-count byte marks an ERR packet.
func IsErrPacket(data []byte) bool {
	return len(data) > 0 && data[0] == FieldCountErr
}

// IsOKPacket reports whether data's field-count byte marks an OK packet.
func IsOKPacket(data []byte) bool {
	return len(data) > 0 && data[0] == FieldCountOK
}

// IsEOFPacket reports whether data looks like an EOF packet: field-count
// 0xFE and short enough not to be a >=9-byte length-encoded-integer field
// (the classic ambiguity the protocol documents for column-count rows).
func IsEOFPacket(data []byte) bool {
	return len(data) > 0 && data[0] == FieldCountEOF && len(data) < 9
}

// StmtPrepareOK is COM_STMT_PREPARE's success reply: the fixed-width
// header that precedes the statement's parameter and column definition
// packets, which the caller drains without decoding (spec.md §1).
type StmtPrepareOK struct {
	StatementID  uint32
	ColumnCount  uint16
	ParamCount   uint16
	WarningCount uint16
}

// ParseStmtPrepareOK parses a COM_STMT_PREPARE OK header. data is the
// whole packet payload, including the leading 0x00 byte, which is skipped.
func ParseStmtPrepareOK(data []byte) (*StmtPrepareOK, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: truncated STMT_PREPARE OK", ErrMalformedPacket)
	}
	ok := &StmtPrepareOK{
		StatementID: uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16 | uint32(data[4])<<24,
		ColumnCount: uint16(data[5]) | uint16(data[6])<<8,
		ParamCount:  uint16(data[7]) | uint16(data[8])<<8,
	}
	// data[9] is a filler byte.
	if len(data) >= 12 {
		ok.WarningCount = uint16(data[10]) | uint16(data[11])<<8
	}
	return ok, nil
}
