package protocol

import "encoding/binary"

// maxAllowedUserLen bounds the user name COM_CHANGE_USER will send,
// mirroring MYSQLND_MAX_ALLOWED_USER_LEN (spec.md §4.6).
const maxAllowedUserLen = 512

func truncateUser(user string) string {
	if len(user) > maxAllowedUserLen {
		return user[:maxAllowedUserLen]
	}
	return user
}

// BuildCommand constructs a command packet body: the opcode byte followed
// by the command's argument bytes (spec.md §4.3 step 3). Most commands take
// a raw byte string (e.g. ComQuery's SQL text, ComInitDB's schema name);
// ComProcessKill and ComRefresh take fixed binary arguments built by their
// callers and passed in as arg.
func BuildCommand(cmd Command, arg []byte) []byte {
	buf := make([]byte, 1+len(arg))
	buf[0] = byte(cmd)
	copy(buf[1:], arg)
	return buf
}

// BuildComQuery builds a COM_QUERY command packet for the given SQL text.
func BuildComQuery(sql string) []byte {
	return BuildCommand(ComQuery, []byte(sql))
}

// BuildComInitDB builds a COM_INIT_DB command packet for the given schema.
func BuildComInitDB(schema string) []byte {
	return BuildCommand(ComInitDB, []byte(schema))
}

// BuildComFieldList builds a COM_FIELD_LIST command packet (table name,
// NUL-terminated, followed by an optional field wildcard).
func BuildComFieldList(table, wildcard string) []byte {
	arg := append([]byte(table), 0)
	arg = append(arg, []byte(wildcard)...)
	return BuildCommand(ComFieldList, arg)
}

// BuildComProcessKill builds a COM_PROCESS_KILL command packet for the
// given connection id.
func BuildComProcessKill(connectionID uint32) []byte {
	arg := make([]byte, 4)
	binary.LittleEndian.PutUint32(arg, connectionID)
	return BuildCommand(ComProcessKill, arg)
}

// RefreshOption bits for COM_REFRESH (spec.md §4.5 "refresh").
type RefreshOption byte

const (
	RefreshGrant RefreshOption = 1 << iota
	RefreshLog
	RefreshTables
	RefreshHosts
	RefreshStatus
	RefreshThreads
	RefreshSlave
	RefreshMaster
)

// BuildComRefresh builds a COM_REFRESH command packet with the given
// option bitmask.
func BuildComRefresh(opts RefreshOption) []byte {
	return BuildCommand(ComRefresh, []byte{byte(opts)})
}

// BuildComShutdown builds a COM_SHUTDOWN command packet (no arguments in
// the default shutdown level).
func BuildComShutdown() []byte {
	return BuildCommand(ComShutdown, nil)
}

// BuildComPing builds a COM_PING command packet.
func BuildComPing() []byte {
	return BuildCommand(ComPing, nil)
}

// BuildComStatistics builds a COM_STATISTICS command packet.
func BuildComStatistics() []byte {
	return BuildCommand(ComStatistics, nil)
}

// BuildComQuit builds a COM_QUIT command packet.
func BuildComQuit() []byte {
	return BuildCommand(ComQuit, nil)
}

// BuildComDebug builds a COM_DEBUG command packet (server dumps debug
// information to its own log; spec.md §4.5 "dump_debug_info").
func BuildComDebug() []byte {
	return BuildCommand(ComDebug, nil)
}

// SetOption is the argument to COM_SET_OPTION.
type SetOption uint16

const (
	SetOptionMultiStatementsOn SetOption = iota
	SetOptionMultiStatementsOff
)

// BuildComSetOption builds a COM_SET_OPTION command packet.
func BuildComSetOption(opt SetOption) []byte {
	arg := make([]byte, 2)
	binary.LittleEndian.PutUint16(arg, uint16(opt))
	return BuildCommand(ComSetOption, arg)
}

// BuildComChangeUser builds a COM_CHANGE_USER command packet body
// (spec.md §4.6). It reuses AuthRequest's field layout but without the
// leading capability/max-packet/charset prefix that HandshakeResponse41
// carries: change-user's body is user, auth-response, database, charset,
// plugin name.
func BuildComChangeUser(user string, authResponse []byte, database string, charsetNo byte, authPluginName string, useLenencAuthResponse bool) []byte {
	var buf []byte
	buf = append(buf, []byte(truncateUser(user))...)
	buf = append(buf, 0)

	if useLenencAuthResponse {
		buf = append(buf, byte(len(authResponse)))
		buf = append(buf, authResponse...)
	} else {
		buf = append(buf, authResponse...)
		buf = append(buf, 0)
	}

	buf = append(buf, []byte(database)...)
	buf = append(buf, 0)

	buf = append(buf, byte(charsetNo), 0) // charset is a 2-byte field here

	if authPluginName != "" {
		buf = append(buf, []byte(authPluginName)...)
		buf = append(buf, 0)
	}

	return BuildCommand(ComChangeUser, buf)
}

// BuildComStmtPrepare builds a COM_STMT_PREPARE command packet for the
// given SQL text (spec.md §1 "prepared-statement internals... exist as
// concrete collaborators").
func BuildComStmtPrepare(sql string) []byte {
	return BuildCommand(ComStmtPrepare, []byte(sql))
}

// BuildComStmtClose builds a COM_STMT_CLOSE command packet for stmtID.
// The server sends no reply to this command.
func BuildComStmtClose(stmtID uint32) []byte {
	arg := make([]byte, 4)
	binary.LittleEndian.PutUint32(arg, stmtID)
	return BuildCommand(ComStmtClose, arg)
}

// BuildComChangeUserNoCharset builds a COM_CHANGE_USER body for servers
// older than 5.01.23, which don't accept the trailing charset field
// (spec.md §4.6).
func BuildComChangeUserNoCharset(user string, authResponse []byte, database string, useLenencAuthResponse bool) []byte {
	var buf []byte
	buf = append(buf, []byte(truncateUser(user))...)
	buf = append(buf, 0)

	if useLenencAuthResponse {
		buf = append(buf, byte(len(authResponse)))
		buf = append(buf, authResponse...)
	} else {
		buf = append(buf, authResponse...)
		buf = append(buf, 0)
	}

	buf = append(buf, []byte(database)...)
	buf = append(buf, 0)

	return BuildCommand(ComChangeUser, buf)
}
