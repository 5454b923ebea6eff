package mysqlconn

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mysqlconn/mysqlconn/internal/authplugin"
	"github.com/mysqlconn/mysqlconn/internal/charset"
	"github.com/mysqlconn/mysqlconn/internal/protocol"
	"github.com/mysqlconn/mysqlconn/internal/transport"
)

// defaultUnixSocket is substituted when "localhost" is used without an
// explicit socket path (spec.md §4.2).
const defaultUnixSocket = "/tmp/mysql.sock"

// Connect establishes the transport, authenticates, and runs configured
// init commands (spec.md §4.2). Calling it on a handle that isn't
// StateAllocated/StateQuitSent performs an implicit close first.
func (c *Connection) Connect(ctx context.Context, host, user, password, db string, port int, socket string, flags protocol.Capability) error {
	c.host = host
	c.port = port
	c.unixSocket = socket

	target, err := c.resolveTarget(host, port, socket)
	if err != nil {
		return c.fail(wrapError(KindConnectionError, "resolving transport target", err))
	}

	connectTimeout := time.Duration(c.options.ConnectTimeoutMillis) * time.Millisecond
	rawConn, err := transport.Dial(ctx, target, connectTimeout)
	if err != nil {
		return c.fail(wrapError(KindConnectionError, "dialing "+target.Address, err))
	}

	return c.ConnectConn(rawConn, user, password, db, flags)
}

// ConnectConn runs the handshake/authenticate/init-commands sequence
// over an already-established net.Conn, skipping Connect's own dial
// (spec.md §4.2). This is the seam a caller with a custom dialer (or a
// test harness standing in a fake server) uses in place of Connect;
// Connect itself is built on top of it.
func (c *Connection) ConnectConn(rawConn net.Conn, user, password, db string, flags protocol.Capability) error {
	if c.state != StateAllocated && c.state != StateQuitSent {
		c.sendClose()
		c.stats.Reconnected()
	}

	c.user = user
	c.password = password
	c.database = db

	c.rawConn = rawConn
	c.net = transport.New(rawConn)
	c.reader = c.net
	c.writer = c.net
	c.stream.Reset()

	if err := c.handshake(flags); err != nil {
		c.rawConn.Close()
		c.net = nil
		return err
	}

	c.state = StateReady
	c.stats.Connected()

	if err := c.runInitCommands(); err != nil {
		return err
	}
	return nil
}

func (c *Connection) resolveTarget(host string, port int, socket string) (transport.Target, error) {
	if host == "" {
		host = "localhost"
	}

	if host == "localhost" {
		path := socket
		if path == "" {
			path = defaultUnixSocket
		}
		c.scheme = "unix://" + path
		c.hostInfo = "localhost via UNIX socket"
		return transport.Target{Network: "unix", Address: path}, nil
	}

	if port == 0 {
		port = 3306
	}
	c.scheme = fmt.Sprintf("tcp://%s:%d", host, port)
	c.hostInfo = fmt.Sprintf("%s via TCP/IP", host)
	return transport.ParseTarget(c.scheme)
}

// handshake runs the Greet → (optional TLS upgrade) → HandshakeResponse41
// → OK sequence (spec.md §4.2).
func (c *Connection) handshake(callerFlags protocol.Capability) error {
	greetData, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		return c.fail(wrapError(KindConnectionError, "reading greet packet", err))
	}
	if protocol.IsErrPacket(greetData) {
		return c.handleErrPacket(greetData)
	}

	greet, err := protocol.ParseGreet(greetData)
	if err != nil {
		return c.fail(wrapError(KindNotImplemented, "parsing greet packet", err))
	}
	if greet.ProtocolVersion < protocol.MinProtocolVersion {
		return c.fail(newError(KindNotImplemented, "server protocol version older than 4.1"))
	}

	c.threadID = greet.ThreadID
	c.serverVersion = greet.ServerVersion
	c.protocolVersion = greet.ProtocolVersion
	c.serverCapabilities = greet.Capabilities
	c.scramble = greet.Scramble
	c.greetCharset = greet.CharsetNo
	c.upsertStatus.ServerStatus = greet.StatusFlags

	clientFlag := c.negotiateCapabilities(callerFlags, greet.Capabilities)

	if clientFlag&protocol.ClientSSL != 0 && c.options.TLSConfig != nil {
		half := &protocol.AuthRequest{ClientFlags: clientFlag, MaxPacketSize: protocol.MaxAssembledPacket, CharsetNo: c.effectiveCharsetNo(), HalfPacket: true}
		if err := c.stream.WritePacket(c.writer, half.Marshal()); err != nil {
			return c.fail(wrapError(KindConnectionError, "writing SSL half-packet", err))
		}
		if err := c.net.UpgradeTLS(c.options.TLSConfig); err != nil {
			return c.fail(wrapError(KindConnectionError, "TLS upgrade", err))
		}
	}

	// CLIENT_COMPRESS wraps every packet from here on in zlib framing, on
	// both directions, for the rest of the session (spec.md §6).
	if clientFlag&protocol.ClientCompress != 0 {
		c.reader = transport.NewCompressReader(c.net)
		c.writer = transport.NewCompressWriter(c.net)
	}

	c.clientFlag = clientFlag
	c.maxPacketSize = protocol.MaxAssembledPacket

	return c.authenticate(greet)
}

// negotiateCapabilities computes client_flag per spec.md §4.2.
func (c *Connection) negotiateCapabilities(callerFlags, serverCaps protocol.Capability) protocol.Capability {
	flag := callerFlags | protocol.MandatoryCapabilities | protocol.DefaultExtraCapabilities

	if c.options.RestrictedFilesystem {
		flag &^= protocol.ClientLocalFiles
	}
	if !c.options.AllowLocalInfile {
		flag &^= protocol.ClientLocalFiles
	}
	if c.options.Compress && serverCaps&protocol.ClientCompress != 0 {
		flag |= protocol.ClientCompress
	} else {
		flag &^= protocol.ClientCompress
	}
	if c.options.TLSConfig != nil && serverCaps&protocol.ClientSSL != 0 {
		flag |= protocol.ClientSSL
	} else {
		flag &^= protocol.ClientSSL
	}
	if c.options.MultiStatements {
		flag |= protocol.ClientMultiStatements
	}
	if c.database != "" {
		flag |= protocol.ClientConnectWithDB
	}
	if serverCaps&protocol.ClientPluginAuth != 0 {
		flag |= protocol.ClientPluginAuth
	}

	return flag
}

func (c *Connection) effectiveCharsetNo() byte {
	if c.options.CharsetName != "" {
		if no, ok := charset.Lookup(c.options.CharsetName); ok {
			return byte(no)
		}
	}
	return c.greetCharset
}

// authenticate writes HandshakeResponse41 and processes the server's
// reply, including AuthSwitchRequest dispatch (spec.md §4.2).
func (c *Connection) authenticate(greet *protocol.Greet) error {
	pluginName := greet.AuthPluginName
	if pluginName == "" {
		pluginName = "mysql_native_password"
	}

	plugin, err := authplugin.Lookup(pluginName)
	if err != nil {
		pluginName = "mysql_native_password"
		plugin, err = authplugin.Lookup(pluginName)
		if err != nil {
			return c.fail(wrapError(KindOldAuthRequired, "no usable auth plugin", err))
		}
	}

	authResponse, err := plugin.Scramble(c.password, c.scramble)
	if err != nil {
		return c.fail(wrapError(KindOutOfMemory, "computing auth response", err))
	}

	if c.options.CharsetName != "" {
		c.charset = c.options.CharsetName
	} else {
		c.charset = ""
	}

	req := &protocol.AuthRequest{
		ClientFlags:    c.clientFlag,
		MaxPacketSize:  c.maxPacketSize,
		CharsetNo:      c.effectiveCharsetNo(),
		User:           c.user,
		AuthResponse:   authResponse,
		Database:       c.database,
		AuthPluginName: pluginName,
	}
	if err := c.stream.WritePacket(c.writer, req.Marshal()); err != nil {
		return c.fail(wrapError(KindConnectionError, "writing auth packet", err))
	}

	return c.reapAuthenticate(pluginName)
}

func (c *Connection) reapAuthenticate(pluginName string) error {
	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		return c.fail(wrapError(KindConnectionError, "reading auth reply", err))
	}

	switch {
	case protocol.IsErrPacket(data):
		return c.handleErrPacket(data)

	case len(data) > 0 && data[0] == protocol.FieldCountOldAuthSwitch:
		switchReq, err := protocol.ParseAuthSwitchRequest(data)
		if err != nil || switchReq.PluginName == "" {
			return c.fail(newError(KindOldAuthRequired, fixedOldPasswordDiagnostic))
		}
		return c.reapAuthSwitch(switchReq)

	default:
		ok, err := protocol.ParseOK(data)
		if err != nil {
			return c.fail(wrapError(KindMalformedPacket, "parsing auth OK packet", err))
		}
		c.lastMessage = ok.Message
		c.upsertStatus = UpsertStatus{
			ServerStatus: ok.StatusFlags,
			WarningCount: ok.WarningCount,
		}
		return nil
	}
}

func (c *Connection) reapAuthSwitch(req *protocol.AuthSwitchRequest) error {
	plugin, err := authplugin.Lookup(req.PluginName)
	if err != nil {
		c.stats.AuthFailed(req.PluginName)
		return c.fail(wrapError(KindOldAuthRequired, "unsupported auth plugin "+req.PluginName, err))
	}

	response, err := plugin.Scramble(c.password, req.PluginData)
	if err != nil {
		return c.fail(wrapError(KindOutOfMemory, "computing auth switch response", err))
	}
	if err := c.stream.WritePacket(c.writer, response); err != nil {
		return c.fail(wrapError(KindConnectionError, "writing auth switch response", err))
	}

	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		return c.fail(wrapError(KindConnectionError, "reading auth switch result", err))
	}

	if protocol.IsErrPacket(data) {
		c.stats.AuthFailed(req.PluginName)
		return c.handleErrPacket(data)
	}

	if len(data) == 2 && data[0] == 0x01 {
		fastOK, fullAuth, _ := authplugin.InterpretMoreData(data[1:])
		if fastOK {
			return c.reapAuthenticate(req.PluginName)
		}
		if fullAuth {
			return c.fullAuthenticate(req.PluginName)
		}
	}

	ok, err := protocol.ParseOK(data)
	if err != nil {
		return c.fail(wrapError(KindMalformedPacket, "parsing auth switch OK", err))
	}
	c.lastMessage = ok.Message
	c.upsertStatus = UpsertStatus{ServerStatus: ok.StatusFlags, WarningCount: ok.WarningCount}
	return nil
}

// fullAuthenticate completes caching_sha2_password's full-authentication
// path: over an already-TLS-protected connection the cleartext password
// is sent directly; otherwise an RSA public key is requested from the
// server and the password is OAEP-encrypted against it (SPEC_FULL.md
// supplemented feature 5).
func (c *Connection) fullAuthenticate(pluginName string) error {
	if c.clientFlag&protocol.ClientSSL != 0 {
		payload := append([]byte(c.password), 0)
		if err := c.stream.WritePacket(c.writer, payload); err != nil {
			return c.fail(wrapError(KindConnectionError, "writing cleartext full-auth password", err))
		}
		return c.reapAuthenticate(pluginName)
	}

	if err := c.stream.WritePacket(c.writer, []byte{0x02}); err != nil {
		return c.fail(wrapError(KindConnectionError, "requesting RSA public key", err))
	}

	keyData, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		return c.fail(wrapError(KindConnectionError, "reading RSA public key", err))
	}
	more, err := protocol.ParseAuthMoreData(keyData)
	if err != nil {
		return c.fail(wrapError(KindMalformedPacket, "parsing RSA public key packet", err))
	}

	encrypted, err := authplugin.EncryptPassword(c.password, c.scramble, more.Data)
	if err != nil {
		return c.fail(wrapError(KindOutOfMemory, "encrypting full-auth password", err))
	}
	if err := c.stream.WritePacket(c.writer, encrypted); err != nil {
		return c.fail(wrapError(KindConnectionError, "writing encrypted full-auth password", err))
	}
	return c.reapAuthenticate(pluginName)
}

// runInitCommands executes Options.InitCommands in order, consuming and
// discarding any result set each produces (spec.md §4.2).
func (c *Connection) runInitCommands() error {
	for _, cmd := range c.options.InitCommands {
		if err := c.query(cmd); err != nil {
			return err
		}
		for c.state == StateFetchingData || c.state == StateNextResultPending {
			if c.state == StateFetchingData {
				if err := c.drainCurrentResult(); err != nil {
					return err
				}
				continue
			}
			if err := c.NextResult(); err != nil {
				return err
			}
		}
	}
	return nil
}
