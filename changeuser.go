package mysqlconn

import (
	"fmt"

	"github.com/mysqlconn/mysqlconn/internal/authplugin"
	"github.com/mysqlconn/mysqlconn/internal/protocol"
)

// serverVersionAtLeast compares the connection's serverVersion against a
// "major.minor.patch" floor using the same mysql_get_server_version-style
// numeric packing mysqlnd uses for its version gates (spec.md §4.6, §9).
func (c *Connection) serverVersionAtLeast(major, minor, patch int) bool {
	v := parseServerVersion(c.serverVersion)
	want := major*10000 + minor*100 + patch
	return v >= want
}

func parseServerVersion(s string) int {
	var major, minor, patch int
	n, _ := fmt.Sscanf(s, "%d.%d.%d", &major, &minor, &patch)
	if n < 3 {
		return 0
	}
	return major*10000 + minor*100 + patch
}

// ChangeUser performs COM_CHANGE_USER: reauthenticating the connection as
// a different user without tearing down the transport (spec.md §4.6).
func (c *Connection) ChangeUser(user, password, database string) error {
	if c.state == StateQuitSent {
		return c.fail(newError(KindServerGone, "server gone"))
	}
	if c.state != StateReady {
		return c.fail(newError(KindCommandsOutOfSync, "commands out of sync"))
	}
	c.errorInfo = ErrorInfo{}

	plugin, err := authplugin.Lookup("mysql_native_password")
	if err != nil {
		return c.fail(wrapError(KindOldAuthRequired, "resolving auth plugin", err))
	}
	authResponse, err := plugin.Scramble(password, c.scramble)
	if err != nil {
		return c.fail(wrapError(KindOutOfMemory, "computing change_user scramble", err))
	}

	useLenenc := c.clientFlag&protocol.ClientSecureConnection != 0
	var packet []byte
	if c.serverVersionAtLeast(5, 1, 23) {
		packet = protocol.BuildComChangeUser(user, authResponse, database, c.greetCharset, "", useLenenc)
	} else {
		packet = protocol.BuildComChangeUserNoCharset(user, authResponse, database, useLenenc)
	}

	c.stream.Reset()
	if err := c.stream.WritePacket(c.writer, packet); err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "writing COM_CHANGE_USER", err))
	}
	c.stats.CommandSent("COM_CHANGE_USER", 0)

	if err := c.reapChangeUser(user, password, database); err != nil {
		c.stats.ChangeUserAttempted("error")
		return err
	}
	c.stats.ChangeUserAttempted("ok")
	return nil
}

// reapChangeUser reads the ChangeUserResponse, handling the documented
// double-ERR quirk for server versions strictly between 5.01.13 and
// 5.01.18 (spec.md §4.6, §9).
func (c *Connection) reapChangeUser(user, password, database string) error {
	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "reading change_user reply", err))
	}

	if protocol.IsErrPacket(data) {
		if c.serverVersionAfter(5, 1, 13) && c.serverVersionBefore(5, 1, 18) {
			// Legacy servers in this range send two consecutive ERR
			// packets on change_user failure; discard the redundant one.
			if _, discardErr := c.stream.ReadPacket(c.reader); discardErr != nil {
				c.transitionQuitSent()
				return c.fail(wrapError(KindServerGone, "reading redundant change_user ERR", discardErr))
			}
		}
		return c.handleErrPacket(data)
	}

	if len(data) > 0 && data[0] == protocol.FieldCountOldAuthSwitch {
		switchReq, err := protocol.ParseAuthSwitchRequest(data)
		if err != nil || switchReq.PluginName == "" {
			return c.fail(newError(KindOldAuthRequired, fixedOldPasswordDiagnostic))
		}
		return c.reapChangeUserAuthSwitch(switchReq, password)
	}

	ok, err := protocol.ParseOK(data)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindMalformedPacket, "parsing change_user OK", err))
	}
	c.lastMessage = ok.Message
	c.upsertStatus = UpsertStatus{}

	c.user = user
	c.password = password
	c.database = database
	c.lastMessage = ""

	if !c.serverVersionAtLeast(5, 1, 23) && c.charset != "" {
		if err := c.SetCharset(c.charset); err != nil {
			return err
		}
	}
	return nil
}

// reapChangeUserAuthSwitch completes change_user when the server asks for
// a different plugin for the new user.
func (c *Connection) reapChangeUserAuthSwitch(req *protocol.AuthSwitchRequest, password string) error {
	plugin, err := authplugin.Lookup(req.PluginName)
	if err != nil {
		return c.fail(wrapError(KindOldAuthRequired, "unsupported auth switch plugin", err))
	}
	response, err := plugin.Scramble(password, req.PluginData)
	if err != nil {
		return c.fail(wrapError(KindOutOfMemory, "computing auth switch scramble", err))
	}
	if err := c.stream.WritePacket(c.writer, response); err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "writing auth switch response", err))
	}

	data, err := c.stream.ReadPacket(c.reader)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindServerGone, "reading auth switch result", err))
	}
	if protocol.IsErrPacket(data) {
		return c.handleErrPacket(data)
	}
	_, err = protocol.ParseOK(data)
	if err != nil {
		c.transitionQuitSent()
		return c.fail(wrapError(KindMalformedPacket, "parsing auth switch OK", err))
	}
	c.upsertStatus = UpsertStatus{}
	return nil
}

func (c *Connection) serverVersionAfter(major, minor, patch int) bool {
	return parseServerVersion(c.serverVersion) > major*10000+minor*100+patch
}

func (c *Connection) serverVersionBefore(major, minor, patch int) bool {
	return parseServerVersion(c.serverVersion) < major*10000+minor*100+patch
}
