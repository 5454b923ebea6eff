package protocol

import "encoding/binary"

// AuthRequest is the client's HandshakeResponse41, built and written after
// a successful Greet (spec.md §4.2, §6).
type AuthRequest struct {
	ClientFlags    Capability
	MaxPacketSize  uint32
	CharsetNo      byte
	User           string
	AuthResponse   []byte // scrambled password, plugin-dependent
	Database       string // empty unless ClientConnectWithDB is set
	AuthPluginName string
	HalfPacket     bool // true when an SSL upgrade must happen before the rest
}

// Marshal encodes the AuthRequest. When HalfPacket is true only the
// capability/max-packet/charset prefix is written (the SSL "half packet"
// mysqlnd sends before upgrading the transport, §4.2).
func (a *AuthRequest) Marshal() []byte {
	buf := make([]byte, 0, 64+len(a.User)+len(a.AuthResponse)+len(a.Database))

	capBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(capBuf, uint32(a.ClientFlags))
	buf = append(buf, capBuf...)

	maxPktBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(maxPktBuf, a.MaxPacketSize)
	buf = append(buf, maxPktBuf...)

	buf = append(buf, a.CharsetNo)
	buf = append(buf, make([]byte, 23)...) // reserved

	if a.HalfPacket {
		return buf
	}

	buf = append(buf, []byte(a.User)...)
	buf = append(buf, 0)

	if a.ClientFlags&ClientSecureConnection != 0 {
		buf = append(buf, byte(len(a.AuthResponse)))
		buf = append(buf, a.AuthResponse...)
	} else {
		buf = append(buf, a.AuthResponse...)
		buf = append(buf, 0)
	}

	if a.ClientFlags&ClientConnectWithDB != 0 {
		buf = append(buf, []byte(a.Database)...)
		buf = append(buf, 0)
	}

	if a.ClientFlags&ClientPluginAuth != 0 {
		buf = append(buf, []byte(a.AuthPluginName)...)
		buf = append(buf, 0)
	}

	return buf
}

// AuthSwitchRequest is sent by the server (field-count 0xFE outside the
// auth-time old-password meaning) when it wants a different auth plugin.
type AuthSwitchRequest struct {
	PluginName string
	PluginData []byte
}

// ParseAuthSwitchRequest parses the body following the 0xFE marker byte.
func ParseAuthSwitchRequest(data []byte) (*AuthSwitchRequest, error) {
	if len(data) < 2 {
		return nil, ErrMalformedPacket
	}
	name, n, err := NullTerminated(data[1:])
	if err != nil {
		return nil, err
	}
	pluginData := data[1+n:]
	if len(pluginData) > 0 && pluginData[len(pluginData)-1] == 0 {
		pluginData = pluginData[:len(pluginData)-1]
	}
	return &AuthSwitchRequest{PluginName: string(name), PluginData: pluginData}, nil
}

// AuthMoreData is sent by caching_sha2_password (and similar plugins) to
// carry out-of-band data such as a "fast auth succeeded" signal or a
// request for the server's RSA public key.
type AuthMoreData struct {
	Data []byte
}

// ParseAuthMoreData parses the body following the 0x01 marker byte.
func ParseAuthMoreData(data []byte) (*AuthMoreData, error) {
	if len(data) < 1 {
		return nil, ErrMalformedPacket
	}
	return &AuthMoreData{Data: data[1:]}, nil
}
