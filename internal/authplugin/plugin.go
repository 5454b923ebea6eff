// Package authplugin implements the client side of MySQL's pluggable
// authentication: mysql_native_password and caching_sha2_password, plus
// the registry the connection's handshake dispatches AuthSwitchRequest
// against (spec.md §4.2, SPEC_FULL.md supplemented feature 5).
package authplugin

import "fmt"

// Plugin computes the scrambled auth response a given mechanism sends in
// HandshakeResponse41 or after an AuthSwitchRequest.
type Plugin interface {
	// Name is the plugin name as advertised in Greet.AuthPluginName / an
	// AuthSwitchRequest.
	Name() string

	// Scramble computes the auth response for password, given the
	// server's nonce (scramble/auth-switch plugin data).
	Scramble(password string, nonce []byte) ([]byte, error)
}

var registry = map[string]Plugin{}

func register(p Plugin) {
	registry[p.Name()] = p
}

func init() {
	register(nativePassword{})
	register(cachingSHA2Password{})
}

// Lookup returns the registered Plugin for name, or an error if the driver
// doesn't implement it. A connection encountering an unknown plugin name
// should surface this as a usage/auth error rather than guessing.
func Lookup(name string) (Plugin, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("authplugin: unsupported auth plugin %q", name)
	}
	return p, nil
}
