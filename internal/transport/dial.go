// Package transport owns the raw byte pipe a Connection talks over: TCP or
// Unix-domain dialing, the buffered reader/writer the protocol codec reads
// and writes through, mid-handshake TLS upgrade, and optional zlib packet
// compression (spec.md §4.2, §6).
package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DefaultPort is used when a tcp:// address carries no explicit port.
const DefaultPort = "3306"

// DefaultSocket is used for unix:// addresses with no explicit path.
const DefaultSocket = "/tmp/mysql.sock"

// Target describes where to dial, resolved from a connection string of the
// form "tcp://host[:port]" or "unix:///path/to/socket" (spec.md §4.2).
type Target struct {
	Network string // "tcp" or "unix"
	Address string
}

// ParseTarget resolves a raw address into a dial Target. A bare host with
// no scheme is treated as tcp://host.
func ParseTarget(raw string) (Target, error) {
	if raw == "" {
		return Target{Network: "tcp", Address: "127.0.0.1:" + DefaultPort}, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "tcp://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("transport: invalid address %q: %w", raw, err)
	}

	switch u.Scheme {
	case "tcp":
		host := u.Hostname()
		if host == "" {
			host = "127.0.0.1"
		}
		port := u.Port()
		if port == "" {
			port = DefaultPort
		}
		return Target{Network: "tcp", Address: net.JoinHostPort(host, port)}, nil
	case "unix":
		path := u.Path
		if path == "" {
			path = DefaultSocket
		}
		return Target{Network: "unix", Address: path}, nil
	default:
		return Target{}, fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
}

// Dial opens the raw network connection described by target, honoring ctx
// for cancellation and timeout (spec.md §4.2 step 1).
func Dial(ctx context.Context, target Target, connectTimeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: connectTimeout}
	conn, err := d.DialContext(ctx, target.Network, target.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s %s: %w", target.Network, target.Address, err)
	}
	return conn, nil
}
