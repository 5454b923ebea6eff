package transport

import (
	"bufio"
	"crypto/tls"
	"net"
)

// Conn wraps the dialed net.Conn with buffering the protocol.Stream reads
// and writes through, and supports an in-place TLS upgrade for the SSL
// half-packet handshake path (spec.md §4.2).
type Conn struct {
	net.Conn
	r *bufio.Reader
	w *bufio.Writer
}

// New wraps raw in a buffered Conn.
func New(raw net.Conn) *Conn {
	return &Conn{
		Conn: raw,
		r:    bufio.NewReader(raw),
		w:    bufio.NewWriter(raw),
	}
}

// Read satisfies io.Reader through the buffered reader.
func (c *Conn) Read(p []byte) (int, error) { return c.r.Read(p) }

// Write satisfies io.Writer through the buffered writer, auto-flushing
// since the protocol layer writes whole packets at a time and expects
// them on the wire immediately.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, c.w.Flush()
}

// UpgradeTLS replaces the underlying connection with a TLS client
// connection, preserving nothing buffered (callers must not have read
// ahead past the handshake boundary, which mysqlnd guarantees by sending
// the SSL half-packet and upgrading before anything else is written).
func (c *Conn) UpgradeTLS(cfg *tls.Config) error {
	tlsConn := tls.Client(c.Conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	c.Conn = tlsConn
	c.r = bufio.NewReader(tlsConn)
	c.w = bufio.NewWriter(tlsConn)
	return nil
}
