package transport

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// compressHeaderLen is the 7-byte header MySQL's compressed protocol adds
// in front of every physical packet once ClientCompress has been
// negotiated: 3-byte compressed length, 1-byte sequence, 3-byte
// uncompressed length.
const compressHeaderLen = 7

// compressMinPayload is the smallest payload mysqlnd bothers compressing;
// shorter packets are sent uncompressed (uncompressedLen == 0 signals
// that to the reader) since zlib's own overhead would grow them.
const compressMinPayload = 50

// CompressWriter wraps w, framing and zlib-compressing everything written
// to it per the compressed MySQL protocol (spec.md §6, CLIENT_COMPRESS).
type CompressWriter struct {
	w   io.Writer
	seq uint8
}

// NewCompressWriter returns a CompressWriter over w.
func NewCompressWriter(w io.Writer) *CompressWriter {
	return &CompressWriter{w: w}
}

// Write compresses and frames payload as one compressed packet.
func (c *CompressWriter) Write(payload []byte) (int, error) {
	var body []byte
	uncompressedLen := 0

	if len(payload) >= compressMinPayload {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return 0, err
		}
		if err := zw.Close(); err != nil {
			return 0, err
		}
		body = buf.Bytes()
		uncompressedLen = len(payload)
	} else {
		body = payload
	}

	hdr := make([]byte, compressHeaderLen)
	hdr[0] = byte(len(body))
	hdr[1] = byte(len(body) >> 8)
	hdr[2] = byte(len(body) >> 16)
	hdr[3] = c.seq
	c.seq++
	hdr[4] = byte(uncompressedLen)
	hdr[5] = byte(uncompressedLen >> 8)
	hdr[6] = byte(uncompressedLen >> 16)

	if _, err := c.w.Write(hdr); err != nil {
		return 0, err
	}
	if _, err := c.w.Write(body); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// CompressReader unwraps compressed packets read from r, yielding the
// decompressed physical-packet stream the protocol.Stream codec expects.
type CompressReader struct {
	r    io.Reader
	pend bytes.Buffer
}

// NewCompressReader returns a CompressReader over r.
func NewCompressReader(r io.Reader) *CompressReader {
	return &CompressReader{r: r}
}

// Read fills p from the pending decompressed buffer, reading and
// decompressing additional compressed packets from the wire as needed.
func (c *CompressReader) Read(p []byte) (int, error) {
	for c.pend.Len() == 0 {
		if err := c.readOnePacket(); err != nil {
			return 0, err
		}
	}
	return c.pend.Read(p)
}

func (c *CompressReader) readOnePacket() error {
	hdr := make([]byte, compressHeaderLen)
	if _, err := io.ReadFull(c.r, hdr); err != nil {
		return err
	}

	compressedLen := int(hdr[0]) | int(hdr[1])<<8 | int(hdr[2])<<16
	uncompressedLen := int(hdr[4]) | int(hdr[5])<<8 | int(hdr[6])<<16

	body := make([]byte, compressedLen)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return err
	}

	if uncompressedLen == 0 {
		c.pend.Write(body)
		return nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: compressed packet: %w", err)
	}
	defer zr.Close()

	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return fmt.Errorf("transport: decompressing packet: %w", err)
	}
	c.pend.Write(out)
	return nil
}
