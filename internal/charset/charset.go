// Package charset maps MySQL charset names to their wire protocol numbers
// and implements the client-side string escaping mysqlnd performs when a
// server-side prepared statement or placeholder isn't used.
package charset

import (
	"strings"
	"unicode/utf8"
)

// Number is a MySQL charset/collation id as carried in Greet.CharsetNo and
// AuthRequest.CharsetNo.
type Number byte

// A subset of the collation numbers MySQL has assigned since 4.1; the
// driver only needs to resolve names the caller configures explicitly,
// and otherwise uses the number the server advertised in its greet.
const (
	Latin1SwedishCI Number = 8
	Utf8GeneralCI   Number = 33
	Binary          Number = 63
	Utf8mb4GeneralCI Number = 45
	Utf8mb4Unicode400CI Number = 45
)

// DefaultCharset names utf8mb4, the same charset the config loader fills
// in when a file leaves charset_name empty. Nothing applies it to
// Options: an empty Options.CharsetName means the server's greet charset.
const DefaultCharset = "utf8mb4"

// Charset pairs a wire number with the byte-width information
// EscapeString needs to avoid splitting a multi-byte lead/continuation
// sequence across what would otherwise look like an escapable byte
// (mirroring mysqlnd_find_charset_nr's escaper dispatch, which hands
// multi-byte charsets a different escape function than single-byte ones).
type Charset struct {
	Number    Number
	Name      string
	Multibyte bool
}

var byName = map[string]Charset{
	"latin1":  {Latin1SwedishCI, "latin1", false},
	"utf8":    {Utf8GeneralCI, "utf8", true},
	"utf8mb4": {Utf8mb4GeneralCI, "utf8mb4", true},
	"binary":  {Binary, "binary", false},
}

// Lookup resolves a charset name (case-insensitive) to its wire number.
// It reports false for names the driver doesn't recognize; callers should
// surface this as a usage error rather than silently falling back, since a
// wrong charset number corrupts every string sent afterward.
func Lookup(name string) (Number, bool) {
	cs, ok := byName[strings.ToLower(name)]
	return cs.Number, ok
}

// Resolve is Lookup's counterpart for callers that also need the
// byte-width information EscapeString's multibyte path depends on.
func Resolve(name string) (*Charset, bool) {
	cs, ok := byName[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return &cs, true
}

// EscapeString escapes s for safe inclusion inside single quotes in a
// COM_QUERY SQL string, mirroring mysqlnd's escape_string: every one of
// \x00, \n, \r, \, ', ", and \x1a is backslash-escaped. cs selects which
// escaper mysqlnd would have dispatched to: a nil cs or one with
// Multibyte false walks s byte by byte, exactly like the single-byte
// charsets' escaper. A multibyte cs walks s rune by rune instead, so a
// continuation byte that happens to collide with an escapable ASCII
// value is never treated as if it stood alone.
func EscapeString(cs *Charset, s string) string {
	if cs == nil || !cs.Multibyte {
		return escapeBytes(s)
	}
	return escapeRunes(s)
}

func escapeBytes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		writeEscaped(&b, s[i])
	}
	return b.String()
}

func escapeRunes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if size == 1 {
			writeEscaped(&b, s[i])
		} else {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func writeEscaped(b *strings.Builder, c byte) {
	switch c {
	case 0:
		b.WriteString(`\0`)
	case '\n':
		b.WriteString(`\n`)
	case '\r':
		b.WriteString(`\r`)
	case '\\':
		b.WriteString(`\\`)
	case '\'':
		b.WriteString(`\'`)
	case '"':
		b.WriteString(`\"`)
	case 0x1a:
		b.WriteString(`\Z`)
	default:
		b.WriteByte(c)
	}
}
