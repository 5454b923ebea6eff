package mysqlconn

import (
	"crypto/tls"

	"github.com/mysqlconn/mysqlconn/internal/config"
)

// Options configures a Connection (spec.md §3 "Configuration"). The
// zero value is usable: the session keeps the server's greet charset and
// no init commands run. (An empty host passed to Connect becomes
// "localhost", which dials the default Unix socket.)
type Options struct {
	// CharsetName selects the session charset; empty means "use the
	// server's greet charset" (spec.md §4.2).
	CharsetName string

	// InitCommands run in order immediately after a successful
	// connect; any result set they produce is consumed and discarded.
	InitCommands []string

	// CfgFile names a YAML options file ApplyFile loads to fill in
	// CharsetName/InitCommands left zero on this Options (spec.md §9
	// "Open questions", resolved in SPEC_FULL.md: honored rather than a
	// no-op). CfgSection is accepted but not otherwise interpreted —
	// the YAML shape this driver reads is flat, with no my.cnf-style
	// section indirection to select among.
	CfgFile    string
	CfgSection string

	// NativeIntFloat requests integer and float columns be decoded as
	// native Go numeric types rather than strings, where Result
	// supports it.
	NativeIntFloat bool

	// NumericAndDatesAsUnicode requests numeric and datetime columns be
	// decoded as text in wide-character builds (spec.md §6).
	NumericAndDatesAsUnicode bool

	// AllowLocalInfile enables LOCAL INFILE handling; when false, a
	// server's local-infile request is refused rather than honored.
	AllowLocalInfile bool

	// Compress requests CLIENT_COMPRESS.
	Compress bool

	// MultiStatements requests CLIENT_MULTI_STATEMENTS.
	MultiStatements bool

	// TLSConfig, when non-nil, requests an SSL upgrade during connect
	// using this configuration (spec.md §4.2 "half-auth packet").
	TLSConfig *tls.Config

	// ConnectTimeoutMillis bounds dialing; zero means no explicit timeout
	// beyond the transport default. The handshake that follows the dial
	// is not bounded by it.
	ConnectTimeoutMillis int

	// NetBufferSize is kept on the Options (withDefaults sets 16 KiB when
	// zero). The transport's buffered reader/writer do not read it; they
	// use bufio's default size.
	NetBufferSize int

	// RestrictedFilesystem, when true, clears ClientLocalFiles from the
	// negotiated capability set regardless of AllowLocalInfile (spec.md
	// §4.2 "restricted filesystem policy").
	RestrictedFilesystem bool

	// Persistent marks a connection meant to outlive one logical caller
	// session: a CloseImplicit while StateReady runs RestartSession/
	// EndSession instead of tearing down the transport (SPEC_FULL.md
	// supplemented feature 4).
	Persistent bool
}

// withDefaults returns a copy of o with zero-valued fields replaced by
// driver defaults. An empty CharsetName is left as-is: connect() treats
// that as "use the server's greet charset" rather than substituting one.
func (o Options) withDefaults() Options {
	if o.NetBufferSize == 0 {
		o.NetBufferSize = 16 * 1024
	}
	return o
}

// ApplyFile loads o.CfgFile, if set, and overlays its charset and init
// commands onto a copy of o wherever o itself left them zero; an unset
// CfgFile returns o unchanged. Callers that want cfg_file honored call
// this before New; New itself never reads the filesystem.
func (o Options) ApplyFile() (Options, error) {
	if o.CfgFile == "" {
		return o, nil
	}

	f, err := config.Load(o.CfgFile)
	if err != nil {
		return o, err
	}

	if o.CharsetName == "" {
		o.CharsetName = f.CharsetName
	}
	if len(o.InitCommands) == 0 {
		o.InitCommands = f.InitCommands
	}
	return o, nil
}
