// Package stmt holds the minimal Stmt handle a connection creates for
// COM_STMT_PREPARE. Prepared-statement execution internals (parameter
// binding, binary row decoding) are explicitly out of scope (spec.md §1);
// this package only provides the connection-owned lifecycle surface.
package stmt

// Stmt is a connection-owned-then-caller-owned prepared statement handle.
type Stmt struct {
	ID           uint32
	ParamCount   uint16
	ColumnCount  uint16
	WarningCount uint16

	refcount int
	closed   bool
}

// New creates a Stmt from a COM_STMT_PREPARE OK response's fixed fields.
func New(id uint32, paramCount, columnCount, warningCount uint16) *Stmt {
	return &Stmt{ID: id, ParamCount: paramCount, ColumnCount: columnCount, WarningCount: warningCount}
}

// GetReference increments the shared-ownership refcount (spec.md §5).
func (s *Stmt) GetReference() { s.refcount++ }

// FreeReference decrements the refcount, reporting whether it reached
// zero.
func (s *Stmt) FreeReference() bool {
	s.refcount--
	return s.refcount <= 0
}

// Closed reports whether COM_STMT_CLOSE has already been sent for this
// handle.
func (s *Stmt) Closed() bool { return s.closed }

// MarkClosed records that COM_STMT_CLOSE has been sent; callers must not
// send it twice for the same statement id.
func (s *Stmt) MarkClosed() { s.closed = true }
