package mysqlconn

// Ops is the connection's virtual dispatch table (spec.md §9 "Virtual
// dispatch via method tables"): the set of operations that can be
// wholesale replaced, e.g. by a plugin that wants to intercept query
// dispatch for tracing or a test double that fakes network behavior.
// Connection holds one Ops by composition; SetOps swaps the whole table.
type Ops interface {
	// Query is invoked by Connection.Query after state validation; the
	// default implementation performs the real COM_QUERY round trip.
	Query(c *Connection, sql string) error
}

// defaultOps is the production implementation of Ops, used unless a
// caller installs a replacement via SetOps.
type defaultOps struct{}

func (defaultOps) Query(c *Connection, sql string) error {
	return c.query(sql)
}

// SetOps replaces the connection's operation table wholesale. Most
// callers never need this; it exists for plugins and test harnesses that
// want to intercept dispatch (spec.md §9).
func (c *Connection) SetOps(ops Ops) {
	if ops == nil {
		ops = defaultOps{}
	}
	c.ops = ops
}
