package mysqlconn

import (
	"log/slog"
	"sync/atomic"
)

// PluginID identifies a registered plugin's slot in a connection's
// private-storage slab (spec.md §9 "Plugins receive per-connection
// private storage via a trailing array sized at library init"; mirrored
// on mysqlnd_plugin_register, SPEC_FULL.md supplemented feature 3).
type PluginID uint32

var nextPluginID uint32

// RegisterPlugin allocates a new, process-wide monotonic PluginID. Call
// it once at plugin-package init time; the returned id indexes that
// plugin's private storage on every Connection via
// Connection.PluginStorage.
func RegisterPlugin(name string) PluginID {
	id := atomic.AddUint32(&nextPluginID, 1)
	slog.Debug("plugin registered", "name", name, "id", id)
	return PluginID(id)
}

// PluginCount returns the number of plugins registered so far, mirroring
// mysqlnd_plugin_count() (SPEC_FULL.md supplemented feature 3).
func PluginCount() int {
	return int(atomic.LoadUint32(&nextPluginID))
}

// PluginStorage returns the connection-private slot for id, creating it
// with init() the first time it's accessed on this connection.
func (c *Connection) PluginStorage(id PluginID, init func() any) any {
	if v, ok := c.plugins[id]; ok {
		return v
	}
	v := init()
	c.plugins[id] = v
	return v
}
