// Package stats exposes per-connection driver counters as Prometheus
// metrics: connect/reconnect activity, bytes and commands on the wire,
// and command outcomes, so an embedding application can scrape driver
// health the same way it scrapes everything else.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Counters holds all Prometheus metrics for one Connection: each
// Connection creates its own Counters in mysqlconn.New. New is safe to
// call more than once since each call owns an independent registry.
type Counters struct {
	Registry *prometheus.Registry

	connectsTotal    prometheus.Counter
	reconnectsTotal  prometheus.Counter
	authFailures     *prometheus.CounterVec
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	rowsAffected     prometheus.Counter
	resultSetsOpened prometheus.Counter
	changeUserTotal  *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	closesTotal      *prometheus.CounterVec
	closeInMiddle    prometheus.Counter
}

// New creates and registers the Counters on a fresh private registry.
func New() *Counters {
	reg := prometheus.NewRegistry()

	c := &Counters{
		Registry: reg,
		connectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqlconn_connects_total",
			Help: "Total number of successful connection establishments",
		}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqlconn_reconnects_total",
			Help: "Total number of implicit reconnects performed before a fresh connect",
		}),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mysqlconn_auth_failures_total",
				Help: "Authentication failures by plugin",
			},
			[]string{"plugin"},
		),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqlconn_bytes_sent_total",
			Help: "Bytes written to the server for simple commands and COM_QUERY",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqlconn_bytes_received_total",
			Help: "Bytes read from the server in simple-command replies, result-set headers and rows",
		}),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mysqlconn_commands_total",
				Help: "Commands sent, by opcode name",
			},
			[]string{"command"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mysqlconn_command_duration_seconds",
				Help:    "Time spent writing a command packet; the wait for the reply is not included",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"command"},
		),
		rowsAffected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqlconn_rows_affected_total",
			Help: "Sum of affected_rows from COM_QUERY OK replies",
		}),
		resultSetsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqlconn_result_sets_opened_total",
			Help: "Total number of result sets a query produced",
		}),
		changeUserTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mysqlconn_change_user_total",
				Help: "COM_CHANGE_USER attempts by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mysqlconn_errors_total",
				Help: "Errors surfaced to callers, by kind",
			},
			[]string{"kind"},
		),
		closesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mysqlconn_closes_total",
				Help: "Close calls, by close reason (explicit, implicit, disconnect)",
			},
			[]string{"reason"},
		),
		closeInMiddle: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqlconn_close_in_middle_total",
			Help: "Closes that landed mid-command (query_sent/fetching_data/etc.), unable to send COM_QUIT cleanly",
		}),
	}

	reg.MustRegister(
		c.connectsTotal,
		c.reconnectsTotal,
		c.authFailures,
		c.bytesSent,
		c.bytesReceived,
		c.commandsTotal,
		c.commandDuration,
		c.rowsAffected,
		c.resultSetsOpened,
		c.changeUserTotal,
		c.errorsTotal,
		c.closesTotal,
		c.closeInMiddle,
	)

	return c
}

// Connected records a successful connect.
func (c *Counters) Connected() { c.connectsTotal.Inc() }

// Reconnected records an implicit reconnect ahead of a fresh connect
// (spec.md §4.2).
func (c *Counters) Reconnected() { c.reconnectsTotal.Inc() }

// AuthFailed records an authentication failure for the given plugin name.
func (c *Counters) AuthFailed(plugin string) { c.authFailures.WithLabelValues(plugin).Inc() }

// BytesSent adds n to the bytes-sent counter.
func (c *Counters) BytesSent(n int) { c.bytesSent.Add(float64(n)) }

// BytesReceived adds n to the bytes-received counter.
func (c *Counters) BytesReceived(n int) { c.bytesReceived.Add(float64(n)) }

// CommandSent records a command dispatch and observes seconds in the
// duration histogram. Callers pass the time spent writing the command
// packet, or 0; reply latency is not measured.
func (c *Counters) CommandSent(command string, seconds float64) {
	c.commandsTotal.WithLabelValues(command).Inc()
	c.commandDuration.WithLabelValues(command).Observe(seconds)
}

// RowsAffected adds n to the rows-affected counter.
func (c *Counters) RowsAffected(n uint64) { c.rowsAffected.Add(float64(n)) }

// ResultSetOpened records that a query produced another result set
// (spec.md §4.4, multi-statement chaining).
func (c *Counters) ResultSetOpened() { c.resultSetsOpened.Inc() }

// ChangeUserAttempted records a COM_CHANGE_USER outcome ("ok" or "error";
// the double-ERR legacy-server case counts as "error", spec.md §4.6).
func (c *Counters) ChangeUserAttempted(outcome string) {
	c.changeUserTotal.WithLabelValues(outcome).Inc()
}

// Error records an error surfaced to a caller, labeled by its Kind
// (spec.md §7).
func (c *Counters) Error(kind string) { c.errorsTotal.WithLabelValues(kind).Inc() }

// Closed records a Close call, labeled by its reason (explicit, implicit,
// disconnect) (spec.md §4.7).
func (c *Counters) Closed(reason string) { c.closesTotal.WithLabelValues(reason).Inc() }

// CloseInMiddle records a close that landed mid-command, unable to send
// COM_QUIT cleanly (spec.md §4.7).
func (c *Counters) CloseInMiddle() { c.closeInMiddle.Inc() }
