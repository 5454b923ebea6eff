package mysqlconn

import (
	"time"

	"github.com/mysqlconn/mysqlconn/internal/netpoll"
)

// Poll implements the readiness multiplexer (spec.md §4.8). It partitions
// readSet into handles already ineligible to poll (state ≤ ready, or
// quit_sent) and pollable handles, polls the pollable ones for up to
// timeout, and returns the handles whose descriptor became ready plus the
// ones that were never eligible.
func Poll(readSet, exceptSet []*Connection, timeout time.Duration) (ready, exceptReady, notPolled []*Connection, err error) {
	readHandles := make([]netpoll.Handle, len(readSet))
	for i, c := range readSet {
		readHandles[i] = pollHandle{conn: c}
	}
	exceptHandles := make([]netpoll.Handle, len(exceptSet))
	for i, c := range exceptSet {
		exceptHandles[i] = pollHandle{conn: c}
	}

	readyRead, readyExcept, skipped, err := netpoll.Poll(readHandles, exceptHandles, timeout)
	if err != nil {
		return nil, nil, nil, err
	}

	return unwrapHandles(readyRead), unwrapHandles(readyExcept), unwrapHandles(skipped), nil
}

func unwrapHandles(handles []netpoll.Handle) []*Connection {
	out := make([]*Connection, 0, len(handles))
	for _, h := range handles {
		if ph, ok := h.(pollHandle); ok {
			out = append(out, ph.conn)
		}
	}
	return out
}
