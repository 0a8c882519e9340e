// Package poll is the request/response transport binding for clients
// that cannot hold a persistent connection. Outbound frames for a
// polling peer are parked in the durable signal queue and drained on
// the next poll, so relays and broadcasts reach polling peers through
// the same coordinator paths as websocket peers.
package poll

import (
	"github.com/repolink/repolink/internal/core"
	"github.com/repolink/repolink/internal/domain"
)

// queueConn adapts the signal queue to core.Conn. "Sending" to a
// polling peer means enqueueing until it polls.
type queueConn struct {
	pid   domain.PeerID
	queue core.SignalQueue
}

func (c *queueConn) TrySend(f core.Frame) error {
	return c.queue.Enqueue(c.pid, f)
}

func (c *queueConn) Close() {
	c.queue.ClearFor(c.pid)
}
