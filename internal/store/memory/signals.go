package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/core"
	"github.com/repolink/repolink/internal/domain"
)

// maxQueued bounds the per-peer inbox. A polling peer that never
// drains does not get to grow memory without limit.
const maxQueued = 256

var ErrQueueFull = errors.New("signal queue full")

// SignalQueue is the durable inbox for polling peers, plus their
// liveness timestamps. Only polling activity (join, poll, send)
// touches liveness, so the inactivity sweep never evicts websocket
// peers: those are reaped by the heartbeat instead.
type SignalQueue struct {
	mu     sync.Mutex
	queues map[domain.PeerID][]json.RawMessage
	seen   map[domain.PeerID]time.Time
}

func NewSignalQueue() *SignalQueue {
	return &SignalQueue{
		queues: make(map[domain.PeerID][]json.RawMessage),
		seen:   make(map[domain.PeerID]time.Time),
	}
}

func (q *SignalQueue) Enqueue(peer domain.PeerID, frame core.Frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queues[peer]) >= maxQueued {
		return ErrQueueFull
	}
	q.queues[peer] = append(q.queues[peer], json.RawMessage(frame))
	return nil
}

// DrainFor hands over everything queued for the peer and empties its
// inbox. Signals are delivered at-least-until-consumed: they survive
// here until this call.
func (q *SignalQueue) DrainFor(peer domain.PeerID) []json.RawMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queues[peer]
	delete(q.queues, peer)
	return out
}

func (q *SignalQueue) Touch(peer domain.PeerID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[peer] = time.Now()
}

func (q *SignalQueue) ClearFor(peer domain.PeerID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, peer)
	delete(q.seen, peer)
}

// Stale returns peers with no activity inside the window.
func (q *SignalQueue) Stale(window time.Duration) []domain.PeerID {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var out []domain.PeerID
	for pid, last := range q.seen {
		if last.Before(cutoff) {
			out = append(out, pid)
		}
	}
	return out
}

// Sweep periodically evicts peers that stopped polling. evict is the
// coordinator's Leave, so stale polling peers go through the same
// cleanup and "peer-left" broadcast as a dropped websocket.
func (q *SignalQueue) Sweep(ctx context.Context, interval, window time.Duration, evict func(domain.PeerID)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pid := range q.Stale(window) {
				log.Info().Str("module", "store.memory").Str("peer", string(pid)).Msg("evicting stale polling peer")
				evict(pid)
				q.ClearFor(pid)
			}
		}
	}
}
