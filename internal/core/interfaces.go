package core

import (
	"context"
	"encoding/json"

	"github.com/repolink/repolink/internal/domain"
)

// Frame is a marshaled signal ready for transport.
type Frame []byte

// Conn abstracts one peer's outbound channel. The WebSocket binding
// backs it with a buffered send channel; the polling binding backs it
// with the durable signal queue. Owned by the adapter that created it;
// the adapter must Close() it.
type Conn interface {
	TrySend(Frame) error
	Close()
}

// UserStore resolves bearer credentials against the external
// user/approval store.
type UserStore interface {
	// ResolveByToken returns nil (and no error) when the token maps to
	// no known user.
	ResolveByToken(ctx context.Context, token string) (*domain.User, error)
}

// AccessVerifier answers whether a credential may join a room.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string, room domain.RoomKey) (bool, error)
}

// RoomLog records joins and leaves in the external store. Calls are
// best-effort: failures are logged, never surfaced to the client.
type RoomLog interface {
	RecordJoin(ctx context.Context, room domain.RoomKey, handle string) error
	RecordLeave(ctx context.Context, room domain.RoomKey, handle string) error
}

// SignalQueue is the durable per-peer inbox backing the polling
// transport. Undelivered frames are held until drained or cleared.
type SignalQueue interface {
	Enqueue(peer domain.PeerID, frame Frame) error
	DrainFor(peer domain.PeerID) []json.RawMessage
	Touch(peer domain.PeerID)
	ClearFor(peer domain.PeerID)
}
