package app

import "github.com/repolink/repolink/internal/domain"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickPeer
)

// Policy decides what happens when a broadcast write to a member
// fails (full send buffer, closed connection).
type Policy interface {
	OnBackPressure(room domain.RoomKey, peer domain.PeerID) BackpressureAction
}

// DropPolicy drops the frame and keeps the member. Delivery is
// at-most-once; the heartbeat reaps connections that are actually dead.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomKey, domain.PeerID) BackpressureAction {
	return DropFrame
}

// KickPolicy evicts members that cannot keep up.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomKey, domain.PeerID) BackpressureAction {
	return KickPeer
}
