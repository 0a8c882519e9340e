package domain

import "github.com/google/uuid"

// PeerID identifies one live connection. Assigned by the server at
// accept time; clients never pick their own.
type PeerID string

// NewPeerID returns an identifier unique among live peers. UUIDv4
// gives 122 bits of entropy, so collisions are not a practical concern.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// PeerInfo is the read-only view of a room member sent to clients.
type PeerInfo struct {
	PeerID PeerID `json:"peerId"`
	Handle string `json:"githubHandle"`
}
