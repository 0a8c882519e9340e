package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/core"
	"github.com/repolink/repolink/internal/domain"
)

const sideCallTimeout = 5 * time.Second

// Coordinator drives the join/authenticate/authorize protocol, relays
// point-to-point signals, broadcasts room events and cleans up on
// leave. It is the single writer of the Registry; both transport
// bindings call into the same instance.
type Coordinator struct {
	Registry   *Registry
	Users      core.UserStore
	Access     core.AccessVerifier
	RoomLog    core.RoomLog
	Policy     Policy
	ICEServers []webrtc.ICEServer
}

// JoinResult doubles as the welcome message sent to the joining peer.
// The transport binding fills Type ("joined" over WebSocket,
// "connected" over polling) before marshalling.
type JoinResult struct {
	Type       string             `json:"type"`
	PeerID     domain.PeerID      `json:"peerId"`
	Handle     string             `json:"githubHandle"`
	Peers      []domain.PeerInfo  `json:"peers"`
	ICEServers []webrtc.ICEServer `json:"iceServers,omitempty"`

	Room domain.RoomKey `json:"-"`
}

type peerEvent struct {
	Type   string        `json:"type"`
	PeerID domain.PeerID `json:"peerId"`
	Handle string        `json:"githubHandle"`
}

// Join authenticates the credential, authorizes repository access and
// inserts the peer into the room. Missing fields are non-fatal; any
// identity or authorization failure is fatal and must close the
// connection. If the peer was already in another room it is moved and
// the old room is told it left.
func (c *Coordinator) Join(ctx context.Context, pid domain.PeerID, conn core.Conn, token, repoURL string) (*JoinResult, *core.ProtoError) {
	if token == "" || repoURL == "" {
		return nil, core.NonFatal(core.MsgMissingFields)
	}

	user, err := c.Users.ResolveByToken(ctx, token)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("user store failed")
		return nil, core.Fatal(core.MsgInvalidToken)
	}
	if user == nil {
		return nil, core.Fatal(core.MsgInvalidToken)
	}
	if !user.Approved() {
		return nil, &core.ProtoError{Message: core.MsgNotApproved, Status: user.Status, Fatal: true}
	}

	room, err := domain.NormalizeRepo(repoURL)
	if err != nil {
		// Malformed identities surface as an access denial, not a
		// registry error.
		return nil, core.Fatal(core.MsgNoRepoAccess)
	}

	allowed, err := c.Access.VerifyAccess(ctx, token, room)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("room", string(room)).Msg("access verifier failed")
		return nil, core.Fatal(core.MsgNoRepoAccess)
	}
	if !allowed {
		return nil, core.Fatal(core.MsgNoRepoAccess)
	}

	others, prevRoom, prevMates := c.Registry.Add(pid, room, user.Handle, conn)
	if prevRoom != "" {
		c.recordLeave(prevRoom, user.Handle)
		c.fanOut(prevRoom, prevMates, c.marshal(peerEvent{Type: core.TypePeerLeft, PeerID: pid, Handle: user.Handle}))
	}
	c.recordJoin(room, user.Handle)

	peers := make([]domain.PeerInfo, 0, len(others))
	for _, snap := range others {
		peers = append(peers, domain.PeerInfo{PeerID: snap.ID, Handle: snap.Handle})
	}

	log.Info().Str("module", "app.coordinator").Str("peer", string(pid)).Str("room", string(room)).Str("handle", user.Handle).Msg("peer joined")
	return &JoinResult{
		PeerID:     pid,
		Handle:     user.Handle,
		Peers:      peers,
		ICEServers: c.ICEServers,
		Room:       room,
	}, nil
}

// AnnounceJoin broadcasts "peer-joined" to the rest of the peer's
// room. Called by the binding after the welcome reply has been issued,
// so the new peer hears about the room before the room hears about it.
func (c *Coordinator) AnnounceJoin(pid domain.PeerID) {
	snap, ok := c.Registry.Find(pid)
	if !ok {
		return
	}
	frame := c.marshal(peerEvent{Type: core.TypePeerJoined, PeerID: pid, Handle: snap.Handle})
	c.fanOut(snap.Room, c.Registry.MembersOf(snap.Room, pid), frame)
}

// Leave removes the peer, reclaims its room if emptied and broadcasts
// "peer-left" to whoever remains. Explicit leave, transport close and
// inactivity eviction all funnel here; the second call for the same
// peer is a no-op, so close-after-leave never double-broadcasts.
func (c *Coordinator) Leave(pid domain.PeerID) bool {
	room, handle, remaining, ok := c.Registry.Remove(pid)
	if !ok {
		return false
	}
	c.recordLeave(room, handle)
	c.fanOut(room, remaining, c.marshal(peerEvent{Type: core.TypePeerLeft, PeerID: pid, Handle: handle}))
	log.Info().Str("module", "app.coordinator").Str("peer", string(pid)).Str("room", string(room)).Msg("peer left")
	return true
}

// Relay forwards a signal to the peer named in sig.To, stamping From
// with the sender's identity (a client-supplied From is never
// trusted). Only registered senders get relay service, so a connection
// that never completed join cannot inject frames. Delivery is
// at-most-once: a failed write drops the frame.
func (c *Coordinator) Relay(from domain.PeerID, sig core.Signal) *core.ProtoError {
	if _, ok := c.Registry.Find(from); !ok {
		return core.NonFatal(core.MsgUnknownPeer)
	}
	target, ok := c.Registry.Find(domain.PeerID(sig.To))
	if !ok {
		return core.NonFatal(core.MsgTargetNotFound)
	}
	out := core.Signal{Type: sig.Type, From: string(from), Data: sig.Data}
	if err := target.Conn.TrySend(c.marshal(out)); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("from", string(from)).Str("to", sig.To).Msg("relay dropped")
	}
	return nil
}

// Evict force-removes a peer: the registry entry goes away, the room
// hears "peer-left" and the transport handle is closed so the client
// is not left half-open waiting for the heartbeat to notice.
func (c *Coordinator) Evict(pid domain.PeerID) {
	snap, ok := c.Registry.Find(pid)
	if !ok {
		return
	}
	c.Leave(pid)
	snap.Conn.Close()
}

// Stats snapshots connection and room counts. Read-only, no I/O.
func (c *Coordinator) Stats() Stats {
	return c.Registry.Snapshot()
}

func (c *Coordinator) fanOut(room domain.RoomKey, members []PeerSnap, frame core.Frame) {
	for _, m := range members {
		if err := m.Conn.TrySend(frame); err == nil {
			continue
		}
		log.Warn().Str("module", "app.coordinator").Str("peer", string(m.ID)).Str("room", string(room)).Msg("broadcast write failed")
		if c.Policy != nil && c.Policy.OnBackPressure(room, m.ID) == KickPeer {
			c.Evict(m.ID)
		}
	}
}

// recordJoin/recordLeave notify the external store off the hot path.
// Failures are logged and swallowed: side calls never block or fail
// the protocol response.
func (c *Coordinator) recordJoin(room domain.RoomKey, handle string) {
	if c.RoomLog == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideCallTimeout)
		defer cancel()
		if err := c.RoomLog.RecordJoin(ctx, room, handle); err != nil {
			log.Warn().Err(err).Str("module", "app.coordinator").Str("room", string(room)).Msg("record join failed")
		}
	}()
}

func (c *Coordinator) recordLeave(room domain.RoomKey, handle string) {
	if c.RoomLog == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideCallTimeout)
		defer cancel()
		if err := c.RoomLog.RecordLeave(ctx, room, handle); err != nil {
			log.Warn().Err(err).Str("module", "app.coordinator").Str("room", string(room)).Msg("record leave failed")
		}
	}()
}

func (c *Coordinator) marshal(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("marshal frame")
		return nil
	}
	return b
}
