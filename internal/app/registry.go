package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/core"
	"github.com/repolink/repolink/internal/domain"
)

type peerEntry struct {
	Room   domain.RoomKey
	Handle string
	Conn   core.Conn
}

// PeerSnap is a point-in-time view of one member, safe to use after
// the registry lock is released.
type PeerSnap struct {
	ID     domain.PeerID
	Room   domain.RoomKey
	Handle string
	Conn   core.Conn
}

// Registry is the authoritative membership store: peer -> room/conn
// and room -> member set. The coordinator is its only writer. Every
// multi-step mutation (move between rooms, remove-then-reclaim) is a
// single critical section, so two concurrent leaves cannot race on
// deleting a room and a join cannot observe a half-removed peer.
type Registry struct {
	mu    sync.RWMutex
	peers map[domain.PeerID]*peerEntry
	rooms map[domain.RoomKey]map[domain.PeerID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[domain.PeerID]*peerEntry),
		rooms: make(map[domain.RoomKey]map[domain.PeerID]struct{}),
	}
}

// Add inserts the peer into room, creating the room lazily. If the
// peer already belonged to another room it is moved out of it first
// (a peer is in at most one room), and that room's remaining members
// are returned as prevMates so the caller can announce the departure.
// others is the membership of the target room before insertion.
func (r *Registry) Add(pid domain.PeerID, room domain.RoomKey, handle string, conn core.Conn) (others []PeerSnap, prevRoom domain.RoomKey, prevMates []PeerSnap) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.peers[pid]; ok && prev.Room != "" && prev.Room != room {
		r.dropFromRoomLocked(pid, prev.Room)
		prevRoom = prev.Room
		prevMates = r.membersLocked(prev.Room, pid)
	}

	others = r.membersLocked(room, pid)

	r.peers[pid] = &peerEntry{Room: room, Handle: handle, Conn: conn}
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[domain.PeerID]struct{})
		r.rooms[room] = set
	}
	set[pid] = struct{}{}

	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Str("room", string(room)).Str("handle", handle).Msg("member added")
	return others, prevRoom, prevMates
}

// Remove takes the peer out of the registry and reclaims its room if
// it was the last member. Idempotent: a second call for the same peer
// reports ok=false and changes nothing.
func (r *Registry) Remove(pid domain.PeerID) (room domain.RoomKey, handle string, remaining []PeerSnap, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found := r.peers[pid]
	if !found {
		return "", "", nil, false
	}
	delete(r.peers, pid)
	r.dropFromRoomLocked(pid, entry.Room)
	remaining = r.membersLocked(entry.Room, pid)

	log.Info().Str("module", "app.registry").Str("peer", string(pid)).Str("room", string(entry.Room)).Msg("member removed")
	return entry.Room, entry.Handle, remaining, true
}

// Find looks a peer up globally, across rooms. Used for relay target
// resolution.
func (r *Registry) Find(pid domain.PeerID) (PeerSnap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.peers[pid]
	if !ok {
		return PeerSnap{}, false
	}
	return PeerSnap{ID: pid, Room: entry.Room, Handle: entry.Handle, Conn: entry.Conn}, true
}

// RoomOf reports the room a peer currently belongs to.
func (r *Registry) RoomOf(pid domain.PeerID) (domain.RoomKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.peers[pid]
	if !ok {
		return "", false
	}
	return entry.Room, true
}

// MembersOf snapshots a room's membership, excluding except.
func (r *Registry) MembersOf(room domain.RoomKey, except domain.PeerID) []PeerSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(room, except)
}

func (r *Registry) membersLocked(room domain.RoomKey, except domain.PeerID) []PeerSnap {
	set, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]PeerSnap, 0, len(set))
	for pid := range set {
		if pid == except {
			continue
		}
		if entry, ok := r.peers[pid]; ok {
			out = append(out, PeerSnap{ID: pid, Room: room, Handle: entry.Handle, Conn: entry.Conn})
		}
	}
	return out
}

// dropFromRoomLocked removes pid from the room's member set and
// deletes the room the moment it empties. Callers hold r.mu.
func (r *Registry) dropFromRoomLocked(pid domain.PeerID, room domain.RoomKey) {
	set, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(set, pid)
	if len(set) == 0 {
		delete(r.rooms, room)
		log.Info().Str("module", "app.registry").Str("room", string(room)).Msg("empty room reclaimed")
	}
}

// RoomStat is one row of the stats snapshot.
type RoomStat struct {
	RoomID    domain.RoomKey `json:"roomId"`
	PeerCount int            `json:"peerCount"`
}

// Stats is the read-only operational snapshot.
type Stats struct {
	TotalConnections int        `json:"totalConnections"`
	TotalRooms       int        `json:"totalRooms"`
	Rooms            []RoomStat `json:"rooms"`
}

// Snapshot computes connection and room counts without side effects.
func (r *Registry) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		TotalConnections: len(r.peers),
		TotalRooms:       len(r.rooms),
		Rooms:            make([]RoomStat, 0, len(r.rooms)),
	}
	for room, set := range r.rooms {
		s.Rooms = append(s.Rooms, RoomStat{RoomID: room, PeerCount: len(set)})
	}
	sort.Slice(s.Rooms, func(i, j int) bool { return s.Rooms[i].RoomID < s.Rooms[j].RoomID })
	return s
}
