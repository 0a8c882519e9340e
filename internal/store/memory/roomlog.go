package memory

import (
	"context"
	"sync"
	"time"

	"github.com/repolink/repolink/internal/domain"
)

// RoomLog keeps the join history the external store would hold.
type RoomLog struct {
	mu    sync.Mutex
	rooms map[domain.RoomKey]map[string]time.Time
}

func NewRoomLog() *RoomLog {
	return &RoomLog{rooms: make(map[domain.RoomKey]map[string]time.Time)}
}

func (l *RoomLog) RecordJoin(_ context.Context, room domain.RoomKey, handle string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.rooms[room]
	if !ok {
		set = make(map[string]time.Time)
		l.rooms[room] = set
	}
	set[handle] = time.Now()
	return nil
}

func (l *RoomLog) RecordLeave(_ context.Context, room domain.RoomKey, handle string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if set, ok := l.rooms[room]; ok {
		delete(set, handle)
		if len(set) == 0 {
			delete(l.rooms, room)
		}
	}
	return nil
}

// Handles lists recorded members of a room.
func (l *RoomLog) Handles(room domain.RoomKey) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.rooms[room]))
	for h := range l.rooms[room] {
		out = append(out, h)
	}
	return out
}
