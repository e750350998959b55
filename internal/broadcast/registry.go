package broadcast

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Channel is the outbound capability the registry needs from one
// connected client. The transport owns serialization.
type Channel interface {
	Send(ctx context.Context, event any) error
}

// Registry tracks which channels belong to which room and fans events
// out to all of them. Delivery is best-effort per recipient: a broken
// channel never aborts delivery to the others, and registry state is
// only mutated through Connect/Disconnect.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Channel]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[Channel]struct{})}
}

// Connect registers ch under room.
func (r *Registry) Connect(room string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Channel]struct{})
		r.rooms[room] = members
	}
	members[ch] = struct{}{}
}

// Disconnect removes ch from room, dropping the room entry once empty.
func (r *Registry) Disconnect(room string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, ch)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Broadcast delivers event to every channel registered under room at
// the moment of the call. Send failures are logged and swallowed.
func (r *Registry) Broadcast(ctx context.Context, room string, event any) {
	r.mu.RLock()
	targets := make([]Channel, 0, len(r.rooms[room]))
	for ch := range r.rooms[room] {
		targets = append(targets, ch)
	}
	r.mu.RUnlock()

	for _, ch := range targets {
		if err := ch.Send(ctx, event); err != nil {
			log.Debug().Err(err).Str("room", room).Msg("dropping undeliverable broadcast")
		}
	}
}

// RoomSize reports the current number of channels in a room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
