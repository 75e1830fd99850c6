// Room registry
//
// Registry is the single owned store mapping room codes to rooms. It is
// injectable so tests can run several independent registries side by side;
// nothing in here is process-global. All timer work (round clock, grace
// periods, idle sweep) goes through the injected clockwork.Clock so tests
// can drive it with a fake clock.

package main

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	cfg       *Config
	clock     clockwork.Clock
	questions QuestionSource
}

func newRegistry(cfg *Config, clock clockwork.Clock, questions QuestionSource) *Registry {
	reg := &Registry{
		rooms:     make(map[string]*Room),
		cfg:       cfg,
		clock:     clock,
		questions: questions,
	}
	if cfg.roomTimeout > 0 {
		go reg.reaperLoop()
	}
	return reg
}

// createRoom registers a new room under code with the creator as its only
// player and host. Fails if the code is already taken.
func (reg *Registry) createRoom(code, hostName string, c *Client) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[code]; exists {
		return nil, errRoomExists
	}

	room := newRoom(code, reg.clock.Now())
	room.players = []Player{{
		ConnectionID: c.connID,
		Name:         hostName,
	}}
	room.hostConnID = c.connID
	room.clients[c] = true

	// Not yet visible to any other goroutine, so no room lock needed.
	room.sendToLocked(c, RoomCreatedMessage{Type: "room_created", RoomID: code})
	room.broadcastPlayersLocked()

	reg.rooms[code] = room

	logf(reg.cfg, "ROOMS: %q created room %s", hostName, code)

	return room, nil
}

func (reg *Registry) get(code string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	if !ok {
		return nil, errRoomNotFound
	}
	return room, nil
}

// contains reports whether room is still the registered room for its code.
// Timer callbacks check this before acting, since they may fire against a
// room that was already reaped.
func (reg *Registry) contains(room *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return reg.rooms[room.code] == room
}

// deleteRoom removes the room from the registry and tears it down. Only the
// reaping policies call this; clients never delete rooms directly.
func (reg *Registry) deleteRoom(room *Room) {
	reg.mu.Lock()
	if reg.rooms[room.code] != room {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, room.code)
	reg.mu.Unlock()

	room.closeAll()

	logf(reg.cfg, "ROOMS: Deleted room %s", room.code)
}

// reaperLoop periodically removes rooms that have seen no activity for
// longer than the configured room timeout.
func (reg *Registry) reaperLoop() {
	ticker := reg.clock.NewTicker(reg.cfg.roomTimeout / 2)
	for range ticker.Chan() {
		cutoff := reg.clock.Now().Add(-reg.cfg.roomTimeout)

		reg.mu.Lock()
		stale := make([]*Room, 0)
		for _, room := range reg.rooms {
			room.mu.Lock()
			last := room.lastActive
			room.mu.Unlock()

			if last.Before(cutoff) {
				stale = append(stale, room)
			}
		}
		reg.mu.Unlock()

		for _, room := range stale {
			reg.deleteRoom(room)
		}
	}
}
