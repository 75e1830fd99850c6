// Membership
//
// Join, disconnect, and reconnect handling for a room, including host
// failover and the disconnect grace period. A player who drops is parked in
// the room's holding area for the grace period; a same-named rejoin within
// that window is a reconnection that keeps the old score and seat. Once the
// grace timer fires the entry is gone for good.

package main

import (
	"github.com/jonboulle/clockwork"
)

// join adds a player to the room, or reconnects one whose name is parked in
// the holding area. Broadcasts the updated player list on success.
func (reg *Registry) join(code, name string, c *Client) (*Room, error) {
	room, err := reg.get(code)
	if err != nil {
		return nil, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.active {
		return nil, errGameInProgress
	}

	for _, p := range room.players {
		if p.Name == name {
			return nil, errNameTaken
		}
	}

	room.lastActive = reg.clock.Now()

	player := Player{
		ConnectionID: c.connID,
		Name:         name,
	}

	// A name parked in the holding area means this is a reconnection:
	// carry the score over, void the grace timer, and restore the old seat.
	reconnected := false
	for staleID, entry := range room.disconnected {
		if entry.name != name {
			continue
		}

		player.Score = entry.score
		close(entry.cancel)
		delete(room.disconnected, staleID)

		at := entry.index
		if at > len(room.players) {
			at = len(room.players)
		}
		room.players = append(room.players, Player{})
		copy(room.players[at+1:], room.players[at:])
		room.players[at] = player

		reconnected = true
		break
	}

	if !reconnected {
		room.players = append(room.players, player)
	}

	if len(room.players) == 1 {
		room.hostConnID = c.connID
	}

	room.clients[c] = true
	room.broadcastPlayersLocked()

	if reconnected {
		logf(reg.cfg, "ROOMS: %q reconnected to room %s", name, code)
	} else {
		logf(reg.cfg, "ROOMS: %q joined room %s", name, code)
	}

	return room, nil
}

// disconnect handles a dropped connection: the player moves to the holding
// area, the host role fails over if needed, and a grace timer is armed. A
// connection that never joined a room is a no-op.
func (reg *Registry) disconnect(c *Client) {
	room := c.room
	if room == nil {
		return
	}

	room.mu.Lock()

	if room.clients[c] {
		delete(room.clients, c)
		c.closeSend()
	}

	idx := room.playerIndexLocked(c.connID)
	if idx < 0 {
		room.mu.Unlock()
		return
	}

	player := room.players[idx]
	entry := &disconnectedPlayer{
		name:           player.Name,
		score:          player.Score,
		index:          idx,
		disconnectedAt: reg.clock.Now(),
		cancel:         make(chan struct{}),
	}
	room.disconnected[c.connID] = entry

	room.players = append(room.players[:idx], room.players[idx+1:]...)
	delete(room.pendingAnswers, c.connID)

	if room.hostConnID == c.connID && len(room.players) > 0 {
		room.hostConnID = room.players[0].ConnectionID
		logf(reg.cfg, "ROOMS: Host of room %s left, promoted %q", room.code, room.players[0].Name)
	}

	room.lastActive = reg.clock.Now()
	room.broadcastPlayersLocked()

	// Armed while still holding the lock so callers observing the
	// disconnect can immediately advance a fake clock past it.
	timer := reg.clock.NewTimer(reg.cfg.gracePeriod)
	room.mu.Unlock()

	logf(reg.cfg, "ROOMS: %q disconnected from room %s", player.Name, room.code)

	go func() {
		select {
		case <-timer.Chan():
			reg.expireGrace(room, c.connID)
		case <-entry.cancel:
			stopAndDrainTimer(timer)
		}
	}()
}

// expireGrace permanently discards a holding-area entry whose grace period
// elapsed. If that leaves the room with nobody at all, the room is deleted;
// otherwise the player list is re-broadcast so clients converge even if they
// missed the earlier update.
func (reg *Registry) expireGrace(room *Room, staleID string) {
	if !reg.contains(room) {
		return
	}

	room.mu.Lock()

	entry, ok := room.disconnected[staleID]
	if !ok {
		room.mu.Unlock()
		return
	}
	delete(room.disconnected, staleID)

	empty := len(room.players) == 0 && len(room.disconnected) == 0
	if !empty {
		room.broadcastPlayersLocked()
	}
	room.mu.Unlock()

	logf(reg.cfg, "ROOMS: Dropped %q from room %s after grace period", entry.name, room.code)

	if empty {
		reg.deleteRoom(room)
	}
}

// stopAndDrainTimer safely stops a timer, draining its channel if it already
// fired so the value cannot be mistaken for a live expiry later.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
