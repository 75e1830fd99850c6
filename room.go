package main

import (
	"sync"
	"time"
)

// Player is one active participant in a room. ConnectionID is the current
// transport identity and changes across reconnects; Name is the stable
// identity used to match a rejoining player to their old seat.
type Player struct {
	ConnectionID string `json:"id"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
}

// disconnectedPlayer is a holding-area entry for a player whose connection
// dropped. It remembers the seat index so a reconnect can restore the
// player's original position in the list.
type disconnectedPlayer struct {
	name           string
	score          int
	index          int
	disconnectedAt time.Time
	cancel         chan struct{} // closed on reconnect to void the grace timer
}

// Room is one isolated game session keyed by a caller-chosen code.
type Room struct {
	code string

	mu sync.Mutex

	clients map[*Client]bool

	hostConnID   string
	players      []Player
	disconnected map[string]*disconnectedPlayer // keyed by the stale connection ID

	active          bool
	currentQuestion *Question
	pendingAnswers  map[string]string

	lastActive time.Time

	cancelRound chan struct{}
	cancelPause chan struct{}
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		code:           code,
		clients:        make(map[*Client]bool),
		disconnected:   make(map[string]*disconnectedPlayer),
		pendingAnswers: make(map[string]string),
		lastActive:     now,
	}
}

// broadcastLocked fans msg out to every connection in the room. Clients whose
// send buffer is full are evicted rather than allowed to stall the room.
func (r *Room) broadcastLocked(msg any) {
	for client := range r.clients {
		if !client.trySend(msg) {
			delete(r.clients, client)
			client.closeSend()
		}
	}
}

// sendToLocked delivers msg to a single connection, with the same eviction
// rule as broadcastLocked.
func (r *Room) sendToLocked(c *Client, msg any) {
	if !r.clients[c] {
		return
	}

	if !c.trySend(msg) {
		delete(r.clients, c)
		c.closeSend()
	}
}

func (r *Room) playerListLocked() []Player {
	players := make([]Player, len(r.players))
	copy(players, r.players)
	return players
}

func (r *Room) broadcastPlayersLocked() {
	r.broadcastLocked(PlayersUpdateMessage{
		Type:    "players_update",
		Players: r.playerListLocked(),
	})
}

func (r *Room) playerIndexLocked(connID string) int {
	for i, p := range r.players {
		if p.ConnectionID == connID {
			return i
		}
	}
	return -1
}

// allAnsweredLocked reports whether every current player has a recorded
// answer for the active question.
func (r *Room) allAnsweredLocked() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if _, ok := r.pendingAnswers[p.ConnectionID]; !ok {
			return false
		}
	}
	return true
}

// cancelRoundLocked voids any in-flight round timer so a stale expiry can
// never end a round twice.
func (r *Room) cancelRoundLocked() {
	if r.cancelRound != nil {
		close(r.cancelRound)
		r.cancelRound = nil
	}
}

func (r *Room) cancelPauseLocked() {
	if r.cancelPause != nil {
		close(r.cancelPause)
		r.cancelPause = nil
	}
}

// closeAll disconnects all clients of this room (used by the reaper and
// room deletion).
func (r *Room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelRoundLocked()
	r.cancelPauseLocked()
	r.currentQuestion = nil
	r.active = false

	for c := range r.clients {
		c.closeSend()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(r.clients, c)
	}
}
