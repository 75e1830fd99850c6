// Session gateway
//
// Translates each inbound websocket message into exactly one registry call
// and fans resulting broadcasts back out to the room. Failures of a client's
// own action go back to that client alone as a human-readable "error"
// message; only a question fetch failure is broadcast room-wide, since it
// stalls the round for everyone. Broadcasts are at-least-once; clients must
// treat repeated identical updates as idempotent.

package main

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientMessage covers every inbound event type.
type ClientMessage struct {
	Type       string `json:"type"`                 // "create_room", "join_room", "start_game", "submit_answer"
	RoomID     string `json:"roomId,omitempty"`     // all types
	PlayerName string `json:"playerName,omitempty"` // create_room / join_room
	Answer     string `json:"answer,omitempty"`     // submit_answer
}

// Messages sent to clients
type RoomCreatedMessage struct {
	Type   string `json:"type"` // "room_created"
	RoomID string `json:"roomId"`
}

type PlayersUpdateMessage struct {
	Type    string   `json:"type"` // "players_update"
	Players []Player `json:"players"`
}

type GameStartedMessage struct {
	Type string `json:"type"` // "game_started"
}

type NewQuestionMessage struct {
	Type     string    `json:"type"` // "new_question"
	Question *Question `json:"question"`
	Answers  []string  `json:"answers"` // shuffled presentation order
}

type TimeUpdateMessage struct {
	Type string `json:"type"` // "time_update"
	Time int    `json:"time"` // seconds remaining, advisory only
}

type QuestionEndMessage struct {
	Type          string `json:"type"` // "question_end"
	CorrectAnswer string `json:"correctAnswer"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string
	room   *Room // set once the connection creates or joins a room

	// send is closed from several goroutines (read pump, room teardown,
	// slow-client eviction), so every send and close goes through mu.
	mu     sync.Mutex
	closed bool
}

// trySend queues msg for the write pump. Reports false if the client is
// already closed or its buffer is full, in which case the caller may evict.
func (c *Client) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend shuts down the write pump. Safe to call more than once and
// concurrently with trySend.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(reg *Registry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, 8),
			connID: uuid.NewString(),
		}

		go client.writePump()
		client.readPump(reg)
	}
}

// sendError targets a failure message at this connection only. Used before
// the client belongs to a room, or when its own action was rejected.
func (c *Client) sendError(err error) {
	c.trySend(ErrorMessage{Type: "error", Message: err.Error()})
}

func (c *Client) readPump(reg *Registry) {
	defer func() {
		reg.disconnect(c)
		c.closeSend()
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.dispatch(reg, msg)
	}
}

// dispatch maps one inbound event to one registry call.
func (c *Client) dispatch(reg *Registry, msg ClientMessage) {
	switch msg.Type {
	case "create_room":
		if msg.RoomID == "" || msg.PlayerName == "" || c.room != nil {
			return
		}
		room, err := reg.createRoom(msg.RoomID, msg.PlayerName, c)
		if err != nil {
			c.sendError(err)
			return
		}
		c.room = room

	case "join_room":
		if msg.RoomID == "" || msg.PlayerName == "" || c.room != nil {
			return
		}
		room, err := reg.join(msg.RoomID, msg.PlayerName, c)
		if err != nil {
			c.sendError(err)
			return
		}
		c.room = room

	case "start_game":
		if err := reg.startGame(msg.RoomID, c); err != nil {
			c.sendError(err)
		}

	case "submit_answer":
		reg.submitAnswer(msg.RoomID, c, msg.Answer)

	default:
		// ignore unknown types
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
