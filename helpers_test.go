package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		gracePeriod:   60 * time.Second,
		roundDuration: 15 * time.Second,
		roundPause:    5 * time.Second,
	}
}

// stubSource hands out copies of a canned question, or a canned error.
type stubSource struct {
	mu    sync.Mutex
	q     Question
	err   error
	calls int
}

func (s *stubSource) FetchQuestion(_ context.Context) (*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	q := s.q
	q.IncorrectAnswers = append([]string(nil), s.q.IncorrectAnswers...)
	return &q, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func sampleQuestion() Question {
	return Question{
		Category:         "General Knowledge",
		Type:             "multiple",
		Difficulty:       "easy",
		Question:         "Which planet is closest to the sun?",
		CorrectAnswer:    "Mercury",
		IncorrectAnswers: []string{"Venus", "Mars", "Jupiter"},
	}
}

func newTestRegistry(cfg *Config, source QuestionSource) (*Registry, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return newRegistry(cfg, clock, source), clock
}

// newTestClient builds a client with no websocket behind it; unit tests read
// broadcasts straight off the send channel.
func newTestClient(connID string) *Client {
	return &Client{
		send:   make(chan any, 64),
		connID: connID,
	}
}

// drain empties a client's send buffer and returns everything that was in it.
func drain(c *Client) []any {
	var msgs []any
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func messagesOfType[T any](msgs []any) []T {
	var out []T
	for _, msg := range msgs {
		if typed, ok := msg.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func lastPlayersUpdate(t *testing.T, msgs []any) PlayersUpdateMessage {
	t.Helper()

	updates := messagesOfType[PlayersUpdateMessage](msgs)
	require.NotEmpty(t, updates, "expected at least one players_update")
	return updates[len(updates)-1]
}

// stepClock advances the fake clock one second at a time, yielding between
// steps so timer goroutines get a chance to run.
func stepClock(clock *clockwork.FakeClock, seconds int) {
	for i := 0; i < seconds; i++ {
		clock.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}
}
