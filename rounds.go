// Round state machine
//
// Idle → InRound → Scoring → (InRound | Idle). Once the host starts the game
// the cadence is timer-chained: each round runs for the configured duration
// (or ends early once every player has answered), scores are applied, and
// after a short pause the next round starts on its own. Every transition
// voids any previously armed timer for the room, so a stale expiry can never
// end a round twice.

package main

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const pointsPerCorrect = 10

// startGame begins the first round. Only the host may start, and only from
// the idle state.
func (reg *Registry) startGame(code string, c *Client) error {
	room, err := reg.get(code)
	if err != nil {
		return err
	}

	room.mu.Lock()

	if c.connID != room.hostConnID {
		room.mu.Unlock()
		return errNotHost
	}
	if room.active {
		room.mu.Unlock()
		return errAlreadyStarted
	}

	room.active = true
	room.lastActive = reg.clock.Now()
	room.broadcastLocked(GameStartedMessage{Type: "game_started"})
	room.mu.Unlock()

	logf(reg.cfg, "ROOMS: Game started in room %s", code)

	reg.startRound(room)

	return nil
}

// startRound fetches a question and broadcasts it with a shuffled answer
// order, then arms the round clock. A fetch failure stalls the round for the
// whole room: the room stays active but without a question, and no retry is
// scheduled. A room that lost all its players goes back to idle instead.
func (reg *Registry) startRound(room *Room) {
	if !reg.contains(room) {
		return
	}

	room.mu.Lock()
	if !room.active {
		room.mu.Unlock()
		return
	}
	if len(room.players) == 0 {
		room.active = false
		room.currentQuestion = nil
		room.mu.Unlock()
		return
	}
	room.pendingAnswers = make(map[string]string)
	room.mu.Unlock()

	question, err := reg.questions.FetchQuestion(context.Background())

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.active {
		return
	}

	room.lastActive = reg.clock.Now()

	if err != nil {
		logf(reg.cfg, "ROOMS: Question fetch failed for room %s: %v", room.code, err)
		room.broadcastLocked(ErrorMessage{Type: "error", Message: errQuestionFetch.Error()})
		return
	}

	room.currentQuestion = question
	room.broadcastLocked(NewQuestionMessage{
		Type:     "new_question",
		Question: question,
		Answers:  question.shuffledAnswers(),
	})

	cancel := make(chan struct{})
	room.cancelRound = cancel

	timer := reg.clock.NewTimer(reg.cfg.roundDuration)
	ticker := reg.clock.NewTicker(time.Second)

	go reg.runRoundClock(room, timer, ticker, cancel)

	logf(reg.cfg, "ROOMS: New question in room %s (%s, %s)", room.code, question.Category, question.Difficulty)
}

// runRoundClock owns the round's timers: the authoritative expiry timer and
// the advisory per-second countdown broadcast.
func (reg *Registry) runRoundClock(room *Room, timer clockwork.Timer, ticker clockwork.Ticker, cancel chan struct{}) {
	defer ticker.Stop()

	remaining := int(reg.cfg.roundDuration / time.Second)

	for {
		select {
		case <-ticker.Chan():
			remaining--
			if remaining > 0 {
				room.mu.Lock()
				room.broadcastLocked(TimeUpdateMessage{Type: "time_update", Time: remaining})
				room.mu.Unlock()
			}
		case <-timer.Chan():
			room.mu.Lock()
			// A cancellation can race the expiry; only the clock that
			// still owns the round may end it.
			if room.cancelRound == cancel {
				reg.endRoundLocked(room)
			}
			room.mu.Unlock()
			return
		case <-cancel:
			stopAndDrainTimer(timer)
			return
		}
	}
}

// submitAnswer records a player's answer for the active question. First
// answer wins; repeats are ignored. Once every current player has answered,
// the round ends immediately rather than waiting out the clock.
func (reg *Registry) submitAnswer(code string, c *Client, answer string) {
	room, err := reg.get(code)
	if err != nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.active || room.currentQuestion == nil {
		return
	}
	if _, answered := room.pendingAnswers[c.connID]; answered {
		return
	}
	if room.playerIndexLocked(c.connID) < 0 {
		return
	}

	room.pendingAnswers[c.connID] = answer
	room.lastActive = reg.clock.Now()

	if room.allAnsweredLocked() {
		reg.endRoundLocked(room)
	}
}

// endRoundLocked scores the round, reveals the answer, and arms the pause
// timer that chains into the next round. A nil currentQuestion means the
// round already ended, so a late timer expiry is a no-op.
func (reg *Registry) endRoundLocked(room *Room) {
	question := room.currentQuestion
	if question == nil {
		return
	}

	room.cancelRoundLocked()

	for i := range room.players {
		if room.pendingAnswers[room.players[i].ConnectionID] == question.CorrectAnswer {
			room.players[i].Score += pointsPerCorrect
		}
	}

	room.broadcastLocked(QuestionEndMessage{
		Type:          "question_end",
		CorrectAnswer: question.CorrectAnswer,
	})
	room.broadcastPlayersLocked()

	room.currentQuestion = nil
	room.lastActive = reg.clock.Now()

	cancel := make(chan struct{})
	room.cancelPause = cancel

	timer := reg.clock.NewTimer(reg.cfg.roundPause)

	go func() {
		select {
		case <-timer.Chan():
			room.mu.Lock()
			room.cancelPause = nil
			room.mu.Unlock()
			reg.startRound(room)
		case <-cancel:
			stopAndDrainTimer(timer)
		}
	}()

	logf(reg.cfg, "ROOMS: Round over in room %s, answer was %q", room.code, question.CorrectAnswer)
}
