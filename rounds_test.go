package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StartGame_Guards(t *testing.T) {
	reg, _ := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")

	_, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	_, err = reg.join("ABC123", "Bob", bob)
	require.NoError(t, err)

	err = reg.startGame("ABC123", bob)
	assert.ErrorIs(t, err, errNotHost)

	err = reg.startGame("NOPE", alice)
	assert.ErrorIs(t, err, errRoomNotFound)

	require.NoError(t, reg.startGame("ABC123", alice))

	err = reg.startGame("ABC123", alice)
	assert.ErrorIs(t, err, errAlreadyStarted)
}

func TestRegistry_StartGame_BroadcastsQuestion(t *testing.T) {
	reg, _ := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	_, err = reg.join("ABC123", "Bob", bob)
	require.NoError(t, err)
	drain(alice)
	drain(bob)

	require.NoError(t, reg.startGame("ABC123", alice))

	for _, c := range []*Client{alice, bob} {
		msgs := drain(c)

		started := messagesOfType[GameStartedMessage](msgs)
		require.Len(t, started, 1)

		questions := messagesOfType[NewQuestionMessage](msgs)
		require.Len(t, questions, 1)
		assert.Equal(t, "Mercury", questions[0].Question.CorrectAnswer)
		assert.ElementsMatch(t, []string{"Mercury", "Venus", "Mars", "Jupiter"}, questions[0].Answers)
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.True(t, room.active)
	require.NotNil(t, room.currentQuestion)
	assert.Empty(t, room.pendingAnswers)
}

func TestRegistry_StartRound_FetchFailureStallsRoom(t *testing.T) {
	source := &stubSource{err: errQuestionFetch}
	reg, clock := newTestRegistry(testConfig(), source)

	alice := newTestClient("conn-alice")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)
	drain(alice)

	require.NoError(t, reg.startGame("ABC123", alice))

	msgs := drain(alice)
	failures := messagesOfType[ErrorMessage](msgs)
	require.Len(t, failures, 1, "fetch failure is broadcast room-wide")
	assert.Equal(t, "Failed to fetch question", failures[0].Message)
	assert.Empty(t, messagesOfType[NewQuestionMessage](msgs))

	room.mu.Lock()
	assert.True(t, room.active, "room stays active, just without a question")
	assert.Nil(t, room.currentQuestion)
	room.mu.Unlock()

	// No automatic retry: time passing changes nothing.
	stepClock(clock, 30)
	assert.Equal(t, 1, source.callCount())
}

func TestRegistry_SubmitAnswer_Guards(t *testing.T) {
	reg, _ := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	_, err = reg.join("ABC123", "Bob", bob)
	require.NoError(t, err)

	// Room not active yet: ignored.
	reg.submitAnswer("ABC123", alice, "Mercury")
	room.mu.Lock()
	assert.Empty(t, room.pendingAnswers)
	room.mu.Unlock()

	require.NoError(t, reg.startGame("ABC123", alice))

	// Unknown room and non-player connections: ignored.
	reg.submitAnswer("NOPE", alice, "Mercury")
	reg.submitAnswer("ABC123", newTestClient("conn-stranger"), "Mercury")

	// First answer wins; repeats are ignored.
	reg.submitAnswer("ABC123", alice, "Venus")
	reg.submitAnswer("ABC123", alice, "Mercury")

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Equal(t, map[string]string{"conn-alice": "Venus"}, room.pendingAnswers)
}

func TestRegistry_EarlyTermination(t *testing.T) {
	reg, clock := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	_, err = reg.join("ABC123", "Bob", bob)
	require.NoError(t, err)

	require.NoError(t, reg.startGame("ABC123", alice))
	drain(alice)
	drain(bob)

	reg.submitAnswer("ABC123", alice, "Venus")

	room.mu.Lock()
	assert.NotNil(t, room.currentQuestion, "round keeps running until everyone has answered")
	room.mu.Unlock()

	reg.submitAnswer("ABC123", bob, "Mercury")

	room.mu.Lock()
	assert.Nil(t, room.currentQuestion, "full response ends the round immediately")
	room.mu.Unlock()

	// Even with the original round timer still in flight, only one
	// question_end may be observed.
	stepClock(clock, int(reg.cfg.roundDuration/time.Second))

	msgs := drain(bob)
	ends := messagesOfType[QuestionEndMessage](msgs)
	require.Len(t, ends, 1)
	assert.Equal(t, "Mercury", ends[0].CorrectAnswer)

	update := lastPlayersUpdate(t, msgs)
	require.Len(t, update.Players, 2)
	assert.Equal(t, 0, update.Players[0].Score, "wrong answer scores nothing")
	assert.Equal(t, pointsPerCorrect, update.Players[1].Score, "correct answer scores points")
}

func TestRegistry_RoundTimerExpiry(t *testing.T) {
	reg, clock := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	require.NoError(t, reg.startGame("ABC123", alice))
	drain(alice)

	stepClock(clock, int(reg.cfg.roundDuration/time.Second))

	require.Eventually(t, func() bool {
		room.mu.Lock()
		defer room.mu.Unlock()
		return room.currentQuestion == nil
	}, time.Second, 10*time.Millisecond, "round should end when the timer expires")

	msgs := drain(alice)

	ends := messagesOfType[QuestionEndMessage](msgs)
	require.Len(t, ends, 1)

	update := lastPlayersUpdate(t, msgs)
	assert.Equal(t, 0, update.Players[0].Score, "no answer, no points")

	ticks := messagesOfType[TimeUpdateMessage](msgs)
	assert.NotEmpty(t, ticks, "countdown ticks are broadcast during the round")
	for _, tick := range ticks {
		assert.Greater(t, tick.Time, 0)
		assert.Less(t, tick.Time, int(reg.cfg.roundDuration/time.Second))
	}
}

func TestRegistry_RoundCadence(t *testing.T) {
	source := &stubSource{q: sampleQuestion()}
	reg, clock := newTestRegistry(testConfig(), source)

	alice := newTestClient("conn-alice")

	_, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	require.NoError(t, reg.startGame("ABC123", alice))
	assert.Equal(t, 1, source.callCount())
	drain(alice)

	// End the round early, then let the pause elapse: the next round must
	// start on its own.
	reg.submitAnswer("ABC123", alice, "Mercury")

	stepClock(clock, int(reg.cfg.roundPause/time.Second))

	require.Eventually(t, func() bool {
		return source.callCount() == 2
	}, time.Second, 10*time.Millisecond, "next round should chain automatically")

	msgs := drain(alice)
	questions := messagesOfType[NewQuestionMessage](msgs)
	require.Len(t, questions, 1, "exactly one follow-up question so far")

	update := lastPlayersUpdate(t, msgs)
	assert.Equal(t, pointsPerCorrect, update.Players[0].Score)
}

func TestRegistry_StartRound_NoPlayersGoesIdle(t *testing.T) {
	reg, _ := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)
	alice.room = room

	require.NoError(t, reg.startGame("ABC123", alice))

	reg.disconnect(alice)

	reg.startRound(room)

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.False(t, room.active, "a round cannot start in an empty room")
	assert.Nil(t, room.currentQuestion)
}

func TestRegistry_StaleRoundClockCannotEndRound(t *testing.T) {
	reg, clock := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	require.NoError(t, reg.startGame("ABC123", alice))
	drain(alice)

	// Model a round clock whose cancellation raced its own expiry: both
	// its timer and its cancel channel are ready when it wakes up. No
	// matter which branch it takes, it no longer owns the round and must
	// not end it.
	staleCancel := make(chan struct{})
	close(staleCancel)

	staleTimer := reg.clock.NewTimer(time.Nanosecond)
	staleTicker := reg.clock.NewTicker(time.Hour)
	clock.Advance(time.Nanosecond)

	done := make(chan struct{})
	go func() {
		reg.runRoundClock(room, staleTimer, staleTicker, staleCancel)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stale round clock did not exit")
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.NotNil(t, room.currentQuestion, "live round must survive a stale clock")
	assert.Empty(t, messagesOfType[QuestionEndMessage](drain(alice)))
}

func TestRegistry_EndRound_IdempotentOnLateTimer(t *testing.T) {
	reg, _ := newTestRegistry(testConfig(), &stubSource{q: sampleQuestion()})

	alice := newTestClient("conn-alice")

	room, err := reg.createRoom("ABC123", "Alice", alice)
	require.NoError(t, err)

	require.NoError(t, reg.startGame("ABC123", alice))
	drain(alice)

	room.mu.Lock()
	reg.endRoundLocked(room)
	reg.endRoundLocked(room) // a second invocation must be a no-op
	room.mu.Unlock()

	ends := messagesOfType[QuestionEndMessage](drain(alice))
	assert.Len(t, ends, 1)
}
