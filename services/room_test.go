package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBank deals a fixed sequence of words.
type stubBank struct {
	words []WordEntry
	next  int
}

func (b *stubBank) Categories() []string { return nil }

func (b *stubBank) Draw(categories []string, excluded map[string]bool, count int) ([]WordEntry, error) {
	if b.next >= len(b.words) {
		return nil, ErrBankExhausted
	}
	e := b.words[b.next]
	b.next++
	return []WordEntry{e}, nil
}

// eventRecorder captures outbound events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	To      string // "*" for room-wide
	Event   string
	Payload interface{}
}

func (r *eventRecorder) BroadcastToRoom(code, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{To: "*", Event: event, Payload: payload})
}

func (r *eventRecorder) SendToPlayer(code, playerID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{To: playerID, Event: event, Payload: payload})
}

func (r *eventRecorder) last(event string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			return r.events[i].Payload, true
		}
	}
	return nil, false
}

// newTestRoom builds a managed-teams room with the given secret words and
// four players. Join order alternates team assignment, so teams come out as
// [p1 p3] and [p2 p4], and p1 is both host and first giver.
func newTestRoom(t *testing.T, rounds int, words ...string) (*Room, []*Player, *eventRecorder) {
	t.Helper()

	entries := make([]WordEntry, len(words))
	for i, w := range words {
		entries[i] = WordEntry{Word: w, Category: "Animaux"}
	}

	timer := NewTimerService()
	timer.interval = time.Hour // keep real ticks out of state assertions

	rec := &eventRecorder{}
	room := newRoom("TEST", Settings{
		TotalRounds: rounds,
		TurnSeconds: 30,
		TeamMode:    TeamModeManaged,
	}, timer, &stubBank{words: entries}, rec, nil)

	players := make([]*Player, 4)
	for i, name := range []string{"p1", "p2", "p3", "p4"} {
		p, err := room.Join(name)
		require.NoError(t, err)
		players[i] = p
	}
	room.HostID = players[0].ID
	return room, players, rec
}

func startGame(t *testing.T, room *Room, host *Player) {
	t.Helper()
	require.NoError(t, room.Start(host.ID))
}

func TestStartGameOpensFirstRound(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	assert.Equal(t, RoomPlaying, room.Phase)
	assert.Equal(t, 1, room.RoundNumber)
	assert.Equal(t, 0, room.ActiveTeamIndex)
	require.NotNil(t, room.Round)
	assert.Equal(t, PhaseGivingClue, room.Round.Phase)
	assert.Equal(t, players[0].ID, room.Round.GiverID)
	assert.Equal(t, "chien", room.Round.Word)
	assert.Equal(t, 30, room.Round.TimeLeft)
	assert.True(t, room.timer.Active("TEST"))
}

func TestStartGameGuards(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")

	assert.ErrorIs(t, room.Start(players[1].ID), ErrNotHost)
	startGame(t, room, players[0])
	assert.ErrorIs(t, room.Start(players[0].ID), ErrGameInProgress)

	_, err := room.Join("late")
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestStartGameNeedsTwoPlayers(t *testing.T) {
	timer := NewTimerService()
	timer.interval = time.Hour
	room := newRoom("SOLO", Settings{TeamMode: TeamModeManaged}, timer,
		&stubBank{words: []WordEntry{{Word: "chien", Category: "Animaux"}}}, nil, nil)
	p, err := room.Join("alone")
	require.NoError(t, err)
	room.HostID = p.ID

	assert.ErrorIs(t, room.Start(p.ID), ErrNotEnoughPlayers)
}

func TestClueThenCorrectGuessScores(t *testing.T) {
	room, players, rec := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	require.NoError(t, room.SubmitClue(players[0].ID, "animal"))
	assert.Equal(t, PhaseGuessing, room.Round.Phase)
	assert.Equal(t, []string{"animal"}, room.Round.Clues)
	assert.Equal(t, 1, room.Round.ClueCount)

	// Opposing-team members and the giver may not guess.
	assert.ErrorIs(t, room.SubmitGuess(players[1].ID, "chien"), ErrNotYourTurn)
	assert.ErrorIs(t, room.SubmitGuess(players[0].ID, "chien"), ErrNotYourTurn)

	require.NoError(t, room.SubmitGuess(players[2].ID, "CHIEN"))
	assert.True(t, room.Round.resolved)
	assert.Equal(t, 1, room.Teams.Teams()[0].Score)
	assert.Equal(t, 0, room.Teams.Teams()[1].Score)

	payload, ok := rec.last("round_result")
	require.True(t, ok)
	res := payload.(RoundResult)
	assert.True(t, res.Correct)
	assert.False(t, res.Stolen)
	assert.Equal(t, "chien", res.Word)
	require.NotNil(t, res.Team)
	assert.Equal(t, 0, *res.Team)
}

func TestOnlyGiverMaySubmitClue(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	assert.ErrorIs(t, room.SubmitClue(players[2].ID, "animal"), ErrNotYourTurn)
	assert.ErrorIs(t, room.SubmitGuess(players[2].ID, "chien"), ErrWrongPhase)
}

func TestRejectedClueLeavesStateUntouched(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	assert.Error(t, room.SubmitClue(players[0].ID, "chienne"))
	assert.Equal(t, PhaseGivingClue, room.Round.Phase)
	assert.Empty(t, room.Round.Clues)
	assert.Zero(t, room.Round.ClueCount)
}

func TestWrongGuessReturnsToGivingClue(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	require.NoError(t, room.SubmitClue(players[0].ID, "animal"))
	require.NoError(t, room.SubmitGuess(players[2].ID, "chat"))

	assert.False(t, room.Round.resolved)
	assert.Equal(t, PhaseGivingClue, room.Round.Phase)
	assert.Equal(t, players[0].ID, room.Round.GiverID)
	assert.Equal(t, 30, room.Round.TimeLeft)
	assert.Zero(t, room.Teams.Teams()[0].Score)
}

func TestThirdWrongGuessOpensStealWindow(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	for i, clue := range []string{"animal", "poil", "laisse"} {
		require.NoError(t, room.SubmitClue(players[0].ID, clue))
		require.NoError(t, room.SubmitGuess(players[2].ID, "chat"))
		if i < 2 {
			assert.Equal(t, PhaseGivingClue, room.Round.Phase)
		}
	}

	assert.Equal(t, PhaseStealing, room.Round.Phase)
	assert.Equal(t, 15, room.Round.TimeLeft)
	assert.False(t, room.Round.resolved)
}

func TestExpiryWithoutClueOpensStealWindow(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	room.handleExpiry(room.timerGen)
	assert.Equal(t, PhaseStealing, room.Round.Phase)
	assert.Equal(t, 15, room.Round.TimeLeft)
}

func TestGuessExpiryCountsAsFailedGuess(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	require.NoError(t, room.SubmitClue(players[0].ID, "animal"))
	room.handleExpiry(room.timerGen)

	assert.Equal(t, PhaseGivingClue, room.Round.Phase)
	assert.False(t, room.Round.resolved)
}

func TestStaleExpiryIgnored(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	room.handleExpiry(room.timerGen + 7)
	assert.Equal(t, PhaseGivingClue, room.Round.Phase)

	room.handleTick(room.timerGen+7, 12)
	assert.Equal(t, 30, room.Round.TimeLeft)
}

func TestSupersededCountdownCallbacksIgnored(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	// The clue supersedes the giving-clue countdown. An expiry from the old
	// countdown that was already in flight must not consume the fresh
	// guessing window.
	oldGen := room.timerGen
	require.NoError(t, room.SubmitClue(players[0].ID, "animal"))
	require.NotEqual(t, oldGen, room.timerGen)

	room.handleExpiry(oldGen)
	assert.Equal(t, PhaseGuessing, room.Round.Phase)
	assert.False(t, room.Round.resolved)

	room.handleTick(oldGen, 3)
	assert.Equal(t, 30, room.Round.TimeLeft)
}

func driveToStealing(t *testing.T, room *Room) {
	t.Helper()
	room.handleExpiry(room.timerGen)
	require.Equal(t, PhaseStealing, room.Round.Phase)
}

func TestStealCorrectScoresStealingTeam(t *testing.T) {
	room, players, rec := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])
	driveToStealing(t, room)

	assert.ErrorIs(t, room.SubmitSteal(players[0].ID, "chien"), ErrOwnTeamSteal)

	require.NoError(t, room.SubmitSteal(players[1].ID, "chien"))
	assert.True(t, room.Round.resolved)
	assert.Equal(t, 1, room.Teams.Teams()[1].Score)
	assert.Zero(t, room.Teams.Teams()[0].Score)

	payload, ok := rec.last("round_result")
	require.True(t, ok)
	res := payload.(RoundResult)
	assert.True(t, res.Correct)
	assert.True(t, res.Stolen)
	require.NotNil(t, res.Team)
	assert.Equal(t, 1, *res.Team)
}

func TestStealWrongResolvesWithoutScore(t *testing.T) {
	room, players, rec := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])
	driveToStealing(t, room)

	require.NoError(t, room.SubmitSteal(players[1].ID, "chat"))
	assert.True(t, room.Round.resolved)
	assert.Zero(t, room.Teams.Teams()[0].Score)
	assert.Zero(t, room.Teams.Teams()[1].Score)

	payload, ok := rec.last("round_result")
	require.True(t, ok)
	res := payload.(RoundResult)
	assert.False(t, res.Correct)
	assert.Nil(t, res.Team)

	// The window is one-shot; the round is already over.
	assert.ErrorIs(t, room.SubmitSteal(players[3].ID, "chien"), ErrNoActiveRound)
}

func TestStealExpiryResolvesWithoutScore(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])
	driveToStealing(t, room)

	room.handleExpiry(room.timerGen)
	assert.True(t, room.Round.resolved)
	assert.Zero(t, room.Teams.Teams()[0].Score)
	assert.Zero(t, room.Teams.Teams()[1].Score)
}

func TestPassResolvesRound(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	assert.ErrorIs(t, room.Pass(players[1].ID), ErrNotYourTurn)
	require.NoError(t, room.Pass(players[2].ID))
	assert.True(t, room.Round.resolved)
	assert.Zero(t, room.Teams.Teams()[0].Score)
}

func advanceNow(room *Room) {
	room.mu.Lock()
	defer room.mu.Unlock()
	room.cancelAdvanceLocked()
	room.nextTurnLocked()
}

func TestNextTurnRotatesTeamsAndGivers(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien", "chat")
	startGame(t, room, players[0])

	require.NoError(t, room.Pass(players[2].ID))
	advanceNow(room)

	assert.Equal(t, 2, room.RoundNumber)
	assert.Equal(t, 1, room.ActiveTeamIndex)
	require.NotNil(t, room.Round)
	assert.Equal(t, "chat", room.Round.Word)
	assert.Equal(t, players[1].ID, room.Round.GiverID)
	assert.Equal(t, PhaseGivingClue, room.Round.Phase)
}

func TestGameEndsAfterFinalRound(t *testing.T) {
	room, players, rec := newTestRoom(t, 1, "chien", "chat")
	startGame(t, room, players[0])

	require.NoError(t, room.SubmitClue(players[0].ID, "animal"))
	require.NoError(t, room.SubmitGuess(players[2].ID, "chien"))
	advanceNow(room)

	assert.Equal(t, RoomFinished, room.Phase)
	assert.Nil(t, room.Round)

	payload, ok := rec.last("game_over")
	require.True(t, ok)
	rankings := payload.(map[string]interface{})["rankings"].([]TeamRanking)
	require.Len(t, rankings, 2)
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, 1, rankings[0].Score)
	assert.Equal(t, 0, rankings[1].Score)
}

func TestExhaustedBankEndsGameEarly(t *testing.T) {
	room, players, _ := newTestRoom(t, 10, "chien")
	startGame(t, room, players[0])

	require.NoError(t, room.Pass(players[2].ID))
	advanceNow(room)

	assert.Equal(t, RoomFinished, room.Phase)
}

func TestSnapshotMasksSecretWord(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	room.mu.Lock()
	giverView := room.snapshotLocked(players[0])
	guesserView := room.snapshotLocked(players[2])
	room.mu.Unlock()
	public := room.PublicSnapshot()

	require.NotNil(t, giverView.Round)
	require.NotNil(t, giverView.Round.Word)
	assert.Equal(t, "chien", *giverView.Round.Word)

	require.NotNil(t, guesserView.Round)
	assert.Nil(t, guesserView.Round.Word)
	assert.Equal(t, "Animaux", guesserView.Round.Category)

	require.NotNil(t, public.Round)
	assert.Nil(t, public.Round.Word)

	assert.True(t, giverView.IsHost)
	assert.Equal(t, 0, giverView.MyTeamIndex)
	assert.Equal(t, players[0].ID, giverView.HostID)
}

func TestHostMigratesToEarliestRemaining(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")

	removed, empty := room.RemovePlayer(players[0].ID)
	assert.True(t, removed)
	assert.False(t, empty)
	assert.Equal(t, players[1].ID, room.HostID)
}

func TestLastDepartureClosesRoom(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")

	for i, p := range players {
		_, empty := room.RemovePlayer(p.ID)
		assert.Equal(t, i == len(players)-1, empty)
	}
	assert.True(t, room.closed)

	_, err := room.Join("ghost")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRemoveUnknownPlayerIgnored(t *testing.T) {
	room, _, _ := newTestRoom(t, 3, "chien")
	removed, empty := room.RemovePlayer("nobody")
	assert.False(t, removed)
	assert.False(t, empty)
}

func TestActiveTeamEmptiedMidRoundResolves(t *testing.T) {
	room, players, _ := newTestRoom(t, 3, "chien")
	startGame(t, room, players[0])

	// Team 0 is p1 and p3; once both leave the round cannot continue.
	room.RemovePlayer(players[0].ID)
	assert.False(t, room.Round.resolved)
	room.RemovePlayer(players[2].ID)
	assert.True(t, room.Round.resolved)
	assert.Zero(t, room.Teams.Teams()[0].Score)
}

func TestPlayAgainResetsToLobby(t *testing.T) {
	room, players, _ := newTestRoom(t, 1, "chien")
	startGame(t, room, players[0])

	require.NoError(t, room.SubmitClue(players[0].ID, "animal"))
	require.NoError(t, room.SubmitGuess(players[2].ID, "chien"))
	advanceNow(room)
	require.Equal(t, RoomFinished, room.Phase)

	assert.ErrorIs(t, room.PlayAgain(players[1].ID), ErrNotHost)
	require.NoError(t, room.PlayAgain(players[0].ID))

	assert.Equal(t, RoomLobby, room.Phase)
	assert.Nil(t, room.Round)
	assert.Zero(t, room.RoundNumber)
	assert.Len(t, room.Players, 4)
	assert.Empty(t, room.usedWords)
	for _, team := range room.Teams.Teams() {
		assert.Zero(t, team.Score)
	}
	for _, p := range room.Players {
		assert.NotEqual(t, -1, p.TeamIndex)
	}
}
