package services

import (
	"errors"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type RoomPhase string

const (
	RoomLobby    RoomPhase = "lobby"
	RoomPlaying  RoomPhase = "playing"
	RoomFinished RoomPhase = "finished"
)

// Team formation policies.
const (
	TeamModePairs   = "pairs"   // shuffle everyone into teams of two at start
	TeamModeManaged = "managed" // 2-4 host-managed teams, least-loaded joins
)

const (
	MaxPlayers        = 8
	minPlayersToStart = 2

	defaultTotalRounds = 10
	defaultTurnSeconds = 30

	// Fixed pause between a round resolving and the next one starting.
	advanceDelay = 3 * time.Second
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrGameInProgress   = errors.New("game already started")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotEnoughPlayers = errors.New("at least 2 players are required")
	ErrNoActiveRound    = errors.New("no round in progress")
	ErrWrongPhase       = errors.New("action not allowed in the current phase")
	ErrNotYourTurn      = errors.New("it is not your turn")
	ErrOwnTeamSteal     = errors.New("cannot steal for your own team")
	ErrManagedTeamsOnly = errors.New("room does not use managed teams")
)

// Broadcaster delivers outbound events. Both calls are fire-and-forget; the
// engine never waits for acknowledgment.
type Broadcaster interface {
	BroadcastToRoom(code, event string, payload interface{})
	SendToPlayer(code, playerID, event string, payload interface{})
}

// Settings are fixed per room at creation (the host picks them).
type Settings struct {
	TotalRounds int      `json:"total_rounds"`
	TurnSeconds int      `json:"turn_seconds"`
	Categories  []string `json:"categories"`
	TeamMode    string   `json:"team_mode"`
}

func (s *Settings) applyDefaults() {
	if s.TotalRounds <= 0 {
		s.TotalRounds = defaultTotalRounds
	}
	if s.TurnSeconds <= 0 {
		s.TurnSeconds = defaultTurnSeconds
	}
	if s.TeamMode != TeamModeManaged {
		s.TeamMode = TeamModePairs
	}
}

// Player is a participant in one room. TeamIndex is a weak reference into the
// room's team list (-1 while unassigned); the Team owns membership.
type Player struct {
	ID        string
	Name      string
	TeamIndex int
	JoinedAt  time.Time
}

// Room is the authoritative aggregate for one game session. Every mutation
// (player actions, timer ticks, expiries, the deferred round advance) goes
// through the room mutex, so no two transitions ever interleave. Rooms are
// independent; actions on different codes never block each other.
type Room struct {
	mu sync.Mutex

	Code            string
	HostID          string
	Phase           RoomPhase
	Settings        Settings
	Players         []*Player
	Teams           *TeamManager
	RoundNumber     int
	ActiveTeamIndex int
	Round           *Round

	usedWords map[string]bool
	advance   *time.Timer
	closed    bool
	rng       *rand.Rand

	// timerGen identifies the countdown currently armed for this room.
	// Callbacks carry the generation they were armed with; a mismatch means
	// the countdown was superseded while the callback was in flight.
	timerGen int

	timer       *TimerService
	bank        WordBank
	broadcaster Broadcaster
	store       *SnapshotStore
}

func newRoom(code string, settings Settings, timer *TimerService, bank WordBank,
	broadcaster Broadcaster, store *SnapshotStore) *Room {
	settings.applyDefaults()
	r := &Room{
		Code:        code,
		Phase:       RoomLobby,
		Settings:    settings,
		Teams:       NewTeamManager(),
		usedWords:   make(map[string]bool),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		timer:       timer,
		bank:        bank,
		broadcaster: broadcaster,
		store:       store,
	}
	if settings.TeamMode == TeamModeManaged {
		r.Teams.EnsureDefault(MinTeams)
	}
	return r
}

// ---------------------------------------------------------------
// Lobby operations
// ---------------------------------------------------------------

func (r *Room) addPlayerLocked(name string) *Player {
	p := &Player{
		ID:        uuid.NewString(),
		Name:      name,
		TeamIndex: -1,
		JoinedAt:  time.Now(),
	}
	if r.Settings.TeamMode == TeamModeManaged {
		p.TeamIndex = r.Teams.Assign(p.ID)
	}
	r.Players = append(r.Players, p)
	return p
}

// Join adds a player to the lobby.
func (r *Room) Join(name string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomNotFound
	}
	if r.Phase != RoomLobby {
		return nil, ErrGameInProgress
	}
	if len(r.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}

	p := r.addPlayerLocked(name)
	log.Printf("[ROOM] %s joined room %s (%d players)", name, r.Code, len(r.Players))
	r.broadcastStateLocked()
	return p, nil
}

// Start begins the game: forms teams (pairs mode), resets scores and opens
// the first round. Host only.
func (r *Room) Start(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if actorID != r.HostID {
		return ErrNotHost
	}
	if r.Phase != RoomLobby {
		return ErrGameInProgress
	}
	if len(r.Players) < minPlayersToStart {
		return ErrNotEnoughPlayers
	}

	if r.Settings.TeamMode == TeamModePairs {
		ids := make([]string, len(r.Players))
		for i, p := range r.Players {
			ids[i] = p.ID
		}
		r.Teams.FormPairs(ids, r.rng)
	}
	r.Teams.ResetScores()
	for _, p := range r.Players {
		p.TeamIndex = r.Teams.TeamOf(p.ID)
	}

	r.Phase = RoomPlaying
	r.RoundNumber = 1
	r.ActiveTeamIndex = r.firstActiveTeamLocked()
	log.Printf("[ROOM] Game started in room %s (%d players, %d teams)",
		r.Code, len(r.Players), r.Teams.Len())
	r.startRoundLocked()
	return nil
}

func (r *Room) firstActiveTeamLocked() int {
	for i, t := range r.Teams.Teams() {
		if len(t.Players) > 0 {
			return i
		}
	}
	return 0
}

// PlayAgain resets a room back to the lobby: scores, round counter, used
// words and teams are all cleared. Host only.
func (r *Room) PlayAgain(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if actorID != r.HostID {
		return ErrNotHost
	}

	r.timer.Cancel(r.Code)
	r.cancelAdvanceLocked()
	r.Phase = RoomLobby
	r.Round = nil
	r.RoundNumber = 0
	r.ActiveTeamIndex = 0
	r.usedWords = make(map[string]bool)

	r.Teams = NewTeamManager()
	if r.Settings.TeamMode == TeamModeManaged {
		r.Teams.EnsureDefault(MinTeams)
		for _, p := range r.Players {
			p.TeamIndex = r.Teams.Assign(p.ID)
		}
	} else {
		for _, p := range r.Players {
			p.TeamIndex = -1
		}
	}

	log.Printf("[ROOM] Room %s reset for a new game", r.Code)
	r.broadcastStateLocked()
	return nil
}

// ---------------------------------------------------------------
// Managed team operations (host only, lobby only)
// ---------------------------------------------------------------

func (r *Room) teamAdminGuardLocked(actorID string) error {
	if r.closed {
		return ErrRoomNotFound
	}
	if r.Settings.TeamMode != TeamModeManaged {
		return ErrManagedTeamsOnly
	}
	if actorID != r.HostID {
		return ErrNotHost
	}
	if r.Phase != RoomLobby {
		return ErrWrongPhase
	}
	return nil
}

func (r *Room) AddTeam(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.teamAdminGuardLocked(actorID); err != nil {
		return err
	}
	if err := r.Teams.AddTeam(); err != nil {
		return err
	}
	r.broadcastStateLocked()
	return nil
}

func (r *Room) RemoveTeam(actorID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.teamAdminGuardLocked(actorID); err != nil {
		return err
	}
	if err := r.Teams.RemoveTeam(index); err != nil {
		return err
	}
	// Team indices shifted; renumber every player record.
	for _, p := range r.Players {
		p.TeamIndex = r.Teams.TeamOf(p.ID)
	}
	r.broadcastStateLocked()
	return nil
}

func (r *Room) MovePlayer(actorID, playerID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.teamAdminGuardLocked(actorID); err != nil {
		return err
	}
	p := r.findPlayerLocked(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if err := r.Teams.MovePlayer(playerID, index); err != nil {
		return err
	}
	p.TeamIndex = index
	r.broadcastStateLocked()
	return nil
}

// ---------------------------------------------------------------
// Round lifecycle
// ---------------------------------------------------------------

func (r *Room) startRoundLocked() {
	entries, err := r.bank.Draw(r.Settings.Categories, r.usedWords, 1)
	if err != nil || len(entries) == 0 {
		log.Printf("[ROUND] Word bank exhausted for room %s, ending game: %v", r.Code, err)
		r.endGameLocked()
		return
	}
	entry := entries[0]
	r.usedWords[entry.Word] = true

	giver := r.Teams.NextGiver(r.ActiveTeamIndex)
	if giver == "" {
		log.Printf("[ROUND] Active team %d of room %s has no members, ending game",
			r.ActiveTeamIndex, r.Code)
		r.endGameLocked()
		return
	}

	r.Round = newRound(entry, r.ActiveTeamIndex, giver, r.Settings.TurnSeconds)
	log.Printf("[ROUND] Room %s round %d/%d: team %d, giver %s, category %s",
		r.Code, r.RoundNumber, r.Settings.TotalRounds, r.ActiveTeamIndex, giver, entry.Category)
	r.startCountdownLocked(r.Settings.TurnSeconds)
	r.broadcastStateLocked()
}

func (r *Room) stealSeconds() int {
	return r.Settings.TurnSeconds / 2
}

// startCountdownLocked (re)starts the room's single countdown. The callbacks
// capture the countdown generation: a tick or expiry from a superseded
// countdown is rejected even when it was already in flight (blocked on the
// room mutex) at the moment the replacement was armed.
func (r *Room) startCountdownLocked(seconds int) {
	r.timerGen++
	gen := r.timerGen
	r.timer.Start(r.Code, seconds,
		func(remaining int) { r.handleTick(gen, remaining) },
		func() { r.handleExpiry(gen) })
}

// staleLocked reports whether a timer callback belongs to a countdown that
// is no longer the room's current one, or to state that no longer exists.
func (r *Room) staleLocked(gen int) bool {
	return r.closed || r.Phase != RoomPlaying || r.Round == nil ||
		r.Round.resolved || gen != r.timerGen
}

func (r *Room) handleTick(gen, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleLocked(gen) {
		return
	}
	r.Round.TimeLeft = remaining
	if r.broadcaster != nil {
		r.broadcaster.BroadcastToRoom(r.Code, "timer_tick", map[string]interface{}{
			"time_left": remaining,
		})
	}
}

func (r *Room) handleExpiry(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleLocked(gen) {
		log.Printf("[TIMER] Ignoring stale expiry for room %s (countdown %d)", r.Code, gen)
		return
	}

	switch r.Round.Phase {
	case PhaseGivingClue:
		if r.Round.ClueCount == 0 {
			// No clue was ever produced; hand the word to the other teams.
			r.toStealingLocked()
		} else {
			r.failedGuessLocked()
		}
	case PhaseGuessing:
		r.failedGuessLocked()
	case PhaseStealing:
		r.resolveLocked(RoundResult{Correct: false, Stolen: false})
	}
}

// failedGuessLocked applies the shared wrong-guess/timeout branch: after
// three clues the opposing teams get a steal window, otherwise the same giver
// gets another clue.
func (r *Room) failedGuessLocked() {
	if r.Round.ClueCount >= maxCluesBeforeSteal {
		r.toStealingLocked()
		return
	}
	r.Round.Phase = PhaseGivingClue
	r.Round.TimeLeft = r.Settings.TurnSeconds
	r.startCountdownLocked(r.Settings.TurnSeconds)
	r.broadcastStateLocked()
}

func (r *Room) toStealingLocked() {
	r.Round.Phase = PhaseStealing
	secs := r.stealSeconds()
	r.Round.TimeLeft = secs
	r.startCountdownLocked(secs)
	r.broadcastStateLocked()
}

// ---------------------------------------------------------------
// Player actions
// ---------------------------------------------------------------

func (r *Room) roundGuardLocked(phase RoundPhase) error {
	if r.closed {
		return ErrRoomNotFound
	}
	if r.Phase != RoomPlaying || r.Round == nil || r.Round.resolved {
		return ErrNoActiveRound
	}
	if r.Round.Phase != phase {
		return ErrWrongPhase
	}
	return nil
}

// SubmitClue handles a clue from the designated giver.
func (r *Room) SubmitClue(actorID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.roundGuardLocked(PhaseGivingClue); err != nil {
		return err
	}
	if actorID != r.Round.GiverID {
		return ErrNotYourTurn
	}
	if err := ValidateClue(text, r.Round.Word); err != nil {
		return err
	}

	r.Round.Clues = append(r.Round.Clues, strings.TrimSpace(text))
	r.Round.ClueCount++
	r.Round.Phase = PhaseGuessing
	r.Round.TimeLeft = r.Settings.TurnSeconds
	r.startCountdownLocked(r.Settings.TurnSeconds)
	r.broadcastStateLocked()
	return nil
}

// SubmitGuess handles a guess from a non-giver member of the active team.
func (r *Room) SubmitGuess(actorID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.roundGuardLocked(PhaseGuessing); err != nil {
		return err
	}
	if r.Teams.TeamOf(actorID) != r.Round.ActiveTeamIndex || actorID == r.Round.GiverID {
		return ErrNotYourTurn
	}

	if AnswersMatch(text, r.Round.Word) {
		team := r.Round.ActiveTeamIndex
		r.Teams.Increment(team)
		r.resolveLocked(RoundResult{Correct: true, Team: &team, Stolen: false})
		return nil
	}
	r.failedGuessLocked()
	return nil
}

// SubmitSteal handles a one-shot answer from a player outside the active
// team. The first attempt resolves the round either way.
func (r *Room) SubmitSteal(actorID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.roundGuardLocked(PhaseStealing); err != nil {
		return err
	}
	team := r.Teams.TeamOf(actorID)
	if team == -1 {
		return ErrPlayerNoTeam
	}
	if team == r.Round.ActiveTeamIndex {
		return ErrOwnTeamSteal
	}
	if AnswersMatch(text, r.Round.Word) {
		r.Teams.Increment(team)
		r.resolveLocked(RoundResult{Correct: true, Team: &team, Stolen: true})
		return nil
	}
	r.resolveLocked(RoundResult{Correct: false, Stolen: false})
	return nil
}

// Pass lets the active team forfeit the turn early; the round resolves with
// no score.
func (r *Room) Pass(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if r.Phase != RoomPlaying || r.Round == nil || r.Round.resolved {
		return ErrNoActiveRound
	}
	if r.Teams.TeamOf(actorID) != r.Round.ActiveTeamIndex {
		return ErrNotYourTurn
	}
	r.resolveLocked(RoundResult{Correct: false, Stolen: false})
	return nil
}

// ---------------------------------------------------------------
// Resolution and advance
// ---------------------------------------------------------------

func (r *Room) resolveLocked(res RoundResult) {
	r.Round.resolved = true
	r.timer.Cancel(r.Code)
	res.Word = r.Round.Word

	if r.broadcaster != nil {
		r.broadcaster.BroadcastToRoom(r.Code, "round_result", res)
	}
	r.broadcastStateLocked()
	r.scheduleAdvanceLocked()
}

// scheduleAdvanceLocked arms the deferred next-round transition. The
// callback re-checks that the room still exists in the expected state: a
// mass disconnect may have deleted it in the meantime.
func (r *Room) scheduleAdvanceLocked() {
	r.cancelAdvanceLocked()
	expected := r.RoundNumber
	r.advance = time.AfterFunc(advanceDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || r.Phase != RoomPlaying || r.Round == nil ||
			!r.Round.resolved || r.RoundNumber != expected {
			return
		}
		r.nextTurnLocked()
	})
}

func (r *Room) cancelAdvanceLocked() {
	if r.advance != nil {
		r.advance.Stop()
		r.advance = nil
	}
}

// nextTurnLocked rotates the active team round-robin over teams that still
// have members, bumps the round counter and either starts the next round or
// ends the game.
func (r *Room) nextTurnLocked() {
	r.RoundNumber++

	next := -1
	n := r.Teams.Len()
	for i := 1; i <= n; i++ {
		idx := (r.ActiveTeamIndex + i) % n
		if t, err := r.Teams.Team(idx); err == nil && len(t.Players) > 0 {
			next = idx
			break
		}
	}
	if next == -1 {
		r.endGameLocked()
		return
	}
	r.ActiveTeamIndex = next

	if r.RoundNumber > r.Settings.TotalRounds {
		r.endGameLocked()
		return
	}
	r.startRoundLocked()
}

func (r *Room) endGameLocked() {
	r.timer.Cancel(r.Code)
	r.cancelAdvanceLocked()
	r.Phase = RoomFinished
	r.Round = nil

	rankings := r.Teams.Rankings(r.teamPlayersLocked)
	log.Printf("[ROOM] Game over in room %s", r.Code)
	if r.broadcaster != nil {
		r.broadcaster.BroadcastToRoom(r.Code, "game_over", map[string]interface{}{
			"rankings": rankings,
		})
	}
	r.broadcastStateLocked()
}

// ---------------------------------------------------------------
// Departures
// ---------------------------------------------------------------

// RemovePlayer detaches a player (leave or disconnect). It returns whether
// the player was present and whether the room is now empty; the registry
// deletes empty rooms. Unknown players are ignored, not errors.
func (r *Room) RemovePlayer(playerID string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, false
	}

	name := r.Players[idx].Name
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	r.Teams.Remove(playerID)
	log.Printf("[ROOM] %s left room %s (%d players remain)", name, r.Code, len(r.Players))

	if len(r.Players) == 0 {
		r.teardownLocked()
		return true, true
	}

	// Host migration: earliest-remaining player takes over.
	if r.HostID == playerID {
		r.HostID = r.Players[0].ID
		log.Printf("[ROOM] Host of room %s reassigned to %s", r.Code, r.Players[0].Name)
	}

	// If the active team just emptied mid-round, the round cannot continue;
	// resolve it with no score so the rotation invariant holds.
	if r.Phase == RoomPlaying && r.Round != nil && !r.Round.resolved {
		if t, err := r.Teams.Team(r.Round.ActiveTeamIndex); err == nil && len(t.Players) == 0 {
			r.resolveLocked(RoundResult{Correct: false, Stolen: false})
			return true, false
		}
	}

	r.broadcastStateLocked()
	return true, false
}

// teardownLocked cancels everything the room owns. Callbacks that fire after
// teardown see closed and no-op.
func (r *Room) teardownLocked() {
	r.closed = true
	r.timer.Cancel(r.Code)
	r.cancelAdvanceLocked()
	r.store.Delete(r.Code)
}

// Empty reports whether the room has no players left.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Players) == 0
}

// ---------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------

func (r *Room) findPlayerLocked(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (r *Room) teamPlayersLocked(teamIdx int) []PlayerSnapshot {
	t, err := r.Teams.Team(teamIdx)
	if err != nil {
		return nil
	}
	out := make([]PlayerSnapshot, 0, len(t.Players))
	for _, id := range t.Players {
		if p := r.findPlayerLocked(id); p != nil {
			out = append(out, PlayerSnapshot{ID: p.ID, Name: p.Name})
		}
	}
	return out
}

// snapshotLocked assembles the state for one recipient. A nil viewer yields
// the public copy (word always masked).
func (r *Room) snapshotLocked(viewer *Player) RoomSnapshot {
	players := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerSnapshot{ID: p.ID, Name: p.Name})
	}

	teams := make([]TeamSnapshot, 0, r.Teams.Len())
	for i, t := range r.Teams.Teams() {
		teams = append(teams, TeamSnapshot{
			Index:   i,
			Name:    t.Name,
			Color:   t.Color,
			Score:   t.Score,
			Players: r.teamPlayersLocked(i),
		})
	}

	snap := RoomSnapshot{
		Code:            r.Code,
		Phase:           string(r.Phase),
		HostID:          r.HostID,
		Players:         players,
		Teams:           teams,
		ActiveTeamIndex: r.ActiveTeamIndex,
		RoundNumber:     r.RoundNumber,
		TotalRounds:     r.Settings.TotalRounds,
		MyTeamIndex:     -1,
	}

	if r.Round != nil {
		round := &RoundSnapshot{
			Phase:           string(r.Round.Phase),
			Clues:           append([]string(nil), r.Round.Clues...),
			ClueCount:       r.Round.ClueCount,
			TimeLeft:        r.Round.TimeLeft,
			ActiveTeamIndex: r.Round.ActiveTeamIndex,
			GiverID:         r.Round.GiverID,
			Category:        r.Round.Category,
		}
		// The secret travels only to the giver.
		if viewer != nil && viewer.ID == r.Round.GiverID {
			word := r.Round.Word
			round.Word = &word
		}
		snap.Round = round
	}

	if viewer != nil {
		snap.MyID = viewer.ID
		snap.MyTeamIndex = r.Teams.TeamOf(viewer.ID)
		snap.IsHost = viewer.ID == r.HostID
	}
	return snap
}

// broadcastStateLocked pushes a personalized snapshot to every player and
// mirrors the public copy.
func (r *Room) broadcastStateLocked() {
	if r.broadcaster != nil {
		for _, p := range r.Players {
			r.broadcaster.SendToPlayer(r.Code, p.ID, "game_state", r.snapshotLocked(p))
		}
	}
	r.store.Put(r.Code, r.snapshotLocked(nil))
}

// PublicSnapshot returns the spectator-safe copy of the room state.
func (r *Room) PublicSnapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(nil)
}

// SendStateTo pushes the current state to a single player (used when a
// connection is established).
func (r *Room) SendStateTo(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broadcaster == nil {
		return
	}
	if p := r.findPlayerLocked(playerID); p != nil {
		r.broadcaster.SendToPlayer(r.Code, p.ID, "game_state", r.snapshotLocked(p))
	}
}

// HasPlayer reports whether the player belongs to the room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findPlayerLocked(playerID) != nil
}
