package services

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

const (
	MinTeams = 2
	MaxTeams = 4
)

var (
	ErrTooManyTeams   = errors.New("maximum number of teams reached")
	ErrTooFewTeams    = errors.New("minimum number of teams reached")
	ErrTeamNotFound   = errors.New("team not found")
	ErrPlayerNoTeam   = errors.New("player is not on any team")
	ErrUnknownPlayer  = errors.New("player not found")
	ErrSameTeam       = errors.New("player is already on that team")
)

// teamPalette provides the name/color pairs used when teams are created.
var teamPalette = []struct {
	Name  string
	Color string
}{
	{"Rouge", "#e74c3c"},
	{"Bleu", "#3498db"},
	{"Vert", "#2ecc71"},
	{"Jaune", "#f1c40f"},
}

// Team owns its ordered member list and score. Player records only hold a
// weak index back into the team slice.
type Team struct {
	Name    string
	Color   string
	Players []string
	Score   int

	// giverPos is the round-robin clue-giver pointer, advanced once each
	// time this team becomes the active team.
	giverPos int
}

// TeamManager forms and rebalances teams and owns per-team scores. It is not
// safe for concurrent use on its own; the owning Room serializes access.
type TeamManager struct {
	teams []*Team
}

func NewTeamManager() *TeamManager {
	return &TeamManager{}
}

func (tm *TeamManager) Teams() []*Team { return tm.teams }
func (tm *TeamManager) Len() int       { return len(tm.teams) }

func (tm *TeamManager) Team(index int) (*Team, error) {
	if index < 0 || index >= len(tm.teams) {
		return nil, ErrTeamNotFound
	}
	return tm.teams[index], nil
}

// FormPairs implements the auto-pair policy: shuffle all players and group
// them into teams of up to two, in shuffled order. Any previous teams and
// scores are discarded.
func (tm *TeamManager) FormPairs(playerIDs []string, rng *rand.Rand) {
	shuffled := make([]string, len(playerIDs))
	copy(shuffled, playerIDs)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	tm.teams = nil
	for i := 0; i < len(shuffled); i += 2 {
		entry := teamPalette[len(tm.teams)%len(teamPalette)]
		team := &Team{
			Name:    fmt.Sprintf("Équipe %d", len(tm.teams)+1),
			Color:   entry.Color,
			Players: []string{shuffled[i]},
		}
		if i+1 < len(shuffled) {
			team.Players = append(team.Players, shuffled[i+1])
		}
		tm.teams = append(tm.teams, team)
	}
}

// EnsureDefault creates n named teams for the managed policy, discarding any
// existing ones. n is clamped to the [MinTeams, MaxTeams] range.
func (tm *TeamManager) EnsureDefault(n int) {
	if n < MinTeams {
		n = MinTeams
	}
	if n > MaxTeams {
		n = MaxTeams
	}
	tm.teams = nil
	for i := 0; i < n; i++ {
		entry := teamPalette[i%len(teamPalette)]
		tm.teams = append(tm.teams, &Team{Name: entry.Name, Color: entry.Color})
	}
}

// Assign places a player on the currently smallest team (greedy least-loaded)
// and returns its index.
func (tm *TeamManager) Assign(playerID string) int {
	if len(tm.teams) == 0 {
		return -1
	}
	smallest := 0
	for i, t := range tm.teams {
		if len(t.Players) < len(tm.teams[smallest].Players) {
			smallest = i
		}
	}
	tm.teams[smallest].Players = append(tm.teams[smallest].Players, playerID)
	return smallest
}

// AddTeam appends a new empty team, up to MaxTeams.
func (tm *TeamManager) AddTeam() error {
	if len(tm.teams) >= MaxTeams {
		return ErrTooManyTeams
	}
	entry := teamPalette[len(tm.teams)%len(teamPalette)]
	tm.teams = append(tm.teams, &Team{Name: entry.Name, Color: entry.Color})
	return nil
}

// RemoveTeam deletes the team at index, reassigning its members to team 0.
// Every later team shifts down by one; callers must renumber any player
// records referencing those indices (see TeamOf).
func (tm *TeamManager) RemoveTeam(index int) error {
	if len(tm.teams) <= MinTeams {
		return ErrTooFewTeams
	}
	if index < 0 || index >= len(tm.teams) {
		return ErrTeamNotFound
	}
	orphans := tm.teams[index].Players
	tm.teams = append(tm.teams[:index], tm.teams[index+1:]...)
	tm.teams[0].Players = append(tm.teams[0].Players, orphans...)
	return nil
}

// MovePlayer moves a player to the team at index, keeping join order on the
// destination.
func (tm *TeamManager) MovePlayer(playerID string, index int) error {
	if index < 0 || index >= len(tm.teams) {
		return ErrTeamNotFound
	}
	from := tm.TeamOf(playerID)
	if from == -1 {
		return ErrPlayerNoTeam
	}
	if from == index {
		return ErrSameTeam
	}
	tm.removeFrom(from, playerID)
	tm.teams[index].Players = append(tm.teams[index].Players, playerID)
	return nil
}

// Remove detaches a player from whichever team holds them. Unknown players
// are ignored.
func (tm *TeamManager) Remove(playerID string) {
	if idx := tm.TeamOf(playerID); idx != -1 {
		tm.removeFrom(idx, playerID)
	}
}

func (tm *TeamManager) removeFrom(teamIdx int, playerID string) {
	t := tm.teams[teamIdx]
	for i, id := range t.Players {
		if id == playerID {
			// Keep the giver rotation stable for members before the
			// departing one.
			if i < t.giverPos {
				t.giverPos--
			}
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			return
		}
	}
}

// TeamOf returns the index of the team holding playerID, or -1.
func (tm *TeamManager) TeamOf(playerID string) int {
	for i, t := range tm.teams {
		for _, id := range t.Players {
			if id == playerID {
				return i
			}
		}
	}
	return -1
}

// NextGiver returns the next clue giver for the team at index, advancing the
// team's round-robin pointer. Returns "" for an empty team.
func (tm *TeamManager) NextGiver(index int) string {
	if index < 0 || index >= len(tm.teams) {
		return ""
	}
	t := tm.teams[index]
	if len(t.Players) == 0 {
		return ""
	}
	if t.giverPos >= len(t.Players) {
		t.giverPos = 0
	}
	giver := t.Players[t.giverPos]
	t.giverPos = (t.giverPos + 1) % len(t.Players)
	return giver
}

// Increment adds one point to the team at index. Scores are monotonic; the
// only way down is ResetScores.
func (tm *TeamManager) Increment(index int) {
	if index >= 0 && index < len(tm.teams) {
		tm.teams[index].Score++
	}
}

// ResetScores zeroes every team score (explicit game restart only).
func (tm *TeamManager) ResetScores() {
	for _, t := range tm.teams {
		t.Score = 0
		t.giverPos = 0
	}
}

// Rankings sorts teams by score descending. The sort is stable: teams with
// equal scores keep their original registration order.
func (tm *TeamManager) Rankings(players func(teamIdx int) []PlayerSnapshot) []TeamRanking {
	order := make([]int, len(tm.teams))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return tm.teams[order[i]].Score > tm.teams[order[j]].Score
	})

	rankings := make([]TeamRanking, 0, len(order))
	for rank, idx := range order {
		t := tm.teams[idx]
		rankings = append(rankings, TeamRanking{
			Rank:    rank + 1,
			Name:    t.Name,
			Color:   t.Color,
			Score:   t.Score,
			Players: players(idx),
		})
	}
	return rankings
}
